package jsonc

import "testing"

func TestTokenizeBasic(t *testing.T) {
	tokens, unclosed := Tokenize(`spawn file.jsonc key=value`)
	if unclosed {
		t.Fatal("expected no unclosed quote")
	}
	want := []string{"spawn", "file.jsonc", "key=value"}
	if len(tokens) != len(want) {
		t.Fatalf("got %v", tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("token %d: got %q want %q", i, tokens[i], want[i])
		}
	}
}

func TestTokenizeQuotedRun(t *testing.T) {
	tokens, unclosed := Tokenize(`echo "hello world" 'single run'`)
	if unclosed {
		t.Fatal("expected no unclosed quote")
	}
	want := []string{"echo", "hello world", "single run"}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("token %d: got %q want %q", i, tokens[i], want[i])
		}
	}
}

func TestTokenizeUnclosedQuote(t *testing.T) {
	_, unclosed := Tokenize(`echo "never closed`)
	if !unclosed {
		t.Fatal("expected unclosed quote to be detected")
	}
}

func TestTokenizeJoinInvolution(t *testing.T) {
	cmd := "a b c"
	tokens, _ := Tokenize(cmd)
	if Join(tokens) != cmd {
		t.Fatalf("Join(Tokenize(%q)) = %q", cmd, Join(tokens))
	}
}
