// Package functree implements the Function Tree described in spec
// 4.8: a set of named commands organized into categories, resolved by
// longest-prefix match over a quote-aware tokenized command line.
package functree

import (
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/lbastigk/nebulite/document/scope"
	"github.com/lbastigk/nebulite/internal/errs"
	"github.com/lbastigk/nebulite/internal/jsonc"
)

// Callable is one command's implementation: args excludes the command
// name itself.
type Callable func(self *scope.View, args []string) *errs.Error

// PreParseFunc runs once per ParseStr call before dispatch, e.g. for
// lazy init (spec 4.8: "the texture domain copies the referenced
// bitmap on first write"). Returning a Critical error aborts the
// command.
type PreParseFunc func(self *scope.View, tokens []string) *errs.Error

type command struct {
	name        string
	description string
	fn          Callable
}

// FuncTree is one Domain's command set (spec 4.9: "a FuncTree"). A
// tree may inherit entries from sub-domain trees: every inherited
// entry is visible through the parent, disambiguated by longest-prefix
// match exactly like a locally registered one.
type FuncTree struct {
	mu       sync.RWMutex
	commands map[string]*command
	children []*FuncTree
	preParse PreParseFunc
}

// New creates an empty FuncTree.
func New() *FuncTree {
	return &FuncTree{commands: make(map[string]*command)}
}

// Register adds a named command. A later call with the same name
// replaces the earlier one.
func (t *FuncTree) Register(name, description string, fn Callable) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commands[name] = &command{name: name, description: description, fn: fn}
}

// Inherit makes every entry of child visible through t (spec 4.9:
// "all entries from child are visible through parent, disambiguated by
// prefix").
func (t *FuncTree) Inherit(child *FuncTree) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.children = append(t.children, child)
}

// SetPreParse installs the tree's preParse hook (spec 4.8).
func (t *FuncTree) SetPreParse(fn PreParseFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.preParse = fn
}

// candidate pairs one resolvable command with the name it is
// registered under.
type candidate struct {
	name string
	cmd  *command
}

// collect gathers every command visible from t, including inherited
// ones, keyed by name. A name registered both locally and by a child
// resolves to the local entry.
func (t *FuncTree) collect() map[string]*command {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]*command)
	for _, child := range t.children {
		for name, cmd := range child.collect() {
			out[name] = cmd
		}
	}
	for name, cmd := range t.commands {
		out[name] = cmd
	}
	return out
}

// ParseStr tokenizes s respecting quoted runs, runs the preParse hook,
// resolves the longest registered name that prefixes the tokens (so
// "debug print-src-rect" resolves before "debug"), and invokes its
// callable with the remaining tokens as arguments (spec 4.8).
func (t *FuncTree) ParseStr(self *scope.View, s string) *errs.Error {
	tokens, unclosed := jsonc.Tokenize(s)
	if unclosed {
		return errs.Functional("unclosed quote in command: %s", s)
	}
	if len(tokens) == 0 {
		return errs.Functional("empty command")
	}

	t.mu.RLock()
	preParse := t.preParse
	t.mu.RUnlock()
	if preParse != nil {
		if err := preParse(self, tokens); err.IsCritical() {
			return err
		}
	}

	all := t.collect()
	for n := len(tokens); n >= 1; n-- {
		name := strings.Join(tokens[:n], " ")
		if cmd, ok := all[name]; ok {
			return cmd.fn(self, tokens[n:])
		}
	}

	return errs.Functional("unknown command: %s", tokens[0]).WithHint(suggest(tokens[0], all))
}

// suggest proposes the closest registered top-level command name to
// query using fuzzy string matching, returning "" if no command is
// registered at all.
func suggest(query string, all map[string]*command) string {
	if len(all) == 0 {
		return ""
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	ranks := fuzzy.RankFindFold(query, names)
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return ranks[0].Target
}

// Help returns every visible command's name and description, sorted
// by name, for the `help` command surface (spec 4.8: "Help output is
// derivable from the tree").
func (t *FuncTree) Help() []string {
	all := t.collect()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, len(names))
	for i, name := range names {
		out[i] = name + " - " + all[name].description
	}
	return out
}
