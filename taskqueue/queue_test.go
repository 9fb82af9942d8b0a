package taskqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lbastigk/nebulite/internal/errs"
)

type recordingDispatcher struct {
	seen       []string
	errFor     map[string]*errs.Error
	onDispatch func(cmd string)
}

func (d *recordingDispatcher) Dispatch(cmd string) *errs.Error {
	d.seen = append(d.seen, cmd)
	if d.onDispatch != nil {
		d.onDispatch(cmd)
	}
	return d.errFor[cmd]
}

func TestPushBackDrainsInOrder(t *testing.T) {
	q := New()
	q.PushBack("a")
	q.PushBack("b")
	q.PushBack("c")

	d := &recordingDispatcher{}
	err := q.Resolve(d)
	assert.Nil(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, d.seen)
	assert.Equal(t, 0, q.Len())
}

func TestPushFrontRunsNext(t *testing.T) {
	q := New()
	q.PushBack("a")
	q.PushFront("urgent")

	d := &recordingDispatcher{}
	require := assert.New(t)
	_ = q.Resolve(d)
	require.Equal([]string{"urgent", "a"}, d.seen)
}

func TestWaitCounterSuspendsOneResolveCall(t *testing.T) {
	q := New()
	q.PushBack("a")
	q.IncrementWaitCounter(2)

	d := &recordingDispatcher{}
	q.Resolve(d)
	assert.Empty(t, d.seen, "draining should not happen while waiting")
	assert.True(t, q.IsWaiting())

	q.Resolve(d)
	assert.Empty(t, d.seen)
	assert.False(t, q.IsWaiting())

	q.Resolve(d)
	assert.Equal(t, []string{"a"}, d.seen)
}

func TestCommandRaisingWaitCounterStopsDraining(t *testing.T) {
	q := New()
	q.PushBack("wait")
	q.PushBack("b")

	d := &recordingDispatcher{onDispatch: func(cmd string) {
		if cmd == "wait" {
			q.IncrementWaitCounter(1)
		}
	}}
	q.Resolve(d)
	assert.Equal(t, []string{"wait"}, d.seen)
	assert.Equal(t, 1, q.Len(), "\"b\" should remain queued")
}

func TestResolveReturnsFirstCriticalError(t *testing.T) {
	q := New()
	q.PushBack("a")
	q.PushBack("b")
	q.PushBack("c")

	d := &recordingDispatcher{errFor: map[string]*errs.Error{
		"b": errs.UserCritical("boom"),
	}}
	err := q.Resolve(d)
	assert.NotNil(t, err)
	assert.True(t, err.IsCritical())
	assert.Equal(t, []string{"a", "b"}, d.seen, "a critical error stops draining; \"c\" stays queued")
}
