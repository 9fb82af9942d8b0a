// Package taskqueue implements the Task Queue described in spec
// 4.11: a FIFO of string commands gated by a wait counter, drained
// once per frame against a Dispatcher.
package taskqueue

import (
	"sync"

	"github.com/lbastigk/nebulite/internal/errs"
)

// Canonical queue names (spec 4.11): always is never suspended by the
// `wait` command (which raises only the script queue's counter),
// internal holds engine-pushed commands, script holds
// user/command-line/task-file-pushed commands. Resolve drains every
// queue the same way, so a command on the always queue runs once; it
// is not replayed on later frames.
const (
	Always   = "always"
	Internal = "internal"
	Script   = "script"
)

// Dispatcher executes one command string, returning the tagged error
// describing its outcome (spec 7).
type Dispatcher interface {
	Dispatch(cmd string) *errs.Error
}

// Queue is one task queue: a FIFO plus a wait counter (spec 4.11).
type Queue struct {
	mu          sync.Mutex
	items       []string
	waitCounter int
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{}
}

// PushBack appends cmd to the tail of the queue.
func (q *Queue) PushBack(cmd string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, cmd)
}

// PushFront prepends cmd to the head of the queue, so it is the next
// command drained.
func (q *Queue) PushFront(cmd string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append([]string{cmd}, q.items...)
}

// IncrementWaitCounter adds n to the wait counter; a positive counter
// suspends draining for that many subsequent Resolve calls (spec
// 4.11).
func (q *Queue) IncrementWaitCounter(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.waitCounter += n
}

// DecrementWaitCounter lowers the wait counter by one, floored at
// zero.
func (q *Queue) DecrementWaitCounter() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.waitCounter > 0 {
		q.waitCounter--
	}
}

// IsWaiting reports whether the wait counter is currently positive.
func (q *Queue) IsWaiting() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waitCounter > 0
}

// Len reports the number of commands currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear discards every queued command without dispatching it (the
// `always-clear` command, spec 6).
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

// Resolve drains the queue against dispatcher (spec 4.11): if the
// wait counter is positive, this call only decrements it and returns;
// otherwise every queued command is dispatched in order until the
// queue empties, a dispatched command raises the wait counter again
// (e.g. a "wait n" command), or a dispatched command returns a
// critical error; in the last two cases draining stops for this call
// and the remaining commands stay queued. The critical error, if any,
// is returned.
func (q *Queue) Resolve(dispatcher Dispatcher) *errs.Error {
	q.mu.Lock()
	if q.waitCounter > 0 {
		q.waitCounter--
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()

	var firstCritical *errs.Error
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			break
		}
		cmd := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		err := dispatcher.Dispatch(cmd)
		if err.IsCritical() {
			firstCritical = err
			break
		}

		q.mu.Lock()
		waiting := q.waitCounter > 0
		q.mu.Unlock()
		if waiting {
			break
		}
	}
	return firstCritical
}
