package domain

import (
	"sync"
	"sync/atomic"

	"github.com/lbastigk/nebulite/document/scope"
)

// initDepth counts Domain.Init calls currently on the stack, across
// every Domain in the process. Global() panics while it is positive,
// enforcing spec 9's "forbid [Document Cache/global()] use from
// constructors of modules (detected by an init-depth counter)".
var initDepth int32

func enterInit() { atomic.AddInt32(&initDepth, 1) }
func exitInit()  { atomic.AddInt32(&initDepth, -1) }

// GlobalSpace is the process-wide "global()" accessor spec 9 names as
// one of the two unavoidable singletons (the other being the Document
// Cache). It is itself a Domain, so global rulesets dispatch
// `functioncalls.global` entries against GlobalSpace.Tree() exactly
// like any other Domain.
type GlobalSpace struct {
	*Domain
}

var (
	globalMu    sync.RWMutex
	globalSpace *GlobalSpace
)

// InitGlobal installs the process-wide GlobalSpace, scoped to view.
// Calling it again replaces the previous instance - used by tests and
// by a full engine restart.
func InitGlobal(view *scope.View) *GlobalSpace {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalSpace = &GlobalSpace{Domain: New("global", view)}
	return globalSpace
}

// Global returns the process-wide GlobalSpace. It panics if called
// while any Domain.Init is on the call stack (spec 9), or if
// InitGlobal has not run yet.
func Global() *GlobalSpace {
	if atomic.LoadInt32(&initDepth) > 0 {
		panic("domain: Global() called during Domain.Init (module constructors must not call Global)")
	}
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalSpace == nil {
		panic("domain: Global() called before InitGlobal")
	}
	return globalSpace
}

// TeardownGlobal clears the process-wide GlobalSpace, e.g. between
// test cases.
func TeardownGlobal() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalSpace = nil
}
