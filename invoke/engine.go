package invoke

import (
	"math/rand"
	"sync"

	"github.com/lbastigk/nebulite/doccache"
	"github.com/lbastigk/nebulite/document/scope"
	"github.com/lbastigk/nebulite/ruleset"
)

// defaultSweepProbability is the 1/100 chance processWork sweeps
// inactive listeners out of a ruleset's listener map (spec 4.7). Spec
// 9's Open Question marks the exact figure a heuristic that "should be
// a tunable with a documented default" — SetSweepProbability overrides
// it.
const defaultSweepProbability = 0.01

// ViewLookup resolves a broadcaster's owning entity id to its Self
// Scoped View, so processWork can apply a ruleset with the correct
// self document.
type ViewLookup func(entityID uint32) (self *scope.View, ok bool)

// worker is one persistent goroutine owning a this_frame/next_frame
// PairContainer pair (spec 4.7: "One worker thread per slot,
// persistent for engine lifetime").
type worker struct {
	mu   sync.Mutex
	cond *sync.Cond

	thisFrame *PairContainer
	nextFrame *PairContainer

	workReady    bool
	workFinished bool
	stop         bool
}

func newWorker() *worker {
	w := &worker{thisFrame: newPairContainer(), nextFrame: newPairContainer()}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Engine is the Pair Engine from spec 3.7/4.7: W workers, each routed
// to by `entity id mod W`.
type Engine struct {
	workers []*worker
	wg      sync.WaitGroup

	sweepProbability float64
}

// NewEngine starts w persistent worker goroutines (spec's
// THREADRUNNER_COUNT).
func NewEngine(w int) *Engine {
	if w < 1 {
		w = 1
	}
	e := &Engine{workers: make([]*worker, w), sweepProbability: defaultSweepProbability}
	for i := range e.workers {
		e.workers[i] = newWorker()
		e.wg.Add(1)
		go e.workers[i].run(&e.wg)
	}
	return e
}

// SetSweepProbability overrides the per-ruleset listener-sweep chance
// (spec 9's Open Question resolution: tunable, documented default).
func (e *Engine) SetSweepProbability(p float64) {
	e.sweepProbability = p
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()
	w.mu.Lock()
	defer w.mu.Unlock()
	for {
		for !w.workReady && !w.stop {
			w.cond.Wait()
		}
		if w.stop {
			return
		}
		w.workReady = false
		container := w.thisFrame
		ctx := container.frameCtx
		w.mu.Unlock()
		processWork(container, ctx.selfOf, ctx.global, ctx.resources, ctx.dispatcher, ctx.globalQueue, ctx.sweepProbability)
		w.mu.Lock()
		w.workFinished = true
		w.cond.Broadcast()
	}
}

// frameContext carries the per-frame dependencies processWork needs,
// stashed on the container by Update before waking the worker.
type frameContext struct {
	selfOf           ViewLookup
	global           *scope.View
	resources        *doccache.Cache
	dispatcher       ruleset.Dispatcher
	globalQueue      ruleset.GlobalQueue
	sweepProbability float64
}

// Broadcast inserts rs into the owning entity's next-frame slot under
// topic, routed to worker `broadcasterID mod W` (spec 4.7).
func (e *Engine) Broadcast(topic string, broadcasterID uint32, index int, rs *ruleset.Ruleset) {
	w := e.workers[int(broadcasterID)%len(e.workers)]
	w.nextFrame.broadcast(topic, broadcasterID, index, rs)
}

// Listen pairs listenerID against this worker's active broadcasters
// under topic, routed to worker `listenerID mod W` (spec 4.7).
func (e *Engine) Listen(topic string, listenerID uint32, listenerView *scope.View, resources *doccache.Cache) {
	w := e.workers[int(listenerID)%len(e.workers)]
	w.thisFrame.listen(topic, listenerID, listenerView, resources)
}

// Update runs one frame of the Pair Engine protocol (spec 4.7):
// signal every worker, wait for all to finish processWork, then swap
// each worker's this_frame/next_frame.
func (e *Engine) Update(selfOf ViewLookup, global *scope.View, resources *doccache.Cache, dispatcher ruleset.Dispatcher, globalQueue ruleset.GlobalQueue) {
	ctx := frameContext{selfOf: selfOf, global: global, resources: resources, dispatcher: dispatcher, globalQueue: globalQueue, sweepProbability: e.sweepProbability}

	for _, w := range e.workers {
		w.mu.Lock()
		w.thisFrame.frameCtx = ctx
		w.workReady = true
		w.workFinished = false
		w.cond.Broadcast()
		w.mu.Unlock()
	}
	for _, w := range e.workers {
		w.mu.Lock()
		for !w.workFinished {
			w.cond.Wait()
		}
		w.mu.Unlock()
	}
	for _, w := range e.workers {
		w.thisFrame, w.nextFrame = w.nextFrame, w.thisFrame
		w.thisFrame.frameCtx = frameContext{}
		w.nextFrame.reset()
	}
}

// Close signals every worker to stop and joins them (spec 4.7:
// "Cancellation: none; shutdown sets a stop flag and joins the worker
// threads").
func (e *Engine) Close() {
	for _, w := range e.workers {
		w.mu.Lock()
		w.stop = true
		w.cond.Broadcast()
		w.mu.Unlock()
	}
	e.wg.Wait()
}

// processWork implements spec 4.7's per-worker frame step: for every
// active broadcaster (topic-insertion order, then ascending
// broadcaster id), apply every active listener pairing (ascending
// listener id), then clear the broadcaster's active flag.
func processWork(container *PairContainer, selfOf ViewLookup, global *scope.View, resources *doccache.Cache, dispatcher ruleset.Dispatcher, globalQueue ruleset.GlobalQueue, sweepProbability float64) {
	container.mu.Lock()
	defer container.mu.Unlock()

	for _, topic := range container.sortedTopics() {
		t, ok := container.topics[topic]
		if !ok {
			continue
		}
		for _, bid := range sortedBroadcasterIDs(t) {
			b := t.broadcasters[bid]
			if !b.active {
				continue
			}
			selfView, ok := selfOf(bid)
			if ok {
				for _, idx := range sortedRulesetIndices(b) {
					rsState := b.rulesets[idx]
					for _, lid := range sortedListenerIDs(rsState) {
						l := rsState.listeners[lid]
						if !l.active {
							continue
						}
						rsState.ruleset.Apply(selfView, l.other, global, resources, dispatcher, globalQueue)
						l.active = false
					}
					if rand.Float64() < sweepProbability { //nolint:gosec // listener-map hygiene, not a security decision
						sweepInactiveListeners(rsState)
					}
				}
			}
			b.active = false
		}
	}
}

func sweepInactiveListeners(rs *rulesetState) {
	for id, l := range rs.listeners {
		if !l.active {
			delete(rs.listeners, id)
		}
	}
}
