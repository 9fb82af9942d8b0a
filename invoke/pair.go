// Package invoke implements the Invoke / Pair Engine described in
// spec 3.7/4.7: a sharded broadcaster/listener pairing system backed
// by W persistent worker goroutines, one frame-scratch PairContainer
// pair per worker.
package invoke

import (
	"sort"
	"sync"

	"github.com/lbastigk/nebulite/doccache"
	"github.com/lbastigk/nebulite/document/scope"
	"github.com/lbastigk/nebulite/ruleset"
)

// listenerState is one `{ruleset, other_ptr, active}` entry keyed by
// listener id (spec 3.7).
type listenerState struct {
	ruleset *ruleset.Ruleset
	other   *scope.View
	active  bool
}

// rulesetState is one broadcaster ruleset slot, holding every
// listener that paired against it this frame.
type rulesetState struct {
	ruleset   *ruleset.Ruleset
	listeners map[uint32]*listenerState
}

// broadcasterState is one broadcasting entity's slot within a topic.
type broadcasterState struct {
	active   bool
	rulesets map[int]*rulesetState
}

// topicState holds every broadcaster registered under one topic this
// frame.
type topicState struct {
	broadcasters map[uint32]*broadcasterState
}

// PairContainer is the frame-scratch structure from spec 3.7:
// `Map<topic, Map<broadcaster_id, {active, Map<ruleset_index,
// {ruleset, Map<listener_id, {ruleset, other_ptr, active}>}>}>>`.
// this_frame and next_frame are each one PairContainer, swapped
// atomically at the frame boundary (spec 3.7).
type PairContainer struct {
	mu         sync.Mutex
	topicOrder []string
	topics     map[string]*topicState

	// frameCtx is stashed by Engine.Update immediately before waking
	// this container's worker, carrying the dependencies processWork
	// needs for the frame.
	frameCtx frameContext
}

func newPairContainer() *PairContainer {
	return &PairContainer{topics: make(map[string]*topicState)}
}

// broadcast inserts rs into topic/broadcasterID/index, marking that
// broadcaster active (spec 4.7's "Broadcast").
func (c *PairContainer) broadcast(topic string, broadcasterID uint32, index int, rs *ruleset.Ruleset) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.topics[topic]
	if !ok {
		t = &topicState{broadcasters: make(map[uint32]*broadcasterState)}
		c.topics[topic] = t
		c.topicOrder = append(c.topicOrder, topic)
	}
	b, ok := t.broadcasters[broadcasterID]
	if !ok {
		b = &broadcasterState{rulesets: make(map[int]*rulesetState)}
		t.broadcasters[broadcasterID] = b
	}
	b.active = true
	rsState, ok := b.rulesets[index]
	if !ok {
		rsState = &rulesetState{ruleset: rs, listeners: make(map[uint32]*listenerState)}
		b.rulesets[index] = rsState
	} else {
		rsState.ruleset = rs
	}
}

// listen pairs listenerID against every active broadcaster under
// topic (other than itself), constructing one listener entry per
// broadcaster ruleset with its condition pre-evaluated (spec 4.7's
// "Listen").
func (c *PairContainer) listen(topic string, listenerID uint32, listenerView *scope.View, resources *doccache.Cache) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.topics[topic]
	if !ok {
		return
	}
	for broadcasterID, b := range t.broadcasters {
		if !b.active || broadcasterID == listenerID {
			continue
		}
		for _, rsState := range b.rulesets {
			rsState.listeners[listenerID] = &listenerState{
				ruleset: rsState.ruleset,
				other:   listenerView,
				active:  rsState.ruleset.EvaluateCondition(listenerView, resources),
			}
		}
	}
}

// sortedTopics returns this frame's topics in insertion order (spec
// 4.7's ordering requirement).
func (c *PairContainer) sortedTopics() []string {
	return append([]string(nil), c.topicOrder...)
}

// sortedBroadcasterIDs returns b's broadcaster ids for a topic in
// ascending order (spec 4.7: "broadcaster id order").
func sortedBroadcasterIDs(t *topicState) []uint32 {
	ids := make([]uint32, 0, len(t.broadcasters))
	for id := range t.broadcasters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// sortedRulesetIndices returns b's ruleset-index keys in ascending
// order.
func sortedRulesetIndices(b *broadcasterState) []int {
	idxs := make([]int, 0, len(b.rulesets))
	for idx := range b.rulesets {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	return idxs
}

// sortedListenerIDs returns rs's listener ids in ascending order
// (spec 4.7: "listener id order").
func sortedListenerIDs(rs *rulesetState) []uint32 {
	ids := make([]uint32, 0, len(rs.listeners))
	for id := range rs.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// reset clears the container for reuse as next frame's scratch (spec
// 4.7's swap step reuses the vacated container rather than
// reallocating).
func (c *PairContainer) reset() {
	c.topicOrder = c.topicOrder[:0]
	for k := range c.topics {
		delete(c.topics, k)
	}
}
