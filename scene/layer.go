package scene

import (
	"sync"

	"github.com/lbastigk/nebulite/doccache"
	"github.com/lbastigk/nebulite/document/scope"
	"github.com/lbastigk/nebulite/domain"
	"github.com/lbastigk/nebulite/internal/errs"
	"github.com/lbastigk/nebulite/invoke"
	"github.com/lbastigk/nebulite/ruleset"
)

// Batch is a cost-bounded group of entities updatable by a single
// worker (spec 3.6).
type Batch struct {
	Entities []*domain.RenderObject
	Cost     uint64
}

// Layer is one of the scene's Tile Containers (spec 6: "Five layers,
// indices 0..4"): a hash map from tile coordinate to the batches
// occupying it.
type Layer struct {
	mu            sync.Mutex
	tiles         map[TileCoord][]*Batch
	batchCostGoal uint64

	purgatory []*domain.RenderObject
	trash     []*domain.RenderObject
}

// NewLayer creates an empty Layer whose batches target batchCostGoal
// total estimated cost (spec 4.10's BATCH_COST_GOAL).
func NewLayer(batchCostGoal uint64) *Layer {
	return &Layer{tiles: make(map[TileCoord][]*Batch), batchCostGoal: batchCostGoal}
}

func coordOfEntity(e *domain.RenderObject, resX, resY float64) TileCoord {
	x, y := e.TileCoord(resX, resY)
	return TileCoord{X: int16(x), Y: int16(y)}
}

// Insert places e into the first batch in its tile whose cost stays
// at or below the batch cost goal after adding e, or starts a new
// batch (spec 4.10's batching rule).
func (l *Layer) Insert(e *domain.RenderObject, resX, resY float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.insertLocked(e, coordOfEntity(e, resX, resY))
}

// insertLocked must be called with l.mu held.
func (l *Layer) insertLocked(e *domain.RenderObject, coord TileCoord) {
	cost := e.EstimatedCost()
	for _, b := range l.tiles[coord] {
		if b.Cost+cost <= l.batchCostGoal {
			b.Entities = append(b.Entities, e)
			b.Cost += cost
			return
		}
	}
	l.tiles[coord] = append(l.tiles[coord], &Batch{Entities: []*domain.RenderObject{e}, Cost: cost})
}

// removeLocked drops e from its batch at coord, discarding the batch
// if it becomes empty. Must be called with l.mu held.
func (l *Layer) removeLocked(coord TileCoord, e *domain.RenderObject) {
	batches := l.tiles[coord]
	for i, b := range batches {
		for j, ent := range b.Entities {
			if ent != e {
				continue
			}
			b.Entities = append(b.Entities[:j], b.Entities[j+1:]...)
			if cost := e.EstimatedCost(); cost <= b.Cost {
				b.Cost -= cost
			} else {
				b.Cost = 0
			}
			if len(b.Entities) == 0 {
				l.tiles[coord] = append(batches[:i], batches[i+1:]...)
			}
			return
		}
	}
}

// GetContainerAt returns the batches occupying tile (x, y) (spec
// 4.10: "getContainerAt(x,y,layer)" — the layer selection is the
// caller's, since a Layer already denotes one layer).
func (l *Layer) GetContainerAt(x, y int16) []*Batch {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tiles[TileCoord{X: x, Y: y}]
}

type reinsertEntry struct {
	entity *domain.RenderObject
	from   TileCoord
}

// Step runs one frame of the per-layer pipeline (spec 4.10):
//  1. finalize any objects in purgatory (delete for good),
//  2. swap trash -> purgatory,
//  3. for each batch in a visible tile, spawn one worker updating its
//     entities and collecting tile-changed/deleted entities,
//  4. join workers,
//  5. reinsert queued entities through remove/queue/insert so no
//     entity is ever in two batches at once.
func (l *Layer) Step(
	visible []TileCoord,
	resX, resY float64,
	engine *invoke.Engine,
	global *scope.View,
	resources *doccache.Cache,
	dispatcher ruleset.Dispatcher,
	globalQueue ruleset.GlobalQueue,
) *errs.Error {
	l.purgatory, l.trash = l.trash, nil

	l.mu.Lock()
	var batches []*Batch
	batchCoord := make(map[*Batch]TileCoord)
	for _, coord := range visible {
		for _, b := range l.tiles[coord] {
			batches = append(batches, b)
			batchCoord[b] = coord
		}
	}
	l.mu.Unlock()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var first *errs.Error
	var reinserts []reinsertEntry
	var trashed []reinsertEntry

	for _, b := range batches {
		coord := batchCoord[b]
		entities := append([]*domain.RenderObject(nil), b.Entities...)
		wg.Add(1)
		go func(coord TileCoord, entities []*domain.RenderObject) {
			defer wg.Done()
			for _, e := range entities {
				if err := e.Step(engine, global, resources, dispatcher, globalQueue); err.IsCritical() {
					mu.Lock()
					if first == nil {
						first = err
					}
					mu.Unlock()
				}

				if e.ShouldDelete() {
					mu.Lock()
					trashed = append(trashed, reinsertEntry{entity: e, from: coord})
					mu.Unlock()
					continue
				}

				if newCoord := coordOfEntity(e, resX, resY); newCoord != coord {
					mu.Lock()
					reinserts = append(reinserts, reinsertEntry{entity: e, from: coord})
					mu.Unlock()
				}
			}
		}(coord, entities)
	}
	wg.Wait()

	l.mu.Lock()
	for _, t := range trashed {
		l.removeLocked(t.from, t.entity)
		l.trash = append(l.trash, t.entity)
	}
	for _, r := range reinserts {
		l.removeLocked(r.from, r.entity)
		l.insertLocked(r.entity, coordOfEntity(r.entity, resX, resY))
	}
	l.mu.Unlock()

	return first
}
