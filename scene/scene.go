package scene

import (
	"math"

	"github.com/lbastigk/nebulite/doccache"
	"github.com/lbastigk/nebulite/document/scope"
	"github.com/lbastigk/nebulite/domain"
	"github.com/lbastigk/nebulite/internal/errs"
	"github.com/lbastigk/nebulite/invoke"
	"github.com/lbastigk/nebulite/ruleset"
)

// LayerCount is the number of Tile Container layers a scene file
// carries (spec 6: "Five layers, indices 0..4: background, general,
// foreground, effects, menu").
const LayerCount = 5

// Scene composes LayerCount Tile Containers plus the camera tile used
// to pick each frame's visible neighborhood (spec 4.10).
type Scene struct {
	Layers [LayerCount]*Layer

	resX, resY float64
	camera     TileCoord
}

// NewScene creates a Scene whose Layers each target batchCostGoal,
// tiled at resX x resY.
func NewScene(batchCostGoal uint64, resX, resY float64) *Scene {
	s := &Scene{resX: resX, resY: resY}
	for i := range s.Layers {
		s.Layers[i] = NewLayer(batchCostGoal)
	}
	return s
}

// GetAllLayers returns every layer, index 0..4 (spec 4.10).
func (s *Scene) GetAllLayers() []*Layer { return s.Layers[:] }

// SetCamera recomputes the camera's tile from its world position
// (spec 4.10: "the camera's tile").
func (s *Scene) SetCamera(x, y float64) {
	s.camera = TileCoord{X: int16(math.Floor(x / s.resX)), Y: int16(math.Floor(y / s.resY))}
}

// SetResolution changes the tile size the scene uses (the `set-res`
// command, spec 6); no layer is retiled. Already-spawned entities keep the tile coordinate
// they were inserted under; only later inserts and camera math use the
// new size.
func (s *Scene) SetResolution(resX, resY float64) {
	s.resX, s.resY = resX, resY
}

// IsValidPosition reports whether (x, y) is a finite, usable world
// position (spec 4.10's external interface).
func (s *Scene) IsValidPosition(x, y float64) bool {
	return !math.IsNaN(x) && !math.IsNaN(y) && !math.IsInf(x, 0) && !math.IsInf(y, 0)
}

// Spawn inserts e into layer (spec 6's containerLayer0..4).
func (s *Scene) Spawn(layer int, e *domain.RenderObject) {
	s.Layers[layer].Insert(e, s.resX, s.resY)
}

// Step runs one frame across every layer against the current visible
// neighborhood (spec 4.10). The first critical error encountered
// across all layers, if any, is returned; every layer still runs.
func (s *Scene) Step(
	engine *invoke.Engine,
	global *scope.View,
	resources *doccache.Cache,
	dispatcher ruleset.Dispatcher,
	globalQueue ruleset.GlobalQueue,
) *errs.Error {
	visible := VisibleTiles(s.camera)

	var first *errs.Error
	for _, l := range s.Layers {
		if err := l.Step(visible, s.resX, s.resY, engine, global, resources, dispatcher, globalQueue); err.IsCritical() && first == nil {
			first = err
		}
	}
	return first
}
