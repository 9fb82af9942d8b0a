package scene

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbastigk/nebulite/document"
	"github.com/lbastigk/nebulite/document/scope"
	"github.com/lbastigk/nebulite/domain"
	"github.com/lbastigk/nebulite/invoke"
	"github.com/lbastigk/nebulite/ruleset"
)

func newEntity(t *testing.T, id uint32, x, y float64) *domain.RenderObject {
	t.Helper()
	v := scope.New(document.New())
	document.Set(v.Doc(), "posX", x)
	document.Set(v.Doc(), "posY", y)
	return domain.NewRenderObject(id, domain.New("entity", v))
}

func TestInsertPlacesEntityInTileBatch(t *testing.T) {
	l := NewLayer(100)
	e := newEntity(t, 1, 50, 50)
	l.Insert(e, 100, 100)

	batches := l.GetContainerAt(0, 0)
	require.Len(t, batches, 1)
	assert.Equal(t, []*domain.RenderObject{e}, batches[0].Entities)
}

func TestInsertStartsNewBatchOnCostOverflow(t *testing.T) {
	l := NewLayer(1) // any ruleset-less entity has cost 0, so force overflow manually
	e1 := newEntity(t, 1, 0, 0)
	e2 := newEntity(t, 2, 0, 0)

	l.tiles[TileCoord{0, 0}] = []*Batch{{Entities: nil, Cost: 2}}
	l.Insert(e1, 100, 100)
	l.Insert(e2, 100, 100)

	batches := l.GetContainerAt(0, 0)
	require.Len(t, batches, 2, "entities should start a new batch once the existing one is over the goal")
}

func TestVisibleTilesIsThreeByThree(t *testing.T) {
	tiles := VisibleTiles(TileCoord{X: 5, Y: 5})
	assert.Len(t, tiles, 9)
	assert.Contains(t, tiles, TileCoord{X: 4, Y: 4})
	assert.Contains(t, tiles, TileCoord{X: 6, Y: 6})
	assert.Contains(t, tiles, TileCoord{X: 5, Y: 5})
}

func TestStepReinsertsEntityAfterTileChange(t *testing.T) {
	engine := invoke.NewEngine(1)
	defer engine.Close()
	global := scope.New(document.New())

	v := scope.New(document.New())
	document.Set(v.Doc(), "posX", 10.0)
	document.Set(v.Doc(), "posY", 10.0)
	e := domain.NewRenderObject(1, domain.New("entity", v))
	rulesets, err := ruleset.Compile(1, []any{
		map[string]any{"exprs": []any{"self.posX = $f({Self.posX} + 150)"}, "topic": ""},
	}, nil)
	require.NoError(t, err)
	e.Rulesets = rulesets
	e.Bind(global)

	l := NewLayer(1000)
	l.Insert(e, 100, 100)
	require.Len(t, l.GetContainerAt(0, 0), 1)

	errv := l.Step(VisibleTiles(TileCoord{0, 0}), 100, 100, engine, global, nil, nil, nil)
	assert.Nil(t, errv)

	assert.Empty(t, l.GetContainerAt(0, 0), "entity should have left its old tile")
	newBatches := l.GetContainerAt(1, 0)
	require.Len(t, newBatches, 1)
	assert.Equal(t, e, newBatches[0].Entities[0])
}

func TestStepMovesDeletedEntityToTrash(t *testing.T) {
	engine := invoke.NewEngine(1)
	defer engine.Close()
	global := scope.New(document.New())

	e := newEntity(t, 1, 0, 0)
	e.MarkDelete()

	l := NewLayer(1000)
	l.Insert(e, 100, 100)

	errv := l.Step(VisibleTiles(TileCoord{0, 0}), 100, 100, engine, global, nil, nil, nil)
	assert.Nil(t, errv)
	assert.Empty(t, l.GetContainerAt(0, 0))
	assert.Equal(t, []*domain.RenderObject{e}, l.trash)
}

func TestSceneIsValidPositionRejectsNonFinite(t *testing.T) {
	s := NewScene(100, 100, 100)
	assert.True(t, s.IsValidPosition(1, 2))
	assert.False(t, s.IsValidPosition(math.NaN(), 2))
}
