package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbastigk/nebulite/document"
	"github.com/lbastigk/nebulite/document/scope"
	"github.com/lbastigk/nebulite/internal/errs"
	"github.com/lbastigk/nebulite/invoke"
	"github.com/lbastigk/nebulite/ruleset"
)

type countingModule struct {
	updates int
	reinits int
}

func (m *countingModule) Update(d *Domain) *errs.Error {
	m.updates++
	return nil
}

func (m *countingModule) Reinit(d *Domain) *errs.Error {
	m.reinits++
	return nil
}

func TestInitConstructsModulesInDeclaredOrder(t *testing.T) {
	var order []string
	d := New("root", scope.New(document.New()))
	d.Init(
		func(d *Domain) Module { order = append(order, "a"); return &countingModule{} },
		func(d *Domain) Module { order = append(order, "b"); return &countingModule{} },
	)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestUpdateRunsModulesThenSubDomains(t *testing.T) {
	parent := New("parent", scope.New(document.New()))
	child := New("child", scope.New(document.New()))

	pm := &countingModule{}
	cm := &countingModule{}
	parent.Init(func(d *Domain) Module { return pm })
	child.Init(func(d *Domain) Module { return cm })
	parent.AddSubDomain(child)

	err := parent.Update()
	assert.Nil(t, err)
	assert.Equal(t, 1, pm.updates)
	assert.Equal(t, 1, cm.updates)
}

func TestReinitModulesRecursesIntoSubDomains(t *testing.T) {
	parent := New("parent", scope.New(document.New()))
	child := New("child", scope.New(document.New()))
	cm := &countingModule{}
	child.Init(func(d *Domain) Module { return cm })
	parent.AddSubDomain(child)

	_ = parent.ReinitModules()
	assert.Equal(t, 1, cm.reinits)
}

func TestAddSubDomainExposesChildCommandsThroughParentTree(t *testing.T) {
	parent := New("parent", scope.New(document.New()))
	child := New("child", scope.New(document.New()))
	called := false
	child.Tree().Register("ping", "", func(self *scope.View, args []string) *errs.Error {
		called = true
		return nil
	})
	parent.AddSubDomain(child)

	err := parent.Tree().ParseStr(parent.View(), "ping")
	assert.Nil(t, err)
	assert.True(t, called)
}

func TestGlobalPanicsDuringInit(t *testing.T) {
	defer TeardownGlobal()
	InitGlobal(scope.New(document.New()))

	d := New("root", scope.New(document.New()))
	assert.Panics(t, func() {
		d.Init(func(d *Domain) Module {
			Global()
			return &countingModule{}
		})
	})
}

func TestGlobalSucceedsOutsideInit(t *testing.T) {
	defer TeardownGlobal()
	InitGlobal(scope.New(document.New()))
	assert.NotPanics(t, func() { Global() })
}

func TestGlobalPanicsBeforeInitGlobal(t *testing.T) {
	TeardownGlobal()
	assert.Panics(t, func() { Global() })
}

func TestRenderObjectStepLocalRulesetMutatesSelf(t *testing.T) {
	engine := invoke.NewEngine(1)
	defer engine.Close()

	global := scope.New(document.New())
	selfView := scope.New(document.New())
	document.Set(selfView.Doc(), "hp", 10.0)

	rulesets, err := ruleset.Compile(1, []any{
		map[string]any{
			"topic": "",
			"exprs": []any{"self.hp = $f({Self.hp} - 1)"},
		},
	}, nil)
	require.NoError(t, err)

	d := New("entity", selfView)
	ro := NewRenderObject(1, d)
	ro.Rulesets = rulesets
	ro.Bind(global)

	stepErr := ro.Step(engine, global, nil, nil, nil)
	assert.Nil(t, stepErr)
	assert.Equal(t, 9.0, document.Get(selfView.Doc(), "hp", 0.0))
}

func TestRenderObjectTileCoordFloorsPosition(t *testing.T) {
	selfView := scope.New(document.New())
	document.Set(selfView.Doc(), "posX", 150.0)
	document.Set(selfView.Doc(), "posY", -10.0)

	ro := NewRenderObject(1, New("entity", selfView))
	x, y := ro.TileCoord(100, 100)
	assert.Equal(t, 1, x)
	assert.Equal(t, -1, y)
}

func TestRenderObjectMarkDelete(t *testing.T) {
	ro := NewRenderObject(1, New("entity", scope.New(document.New())))
	assert.False(t, ro.ShouldDelete())
	ro.MarkDelete()
	assert.True(t, ro.ShouldDelete())
}
