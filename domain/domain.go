// Package domain implements the Domain + DomainModule composition
// described in spec 4.9: a polymorphic host for the Function Tree
// (spec 4.8) that composes sub-domains and DomainModules, plus the
// process-wide GlobalSpace singleton spec 9's "Global state" note
// requires.
package domain

import (
	"github.com/lbastigk/nebulite/document/scope"
	"github.com/lbastigk/nebulite/functree"
	"github.com/lbastigk/nebulite/internal/errs"
)

// Module is a composable unit adding commands/behavior to a Domain
// (spec 4.9/9: "a small capability trait: update(), reinit()"). A
// Module's constructor receives its owning Domain so it can bind
// commands into the Domain's tree and hold a back-pointer, but must
// not call Global() - Domain.Init enforces this.
type Module interface {
	Update(d *Domain) *errs.Error
	Reinit(d *Domain) *errs.Error
}

// ModuleCtor builds one Module against its owning Domain, run during
// Domain.Init in declared order.
type ModuleCtor func(d *Domain) Module

// Domain aggregates a name, a backing Scoped View, a FuncTree, and a
// list of DomainModules, plus any inherited sub-domains (spec 4.9).
type Domain struct {
	Name string

	view *scope.View
	tree *functree.FuncTree

	modules    []Module
	subDomains []*Domain
}

// New creates a Domain named name, scoped to view, with an empty
// FuncTree.
func New(name string, view *scope.View) *Domain {
	return &Domain{Name: name, view: view, tree: functree.New()}
}

// View returns the Domain's backing Scoped View.
func (d *Domain) View() *scope.View { return d.view }

// Tree returns the Domain's FuncTree.
func (d *Domain) Tree() *functree.FuncTree { return d.tree }

// AddSubDomain composes child under d: child's FuncTree entries become
// visible through d.Tree() (spec 4.8), and child.Update runs as part
// of d.Update (spec 4.9: "update() calls each module's update() then
// each inherited sub-domain's update").
func (d *Domain) AddSubDomain(child *Domain) {
	d.subDomains = append(d.subDomains, child)
	d.tree.Inherit(child.tree)
}

// Init constructs d's modules in declared order (spec 4.9: "init()
// constructs modules in declared order"). Construction runs with the
// init-depth counter raised, so a constructor calling Global() panics
// per spec 9's "forbid their use from constructors of modules
// (detected by an init-depth counter)".
func (d *Domain) Init(ctors ...ModuleCtor) {
	enterInit()
	defer exitInit()

	for _, ctor := range ctors {
		d.modules = append(d.modules, ctor(d))
	}
}

// Update runs one frame step: each module's Update, in declared order,
// then each sub-domain's Update (spec 4.9). The first critical error
// encountered is returned after the remaining modules still run, so
// one failing module never starves the rest of their per-frame work;
// non-critical errors are not returned.
func (d *Domain) Update() *errs.Error {
	var first *errs.Error
	for _, m := range d.modules {
		if err := m.Update(d); err.IsCritical() && first == nil {
			first = err
		}
	}
	for _, sub := range d.subDomains {
		if err := sub.Update(); err.IsCritical() && first == nil {
			first = err
		}
	}
	return first
}

// ReinitModules re-links every module's pointers after a deserialize
// (spec 4.9: "reinitModules() is invoked after deserialize so modules
// can re-link pointers").
func (d *Domain) ReinitModules() *errs.Error {
	var first *errs.Error
	for _, m := range d.modules {
		if err := m.Reinit(d); err.IsCritical() && first == nil {
			first = err
		}
	}
	for _, sub := range d.subDomains {
		if err := sub.ReinitModules(); err.IsCritical() && first == nil {
			first = err
		}
	}
	return first
}
