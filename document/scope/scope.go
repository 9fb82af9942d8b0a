// Package scope implements the Scoped View described in spec 3.2/4.2:
// a prefix-anchored, non-owning handle onto a document.Document.
package scope

import (
	"fmt"
	"strings"

	"github.com/lbastigk/nebulite/document"
)

// View is a prefix-restricted window over a Document. It never owns
// the Document it points at; "managed" vs. "borrowed" lifetime (4.2)
// is purely a convention of who is responsible for keeping the
// backing Document alive, which in Go is handled by the garbage
// collector rather than by this type.
type View struct {
	doc    *document.Document
	prefix string // dotted, empty = root
}

// New creates a root-scoped View over doc.
func New(doc *document.Document) *View {
	return &View{doc: doc}
}

// Doc returns the underlying Document, for callers (e.g. Expression
// binding) that need the raw store beneath a scope.
func (v *View) Doc() *document.Document { return v.doc }

// Prefix returns this view's dotted prefix (empty at the root).
func (v *View) Prefix() string { return v.prefix }

// Sub returns a new View nested under relPrefix, concatenating it
// with this view's own prefix (3.2: "Scoped Views may be nested").
func (v *View) Sub(relPrefix string) *View {
	return &View{doc: v.doc, prefix: v.joinKey(relPrefix)}
}

// ShareScope returns a managed View whose lifetime is tied to the
// root Document, so expressions that capture it may outlive the call
// that created it (4.2). Since Go's GC keeps doc alive as long as any
// View references it, this is simply New/Sub with a fixed prefix.
func (v *View) ShareScope(relPrefix string) *View {
	return v.Sub(relPrefix)
}

func (v *View) joinKey(k string) string {
	if v.prefix == "" {
		return k
	}
	if k == "" {
		return v.prefix
	}
	return v.prefix + "." + k
}

// Resolve joins k onto this view's prefix, giving the full dotted key
// the backing Document expects. It never returns an error; the rule
// that a key scoped to p2 passed to a child view with prefix p1 needs
// p2 to start with p1 (3.2) is checked by ResolveChildScope.
func (v *View) Resolve(k string) (string, error) {
	return v.joinKey(k), nil
}

// ResolveChildScope validates and resolves a key against an explicit
// child prefix childPrefix, enforcing the containment rule from 3.2.
func (v *View) ResolveChildScope(childPrefix, k string) (string, error) {
	if childPrefix != "" && v.prefix != "" && !strings.HasPrefix(childPrefix, v.prefix) {
		return "", fmt.Errorf("scope: child scope %q does not start with parent scope %q", childPrefix, v.prefix)
	}
	if childPrefix == "" {
		return v.joinKey(k), nil
	}
	if k == "" {
		return childPrefix, nil
	}
	return childPrefix + "." + k, nil
}

// Get reads key (translated through this view's prefix) as T.
func Get[T any](v *View, key string, def T) T {
	full, _ := v.Resolve(key)
	return document.Get(v.doc, full, def)
}

// Set writes key (translated through this view's prefix) to value.
func Set[T any](v *View, key string, value T) {
	full, _ := v.Resolve(key)
	document.Set(v.doc, full, value)
}

// GetVariant reads the tagged value at key within this view.
func (v *View) GetVariant(key string) (document.Value, bool) {
	full, _ := v.Resolve(key)
	return v.doc.GetVariant(full)
}

// SetVariant writes the tagged value at key within this view.
func (v *View) SetVariant(key string, val document.Value) {
	full, _ := v.Resolve(key)
	v.doc.SetVariant(full, val)
}

// GetStableDoublePointer returns the stable double pointer for key
// within this view's scope (I-1).
func (v *View) GetStableDoublePointer(key string) *float64 {
	full, _ := v.Resolve(key)
	return v.doc.GetStableDoublePointer(full)
}

// RemoveKey removes key (within this view's scope) from the document.
func (v *View) RemoveKey(key string) {
	full, _ := v.Resolve(key)
	v.doc.RemoveKey(full)
}

// MemberSize returns the member count at key within this view.
func (v *View) MemberSize(key string) int {
	full, _ := v.Resolve(key)
	return v.doc.MemberSize(full)
}

// MemberType returns the member type at key within this view.
func (v *View) MemberType(key string) document.MemberType {
	full, _ := v.Resolve(key)
	return v.doc.MemberType(full)
}
