// Package doccache implements the Document Cache: a single
// process-wide mapping from path to parsed content, loaded lazily and
// memoized, with explicit reloads. An fsnotify watch layers on top so
// a file-change marks the memoized entry stale without mutating any
// live pointer outside of the next access.
//
// A content-addressed, reference-counted store guarded by a single
// mutex.
package doccache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lbastigk/nebulite/document"
	"github.com/lbastigk/nebulite/internal/errs"
	"github.com/lbastigk/nebulite/internal/jsonc"
)

// entry is one memoized path's state: its raw text, parsed Document,
// reference count (from expressions that registered a VirtualDouble
// against it, spec 4.4), and staleness flag set by the fsnotify watch.
type entry struct {
	raw      string
	doc      *document.Document
	refCount int
	stale    bool
}

// Cache is the process-wide content-addressed loader. The zero value
// is not usable; use New.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	watcher *fsnotify.Watcher
	schema  *jsonschema.Schema
	strict  bool
}

// New creates a Cache and starts its fsnotify watch goroutine. Callers
// should defer Close.
func New() (*Cache, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("doccache: %w", err)
	}
	c := &Cache{
		entries: make(map[string]*entry),
		watcher: w,
	}
	go c.watchLoop()
	return c, nil
}

// SetSchema installs the JSON Schema persisted scene/entity files are
// validated against. strict promotes a violation from NonCritical to
// Critical.
func (c *Cache) SetSchema(s *jsonschema.Schema, strict bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schema = s
	c.strict = strict
}

func (c *Cache) watchLoop() {
	for {
		select {
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			c.mu.Lock()
			if e, found := c.entries[ev.Name]; found {
				e.stale = true
			}
			c.mu.Unlock()
		case _, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watch goroutine and releases the underlying watcher.
func (c *Cache) Close() error {
	return c.watcher.Close()
}

// GetDocString returns the raw (comment-stripped) text loaded from
// path, loading and memoizing it on first access (spec 4.4).
func (c *Cache) GetDocString(path string) (string, *errs.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[path]
	if found && !e.stale {
		return e.raw, nil
	}

	raw, doc, loadErr := c.loadLocked(path)
	if loadErr != nil {
		return "", loadErr
	}

	if found {
		e.raw = raw
		e.doc = doc
		e.stale = false
	} else {
		c.entries[path] = &entry{raw: raw, doc: doc}
		_ = c.watcher.Add(path)
	}
	return raw, nil
}

// Get reads key within the sub-document loaded from path, returning
// def if the path or key cannot be resolved (spec 4.4's
// `get<T>(path.key, default)`).
func Get[T any](c *Cache, path, key string, def T) T {
	d, err := c.document(path)
	if err != nil {
		return def
	}
	return document.Get(d, key, def)
}

// document returns the memoized Document for path, loading it if
// absent or stale.
func (c *Cache) document(path string) (*document.Document, *errs.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[path]
	if found && !e.stale {
		e.refCount++
		return e.doc, nil
	}

	raw, doc, loadErr := c.loadLocked(path)
	if loadErr != nil {
		return nil, loadErr
	}
	if found {
		e.raw, e.doc, e.stale = raw, doc, false
		e.refCount++
		return e.doc, nil
	}
	ne := &entry{raw: raw, doc: doc, refCount: 1}
	c.entries[path] = ne
	_ = c.watcher.Add(path)
	return ne.doc, nil
}

// loadLocked reads, comment-strips, schema-validates, and parses path.
// Caller must hold c.mu.
func (c *Cache) loadLocked(path string) (string, *document.Document, *errs.Error) {
	if info, statErr := os.Lstat(path); statErr == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", nil, errs.File("doccache: refusing to load symlink %q", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", nil, errs.File("doccache: %v", err)
	}
	raw := jsonc.StripComments(string(b))

	if c.schema != nil {
		if verr := validateAgainstSchema(c.schema, raw); verr != nil {
			if c.strict {
				return "", nil, errs.CriticalFile("doccache: %s failed schema validation: %v", path, verr)
			}
			// NonCritical: the object is still constructed with
			// defaults, so loading continues below.
		}
	}

	d := document.New()
	if derr := d.Deserialize(raw); derr != nil {
		return "", nil, errs.File("doccache: %s: %v", path, derr)
	}
	return raw, d, nil
}

// Reload forces path to be re-read on its next access, regardless of
// the fsnotify watch's current staleness flag (the explicit "env
// deload" + "env load" cycle named in spec 4.4).
func (c *Cache) Reload(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[path]; ok {
		e.stale = true
	}
}

// Release decrements path's reference count, the counterpart to the
// increment in document() that models "reference-counted by the
// expressions that registered a VirtualDouble against them" (spec
// 4.4). It never evicts by itself — eviction is left to an explicit
// Deload, matching "reloads are explicit".
func (c *Cache) Release(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[path]; ok && e.refCount > 0 {
		e.refCount--
	}
}

// Deload evicts path from the cache and stops watching it. Refuses if
// path still has live references, unless force is set.
func (c *Cache) Deload(path string, force bool) *errs.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok {
		return nil
	}
	if e.refCount > 0 && !force {
		return errs.Functional("doccache: %q has %d live references", path, e.refCount)
	}
	_ = c.watcher.Remove(path)
	delete(c.entries, path)
	return nil
}

// RefCount reports path's current reference count, for tests and
// diagnostics.
func (c *Cache) RefCount(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[path]; ok {
		return e.refCount
	}
	return 0
}

func validateAgainstSchema(s *jsonschema.Schema, raw string) error {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return err
	}
	return s.Validate(v)
}

// CompileSchema compiles a JSON Schema document from schemaJSON,
// resolved relative to baseDir for any local $ref.
func CompileSchema(schemaJSON string, baseDir string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	url := "schema://" + filepath.Base(baseDir) + "/main.json"
	if err := compiler.AddResource(url, strings.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}
