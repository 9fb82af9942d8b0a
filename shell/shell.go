// Package shell wires every component package into the headless
// command shell and frame loop: a root Domain exposing the full
// function tree, a Scene of entities, a Pair Engine, and three Task
// Queues drained once per frame.
//
// One root dispatcher feeds a function registry; colorized error
// reporting runs through nbllog rather than a bespoke formatter.
package shell

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lbastigk/nebulite/clock"
	"github.com/lbastigk/nebulite/config"
	"github.com/lbastigk/nebulite/doccache"
	"github.com/lbastigk/nebulite/document"
	"github.com/lbastigk/nebulite/document/scope"
	"github.com/lbastigk/nebulite/domain"
	"github.com/lbastigk/nebulite/internal/errs"
	"github.com/lbastigk/nebulite/internal/nbllog"
	"github.com/lbastigk/nebulite/invoke"
	"github.com/lbastigk/nebulite/scene"
	"github.com/lbastigk/nebulite/taskqueue"
)

// sceneEntitySchema is the combined JSON Schema every persisted scene
// or entity file is validated against: loose on
// purpose, since the document model tolerates missing fields with
// zero-value defaults and the schema only exists to catch gross
// shape errors (wrong type, typo'd key).
const sceneEntitySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "anyOf": [
    {
      "type": "object",
      "patternProperties": {
        "^containerLayer[0-4]$": {
          "type": "object",
          "properties": { "objects": { "type": "array" } }
        }
      }
    },
    {
      "type": "object",
      "properties": {
        "id":     { "type": "number" },
        "posX":   { "type": "number" },
        "posY":   { "type": "number" },
        "layer":  { "type": "number" },
        "invokes":             { "type": "array" },
        "invokeSubscriptions": { "type": "array" }
      }
    }
  ]
}`

// Shell owns every long-lived component and is the single Dispatcher
// implementation threaded through the task queues, the Pair Engine,
// and every Ruleset's function-call lists.
type Shell struct {
	cfg    *config.Config
	logger *nbllog.Logger

	resources *doccache.Cache

	globalDoc *document.Document
	global    *scope.View
	root      *domain.Domain

	sceneObj *scene.Scene
	engine   *invoke.Engine

	clk    *clock.Time
	clocks *clock.Clocks
	rng    *clock.RNG

	always, internal, script *taskqueue.Queue

	schema *jsonschema.Schema

	entities map[uint32]*domain.RenderObject
	nextID   uint32
	selected uint32
	draft    *domain.RenderObject

	camX, camY float64
	showFPS    bool
	mirror     string
	haltOnce   bool
	done       bool

	startTime time.Time
}

// New builds a Shell from cfg, wiring every component package's
// construction the way spec 4.9/4.11/4.12 describe them, and registers
// the full command surface (spec 6).
func New(cfg *config.Config, logger *nbllog.Logger) (*Shell, error) {
	resources, err := doccache.New()
	if err != nil {
		return nil, fmt.Errorf("shell: %w", err)
	}

	globalDoc := document.New()
	global := scope.New(globalDoc)
	root := domain.New("global", global)

	schema, err := doccache.CompileSchema(sceneEntitySchema, ".")
	if err != nil {
		return nil, fmt.Errorf("shell: %w", err)
	}
	resources.SetSchema(schema, cfg.StrictSchema)

	s := &Shell{
		cfg:       cfg,
		logger:    logger,
		resources: resources,
		globalDoc: globalDoc,
		global:    global,
		root:      root,
		sceneObj:  scene.NewScene(cfg.BatchCostGoal, cfg.ResolutionX, cfg.ResolutionY),
		engine:    invoke.NewEngine(cfg.ThreadRunnerCount),
		clk:       clock.New(),
		clocks:    clock.NewClocks(),
		rng:       clock.NewRNG("nebulite"),
		always:    taskqueue.New(),
		internal:  taskqueue.New(),
		script:    taskqueue.New(),
		schema:    schema,
		entities:  make(map[uint32]*domain.RenderObject),
		startTime: time.Now(),
	}
	s.clk.SetFixedDeltaTime(1.0 / float64(cfg.TargetFPS))
	s.engine.SetSweepProbability(cfg.SweepProbability)
	s.registerCommands()

	if cfg.Command != "" {
		s.script.PushBack(cfg.Command)
	}
	return s, nil
}

// Close releases every owned resource (spec 5's "shutdown is a
// cooperative flag" extended to the components this shell owns).
func (s *Shell) Close() error {
	s.engine.Close()
	return s.resources.Close()
}

// Dispatch implements taskqueue.Dispatcher: every queued command runs
// against the global view (spec 6's top-level commands all address
// the global/root domain unless redirected by `selected-object parse`
// or a ruleset's own functioncalls list).
func (s *Shell) Dispatch(cmd string) *errs.Error {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return nil
	}
	err := s.root.Tree().ParseStr(s.global, cmd)
	s.logger.LogError(err)
	return err
}

// DispatchRuleset serves as ruleset.Dispatcher (through
// rulesetDispatcher) for functioncalls.self and functioncalls.other:
// the command always runs against whichever
// view (self or other) the ruleset bound as its third argument — for
// functioncalls.self that is the owner's own view, for
// functioncalls.other it is the paired entity's view (see
// ruleset.Ruleset.Apply).
func (s *Shell) DispatchRuleset(call string, self, other *scope.View) {
	err := s.root.Tree().ParseStr(other, call)
	s.logger.LogError(err)
}

// rulesetDispatcher adapts Shell to ruleset.Dispatcher, whose Dispatch
// method differs from the taskqueue.Dispatcher one Shell implements.
type rulesetDispatcher struct{ s *Shell }

// Dispatch forwards to Shell.DispatchRuleset.
func (d rulesetDispatcher) Dispatch(call string, self, other *scope.View) {
	d.s.DispatchRuleset(call, self, other)
}

// Enqueue implements ruleset.GlobalQueue for functioncalls.global: the
// rendered call is pushed onto the internal queue (engine-pushed,
// spec 4.11) and runs against the global view on a later frame.
func (s *Shell) Enqueue(call string, self, other *scope.View) {
	s.internal.PushBack(call)
}

// selfOf implements invoke.ViewLookup, resolving a broadcaster id to
// its entity's Self view.
func (s *Shell) selfOf(id uint32) (*scope.View, bool) {
	e, ok := s.entities[id]
	if !ok {
		return nil, false
	}
	return e.View(), true
}

// Run drives the main loop: tick the clocks, drain the three task
// queues, step the scene, run the Pair Engine's cross-pair pass, and
// pace to the configured target FPS, until every queue is empty, idle,
// and not waiting (spec 5's cooperative shutdown).
func (s *Shell) Run() int {
	last := time.Now()

	exitCode := 0
	for !s.done {
		now := time.Now()
		dt := now.Sub(last).Seconds()
		last = now

		unlockAfterTick := false
		if s.haltOnce {
			s.clk.Lock()
			s.haltOnce = false
			unlockAfterTick = true
		}
		s.clk.Tick(dt)
		if unlockAfterTick {
			s.clk.Unlock()
		}
		s.clk.WriteTo(s.global)
		s.clocks.Tick(time.Since(s.startTime).Seconds()*1000, s.global)
		s.rng.WriteTo(s.global)

		if s.showFPS && dt > 0 {
			scope.Set(s.global, "fps", 1.0/dt)
		}

		if err := s.always.Resolve(s); err.IsCritical() {
			exitCode = 1
			break
		}
		if err := s.script.Resolve(s); err.IsCritical() {
			exitCode = 1
			break
		}
		if err := s.internal.Resolve(s); err.IsCritical() {
			exitCode = 1
			break
		}

		if err := s.sceneObj.Step(s.engine, s.global, s.resources, rulesetDispatcher{s}, s); err.IsCritical() {
			exitCode = 1
			break
		}
		s.engine.Update(s.selfOf, s.global, s.resources, rulesetDispatcher{s}, s)

		if err := s.root.Update(); err.IsCritical() {
			exitCode = 1
			break
		}

		if s.idle() {
			break
		}

		frameBudget := time.Second / time.Duration(max(1, s.cfg.TargetFPS))
		if elapsed := time.Since(now); elapsed < frameBudget {
			time.Sleep(frameBudget - elapsed)
		}
	}

	if s.cfg.ErrorLogEnabled {
		if err := s.logger.CloseFileSink(); err != nil {
			if exitCode == 0 {
				exitCode = 2
			}
		}
	}
	return exitCode
}

// idle reports whether every task queue is empty and not waiting
// (spec 5: "Shutdown is a cooperative flag" — a headless run with
// nothing left queued has nothing further to cooperate on).
func (s *Shell) idle() bool {
	return s.always.Len() == 0 && !s.always.IsWaiting() &&
		s.script.Len() == 0 && !s.script.IsWaiting() &&
		s.internal.Len() == 0 && !s.internal.IsWaiting()
}

// parseLiteral turns a command-line token into the Value it names:
// numeric, boolean, or string, in that preference order (spec 6's
// `set <key> <value>` takes an untyped token).
func parseLiteral(s string) document.Value {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return document.Value{Kind: document.KindFloat64, Num: f}
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return document.ValueOf(b)
	}
	return document.Value{Kind: document.KindString, Str: s}
}

func writeFileOrStdout(logger *nbllog.Logger, path, content string) *errs.Error {
	if path == "" {
		logger.Infof("%s", content)
		return nil
	}
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errs.File("shell: refusing to overwrite symlink %q", path)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errs.File("shell: %v", err)
	}
	return nil
}

// resolvePath tries path as given, then the two Resources directories
// named in spec 6's `spawn` semantics.
func resolvePath(path string) string {
	candidates := []string{
		path,
		"./Resources/RenderObjects/" + path,
		"./Resources/Renderobjects/" + path,
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return path
}

// splitPipe splits spawn's `path|tail|tail...` syntax on the
// top-level `|` boundary (spec 6: "the first `|` is a command
// boundary").
func splitPipe(s string) []string {
	return strings.Split(s, "|")
}

// tokenize splits a command's argument tail on whitespace, respecting
// double-quoted spans (spec 6: command arguments may contain spaces
// when quoted).
func tokenize(s string) []string {
	var toks []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}
