package shell

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/lbastigk/nebulite/document"
	"github.com/lbastigk/nebulite/document/scope"
	"github.com/lbastigk/nebulite/domain"
	"github.com/lbastigk/nebulite/expression"
	"github.com/lbastigk/nebulite/internal/errs"
	"github.com/lbastigk/nebulite/internal/nbllog"
	"github.com/lbastigk/nebulite/ruleset"
	"github.com/lbastigk/nebulite/scene"
)

// registerCommands installs the full command surface onto the root
// Domain's Function Tree: every command is a plain closure over the
// Shell, registered by canonical name.
func (s *Shell) registerCommands() {
	t := s.root.Tree()

	t.Register("env load", "load a persisted scene file into the current scene (spec 6)", s.cmdEnvLoad)
	t.Register("env deload", "clear every spawned entity and reset the scene", s.cmdEnvDeload)
	t.Register("spawn", "spawn an entity from a RenderObject file, optionally piped with follow-up commands", s.cmdSpawn)

	t.Register("set", "set <key> <value>: write a literal value", s.cmdSet)
	t.Register("move", "move <src> <dst>: relocate a value, removing src", s.cmdMove)
	t.Register("copy", "copy <src> <dst>: duplicate a value", s.cmdCopy)
	t.Register("delete", "delete <key>: remove a key", s.cmdDelete)

	t.Register("ensureArray", "ensureArray <key>: make key an empty array if it is not already one", s.cmdEnsureArray)
	t.Register("push_back", "push_back <key> [v]: append v to the array at key", s.cmdPushBack)
	t.Register("push_front", "push_front <key> [v]: prepend v to the array at key", s.cmdPushFront)
	t.Register("pop_back", "pop_back <key>: remove the array at key's last element", s.cmdPopBack)
	t.Register("pop_front", "pop_front <key>: remove the array at key's first element", s.cmdPopFront)

	t.Register("cam set", "cam set <x> <y> [c]: place the camera", s.cmdCamSet)
	t.Register("cam move", "cam move <dx> <dy>: offset the camera", s.cmdCamMove)

	t.Register("set-res", "set-res <w> <h> [scale]: resize the tile grid", s.cmdSetRes)
	t.Register("set-fps", "set-fps <n>: retarget the frame pacer and fixed simulation delta", s.cmdSetFPS)
	t.Register("show-fps", "show-fps on|off: expose the measured fps into the store", s.cmdShowFPS)

	t.Register("snapshot", "snapshot [path]: CBOR-encode the global store and every entity", s.cmdSnapshot)
	t.Register("beep", "beep: sound a tone on the audio bus (external collaborator, spec 6)", s.cmdBeep)

	t.Register("task", "task <file.nebs>: load a task file's lines onto the script queue", s.cmdTask)
	t.Register("wait", "wait <frames>: suspend the script queue for n frames", s.cmdWait)
	t.Register("always", "always <cmd;cmd;...>: enqueue commands onto the always queue", s.cmdAlways)
	t.Register("always-clear", "always-clear: discard every command queued on the always queue", s.cmdAlwaysClear)

	t.Register("if", `if "$(cond)" <cmd>: dispatch cmd when cond is true`, s.cmdIf)
	t.Register("assert", `assert "$(cond)": fail critically when cond is false`, s.cmdAssert)
	t.Register("return", "return <msg>: log msg and discard the remaining script queue", s.cmdReturn)
	t.Register("for", "for <var> <lo> <hi> <cmd>: dispatch cmd once per value of var in [lo, hi]", s.cmdFor)

	t.Register("func_for", "alias of for", s.cmdFor)
	t.Register("func_if", "alias of if", s.cmdIf)
	t.Register("func_assert", "alias of assert", s.cmdAssert)
	t.Register("func_return", "alias of return", s.cmdReturn)

	t.Register("echo", "echo <...>: log at info level", s.cmdEcho)
	t.Register("error", "error <...>: log at error level and report a non-critical error", s.cmdError)
	t.Register("warn", "warn <...>: log at warn level and report a non-critical error", s.cmdWarn)
	t.Register("critical", "critical <...>: log at error level and stop the calling queue/loop", s.cmdCritical)

	t.Register("log global", "log global [path]: write the serialized global store", s.cmdLogGlobal)
	t.Register("log state", "log state [path]: write the serialized global store and every entity", s.cmdLogState)
	t.Register("errorlog", "errorlog on|off: toggle the errors.log file sink", s.cmdErrorLog)
	t.Register("clear", "clear: log an acknowledgement (no log output is retained, so nothing is reset)", s.cmdClear)

	t.Register("eval", "eval <template>: render a $()/{} template then dispatch the result", s.cmdEval)

	t.Register("mirror", "mirror on|off|once|delete|fetch: multi-window mirroring (out of scope, spec 1)", s.cmdMirror)

	t.Register("draft parse", "draft parse <cmd>: dispatch cmd against the staging entity", s.cmdDraftParse)
	t.Register("draft spawn", "draft spawn: commit the staging entity into the scene", s.cmdDraftSpawn)
	t.Register("draft reset", "draft reset: discard the staging entity and start a fresh one", s.cmdDraftReset)

	t.Register("selected-object get", "selected-object get <id>: address an existing spawned entity", s.cmdSelectedGet)
	t.Register("selected-object parse", "selected-object parse <cmd>: dispatch cmd against the selected entity", s.cmdSelectedParse)

	t.Register("time halt-once", "time halt-once: freeze simulation time for exactly one frame", s.cmdTimeHaltOnce)
	t.Register("time lock", "time lock <name>: hold a simulation time lock", s.cmdTimeLock)
	t.Register("time unlock", "time unlock <name>: release one held simulation time lock", s.cmdTimeUnlock)
	t.Register("time master-unlock", "time master-unlock: release every held simulation time lock", s.cmdTimeMasterUnlock)
	t.Register("time fixed-dt", "time fixed-dt <ms>: pin the simulation delta", s.cmdTimeFixedDT)

	t.Register("ruleset add-clock", "ruleset add-clock <interval_ms>: register a named periodic clock", s.cmdRulesetAddClock)

	t.Register("log-level", "log-level <level>: debug|info|warn|error", s.cmdLogLevel)
	t.Register("schema strict", "schema strict on|off: promote schema violations to critical errors", s.cmdSchemaStrict)
}

// spawnFromSource builds a RenderObject from raw (comment-stripped
// JSON text), compiling its invokes[] into Rulesets (spec 4.6) and
// binding it against the global store, then registers and spawns it
// into the scene at the entity's own "layer" field (or forcedLayer
// when >= 0, as env load uses to pick the persisted scene's own
// layer index regardless of what the entity file itself says).
func (s *Shell) spawnFromSource(raw string, forcedLayer int) (*domain.RenderObject, *errs.Error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, errs.File("spawn: %v", err)
	}

	id := s.nextID
	if idv, ok := obj["id"]; ok {
		if f, ok := idv.(float64); ok && f > 0 {
			id = uint32(f)
		}
	}
	if id >= s.nextID {
		s.nextID = id + 1
	}

	layer := forcedLayer
	if layer < 0 {
		layer = 0
		if lv, ok := obj["layer"].(float64); ok {
			layer = int(lv)
		}
	}
	if layer < 0 || layer >= scene.LayerCount {
		return nil, errs.Functional("spawn: layer %d out of range [0,%d)", layer, scene.LayerCount)
	}

	invokesRaw, _ := obj["invokes"].([]any)
	rulesets, err := ruleset.Compile(id, invokesRaw, s.resources)
	if err != nil {
		return nil, errs.File("spawn: %v", err)
	}

	v := scope.New(document.New())
	if err := v.Doc().Deserialize(raw); err != nil {
		return nil, errs.File("spawn: %v", err)
	}

	d := domain.New(fmt.Sprintf("entity%d", id), v)
	e := domain.NewRenderObject(id, d)
	e.Rulesets = rulesets

	if subsRaw, ok := obj["invokeSubscriptions"].([]any); ok {
		subs := make([]string, 0, len(subsRaw))
		for _, sv := range subsRaw {
			if str, ok := sv.(string); ok {
				subs = append(subs, str)
			}
		}
		e.Subscriptions = subs
	}

	e.Bind(s.global)
	s.entities[id] = e
	s.sceneObj.Spawn(layer, e)
	s.selected = id
	return e, nil
}

func (s *Shell) cmdEnvLoad(self *scope.View, args []string) *errs.Error {
	if len(args) < 1 {
		return errs.Functional("env load: expected <path>")
	}
	path := resolvePath(args[0])
	raw, err := s.resources.GetDocString(path)
	if err != nil {
		return err
	}

	var sceneFile map[string]json.RawMessage
	if uerr := json.Unmarshal([]byte(raw), &sceneFile); uerr != nil {
		return errs.File("env load: %s: %v", path, uerr)
	}
	for layer := 0; layer < scene.LayerCount; layer++ {
		containerRaw, ok := sceneFile[fmt.Sprintf("containerLayer%d", layer)]
		if !ok {
			continue
		}
		var container struct {
			Objects []json.RawMessage `json:"objects"`
		}
		if uerr := json.Unmarshal(containerRaw, &container); uerr != nil {
			continue
		}
		for _, objRaw := range container.Objects {
			if _, serr := s.spawnFromSource(string(objRaw), layer); serr != nil {
				s.logger.LogError(serr)
			}
		}
	}
	return nil
}

func (s *Shell) cmdEnvDeload(self *scope.View, args []string) *errs.Error {
	s.sceneObj = scene.NewScene(s.cfg.BatchCostGoal, s.cfg.ResolutionX, s.cfg.ResolutionY)
	s.entities = make(map[uint32]*domain.RenderObject)
	s.selected = 0
	return nil
}

func (s *Shell) cmdSpawn(self *scope.View, args []string) *errs.Error {
	if len(args) < 1 {
		return errs.Functional("spawn: expected <path>[|cmd|cmd...]")
	}
	parts := splitPipe(strings.Join(args, " "))
	path := resolvePath(strings.TrimSpace(parts[0]))

	raw, err := s.resources.GetDocString(path)
	if err != nil {
		return err
	}
	e, serr := s.spawnFromSource(raw, -1)
	if serr != nil {
		return serr
	}

	for _, tail := range parts[1:] {
		tail = strings.TrimSpace(tail)
		if tail == "" {
			continue
		}
		if k, v, found := strings.Cut(tail, "="); found && !strings.Contains(k, " ") {
			tail = "set " + k + " " + v
		}
		if terr := s.root.Tree().ParseStr(e.View(), tail); terr.IsCritical() {
			return terr
		}
	}
	return nil
}

func (s *Shell) cmdSet(self *scope.View, args []string) *errs.Error {
	if len(args) < 2 {
		return errs.Functional("set: expected <key> <value>")
	}
	self.SetVariant(args[0], parseLiteral(strings.Join(args[1:], " ")))
	return nil
}

func (s *Shell) cmdMove(self *scope.View, args []string) *errs.Error {
	if len(args) < 2 {
		return errs.Functional("move: expected <src> <dst>")
	}
	v, ok := self.GetVariant(args[0])
	if !ok {
		return errs.Functional("move: %q has no value", args[0])
	}
	self.SetVariant(args[1], v)
	self.RemoveKey(args[0])
	return nil
}

func (s *Shell) cmdCopy(self *scope.View, args []string) *errs.Error {
	if len(args) < 2 {
		return errs.Functional("copy: expected <src> <dst>")
	}
	v, ok := self.GetVariant(args[0])
	if !ok {
		return errs.Functional("copy: %q has no value", args[0])
	}
	self.SetVariant(args[1], v)
	return nil
}

func (s *Shell) cmdDelete(self *scope.View, args []string) *errs.Error {
	if len(args) < 1 {
		return errs.Functional("delete: expected <key>")
	}
	self.RemoveKey(args[0])
	return nil
}

func (s *Shell) cmdEnsureArray(self *scope.View, args []string) *errs.Error {
	if len(args) < 1 {
		return errs.Functional("ensureArray: expected <key>")
	}
	if self.MemberType(args[0]) != document.MemberArray {
		full, _ := self.Resolve(args[0])
		self.Doc().SetEmptyArray(full)
	}
	return nil
}

func (s *Shell) cmdPushBack(self *scope.View, args []string) *errs.Error {
	if len(args) < 1 {
		return errs.Functional("push_back: expected <key> [v]")
	}
	key := args[0]
	if self.MemberType(key) != document.MemberArray {
		full, _ := self.Resolve(key)
		self.Doc().SetEmptyArray(full)
	}
	n := self.MemberSize(key)
	val := ""
	if len(args) > 1 {
		val = strings.Join(args[1:], " ")
	}
	self.SetVariant(fmt.Sprintf("%s[%d]", key, n), parseLiteral(val))
	return nil
}

func (s *Shell) cmdPushFront(self *scope.View, args []string) *errs.Error {
	if len(args) < 1 {
		return errs.Functional("push_front: expected <key> [v]")
	}
	key := args[0]
	if self.MemberType(key) != document.MemberArray {
		full, _ := self.Resolve(key)
		self.Doc().SetEmptyArray(full)
	}
	n := self.MemberSize(key)
	for i := n; i > 0; i-- {
		v, _ := self.GetVariant(fmt.Sprintf("%s[%d]", key, i-1))
		self.SetVariant(fmt.Sprintf("%s[%d]", key, i), v)
	}
	val := ""
	if len(args) > 1 {
		val = strings.Join(args[1:], " ")
	}
	self.SetVariant(fmt.Sprintf("%s[0]", key), parseLiteral(val))
	return nil
}

func (s *Shell) cmdPopBack(self *scope.View, args []string) *errs.Error {
	if len(args) < 1 {
		return errs.Functional("pop_back: expected <key>")
	}
	key := args[0]
	n := self.MemberSize(key)
	if n == 0 {
		return nil
	}
	self.RemoveKey(fmt.Sprintf("%s[%d]", key, n-1))
	return nil
}

func (s *Shell) cmdPopFront(self *scope.View, args []string) *errs.Error {
	if len(args) < 1 {
		return errs.Functional("pop_front: expected <key>")
	}
	key := args[0]
	n := self.MemberSize(key)
	if n == 0 {
		return nil
	}
	for i := 0; i < n-1; i++ {
		v, _ := self.GetVariant(fmt.Sprintf("%s[%d]", key, i+1))
		self.SetVariant(fmt.Sprintf("%s[%d]", key, i), v)
	}
	self.RemoveKey(fmt.Sprintf("%s[%d]", key, n-1))
	return nil
}

func (s *Shell) cmdCamSet(self *scope.View, args []string) *errs.Error {
	if len(args) < 2 {
		return errs.Functional("cam set: expected <x> <y> [c]")
	}
	x, err1 := strconv.ParseFloat(args[0], 64)
	y, err2 := strconv.ParseFloat(args[1], 64)
	if err1 != nil || err2 != nil {
		return errs.Functional("cam set: %q %q are not numeric", args[0], args[1])
	}
	s.camX, s.camY = x, y
	s.sceneObj.SetCamera(x, y)
	return nil
}

func (s *Shell) cmdCamMove(self *scope.View, args []string) *errs.Error {
	if len(args) < 2 {
		return errs.Functional("cam move: expected <dx> <dy>")
	}
	dx, err1 := strconv.ParseFloat(args[0], 64)
	dy, err2 := strconv.ParseFloat(args[1], 64)
	if err1 != nil || err2 != nil {
		return errs.Functional("cam move: %q %q are not numeric", args[0], args[1])
	}
	s.camX += dx
	s.camY += dy
	s.sceneObj.SetCamera(s.camX, s.camY)
	return nil
}

func (s *Shell) cmdSetRes(self *scope.View, args []string) *errs.Error {
	if len(args) < 2 {
		return errs.Functional("set-res: expected <w> <h> [scale]")
	}
	w, err1 := strconv.ParseFloat(args[0], 64)
	h, err2 := strconv.ParseFloat(args[1], 64)
	if err1 != nil || err2 != nil {
		return errs.Functional("set-res: %q %q are not numeric", args[0], args[1])
	}
	scale := 1.0
	if len(args) > 2 {
		if sc, serr := strconv.ParseFloat(args[2], 64); serr == nil {
			scale = sc
		}
	}
	s.cfg.ResolutionX, s.cfg.ResolutionY = w*scale, h*scale
	s.sceneObj.SetResolution(s.cfg.ResolutionX, s.cfg.ResolutionY)
	return nil
}

func (s *Shell) cmdSetFPS(self *scope.View, args []string) *errs.Error {
	if len(args) < 1 {
		return errs.Functional("set-fps: expected <n>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return errs.Functional("set-fps: %q is not a positive integer", args[0])
	}
	s.cfg.TargetFPS = n
	s.clk.SetFixedDeltaTime(1.0 / float64(n))
	return nil
}

func (s *Shell) cmdShowFPS(self *scope.View, args []string) *errs.Error {
	if len(args) < 1 {
		return errs.Functional("show-fps: expected on|off")
	}
	s.showFPS = args[0] == "on"
	return nil
}

type cborSnapshot struct {
	Global   string             `cbor:"global"`
	Entities []cborSnapshotItem `cbor:"entities"`
}

type cborSnapshotItem struct {
	ID  uint32 `cbor:"id"`
	Doc string `cbor:"doc"`
}

func (s *Shell) cmdSnapshot(self *scope.View, args []string) *errs.Error {
	path := "snapshot.cbor"
	if len(args) > 0 {
		path = args[0]
	}

	globalJSON, jerr := s.globalDoc.Serialize("")
	if jerr != nil {
		return errs.Renderer("snapshot: %v", jerr)
	}
	ids := make([]uint32, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	items := make([]cborSnapshotItem, 0, len(ids))
	for _, id := range ids {
		docJSON, derr := s.entities[id].View().Doc().Serialize("")
		if derr != nil {
			continue
		}
		items = append(items, cborSnapshotItem{ID: id, Doc: docJSON})
	}

	blob, merr := cbor.Marshal(cborSnapshot{Global: globalJSON, Entities: items})
	if merr != nil {
		return errs.Renderer("snapshot: %v", merr)
	}
	if info, serr := os.Lstat(path); serr == nil && info.Mode()&os.ModeSymlink != 0 {
		return errs.CriticalFile("snapshot: refusing to overwrite symlink %q", path)
	}
	if werr := os.WriteFile(path, blob, 0o644); werr != nil {
		return errs.CriticalFile("snapshot: %v", werr)
	}
	return nil
}

func (s *Shell) cmdBeep(self *scope.View, args []string) *errs.Error {
	s.logger.Debugf("beep: no audio backend wired (spec 6 names the audio bus an external collaborator)")
	return nil
}

func (s *Shell) cmdTask(self *scope.View, args []string) *errs.Error {
	if len(args) < 1 {
		return errs.Functional("task: expected <file>")
	}
	raw, err := s.resources.GetDocString(resolvePath(args[0]))
	if err != nil {
		return err
	}
	lines := strings.Split(raw, "\n")
	var clean []string
	for _, ln := range lines {
		if h := strings.Index(ln, "#"); h >= 0 {
			ln = ln[:h]
		}
		ln = strings.TrimSpace(ln)
		if ln != "" {
			clean = append(clean, ln)
		}
	}
	for i := len(clean) - 1; i >= 0; i-- {
		s.script.PushFront(clean[i])
	}
	s.rng.Rollback()
	return nil
}

func (s *Shell) cmdWait(self *scope.View, args []string) *errs.Error {
	if len(args) < 1 {
		return errs.Functional("wait: expected <frames>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return errs.Functional("wait: %q is not an integer", args[0])
	}
	s.script.IncrementWaitCounter(n)
	return nil
}

func (s *Shell) cmdAlways(self *scope.View, args []string) *errs.Error {
	for _, cmd := range strings.Split(strings.Join(args, " "), ";") {
		cmd = strings.TrimSpace(cmd)
		if cmd != "" {
			s.always.PushBack(cmd)
		}
	}
	return nil
}

func (s *Shell) cmdAlwaysClear(self *scope.View, args []string) *errs.Error {
	s.always.Clear()
	return nil
}

// evalCond parses and binds cond against self/s.global, the live
// store context (unlike expression.EvalAsBool, which evaluates
// transiently against an empty document), so `if`/`assert` can read
// {self.x}/{global.x} (spec 4.3/6).
func (s *Shell) evalCond(self *scope.View, cond string) bool {
	expr, err := expression.Parse(cond)
	if err != nil {
		return false
	}
	expr.Bind(self, s.global)
	v, ok := expr.EvalAsDouble(self, s.resources)
	if !ok {
		return expression.EvalAsBool(expr.Eval(self, s.resources))
	}
	return v != 0 && !isNaN(v)
}

func isNaN(f float64) bool { return f != f }

func (s *Shell) cmdIf(self *scope.View, args []string) *errs.Error {
	if len(args) < 2 {
		return errs.Functional(`if: expected "$(cond)" <cmd>`)
	}
	if s.evalCond(self, args[0]) {
		return s.root.Tree().ParseStr(self, strings.Join(args[1:], " "))
	}
	return nil
}

func (s *Shell) cmdAssert(self *scope.View, args []string) *errs.Error {
	if len(args) < 1 {
		return errs.Functional(`assert: expected "$(cond)"`)
	}
	if !s.evalCond(self, args[0]) {
		return errs.UserCritical("assert failed: %s", args[0])
	}
	return nil
}

func (s *Shell) cmdReturn(self *scope.View, args []string) *errs.Error {
	s.logger.Infof("return: %s", strings.Join(args, " "))
	s.script.Clear()
	return nil
}

func (s *Shell) cmdFor(self *scope.View, args []string) *errs.Error {
	if len(args) < 4 {
		return errs.Functional("for: expected <var> <lo> <hi> <cmd>")
	}
	lo, err1 := strconv.Atoi(args[1])
	hi, err2 := strconv.Atoi(args[2])
	if err1 != nil || err2 != nil {
		return errs.Functional("for: %q %q are not integers", args[1], args[2])
	}
	cmd := strings.Join(args[3:], " ")
	for i := lo; i <= hi; i++ {
		self.SetVariant(args[0], document.Value{Kind: document.KindFloat64, Num: float64(i)})
		if err := s.root.Tree().ParseStr(self, cmd); err.IsCritical() {
			return err
		}
	}
	return nil
}

func (s *Shell) cmdEcho(self *scope.View, args []string) *errs.Error {
	s.logger.Infof("%s", strings.Join(args, " "))
	return nil
}

func (s *Shell) cmdError(self *scope.View, args []string) *errs.Error {
	msg := strings.Join(args, " ")
	s.logger.Errorf("%s", msg)
	return errs.Warn("%s", msg)
}

func (s *Shell) cmdWarn(self *scope.View, args []string) *errs.Error {
	msg := strings.Join(args, " ")
	s.logger.Warnf("%s", msg)
	return errs.Warn("%s", msg)
}

func (s *Shell) cmdCritical(self *scope.View, args []string) *errs.Error {
	msg := strings.Join(args, " ")
	s.logger.Errorf("%s", msg)
	return errs.UserCritical("%s", msg)
}

func (s *Shell) cmdLogGlobal(self *scope.View, args []string) *errs.Error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	body, jerr := s.globalDoc.Serialize("")
	if jerr != nil {
		return errs.Renderer("log global: %v", jerr)
	}
	return writeFileOrStdout(s.logger, path, body)
}

func (s *Shell) cmdLogState(self *scope.View, args []string) *errs.Error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	globalJSON, jerr := s.globalDoc.Serialize("")
	if jerr != nil {
		return errs.Renderer("log state: %v", jerr)
	}
	ids := make([]uint32, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	state := struct {
		Global   string            `json:"global"`
		Entities map[string]string `json:"entities"`
	}{Global: globalJSON, Entities: make(map[string]string, len(ids))}
	for _, id := range ids {
		docJSON, derr := s.entities[id].View().Doc().Serialize("")
		if derr == nil {
			state.Entities[strconv.FormatUint(uint64(id), 10)] = docJSON
		}
	}
	body, merr := json.MarshalIndent(state, "", "  ")
	if merr != nil {
		return errs.Renderer("log state: %v", merr)
	}
	return writeFileOrStdout(s.logger, path, string(body))
}

func (s *Shell) cmdErrorLog(self *scope.View, args []string) *errs.Error {
	if len(args) < 1 {
		return errs.Functional("errorlog: expected on|off")
	}
	switch args[0] {
	case "on":
		if !s.cfg.ErrorLogEnabled {
			if err := s.logger.OpenFileSink(s.cfg.LogPath); err != nil {
				return errs.File("errorlog: %v", err)
			}
			s.cfg.ErrorLogEnabled = true
		}
	case "off":
		if s.cfg.ErrorLogEnabled {
			_ = s.logger.CloseFileSink()
			s.cfg.ErrorLogEnabled = false
		}
	default:
		return errs.Functional("errorlog: expected on|off, got %q", args[0])
	}
	return nil
}

func (s *Shell) cmdClear(self *scope.View, args []string) *errs.Error {
	s.logger.Infof("clear: no retained log output to reset")
	return nil
}

func (s *Shell) cmdEval(self *scope.View, args []string) *errs.Error {
	if len(args) < 1 {
		return errs.Functional("eval: expected a template")
	}
	template := strings.Join(args, " ")
	expr, err := expression.Parse(template)
	if err != nil {
		return errs.Functional("eval: %v", err)
	}
	expr.Bind(self, s.global)
	rendered := expr.Eval(self, s.resources)
	return s.root.Tree().ParseStr(self, rendered)
}

func (s *Shell) cmdMirror(self *scope.View, args []string) *errs.Error {
	mode := "fetch"
	if len(args) > 0 {
		mode = args[0]
	}
	s.mirror = mode
	s.logger.Debugf("mirror %s: multi-window mirroring is out of scope (spec 1 Non-goals)", mode)
	return nil
}

func (s *Shell) cmdDraftParse(self *scope.View, args []string) *errs.Error {
	if s.draft == nil {
		return errs.Functional("draft parse: no draft entity (run draft reset first)")
	}
	return s.root.Tree().ParseStr(s.draft.View(), strings.Join(args, " "))
}

func (s *Shell) cmdDraftSpawn(self *scope.View, args []string) *errs.Error {
	if s.draft == nil {
		return errs.Functional("draft spawn: no draft entity (run draft reset first)")
	}
	layer := int(scope.Get(s.draft.View(), "layer", 0.0))
	if layer < 0 || layer >= scene.LayerCount {
		layer = 0
	}
	id := s.nextID
	s.nextID++
	s.draft.ID = id
	s.draft.Bind(s.global)
	s.entities[id] = s.draft
	s.sceneObj.Spawn(layer, s.draft)
	s.selected = id
	s.draft = nil
	return nil
}

func (s *Shell) cmdDraftReset(self *scope.View, args []string) *errs.Error {
	v := scope.New(document.New())
	d := domain.New("draft", v)
	s.draft = domain.NewRenderObject(0, d)
	return nil
}

func (s *Shell) cmdSelectedGet(self *scope.View, args []string) *errs.Error {
	if len(args) < 1 {
		return errs.Functional("selected-object get: expected <id>")
	}
	id64, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return errs.Functional("selected-object get: %q is not an id", args[0])
	}
	id := uint32(id64)
	if _, ok := s.entities[id]; !ok {
		return errs.Functional("selected-object get: no entity %d", id)
	}
	s.selected = id
	return nil
}

func (s *Shell) cmdSelectedParse(self *scope.View, args []string) *errs.Error {
	e, ok := s.entities[s.selected]
	if !ok {
		return errs.Functional("selected-object parse: no entity selected")
	}
	return s.root.Tree().ParseStr(e.View(), strings.Join(args, " "))
}

func (s *Shell) cmdTimeHaltOnce(self *scope.View, args []string) *errs.Error {
	s.haltOnce = true
	return nil
}

func (s *Shell) cmdTimeLock(self *scope.View, args []string) *errs.Error {
	s.clk.Lock()
	return nil
}

func (s *Shell) cmdTimeUnlock(self *scope.View, args []string) *errs.Error {
	s.clk.Unlock()
	return nil
}

func (s *Shell) cmdTimeMasterUnlock(self *scope.View, args []string) *errs.Error {
	s.clk.MasterUnlock()
	return nil
}

func (s *Shell) cmdTimeFixedDT(self *scope.View, args []string) *errs.Error {
	if len(args) < 1 {
		return errs.Functional("time fixed-dt: expected <ms>")
	}
	ms, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return errs.Functional("time fixed-dt: %q is not numeric", args[0])
	}
	s.clk.SetFixedDeltaTime(ms / 1000.0)
	return nil
}

func (s *Shell) cmdRulesetAddClock(self *scope.View, args []string) *errs.Error {
	if len(args) < 1 {
		return errs.Functional("ruleset add-clock: expected <interval_ms>")
	}
	ms, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return errs.Functional("ruleset add-clock: %q is not numeric", args[0])
	}
	s.clocks.Add(fmt.Sprintf("clock_%gms", ms), ms)
	return nil
}

func (s *Shell) cmdLogLevel(self *scope.View, args []string) *errs.Error {
	if len(args) < 1 {
		return errs.Functional("log-level: expected debug|info|warn|error")
	}
	level, ok := nbllog.ParseLevel(args[0])
	if !ok {
		return errs.Functional("log-level: unknown level %q", args[0])
	}
	s.logger.SetLevel(level)
	return nil
}

func (s *Shell) cmdSchemaStrict(self *scope.View, args []string) *errs.Error {
	if len(args) < 1 {
		return errs.Functional("schema strict: expected on|off")
	}
	s.cfg.StrictSchema = args[0] == "on"
	s.resources.SetSchema(s.schema, s.cfg.StrictSchema)
	return nil
}
