package ruleset

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lbastigk/nebulite/doccache"
	"github.com/lbastigk/nebulite/expression"
	"github.com/lbastigk/nebulite/internal/jsonc"
)

// Compile parses an entity's invokes[] array into a slice of Rulesets
// (spec 4.6). Each entry is one of:
//   - "::name"         — a static ruleset registry lookup
//   - a string path    — an external JSON ruleset, loaded via resources
//   - an inline object — a JSON ruleset literal
//
// resources may be nil iff no entry is an external path.
func Compile(ownerID uint32, invokes []any, resources *doccache.Cache) ([]*Ruleset, error) {
	out := make([]*Ruleset, 0, len(invokes))
	for i, raw := range invokes {
		rs, err := compileOne(ownerID, i, raw, resources)
		if err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, nil
}

func compileOne(ownerID uint32, index int, raw any, resources *doccache.Cache) (*Ruleset, error) {
	switch v := raw.(type) {
	case string:
		if strings.HasPrefix(v, "::") {
			return compileStatic(ownerID, index, v[2:])
		}
		return compileExternal(ownerID, index, v, resources)
	case map[string]any:
		return compileInline(ownerID, index, v)
	default:
		return nil, fmt.Errorf("ruleset: invoke entry %d has unsupported shape %T", index, raw)
	}
}

func compileStatic(ownerID uint32, index int, name string) (*Ruleset, error) {
	topic, fn, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("ruleset: static ruleset %q not registered", name)
	}
	return &Ruleset{OwnerID: ownerID, Index: index, Topic: topic, Static: fn}, nil
}

func compileExternal(ownerID uint32, index int, path string, resources *doccache.Cache) (*Ruleset, error) {
	if resources == nil {
		return nil, fmt.Errorf("ruleset: invoke entry %d references external path %q but no Document Cache was given", index, path)
	}
	raw, errv := resources.GetDocString(path)
	if !errv.OK() {
		return nil, fmt.Errorf("ruleset: loading %q: %s", path, errv.Error())
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(jsonc.StripComments(raw)), &obj); err != nil {
		return nil, fmt.Errorf("ruleset: parsing %q: %w", path, err)
	}
	return compileInline(ownerID, index, obj)
}

func compileInline(ownerID uint32, index int, obj map[string]any) (*Ruleset, error) {
	topic := "all"
	if t, ok := obj["topic"].(string); ok {
		topic = t
	}

	conditionSrc := buildConditionSource(obj["logicalArg"])
	condition, err := parseCondition(conditionSrc)
	if err != nil {
		return nil, fmt.Errorf("ruleset: invoke entry %d condition: %w", index, err)
	}

	assignments, err := compileAssignments(obj["exprs"])
	if err != nil {
		return nil, fmt.Errorf("ruleset: invoke entry %d: %w", index, err)
	}

	fc, _ := obj["functioncalls"].(map[string]any)
	callsSelf, err := compileCalls(fc["self"])
	if err != nil {
		return nil, fmt.Errorf("ruleset: invoke entry %d functioncalls.self: %w", index, err)
	}
	callsOther, err := compileCalls(fc["other"])
	if err != nil {
		return nil, fmt.Errorf("ruleset: invoke entry %d functioncalls.other: %w", index, err)
	}
	callsGlobal, err := compileCalls(fc["global"])
	if err != nil {
		return nil, fmt.Errorf("ruleset: invoke entry %d functioncalls.global: %w", index, err)
	}

	return &Ruleset{
		OwnerID:      ownerID,
		Index:        index,
		Topic:        topic,
		conditionSrc: conditionSrc,
		Condition:    condition,
		Assignments:  assignments,
		CallsSelf:    callsSelf,
		CallsOther:   callsOther,
		CallsGlobal:  callsGlobal,
	}, nil
}

// buildConditionSource resolves the logicalArg rule: an array is
// AND-joined with "*" (logic values are 0/1, so multiplication models
// AND); a scalar is used directly. Either form is wrapped in `$(...)`
// unless it is already an Eval or the literal short-circuit condition
// "1".
func buildConditionSource(logicalArg any) string {
	switch v := logicalArg.(type) {
	case nil:
		return "1"
	case []any:
		parts := make([]string, 0, len(v))
		for _, e := range v {
			parts = append(parts, fmt.Sprintf("%v", e))
		}
		return wrapEval(strings.Join(parts, " * "))
	default:
		return wrapEval(fmt.Sprintf("%v", v))
	}
}

func wrapEval(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "1" {
		return "1"
	}
	if strings.HasPrefix(trimmed, "$") {
		return trimmed
	}
	return "$(" + trimmed + ")"
}

func parseCondition(src string) (*expression.Expression, error) {
	if src == "1" {
		return nil, nil
	}
	return expression.Parse(src)
}
