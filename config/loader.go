// Package config compiles an already-parsed effective-configuration document
// (a generic interface{} tree - text/YAML parsing is a caller concern) into an
// immutable schema.Schema. It mirrors the role protolite's registry package
// plays for .proto trees, but the tree shape and every field rule here are
// CTF/barectf's, not protobuf's.
package config

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/auxoncorp/barectf-parser/schema"
)

// IncludeResolver resolves a named $include vocabulary entry (e.g. "stdint",
// "stdreal", "stdmisc", "log-level") to the document fragment it stands for.
type IncludeResolver interface {
	Resolve(name string) (map[string]interface{}, error)
}

// Compile turns doc into a compiled schema.Schema, or returns a *Error
// describing the first problem found.
func Compile(doc interface{}, opts ...CompileOption) (*schema.Schema, error) {
	c := &compiler{includes: StandardLibrary()}
	for _, opt := range opts {
		opt(c)
	}

	root, ok := asMap(doc)
	if !ok {
		return nil, errAt("", ErrBadFieldSpec, fmt.Errorf("document root must be a map"))
	}

	root, err := c.applyIncludes(root)
	if err != nil {
		return nil, err
	}

	aliases := aliasesFromRoot(root)

	trace, err := c.compileTrace(root, aliases)
	if err != nil {
		return nil, err
	}

	streamsRaw, ok := asMap(root["streams"])
	if !ok {
		return nil, errAt("streams", ErrBadFieldSpec, fmt.Errorf("missing or malformed streams map"))
	}

	names := make([]string, 0, len(streamsRaw))
	for name := range streamsRaw {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx := fieldCtx{nativeOrder: trace.NativeOrder, aliases: aliases}

	streams := make([]*schema.DataStreamType, 0, len(names))
	for id, name := range names {
		st, err := c.compileStream(name, id, streamsRaw[name], ctx)
		if err != nil {
			return nil, err
		}
		streams = append(streams, st)
	}

	return schema.NewSchema(trace, streams), nil
}

// CompileOption customizes a single Compile call.
type CompileOption func(*compiler)

// WithIncludeResolver overrides the default StandardLibrary resolver used to
// resolve $include entries.
func WithIncludeResolver(r IncludeResolver) CompileOption {
	return func(c *compiler) { c.includes = r }
}

type compiler struct {
	includes IncludeResolver
}

// applyIncludes merges every fragment named in $include, in order, underneath
// the document's own definitions - a document-local definition always wins
// over an included one, and later includes win over earlier ones. Most keys
// are replaced wholesale on conflict, but $field-type-aliases is deep-merged:
// each vocabulary fragment (stdint, stdreal, stdmisc, log-level, ...)
// contributes its own aliases, and a shallow merge would let the last
// fragment's $field-type-aliases map silently wipe out every earlier one's.
func (c *compiler) applyIncludes(root map[string]interface{}) (map[string]interface{}, error) {
	rawList, ok := root["$include"]
	if !ok {
		return root, nil
	}
	list, ok := rawList.([]interface{})
	if !ok {
		return nil, errAt("$include", ErrBadFieldSpec, fmt.Errorf("$include must be a list"))
	}

	merged := map[string]interface{}{}
	mergedAliases := map[string]interface{}{}
	for _, item := range list {
		name, ok := item.(string)
		if !ok {
			return nil, errAt("$include", ErrBadFieldSpec, fmt.Errorf("$include entries must be strings"))
		}
		frag, err := c.includes.Resolve(name)
		if err != nil {
			return nil, errAt("$include."+name, ErrIncludeNotFound, err)
		}
		for k, v := range frag {
			if k == "$field-type-aliases" {
				if aliases, ok := asMap(v); ok {
					for aliasName, aliasFt := range aliases {
						mergedAliases[aliasName] = aliasFt
					}
				}
				continue
			}
			merged[k] = v
		}
	}
	if len(mergedAliases) > 0 {
		merged["$field-type-aliases"] = mergedAliases
	}
	for k, v := range root {
		if k == "$include" {
			continue
		}
		if k == "$field-type-aliases" {
			if aliases, ok := asMap(v); ok {
				for aliasName, aliasFt := range aliases {
					mergedAliases[aliasName] = aliasFt
				}
				merged["$field-type-aliases"] = mergedAliases
			}
			continue
		}
		merged[k] = v
	}
	return merged, nil
}

var traceFeatureKeys = map[string]bool{
	"magic-field-type":               true,
	"uuid-field-type":                true,
	"data-stream-type-id-field-type": true,
}

func (c *compiler) compileTrace(root map[string]interface{}, aliases map[string]interface{}) (schema.Trace, error) {
	traceRaw, ok := asMap(root["trace"])
	if !ok {
		return schema.Trace{}, errAt("trace", ErrBadFieldSpec, fmt.Errorf("missing trace block"))
	}

	name, _ := traceRaw["name"].(string)

	var traceUUID uuid.UUID
	if s, ok := traceRaw["uuid"].(string); ok && s != "" {
		u, err := uuid.Parse(s)
		if err != nil {
			return schema.Trace{}, errAt("trace.uuid", ErrBadFieldSpec, err)
		}
		traceUUID = u
	}

	order := schema.LittleEndian
	if s, ok := traceRaw["byte-order"].(string); ok {
		o, err := parseByteOrder(s)
		if err != nil {
			return schema.Trace{}, errAt("trace.byte-order", ErrBadFieldSpec, err)
		}
		order = o
	}

	ctx := fieldCtx{nativeOrder: order, aliases: aliases}

	trace := schema.Trace{Name: name, UUID: traceUUID, NativeOrder: order}

	featuresRaw, ok := asMap(traceRaw["$features"])
	if !ok {
		return schema.Trace{}, errAt("trace.$features", ErrMissingFeature, fmt.Errorf("trace requires a $features map"))
	}
	if err := checkKnownKeys("trace.$features", featuresRaw, traceFeatureKeys); err != nil {
		return schema.Trace{}, err
	}

	magicWidth, hasMagic, err := parseOptionalUintFeature("trace.$features.magic-field-type", featuresRaw["magic-field-type"], ctx)
	if err != nil {
		return schema.Trace{}, err
	}
	if hasMagic && magicWidth != 32 {
		return schema.Trace{}, errAt("trace.$features.magic-field-type", ErrBadFieldSpec, fmt.Errorf("magic-field-type must be 32 bits, got %d", magicWidth))
	}
	trace.HasMagic = hasMagic
	trace.MagicWidth = magicWidth

	if b, ok := featuresRaw["uuid-field-type"].(bool); ok {
		trace.HasUUID = b
	} else if featuresRaw["uuid-field-type"] != nil {
		return schema.Trace{}, errAt("trace.$features.uuid-field-type", ErrBadFieldSpec, fmt.Errorf("uuid-field-type must be a boolean"))
	}

	streamIDWidth, err := parseMandatoryUintFeature("trace.$features.data-stream-type-id-field-type", featuresRaw["data-stream-type-id-field-type"], ctx)
	if err != nil {
		return schema.Trace{}, err
	}
	trace.StreamIDWidth = streamIDWidth

	clocks := map[string]schema.ClockType{}
	if clocksRaw, ok := asMap(root["clock-types"]); ok {
		for clockName, raw := range clocksRaw {
			ct, err := compileClockType(clockName, raw)
			if err != nil {
				return schema.Trace{}, err
			}
			clocks[clockName] = ct
		}
	}
	trace.Clocks = clocks

	return trace, nil
}

// aliasesFromRoot extracts the $field-type-aliases map contributed by any
// applied $include fragments (or defined directly in the document), used to
// resolve alias names encountered where a shorthand field-type string is
// expected.
func aliasesFromRoot(root map[string]interface{}) map[string]interface{} {
	aliases, ok := asMap(root["$field-type-aliases"])
	if !ok {
		return map[string]interface{}{}
	}
	return aliases
}

func compileClockType(name string, raw interface{}) (schema.ClockType, error) {
	m, ok := asMap(raw)
	if !ok {
		return schema.ClockType{}, errAt("clock-types."+name, ErrBadFieldSpec, fmt.Errorf("clock type must be a map"))
	}
	ct := schema.ClockType{Name: name}
	if freq, ok := asUint64(m["frequency"]); ok {
		ct.FrequencyHz = freq
	}
	if prec, ok := asUint64(m["precision"]); ok {
		ct.PrecisionCycles = prec
	}
	if s, ok := m["uuid"].(string); ok && s != "" {
		u, err := uuid.Parse(s)
		if err != nil {
			return schema.ClockType{}, errAt("clock-types."+name+".uuid", ErrBadFieldSpec, err)
		}
		ct.UUID = u
	}
	ct.Description, _ = m["description"].(string)
	ct.CType, _ = m["c-type"].(string)
	return ct, nil
}
