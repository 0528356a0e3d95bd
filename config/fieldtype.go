package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/auxoncorp/barectf-parser/schema"
)

var shorthandWidths = map[string]int{
	"uint8": 8, "uint16": 16, "uint32": 32, "uint64": 64,
	"int8": 8, "int16": 16, "int32": 32, "int64": 64,
	"sint8": 8, "sint16": 16, "sint32": 32, "sint64": 64,
}

// fieldCtx carries the state field-type parsing needs at every recursion
// depth: the trace's native byte order (a field's default unless overridden)
// and the $field-type-aliases resolved from applied $include fragments.
type fieldCtx struct {
	nativeOrder schema.ByteOrder
	aliases     map[string]interface{}
}

// parseFieldType parses one field-type entry, in either shorthand string form
// ("uint32", "string", or an alias name), or long map form ({class: ..., ...}).
func parseFieldType(path string, raw interface{}, ctx fieldCtx) (schema.FieldType, error) {
	if s, ok := raw.(string); ok {
		if alias, ok := ctx.aliases[s]; ok {
			return parseFieldType(path, alias, ctx)
		}
		return parseShorthand(path, s, ctx.nativeOrder)
	}

	m, ok := asMap(raw)
	if !ok {
		return schema.FieldType{}, errAt(path, ErrBadFieldSpec, fmt.Errorf("field spec must be a string or a map"))
	}

	class, _ := m["class"].(string)
	switch class {
	case "int", "uint":
		return parseIntSpec(path, m, class == "int", ctx.nativeOrder)
	case "float":
		return parseFloatSpec(path, m, ctx.nativeOrder)
	case "string":
		return schema.FieldType{Kind: schema.KindString, Alignment: 8}, nil
	case "enum":
		return parseEnumSpec(path, m, ctx.nativeOrder)
	case "static-array":
		return parseStaticArraySpec(path, m, ctx)
	case "dynamic-array":
		return parseDynamicArraySpec(path, m, ctx)
	case "struct":
		return parseStructSpec(path, m, ctx)
	case "":
		return schema.FieldType{}, errAt(path, ErrBadFieldSpec, fmt.Errorf("field spec is missing a class"))
	default:
		return schema.FieldType{}, errAt(path, ErrUnknownClass, fmt.Errorf("unknown field class %q", class))
	}
}

func parseShorthand(path, s string, nativeOrder schema.ByteOrder) (schema.FieldType, error) {
	switch s {
	case "string":
		return schema.FieldType{Kind: schema.KindString, Alignment: 8}, nil
	case "float32":
		return schema.FieldType{Kind: schema.KindF32, Alignment: 8, Order: nativeOrder}, nil
	case "float64":
		return schema.FieldType{Kind: schema.KindF64, Alignment: 8, Order: nativeOrder}, nil
	}
	width, ok := shorthandWidths[s]
	if !ok {
		return schema.FieldType{}, errAt(path, ErrBadFieldSpec, fmt.Errorf("unrecognized shorthand type %q", s))
	}
	kind := schema.KindUInt
	if strings.HasPrefix(s, "int") || strings.HasPrefix(s, "sint") {
		kind = schema.KindSInt
	}
	return schema.FieldType{Kind: kind, BitWidth: width, Alignment: 8, Order: nativeOrder}, nil
}

func parseIntSpec(path string, m map[string]interface{}, signed bool, nativeOrder schema.ByteOrder) (schema.FieldType, error) {
	size, ok := asUint64(m["size"])
	if !ok || size == 0 || size > 64 {
		return schema.FieldType{}, errAt(path+".size", ErrBadFieldSpec, fmt.Errorf("integer size must be 1-64 bits"))
	}
	if s, ok := m["signed"].(bool); ok {
		signed = s
	}
	align := 8
	if a, ok := asUint64(m["align"]); ok {
		align = int(a)
	}
	order := nativeOrder
	if s, ok := m["byte-order"].(string); ok {
		o, err := parseByteOrder(s)
		if err != nil {
			return schema.FieldType{}, errAt(path+".byte-order", ErrBadFieldSpec, err)
		}
		order = o
	}
	kind := schema.KindUInt
	if signed {
		kind = schema.KindSInt
	}
	return schema.FieldType{Kind: kind, BitWidth: int(size), Alignment: align, Order: order}, nil
}

func parseFloatSpec(path string, m map[string]interface{}, nativeOrder schema.ByteOrder) (schema.FieldType, error) {
	size, ok := asUint64(m["size"])
	if !ok {
		return schema.FieldType{}, errAt(path+".size", ErrBadFieldSpec, fmt.Errorf("float size is required"))
	}
	order := nativeOrder
	if s, ok := m["byte-order"].(string); ok {
		o, err := parseByteOrder(s)
		if err != nil {
			return schema.FieldType{}, errAt(path+".byte-order", ErrBadFieldSpec, err)
		}
		order = o
	}
	switch size {
	case 32:
		return schema.FieldType{Kind: schema.KindF32, Alignment: 8, Order: order}, nil
	case 64:
		return schema.FieldType{Kind: schema.KindF64, Alignment: 8, Order: order}, nil
	default:
		return schema.FieldType{}, errAt(path+".size", ErrBadFieldSpec, fmt.Errorf("float size must be 32 or 64, got %d", size))
	}
}

// parseEnumSpec parses an enum field, in either its flat form
// (mappings: {label: value}) or its range form (mappings: {label: [lo, hi]}).
// Both are normalized to a schema.EnumRange list sorted by label name, since a
// generic map carries no declaration order.
func parseEnumSpec(path string, m map[string]interface{}, nativeOrder schema.ByteOrder) (schema.FieldType, error) {
	size, ok := asUint64(m["size"])
	if !ok || size == 0 || size > 64 {
		return schema.FieldType{}, errAt(path+".size", ErrBadFieldSpec, fmt.Errorf("enum size must be 1-64 bits"))
	}
	signed, _ := m["signed"].(bool)
	order := nativeOrder
	if s, ok := m["byte-order"].(string); ok {
		o, err := parseByteOrder(s)
		if err != nil {
			return schema.FieldType{}, errAt(path+".byte-order", ErrBadFieldSpec, err)
		}
		order = o
	}

	mappingsRaw, ok := asMap(m["mappings"])
	if !ok {
		return schema.FieldType{}, errAt(path+".mappings", ErrBadFieldSpec, fmt.Errorf("enum mappings must be a map"))
	}
	labels := make([]string, 0, len(mappingsRaw))
	for label := range mappingsRaw {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	ranges := make([]schema.EnumRange, 0, len(labels))
	for _, label := range labels {
		lo, hi, err := parseEnumMapping(mappingsRaw[label])
		if err != nil {
			return schema.FieldType{}, errAt(path+".mappings."+label, ErrBadFieldSpec, err)
		}
		ranges = append(ranges, schema.EnumRange{Label: label, Lo: lo, Hi: hi})
	}

	return schema.FieldType{
		Kind: schema.KindEnum,
		Enum: schema.EnumFieldType{BitWidth: int(size), Signed: signed, Order: order, Ranges: ranges},
	}, nil
}

func parseEnumMapping(raw interface{}) (int64, int64, error) {
	if list, ok := raw.([]interface{}); ok {
		if len(list) != 2 {
			return 0, 0, fmt.Errorf("range mapping must have exactly 2 elements")
		}
		lo, ok1 := asInt64(list[0])
		hi, ok2 := asInt64(list[1])
		if !ok1 || !ok2 {
			return 0, 0, fmt.Errorf("range mapping bounds must be integers")
		}
		return lo, hi, nil
	}
	v, ok := asInt64(raw)
	if !ok {
		return 0, 0, fmt.Errorf("mapping value must be an integer or a [lo, hi] range")
	}
	return v, v, nil
}

func parseStaticArraySpec(path string, m map[string]interface{}, ctx fieldCtx) (schema.FieldType, error) {
	length, ok := asUint64(m["length"])
	if !ok {
		return schema.FieldType{}, errAt(path+".length", ErrBadFieldSpec, fmt.Errorf("static array requires a length"))
	}
	elemRaw, ok := m["element-type"]
	if !ok {
		return schema.FieldType{}, errAt(path+".element-type", ErrBadFieldSpec, fmt.Errorf("static array requires element-type"))
	}
	elem, err := parseFieldType(path+".element-type", elemRaw, ctx)
	if err != nil {
		return schema.FieldType{}, err
	}
	if elem.Kind == schema.KindStaticArray || elem.Kind == schema.KindDynArray {
		return schema.FieldType{}, errAt(path+".element-type", ErrBadFieldSpec, fmt.Errorf("nested arrays are not supported"))
	}
	return schema.FieldType{Kind: schema.KindStaticArray, ArrayLen: int(length), ElementType: &elem}, nil
}

func parseDynamicArraySpec(path string, m map[string]interface{}, ctx fieldCtx) (schema.FieldType, error) {
	elemRaw, ok := m["element-type"]
	if !ok {
		return schema.FieldType{}, errAt(path+".element-type", ErrBadFieldSpec, fmt.Errorf("dynamic array requires element-type"))
	}
	elem, err := parseFieldType(path+".element-type", elemRaw, ctx)
	if err != nil {
		return schema.FieldType{}, err
	}
	if elem.Kind == schema.KindStaticArray || elem.Kind == schema.KindDynArray {
		return schema.FieldType{}, errAt(path+".element-type", ErrBadFieldSpec, fmt.Errorf("nested arrays are not supported"))
	}
	lengthField, _ := m["length-field"].(string)
	return schema.FieldType{Kind: schema.KindDynArray, LengthField: lengthField, ElementType: &elem}, nil
}

func parseStructSpec(path string, m map[string]interface{}, ctx fieldCtx) (schema.FieldType, error) {
	membersRaw, ok := m["members"].([]interface{})
	if !ok {
		return schema.FieldType{}, errAt(path+".members", ErrBadFieldSpec, fmt.Errorf("struct requires an ordered members list"))
	}
	return parseMembers(path, membersRaw, ctx)
}

// parseMembers compiles a members list into an ordered schema.StructFieldType.
// Members are declared as a list of {name, type} entries rather than a map:
// a plain map[string]interface{} - what any generic YAML/JSON unmarshal
// produces - does not preserve key order, and decode order matters here (a
// dynamic array's length-field lookup requires its sibling to have already
// been decoded).
func parseMembers(path string, membersRaw []interface{}, ctx fieldCtx) (schema.FieldType, error) {
	members := make([]schema.StructMember, 0, len(membersRaw))
	seen := map[string]bool{}
	for i, raw := range membersRaw {
		entry, ok := asMap(raw)
		if !ok {
			return schema.FieldType{}, errAt(fmt.Sprintf("%s.members[%d]", path, i), ErrBadFieldSpec, fmt.Errorf("member entry must be a map"))
		}
		name, ok := entry["name"].(string)
		if !ok || name == "" {
			return schema.FieldType{}, errAt(fmt.Sprintf("%s.members[%d]", path, i), ErrBadFieldSpec, fmt.Errorf("member entry requires a name"))
		}
		if seen[name] {
			return schema.FieldType{}, errAt(path+"."+name, ErrDuplicateName, fmt.Errorf("duplicate member name %q", name))
		}
		seen[name] = true

		typeRaw, ok := entry["type"]
		if !ok {
			return schema.FieldType{}, errAt(path+"."+name, ErrBadFieldSpec, fmt.Errorf("member entry requires a type"))
		}
		ft, err := parseFieldType(path+"."+name, typeRaw, ctx)
		if err != nil {
			return schema.FieldType{}, err
		}
		members = append(members, schema.StructMember{Name: name, Type: ft})
	}
	return schema.StructFieldType(members...), nil
}

// parseOptionalUintFeature parses one $features entry that barectf's original
// effective-configuration format types as "false or an unsigned integer field
// type" (FeaturesUnsignedIntegerFieldType in original_source/src/config.rs):
// absent or explicit `false` disables the feature, anything else must parse
// as an unsigned integer field-type descriptor. width is meaningless when
// enabled is false.
func parseOptionalUintFeature(path string, raw interface{}, ctx fieldCtx) (width int, enabled bool, err error) {
	if raw == nil {
		return 0, false, nil
	}
	if b, isBool := raw.(bool); isBool {
		if b {
			return 0, false, errAt(path, ErrBadFieldSpec, fmt.Errorf("%s must be false or a field-type descriptor, not true", path))
		}
		return 0, false, nil
	}
	ft, err := parseFieldType(path, raw, ctx)
	if err != nil {
		return 0, false, err
	}
	if ft.Kind != schema.KindUInt {
		return 0, false, errAt(path, ErrBadFieldSpec, fmt.Errorf("%s must describe an unsigned integer type", path))
	}
	return ft.BitWidth, true, nil
}

// parseMandatoryUintFeature parses a $features entry barectf's original format
// types as an unconditional unsigned integer field type (never false) -
// magic/UUID aside, every trace's data-stream-type-id-field-type and every
// stream's event-record.type-id-field-type field must be present, since a
// packet header and an event record always carry these fields.
func parseMandatoryUintFeature(path string, raw interface{}, ctx fieldCtx) (int, error) {
	if raw == nil {
		return 0, errAt(path, ErrMissingFeature, fmt.Errorf("%s is required", path))
	}
	if _, isBool := raw.(bool); isBool {
		return 0, errAt(path, ErrMissingFeature, fmt.Errorf("%s cannot be disabled", path))
	}
	ft, err := parseFieldType(path, raw, ctx)
	if err != nil {
		return 0, err
	}
	if ft.Kind != schema.KindUInt {
		return 0, errAt(path, ErrBadFieldSpec, fmt.Errorf("%s must describe an unsigned integer type", path))
	}
	return ft.BitWidth, nil
}

// hasCyclicStructRef reports whether ft (or any of its descendants) contains a
// struct member whose type is, directly or transitively, the same struct
// again - a struct is identified by the backing array of its Members slice,
// so distinct nested structs never match each other.
func hasCyclicStructRef(name string, ft schema.FieldType, seen map[string]bool) bool {
	switch ft.Kind {
	case schema.KindStruct:
		key := fmt.Sprintf("%s@%p", name, ft.Members)
		if seen[key] {
			return true
		}
		seen[key] = true
		for _, member := range ft.Members {
			if hasCyclicStructRef(name, member.Type, seen) {
				return true
			}
		}
		delete(seen, key)
	case schema.KindStaticArray, schema.KindDynArray:
		if ft.ElementType != nil {
			return hasCyclicStructRef(name, *ft.ElementType, seen)
		}
	}
	return false
}
