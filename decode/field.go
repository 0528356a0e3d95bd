package decode

import (
	"fmt"

	"github.com/auxoncorp/barectf-parser/bitio"
	"github.com/auxoncorp/barectf-parser/schema"
)

// DecodeField decodes one field of type ft from c, resolving any dynamic
// array length reference against siblings - the struct member values already
// decoded earlier in the same enclosing struct. path identifies the field for
// error reporting.
func DecodeField(c *bitio.Cursor, ft schema.FieldType, siblings map[string]schema.Value, path string) (schema.Value, error) {
	switch ft.Kind {
	case schema.KindUInt:
		return decodeUint(c, ft, path)
	case schema.KindSInt:
		return decodeSint(c, ft, path)
	case schema.KindF32:
		return decodeF32(c, ft, path)
	case schema.KindF64:
		return decodeF64(c, ft, path)
	case schema.KindString:
		return decodeString(c, path)
	case schema.KindEnum:
		return decodeEnum(c, ft, path)
	case schema.KindStaticArray:
		return decodeStaticArray(c, ft, siblings, path)
	case schema.KindDynArray:
		return decodeDynArray(c, ft, siblings, path)
	case schema.KindStruct:
		return DecodeStruct(c, ft, path)
	default:
		return schema.Value{}, errAt(path, ErrBitsOutOfRange, fmt.Errorf("unknown field kind %q", ft.Kind))
	}
}

func toBitOrder(o schema.ByteOrder) bitio.ByteOrder {
	if o == schema.BigEndian {
		return bitio.BigEndian
	}
	return bitio.LittleEndian
}

func decodeUint(c *bitio.Cursor, ft schema.FieldType, path string) (schema.Value, error) {
	if err := c.Align(alignOrDefault(ft.Alignment)); err != nil {
		return schema.Value{}, wrapPath(errAt("", ErrBitsOutOfRange, err), path)
	}
	v, err := c.ReadUint(ft.BitWidth, toBitOrder(ft.Order))
	if err != nil {
		return schema.Value{}, wrapPath(eofOrRange(err), path)
	}
	return schema.Value{Kind: schema.KindUInt, Uint: v}, nil
}

func decodeSint(c *bitio.Cursor, ft schema.FieldType, path string) (schema.Value, error) {
	if err := c.Align(alignOrDefault(ft.Alignment)); err != nil {
		return schema.Value{}, wrapPath(errAt("", ErrBitsOutOfRange, err), path)
	}
	v, err := c.ReadSint(ft.BitWidth, toBitOrder(ft.Order))
	if err != nil {
		return schema.Value{}, wrapPath(eofOrRange(err), path)
	}
	return schema.Value{Kind: schema.KindSInt, Sint: v}, nil
}

func decodeF32(c *bitio.Cursor, ft schema.FieldType, path string) (schema.Value, error) {
	if err := c.Align(8); err != nil {
		return schema.Value{}, wrapPath(errAt("", ErrBitsOutOfRange, err), path)
	}
	v, err := c.ReadF32(toBitOrder(ft.Order))
	if err != nil {
		return schema.Value{}, wrapPath(eofOrRange(err), path)
	}
	return schema.Value{Kind: schema.KindF32, F32: v}, nil
}

func decodeF64(c *bitio.Cursor, ft schema.FieldType, path string) (schema.Value, error) {
	if err := c.Align(8); err != nil {
		return schema.Value{}, wrapPath(errAt("", ErrBitsOutOfRange, err), path)
	}
	v, err := c.ReadF64(toBitOrder(ft.Order))
	if err != nil {
		return schema.Value{}, wrapPath(eofOrRange(err), path)
	}
	return schema.Value{Kind: schema.KindF64, F64: v}, nil
}

func decodeString(c *bitio.Cursor, path string) (schema.Value, error) {
	if err := c.Align(8); err != nil {
		return schema.Value{}, wrapPath(errAt("", ErrBitsOutOfRange, err), path)
	}
	s, err := c.ReadCString()
	if err != nil {
		return schema.Value{}, wrapPath(eofOrRange(err), path)
	}
	return schema.Value{Kind: schema.KindString, Str: s}, nil
}

// decodeEnum reads the enum's underlying integer and returns every label whose
// configured range contains it - zero, one, or several labels, per the
// multi-label matching semantics this decoder implements.
func decodeEnum(c *bitio.Cursor, ft schema.FieldType, path string) (schema.Value, error) {
	base := ft.Enum.Base()
	raw, err := DecodeField(c, base, nil, path)
	if err != nil {
		return schema.Value{}, err
	}
	rawInt, _ := raw.AsInt()

	var labels []string
	for _, r := range ft.Enum.Ranges {
		if r.Contains(rawInt) {
			labels = append(labels, r.Label)
		}
	}
	return schema.Value{Kind: schema.KindEnum, EnumRaw: rawInt, EnumLabels: labels}, nil
}

func decodeStaticArray(c *bitio.Cursor, ft schema.FieldType, siblings map[string]schema.Value, path string) (schema.Value, error) {
	elems := make([]schema.Value, 0, ft.ArrayLen)
	for i := 0; i < ft.ArrayLen; i++ {
		v, err := DecodeField(c, *ft.ElementType, siblings, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return schema.Value{}, err
		}
		elems = append(elems, v)
	}
	return schema.Value{Kind: schema.KindStaticArray, Elements: elems}, nil
}

// decodeDynArray resolves its element count from a previously decoded sibling
// integer field, named explicitly by LengthField or, when unset, by the
// "<name>_length" convention barectf's own code generator uses.
func decodeDynArray(c *bitio.Cursor, ft schema.FieldType, siblings map[string]schema.Value, path string) (schema.Value, error) {
	fieldName := lastPathSegment(path)
	lengthField := ft.LengthField
	if lengthField == "" {
		lengthField = fieldName + "_length"
	}

	lenValue, ok := siblings[lengthField]
	if !ok {
		return schema.Value{}, errAt(path, ErrUnknownLengthField, fmt.Errorf("length field %q not found among earlier members", lengthField))
	}
	length, ok := lenValue.AsInt()
	if !ok {
		return schema.Value{}, errAt(path, ErrLengthFieldNotInt, fmt.Errorf("length field %q is not an integer", lengthField))
	}
	if length < 0 {
		return schema.Value{}, errAt(path, ErrLengthFieldNotInt, fmt.Errorf("length field %q is negative", lengthField))
	}

	elems := make([]schema.Value, 0, length)
	for i := int64(0); i < length; i++ {
		v, err := DecodeField(c, *ft.ElementType, siblings, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return schema.Value{}, err
		}
		elems = append(elems, v)
	}
	return schema.Value{Kind: schema.KindDynArray, Elements: elems}, nil
}

// DecodeStruct decodes every member of ft in declaration order, threading
// already-decoded members through as siblings so a later dynamic array can
// reference an earlier field's value.
func DecodeStruct(c *bitio.Cursor, ft schema.FieldType, path string) (schema.Value, error) {
	names := make([]string, 0, len(ft.Members))
	values := make(map[string]schema.Value, len(ft.Members))

	for _, member := range ft.Members {
		memberPath := member.Name
		if path != "" {
			memberPath = path + "." + member.Name
		}
		v, err := DecodeField(c, member.Type, values, memberPath)
		if err != nil {
			return schema.Value{}, err
		}
		names = append(names, member.Name)
		values[member.Name] = v
	}
	return schema.StructValue(names, values), nil
}

func alignOrDefault(a int) int {
	if a == 0 {
		return 8
	}
	return a
}

func lastPathSegment(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
	}
	return path
}

func eofOrRange(err error) *Error {
	if err == bitio.ErrOutOfRange {
		return errAt("", ErrInsufficientData, err)
	}
	return errAt("", ErrBitsOutOfRange, err)
}
