package decode

import (
	"reflect"
	"testing"

	"github.com/auxoncorp/barectf-parser/bitio"
	"github.com/auxoncorp/barectf-parser/schema"
)

func TestDecodeFieldUint(t *testing.T) {
	c := bitio.NewCursor([]byte{0x00, 0x00, 0x01, 0x00})
	ft := schema.FieldType{Kind: schema.KindUInt, BitWidth: 32, Alignment: 8, Order: schema.BigEndian}
	v, err := DecodeField(c, ft, nil, "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Uint != 0x100 {
		t.Fatalf("got %d, want 256", v.Uint)
	}
}

func TestDecodeFieldSintNegative(t *testing.T) {
	c := bitio.NewCursor([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	ft := schema.FieldType{Kind: schema.KindSInt, BitWidth: 32, Alignment: 8, Order: schema.BigEndian}
	v, err := DecodeField(c, ft, nil, "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Sint != -1 {
		t.Fatalf("got %d, want -1", v.Sint)
	}
}

func TestDecodeFieldEnumMultiLabel(t *testing.T) {
	c := bitio.NewCursor([]byte{15})
	ft := schema.FieldType{
		Kind: schema.KindEnum,
		Enum: schema.EnumFieldType{
			BitWidth: 8,
			Order:    schema.BigEndian,
			Ranges: []schema.EnumRange{
				{Label: "LOW", Lo: 0, Hi: 20},
				{Label: "MID", Lo: 10, Hi: 30},
				{Label: "HIGH", Lo: 100, Hi: 200},
			},
		},
	}
	v, err := DecodeField(c, ft, nil, "level")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.EnumRaw != 15 {
		t.Fatalf("got raw %d, want 15", v.EnumRaw)
	}
	want := []string{"LOW", "MID"}
	if !reflect.DeepEqual(v.EnumLabels, want) {
		t.Fatalf("got labels %v, want %v", v.EnumLabels, want)
	}
}

func TestDecodeFieldEnumNoMatch(t *testing.T) {
	c := bitio.NewCursor([]byte{99})
	ft := schema.FieldType{
		Kind: schema.KindEnum,
		Enum: schema.EnumFieldType{
			BitWidth: 8,
			Order:    schema.BigEndian,
			Ranges:   []schema.EnumRange{{Label: "LOW", Lo: 0, Hi: 10}},
		},
	}
	v, err := DecodeField(c, ft, nil, "level")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v.EnumLabels) != 0 {
		t.Fatalf("got labels %v, want none", v.EnumLabels)
	}
}

func TestDecodeStructOrderAndSiblingLookup(t *testing.T) {
	// "n" (uint8) followed by a dynamic array "vals" whose length is "n".
	strct := schema.StructFieldType(
		schema.StructMember{Name: "n", Type: schema.FieldType{Kind: schema.KindUInt, BitWidth: 8, Alignment: 8}},
		schema.StructMember{Name: "vals", Type: schema.FieldType{
			Kind:        schema.KindDynArray,
			LengthField: "n",
			ElementType: &schema.FieldType{Kind: schema.KindUInt, BitWidth: 8, Alignment: 8},
		}},
	)

	c := bitio.NewCursor([]byte{3, 10, 20, 30})
	v, err := DecodeStruct(c, strct, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vals, ok := v.Field("vals")
	if !ok {
		t.Fatal("missing vals field")
	}
	if len(vals.Elements) != 3 {
		t.Fatalf("got %d elements, want 3", len(vals.Elements))
	}
	for i, want := range []uint64{10, 20, 30} {
		if vals.Elements[i].Uint != want {
			t.Fatalf("element %d: got %d, want %d", i, vals.Elements[i].Uint, want)
		}
	}
}

func TestDecodeDynArrayDefaultLengthFieldConvention(t *testing.T) {
	strct := schema.StructFieldType(
		schema.StructMember{Name: "bar_length", Type: schema.FieldType{Kind: schema.KindUInt, BitWidth: 8, Alignment: 8}},
		schema.StructMember{Name: "bar", Type: schema.FieldType{
			Kind:        schema.KindDynArray,
			ElementType: &schema.FieldType{Kind: schema.KindUInt, BitWidth: 8, Alignment: 8},
		}},
	)

	c := bitio.NewCursor([]byte{2, 5, 6})
	v, err := DecodeStruct(c, strct, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bar, _ := v.Field("bar")
	if len(bar.Elements) != 2 {
		t.Fatalf("got %d elements, want 2", len(bar.Elements))
	}
}

func TestDecodeDynArrayUnknownLengthField(t *testing.T) {
	strct := schema.StructFieldType(
		schema.StructMember{Name: "bar", Type: schema.FieldType{
			Kind:        schema.KindDynArray,
			ElementType: &schema.FieldType{Kind: schema.KindUInt, BitWidth: 8, Alignment: 8},
		}},
	)

	c := bitio.NewCursor([]byte{1, 2, 3})
	_, err := DecodeStruct(c, strct, "")
	de, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if de.Kind != ErrUnknownLengthField {
		t.Fatalf("got kind %v, want ErrUnknownLengthField", de.Kind)
	}
}

func TestDecodeStaticArrayFixedCount(t *testing.T) {
	elem := schema.FieldType{Kind: schema.KindUInt, BitWidth: 16, Alignment: 8, Order: schema.BigEndian}
	ft := schema.FieldType{Kind: schema.KindStaticArray, ArrayLen: 2, ElementType: &elem}

	c := bitio.NewCursor([]byte{0x00, 0x01, 0x00, 0x02})
	v, err := DecodeField(c, ft, nil, "arr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v.Elements) != 2 || v.Elements[0].Uint != 1 || v.Elements[1].Uint != 2 {
		t.Fatalf("got %+v", v.Elements)
	}
}

func TestDecodeFieldStringOutOfRangeYieldsInsufficientData(t *testing.T) {
	c := bitio.NewCursor([]byte{'h', 'i'}) // no NUL terminator
	_, err := DecodeField(c, schema.FieldType{Kind: schema.KindString}, nil, "s")
	de, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if de.Kind != ErrInsufficientData {
		t.Fatalf("got kind %v, want ErrInsufficientData", de.Kind)
	}
}
