// Package schema holds the compiled, immutable data model produced by config.Compile
// and consumed by decode.DecodePacket. Nothing in this package parses documents or
// reads bytes - it is a plain data model, the same role protolite's own schema
// package plays for protobuf descriptors.
package schema

import "github.com/google/uuid"

// ByteOrder selects how multi-byte primitive fields are read off the wire.
type ByteOrder string

const (
	LittleEndian ByteOrder = "le"
	BigEndian    ByteOrder = "be"
)

// Kind discriminates the field type sum. Dispatch on Kind, never on the Go type of
// FieldType itself - FieldType is always the same struct, with only the fields for
// its Kind populated.
type Kind string

const (
	KindUInt        Kind = "uint"
	KindSInt        Kind = "sint"
	KindF32         Kind = "f32"
	KindF64         Kind = "f64"
	KindString      Kind = "string"
	KindEnum        Kind = "enum"
	KindStaticArray Kind = "static_array"
	KindDynArray    Kind = "dyn_array"
	KindStruct      Kind = "struct"
)

// FieldType is a tagged union of every field type barectf effective configurations
// can describe. Kind selects which of the remaining fields are meaningful.
type FieldType struct {
	Kind Kind

	// UInt / SInt
	BitWidth  int
	Alignment int
	Order     ByteOrder

	// Enum: underlying integer representation plus the label ranges.
	Enum EnumFieldType

	// StaticArray
	ArrayLen     int
	ElementType  *FieldType

	// DynamicArray
	LengthField string

	// Struct
	Members []StructMember
}

// StructMember is one named, ordered field of a Struct field type.
type StructMember struct {
	Name string
	Type FieldType
}

// EnumRange is one label mapped to an inclusive range of the enum's underlying
// integer value. A single-point mapping ("A": 0) is represented as {Lo: 0, Hi: 0}.
type EnumRange struct {
	Label string
	Lo    int64
	Hi    int64
}

// Contains reports whether v falls within the inclusive range [Lo, Hi].
func (r EnumRange) Contains(v int64) bool {
	return v >= r.Lo && v <= r.Hi
}

// EnumFieldType describes an enumeration's underlying integer encoding and its
// label ranges. Ranges are matched in slice order (config.Compile sorts them by
// label) and, per the multi-label
// semantics this decoder implements, every matching label is returned - not just
// the first.
type EnumFieldType struct {
	BitWidth int
	Signed   bool
	Order    ByteOrder
	Ranges   []EnumRange
}

// Base returns the plain integer FieldType underlying an enum, used by the field
// decoder to read the raw value before range-matching it.
func (e EnumFieldType) Base() FieldType {
	kind := KindUInt
	if e.Signed {
		kind = KindSInt
	}
	return FieldType{Kind: kind, BitWidth: e.BitWidth, Alignment: 8, Order: e.Order}
}

// StructFieldType is a convenience constructor for a FieldType of Kind Struct.
func StructFieldType(members ...StructMember) FieldType {
	return FieldType{Kind: KindStruct, Members: members}
}

// ClockType describes a trace clock's identity and rate. It is kept on the
// compiled Trace for callers and never interpreted: it is not attached to
// decoded packets, and no rollover/offset reconstruction is performed here.
type ClockType struct {
	Name        string
	FrequencyHz uint64
	PrecisionCycles uint64
	UUID        uuid.UUID
	Description string
	CType       string
}

// Trace holds the trace-wide identity, native encoding, and packet-header
// layout shared by every stream. The header's shape (magic/uuid presence,
// stream-id width) is a trace type feature in barectf's effective
// configuration - a single trace never mixes header layouts across streams -
// so it lives here rather than per-stream.
type Trace struct {
	Name        string
	UUID        uuid.UUID
	NativeOrder ByteOrder
	Clocks      map[string]ClockType

	HasMagic   bool
	MagicWidth int // bit width of the packet header's magic field, when HasMagic

	HasUUID bool // packet header carries the trace UUID (always 128 bits)

	// StreamIDWidth is the bit width of the header's stream-id field, lowered
	// from the trace type's data-stream-type-id-field-type feature.
	StreamIDWidth int
}

// DataStreamType is one named, numbered CTF data stream description. ID is never
// declared in a config document - it is assigned by Compile from the alphabetical
// order of the stream names.
type DataStreamType struct {
	Name         string
	ID           int
	DefaultClock string

	// EventIDWidth is the bit width of each event's leading event-id field,
	// lowered from this stream's event-record.type-id-field-type feature.
	EventIDWidth int

	// HasEventTS/EventTSWidth describe each event's optional timestamp field,
	// read immediately after the event-id field, lowered from this stream's
	// event-record.timestamp-field-type feature.
	HasEventTS   bool
	EventTSWidth int

	// ContextExtra holds any packet-context members declared beyond the fixed
	// ones the feature flags below control (content/total size, timestamps,
	// discarded-event count, sequence number).
	ContextExtra FieldType

	// EventContext is the per-event common-context structure decoded once
	// before every event's own payload. Zero value (no members) means none.
	EventContext FieldType

	HasContentSize   bool
	ContentSizeWidth int
	HasTotalSize     bool
	TotalSizeWidth   int
	HasDiscarded     bool
	DiscardedWidth   int
	HasSeqNum        bool
	SeqNumWidth      int
	HasBeginTS       bool
	BeginTSWidth     int
	HasEndTS         bool
	EndTSWidth       int

	Events     map[string]*EventRecordType
	EventsByID map[int]*EventRecordType
}

// EventRecordType is one named, numbered event within a data stream. ID is
// assigned the same way as DataStreamType.ID: alphabetically within the stream.
type EventRecordType struct {
	Name string
	ID   int

	HasLogLevel bool
	LogLevel    int64

	// SpecificContext is decoded once per event instance, between the
	// stream's common context and this event's own payload. Zero value (no
	// members) means the event declares none.
	SpecificContext FieldType

	Payload FieldType // struct field type
}

// Schema is the immutable, compiled result of config.Compile. A Schema has no
// exported mutators; every lookup is a read against maps built once at compile
// time, so a single Schema may be shared across as many concurrent decoders as
// the caller likes.
type Schema struct {
	Trace   Trace
	Streams map[string]*DataStreamType
	byID    map[int]*DataStreamType
}

// NewSchema builds a Schema from a trace and its data stream types, indexing
// streams by both name and assigned ID.
func NewSchema(trace Trace, streams []*DataStreamType) *Schema {
	s := &Schema{
		Trace:   trace,
		Streams: make(map[string]*DataStreamType, len(streams)),
		byID:    make(map[int]*DataStreamType, len(streams)),
	}
	for _, st := range streams {
		s.Streams[st.Name] = st
		s.byID[st.ID] = st
	}
	return s
}

// StreamByID looks up a data stream type by its assigned numeric ID.
func (s *Schema) StreamByID(id int) (*DataStreamType, bool) {
	st, ok := s.byID[id]
	return st, ok
}

// EventByID looks up an event record type by its assigned numeric ID within
// this stream.
func (d *DataStreamType) EventByID(id int) (*EventRecordType, bool) {
	e, ok := d.EventsByID[id]
	return e, ok
}
