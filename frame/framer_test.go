package frame

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/google/uuid"

	"github.com/auxoncorp/barectf-parser/decode"
	"github.com/auxoncorp/barectf-parser/schema"
)

func testSchema(t *testing.T) (*schema.Schema, uuid.UUID) {
	t.Helper()
	traceUUID := uuid.New()
	trace := schema.Trace{
		Name:          "t",
		UUID:          traceUUID,
		NativeOrder:   schema.LittleEndian,
		HasMagic:      true,
		MagicWidth:    32,
		HasUUID:       true,
		StreamIDWidth: 16,
	}
	stream := &schema.DataStreamType{
		Name:             "default",
		ID:               0,
		EventIDWidth:     8,
		HasContentSize:   true,
		ContentSizeWidth: 32,
		HasTotalSize:     true,
		TotalSizeWidth:   32,
		Events: map[string]*schema.EventRecordType{
			"tick": {Name: "tick", ID: 0, Payload: schema.StructFieldType()},
		},
		EventsByID: map[int]*schema.EventRecordType{
			0: {Name: "tick", ID: 0, Payload: schema.StructFieldType()},
		},
	}
	return schema.NewSchema(trace, []*schema.DataStreamType{stream}), traceUUID
}

func buildPacket(t *testing.T, traceUUID uuid.UUID, totalBytes int) []byte {
	t.Helper()
	var buf bytes.Buffer
	writeU32LE := func(v uint32) {
		buf.WriteByte(byte(v))
		buf.WriteByte(byte(v >> 8))
		buf.WriteByte(byte(v >> 16))
		buf.WriteByte(byte(v >> 24))
	}
	writeU32LE(decode.MagicNumber)
	ub, _ := traceUUID.MarshalBinary()
	buf.Write(ub)
	buf.WriteByte(0) // stream id low byte
	buf.WriteByte(0) // stream id high byte
	writeU32LE(uint32(totalBytes * 8))   // packet_size_bits
	writeU32LE(uint32(totalBytes * 8))   // content_size_bits
	for buf.Len() < totalBytes {
		buf.WriteByte(0)
	}
	return buf.Bytes()[:totalBytes]
}

func TestFramerReadsTwoPackets(t *testing.T) {
	s, traceUUID := testSchema(t)
	p1 := buildPacket(t, traceUUID, 32)
	p2 := buildPacket(t, traceUUID, 40)

	r := bytes.NewReader(append(append([]byte{}, p1...), p2...))
	f := NewFramer(s, r)

	got1, err := f.Next(context.Background())
	if err != nil {
		t.Fatalf("first Next: %v", err)
	}
	if !bytes.Equal(got1, p1) {
		t.Fatalf("first packet mismatch: got %d bytes, want %d", len(got1), len(p1))
	}

	got2, err := f.Next(context.Background())
	if err != nil {
		t.Fatalf("second Next: %v", err)
	}
	if !bytes.Equal(got2, p2) {
		t.Fatalf("second packet mismatch: got %d bytes, want %d", len(got2), len(p2))
	}

	if _, err := f.Next(context.Background()); err != io.EOF {
		t.Fatalf("expected io.EOF at stream end, got %v", err)
	}
}

func TestFramerShortReadMidPacketFails(t *testing.T) {
	s, traceUUID := testSchema(t)
	p1 := buildPacket(t, traceUUID, 32)

	r := bytes.NewReader(p1[:20])
	f := NewFramer(s, r)

	_, err := f.Next(context.Background())
	de, ok := err.(*decode.Error)
	if !ok {
		t.Fatalf("expected *decode.Error, got %T: %v", err, err)
	}
	if de.Kind != decode.ErrUnexpectedEof {
		t.Fatalf("expected ErrUnexpectedEof, got %v", de.Kind)
	}
}

func TestFramerCanceledContext(t *testing.T) {
	s, _ := testSchema(t)
	f := NewFramer(s, bytes.NewReader(nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.Next(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
