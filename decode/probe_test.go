package decode

import (
	"testing"

	"github.com/google/uuid"

	"github.com/auxoncorp/barectf-parser/schema"
)

func TestHeaderProbeSizeMatchesActualHeaderBytes(t *testing.T) {
	traceUUID := uuid.New()
	s := schemaWithEvents(t, traceUUID, "tick")

	got := HeaderProbeSize(s)
	want := 4 + 16 + 2 + 4 + 4 // magic + uuid + stream-id(16 bits) + total + content
	if got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func TestProbePacketBitsDefinite(t *testing.T) {
	traceUUID := uuid.New()
	s := schemaWithEvents(t, traceUUID, "tick")

	const totalLen = 40
	buf := buildHeaderAndContext(traceUUID, totalLen, totalLen)
	for buf.Len() < totalLen {
		buf.WriteByte(0)
	}

	probe := buf.Bytes()[:HeaderProbeSize(s)]
	result, err := ProbePacketBits(s, probe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Definite {
		t.Fatal("expected a definite result")
	}
	if result.TotalBits != totalLen*8 {
		t.Fatalf("got %d bits, want %d", result.TotalBits, totalLen*8)
	}
}

func TestProbePacketBitsIndefiniteWithoutSizeFeatures(t *testing.T) {
	traceUUID := uuid.New()
	s := schemaWithEvents(t, traceUUID, "tick")
	s.Streams["default"].HasTotalSize = false
	s.Streams["default"].HasContentSize = false

	var buf []byte
	writeU32LEBytes := func(v uint32) {
		buf = append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	writeU32LEBytes(MagicNumber)
	ub, _ := traceUUID.MarshalBinary()
	buf = append(buf, ub...)
	buf = append(buf, 0, 0)

	result, err := ProbePacketBits(s, buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Definite {
		t.Fatal("expected an indefinite result")
	}
}

func TestProbePacketBitsUnknownStreamFails(t *testing.T) {
	traceUUID := uuid.New()
	s := schemaWithEvents(t, traceUUID, "tick")

	var buf []byte
	writeU32LEBytes := func(v uint32) {
		buf = append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	writeU32LEBytes(MagicNumber)
	ub, _ := traceUUID.MarshalBinary()
	buf = append(buf, ub...)
	buf = append(buf, 9, 0) // undeclared stream id 9
	buf = append(buf, 0, 0, 0, 0, 0, 0, 0, 0)

	_, err := ProbePacketBits(s, buf)
	de, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if de.Kind != ErrUnknownStreamType {
		t.Fatalf("got kind %v, want ErrUnknownStreamType", de.Kind)
	}
}

var _ = schema.LittleEndian // keep schema import used if fields above change
