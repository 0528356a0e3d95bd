package barectfparser

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func fullDoc() map[string]interface{} {
	return map[string]interface{}{
		"trace": map[string]interface{}{
			"name":       "demo",
			"uuid":       "79e49040-21b5-42d4-a83b-646f78666b62",
			"byte-order": "le",
			"$features": map[string]interface{}{
				"magic-field-type":               map[string]interface{}{"class": "uint", "size": 32},
				"uuid-field-type":                false,
				"data-stream-type-id-field-type": map[string]interface{}{"class": "uint", "size": 16},
			},
		},
		"streams": map[string]interface{}{
			"default": map[string]interface{}{
				"$features": map[string]interface{}{
					"packet": map[string]interface{}{
						"total-size-field-type":   map[string]interface{}{"class": "uint", "size": 32},
						"content-size-field-type": map[string]interface{}{"class": "uint", "size": 32},
					},
					"event-record": map[string]interface{}{
						"type-id-field-type": map[string]interface{}{"class": "uint", "size": 16},
					},
				},
				"event-record-types": map[string]interface{}{
					"tick": map[string]interface{}{
						"payload": []interface{}{
							map[string]interface{}{"name": "count", "type": "uint32"},
						},
					},
				},
			},
		},
	}
}

func writeU32LE(buf *bytes.Buffer, v uint32) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v >> 16))
	buf.WriteByte(byte(v >> 24))
}

func TestCompileDecodePacketRoundTrip(t *testing.T) {
	s, err := Compile(fullDoc())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	var buf bytes.Buffer
	writeU32LE(&buf, 0xC1FC1FC1) // magic
	buf.WriteByte(0)             // stream id low
	buf.WriteByte(0)             // stream id high

	const totalBytes = 32
	const contentBytes = 20 // header(6) + context(8) + one event(2+4)
	writeU32LE(&buf, totalBytes*8)   // packet_size_bits
	writeU32LE(&buf, contentBytes*8) // content_size_bits

	// event: id (16 bits LE) + payload count (uint32)
	buf.WriteByte(0)
	buf.WriteByte(0)
	writeU32LE(&buf, 42)

	for buf.Len() < totalBytes {
		buf.WriteByte(0)
	}
	data := buf.Bytes()[:totalBytes]

	packet, err := DecodePacket(s, data)
	if err != nil {
		t.Fatalf("DecodePacket: %v", err)
	}
	if packet.StreamName != "default" {
		t.Fatalf("got stream %q", packet.StreamName)
	}
	if len(packet.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(packet.Events))
	}
	if packet.Events[0].Name != "tick" {
		t.Fatalf("got event name %q", packet.Events[0].Name)
	}
	countVal, ok := packet.Events[0].Payload.Field("count")
	if !ok {
		t.Fatal("payload missing count field")
	}
	if countVal.Uint != 42 {
		t.Fatalf("got count %d, want 42", countVal.Uint)
	}
}

func TestFrameStreamYieldsWholePacket(t *testing.T) {
	s, err := Compile(fullDoc())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	var buf bytes.Buffer
	writeU32LE(&buf, 0xC1FC1FC1)
	buf.WriteByte(0)
	buf.WriteByte(0)
	const totalBytes = 24
	writeU32LE(&buf, totalBytes*8)
	writeU32LE(&buf, totalBytes*8)
	for buf.Len() < totalBytes {
		buf.WriteByte(0xff)
	}
	data := buf.Bytes()[:totalBytes]

	framer := FrameStream(s, bytes.NewReader(data))
	got, err := framer.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("framed bytes mismatch: got %d bytes, want %d", len(got), len(data))
	}

	if _, err := framer.Next(context.Background()); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestCompileBadConfigFails(t *testing.T) {
	_, err := Compile(map[string]interface{}{})
	if err == nil {
		t.Fatal("expected an error for a document missing a trace block")
	}
}
