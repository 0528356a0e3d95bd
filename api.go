// Package barectfparser is the top-level entry point tying config compilation,
// packet decoding, and stream framing together for callers who don't need the
// sub-package boundaries. It re-exports just enough surface to compile a
// document and decode packets or a live stream against the result.
package barectfparser

import (
	"io"

	"github.com/auxoncorp/barectf-parser/config"
	"github.com/auxoncorp/barectf-parser/decode"
	"github.com/auxoncorp/barectf-parser/frame"
	"github.com/auxoncorp/barectf-parser/schema"
)

// Compile turns an already-parsed effective-configuration document (an
// interface{} tree, as produced by unmarshalling YAML or JSON) into a
// compiled, immutable schema.Schema.
func Compile(doc interface{}, opts ...config.CompileOption) (*schema.Schema, error) {
	return config.Compile(doc, opts...)
}

// DecodePacket decodes one complete CTF packet's bytes against s.
func DecodePacket(s *schema.Schema, data []byte) (*decode.Packet, error) {
	return decode.DecodePacket(s, data)
}

// FrameStream wraps r for packet-at-a-time reading against s. Call Next on
// the result until it returns io.EOF, decoding each returned buffer with
// DecodePacket.
func FrameStream(s *schema.Schema, r io.Reader) *frame.Framer {
	return frame.NewFramer(s, r)
}
