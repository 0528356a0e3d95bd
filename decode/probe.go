package decode

import (
	"fmt"

	"github.com/auxoncorp/barectf-parser/bitio"
	"github.com/auxoncorp/barectf-parser/schema"
)

// ProbeResult reports what a size probe over a packet's opening bytes learned
// about the packet's total length.
type ProbeResult struct {
	TotalBits int  // valid when Definite is true
	Definite  bool // false when the stream declares neither packet-total-size nor packet-content-size
}

// HeaderProbeSize returns exactly how many leading bytes of a packet
// ProbePacketBits needs: the packet header (a trace-wide shape) plus the
// widest possible packet-context fixed size fields declared by any stream in
// the schema. frame.Framer reads precisely this many bytes before deciding
// how many more to pull for the rest of the packet, so it never over-reads
// into the next packet on the wire. The packet's actual stream isn't known
// until the header is decoded, so this takes the maximum over every stream
// rather than assuming they agree - a real barectf trace typically declares
// the same packet-context shape everywhere, but nothing requires it.
func HeaderProbeSize(s *schema.Schema) int {
	trace := s.Trace

	bits := 0
	if trace.HasMagic {
		bits += trace.MagicWidth
	}
	if trace.HasUUID {
		bits += 128
	}
	bits += trace.StreamIDWidth

	maxSizeFieldBits := 0
	for _, stream := range s.Streams {
		streamBits := 0
		if stream.HasTotalSize {
			streamBits += stream.TotalSizeWidth
		}
		if stream.HasContentSize {
			streamBits += stream.ContentSizeWidth
		}
		if streamBits > maxSizeFieldBits {
			maxSizeFieldBits = streamBits
		}
	}
	bits += maxSizeFieldBits

	return (bits + 7) / 8
}

// ProbePacketBits decodes just enough of probe - the packet's header and the
// packet-context's fixed size fields - to learn how many bits (and therefore
// bytes) the whole packet occupies, without decoding its context extras or
// any event. frame.Framer uses this to know how many more bytes to pull off
// the transport before handing a complete packet to DecodePacket.
func ProbePacketBits(s *schema.Schema, probe []byte) (ProbeResult, error) {
	c := bitio.NewCursor(probe)

	header, err := decodeHeader(c, s)
	if err != nil {
		return ProbeResult{}, err
	}

	stream, ok := s.StreamByID(header.StreamID)
	if !ok {
		return ProbeResult{}, errAt("header.stream_id", ErrUnknownStreamType, fmt.Errorf("stream id %d not defined in schema", header.StreamID))
	}

	if !stream.HasTotalSize && !stream.HasContentSize {
		return ProbeResult{Definite: false}, nil
	}

	order := toBitOrder(s.Trace.NativeOrder)
	var totalSizeBits, contentSizeBits int
	if stream.HasTotalSize {
		if err := c.Align(8); err != nil {
			return ProbeResult{}, errAt("context.packet_size_bits", ErrUnexpectedEof, err)
		}
		v, err := c.ReadUint(stream.TotalSizeWidth, order)
		if err != nil {
			return ProbeResult{}, errAt("context.packet_size_bits", ErrUnexpectedEof, err)
		}
		totalSizeBits = int(v)
	}
	if stream.HasContentSize {
		if err := c.Align(8); err != nil {
			return ProbeResult{}, errAt("context.content_size_bits", ErrUnexpectedEof, err)
		}
		v, err := c.ReadUint(stream.ContentSizeWidth, order)
		if err != nil {
			return ProbeResult{}, errAt("context.content_size_bits", ErrUnexpectedEof, err)
		}
		contentSizeBits = int(v)
	}

	if stream.HasTotalSize {
		return ProbeResult{TotalBits: totalSizeBits, Definite: true}, nil
	}
	return ProbeResult{TotalBits: contentSizeBits, Definite: true}, nil
}
