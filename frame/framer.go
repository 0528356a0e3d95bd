// Package frame implements the thin, suspending collaborator that pulls
// whole CTF packets off an io.Reader. Nothing here interprets packet
// contents beyond the fixed size fields needed to know where one packet ends
// and the next begins - that's decode.DecodePacket's job, and it never
// blocks on I/O once Framer hands it a complete buffer.
package frame

import (
	"context"
	"errors"
	"io"

	"github.com/auxoncorp/barectf-parser/decode"
	"github.com/auxoncorp/barectf-parser/schema"
)

// Framer pulls one complete packet at a time off r, sized against s.
type Framer struct {
	s         *schema.Schema
	r         io.Reader
	buf       []byte // leftover bytes read past a packet boundary, held for the next Next call
	probeSize int
}

// NewFramer wraps r for packet-at-a-time reading against s.
func NewFramer(s *schema.Schema, r io.Reader) *Framer {
	return &Framer{s: s, r: r, probeSize: decode.HeaderProbeSize(s)}
}

// Next returns the next complete packet's raw bytes, or io.EOF once the
// stream ends cleanly on a packet boundary. ctx is checked once, before the
// first read of each call; a read already blocked on the transport is not
// interrupted by cancelling it.
func (f *Framer) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	probe, err := f.fill(f.probeSize)
	if err != nil {
		if errors.Is(err, io.EOF) && len(probe) == 0 {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &decode.Error{Kind: decode.ErrUnexpectedEof, Err: err}
		}
		return nil, err
	}

	result, err := decode.ProbePacketBits(f.s, probe)
	if err != nil {
		return nil, err
	}

	var packetBytes int
	if result.Definite {
		packetBytes = (result.TotalBits + 7) / 8
	} else {
		// No declared size: the whole remainder of the transport is one
		// packet, matching the single-packet-per-connection traces this
		// mode is meant for.
		rest, err := io.ReadAll(f.r)
		if err != nil {
			return nil, &decode.Error{Kind: decode.ErrUnexpectedEof, Err: err}
		}
		full := append(probe, rest...)
		f.buf = nil
		return full, nil
	}

	if packetBytes < len(probe) {
		return nil, &decode.Error{Kind: decode.ErrPacketSizeInvalid, Err: errors.New("declared packet size is smaller than its own header")}
	}

	rest, err := f.fill(packetBytes - len(probe))
	if err != nil {
		return nil, &decode.Error{Kind: decode.ErrUnexpectedEof, Err: err}
	}

	return append(probe, rest...), nil
}

// fill returns exactly n bytes, drawing first from any leftover buffered
// bytes and then reading the rest from the underlying reader.
func (f *Framer) fill(n int) ([]byte, error) {
	out := make([]byte, n)
	copied := copy(out, f.buf)
	f.buf = f.buf[copied:]

	if copied == n {
		return out, nil
	}

	read, err := io.ReadFull(f.r, out[copied:])
	total := copied + read
	if err != nil {
		return out[:total], err
	}
	return out, nil
}
