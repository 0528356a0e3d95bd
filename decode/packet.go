package decode

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/auxoncorp/barectf-parser/bitio"
	"github.com/auxoncorp/barectf-parser/schema"
)

// MagicNumber is the CTF packet magic every stream header carries when the
// "magic" feature is enabled.
const MagicNumber = 0xC1FC1FC1

// PacketHeader holds the packet header fields decoded ahead of resolving
// which stream and event types the rest of the packet uses.
type PacketHeader struct {
	Magic     uint32
	HasMagic  bool
	TraceUUID uuid.UUID
	HasUUID   bool
	StreamID  int
}

// Event is one decoded event record: its resolved identity, its optional
// timestamp, its common context (if the stream declares one), its own
// specific context (if it declares one), and its payload.
type Event struct {
	ID              int
	Name            string
	HasTimestamp    bool
	Timestamp       uint64
	CommonContext   schema.Value
	SpecificContext schema.Value
	Payload         schema.Value
}

// Packet is the fully decoded result of one CTF packet.
type Packet struct {
	Header     PacketHeader
	StreamName string
	Context    schema.Value
	Events     []Event
}

// DecodePacket decodes one complete CTF packet's bytes against s. The packet
// decoder never suspends - data must already hold every byte of the packet;
// pulling packet-sized chunks off a live stream is frame.Framer's job.
func DecodePacket(s *schema.Schema, data []byte) (*Packet, error) {
	c := bitio.NewCursor(data)

	header, err := decodeHeader(c, s)
	if err != nil {
		return nil, err
	}

	stream, ok := s.StreamByID(header.StreamID)
	if !ok {
		return nil, errAt("header.stream_id", ErrUnknownStreamType, fmt.Errorf("stream id %d not defined in schema", header.StreamID))
	}

	ctxValue, contentSizeBits, totalSizeBits, err := decodeContext(c, s, stream)
	if err != nil {
		return nil, err
	}

	boundaryBits := len(data) * 8
	if stream.HasContentSize {
		boundaryBits = contentSizeBits
	} else if stream.HasTotalSize {
		boundaryBits = totalSizeBits
	}

	events, err := decodeEvents(c, s, stream, boundaryBits)
	if err != nil {
		return nil, err
	}

	if stream.HasTotalSize {
		if err := c.SkipTo(totalSizeBits); err != nil {
			return nil, errAt("padding", ErrPacketSizeInvalid, err)
		}
	}

	return &Packet{Header: header, StreamName: stream.Name, Context: ctxValue, Events: events}, nil
}

// decodeHeader decodes the packet header. Header shape (magic/uuid presence,
// their widths, and the stream-id field width) is a trace-wide feature in
// barectf's effective configuration - a single trace never mixes packet
// header layouts across its data streams - so it comes straight off
// s.Trace rather than needing the stream (which isn't known yet: the
// stream-id field is itself part of the header being decoded).
func decodeHeader(c *bitio.Cursor, s *schema.Schema) (PacketHeader, error) {
	var h PacketHeader
	order := toBitOrder(s.Trace.NativeOrder)
	trace := s.Trace

	if trace.HasMagic {
		if err := c.Align(8); err != nil {
			return h, errAt("header.magic", ErrUnexpectedEof, err)
		}
		magic, err := c.ReadUint(trace.MagicWidth, order)
		if err != nil {
			return h, errAt("header.magic", ErrUnexpectedEof, err)
		}
		h.Magic = uint32(magic)
		h.HasMagic = true
		if h.Magic != MagicNumber {
			return h, errAt("header.magic", ErrBadMagic, fmt.Errorf("got %#x, want %#x", h.Magic, uint32(MagicNumber)))
		}
	}

	if trace.HasUUID {
		if err := c.Align(8); err != nil {
			return h, errAt("header.uuid", ErrUnexpectedEof, err)
		}
		raw, err := c.ReadBytes(16)
		if err != nil {
			return h, errAt("header.uuid", ErrUnexpectedEof, err)
		}
		u, err := uuid.FromBytes(raw)
		if err != nil {
			return h, errAt("header.uuid", ErrUuidMismatch, err)
		}
		h.TraceUUID = u
		h.HasUUID = true
		if u != trace.UUID {
			return h, errAt("header.uuid", ErrUuidMismatch, fmt.Errorf("got %s, want %s", u, trace.UUID))
		}
	}

	if err := c.Align(8); err != nil {
		return h, errAt("header.stream_id", ErrUnexpectedEof, err)
	}
	streamID, err := c.ReadUint(trace.StreamIDWidth, order)
	if err != nil {
		return h, errAt("header.stream_id", ErrUnexpectedEof, err)
	}
	h.StreamID = int(streamID)

	return h, nil
}

// decodeContext decodes the packet-context structure: fixed size/timestamp/
// sequencing members gated by the stream's feature flags, followed by any
// declared extra members. It returns the decoded value plus the raw
// content/total size in bits for the caller's size-accounting invariants.
func decodeContext(c *bitio.Cursor, s *schema.Schema, stream *schema.DataStreamType) (schema.Value, int, int, error) {
	order := toBitOrder(s.Trace.NativeOrder)
	names := []string{}
	values := map[string]schema.Value{}

	readFixed := func(name string, width int) (uint64, error) {
		if err := c.Align(8); err != nil {
			return 0, wrapPath(errAt("", ErrUnexpectedEof, err), "context."+name)
		}
		v, err := c.ReadUint(width, order)
		if err != nil {
			return 0, wrapPath(eofOrRange(err), "context."+name)
		}
		names = append(names, name)
		values[name] = schema.Value{Kind: schema.KindUInt, Uint: v}
		return v, nil
	}

	var contentSizeBits, totalSizeBits int
	if stream.HasTotalSize {
		v, err := readFixed("packet_size_bits", stream.TotalSizeWidth)
		if err != nil {
			return schema.Value{}, 0, 0, err
		}
		totalSizeBits = int(v)
	}
	if stream.HasContentSize {
		v, err := readFixed("content_size_bits", stream.ContentSizeWidth)
		if err != nil {
			return schema.Value{}, 0, 0, err
		}
		contentSizeBits = int(v)
	}
	if stream.HasBeginTS {
		if _, err := readFixed("beginning_timestamp", stream.BeginTSWidth); err != nil {
			return schema.Value{}, 0, 0, err
		}
	}
	if stream.HasEndTS {
		if _, err := readFixed("end_timestamp", stream.EndTSWidth); err != nil {
			return schema.Value{}, 0, 0, err
		}
	}
	if stream.HasDiscarded {
		if _, err := readFixed("events_discarded", stream.DiscardedWidth); err != nil {
			return schema.Value{}, 0, 0, err
		}
	}
	if stream.HasSeqNum {
		if _, err := readFixed("sequence_number", stream.SeqNumWidth); err != nil {
			return schema.Value{}, 0, 0, err
		}
	}

	if stream.HasContentSize && stream.HasTotalSize {
		remaining := c.RemainingBits() + c.BitPosition()
		if !(contentSizeBits <= totalSizeBits && totalSizeBits <= remaining) {
			return schema.Value{}, 0, 0, errAt("context", ErrPacketSizeInvalid,
				fmt.Errorf("content_size_bits=%d, total_size_bits=%d, remaining=%d", contentSizeBits, totalSizeBits, remaining))
		}
	}

	if len(stream.ContextExtra.Members) > 0 {
		extra, err := DecodeStruct(c, stream.ContextExtra, "context")
		if err != nil {
			return schema.Value{}, 0, 0, err
		}
		for _, n := range extra.FieldNames {
			names = append(names, n)
			values[n] = extra.FieldValues[n]
		}
	}

	return schema.StructValue(names, values), contentSizeBits, totalSizeBits, nil
}

func decodeEvents(c *bitio.Cursor, s *schema.Schema, stream *schema.DataStreamType, boundaryBits int) ([]Event, error) {
	order := toBitOrder(s.Trace.NativeOrder)
	var events []Event

	for c.BitPosition() < boundaryBits {
		if err := c.Align(8); err != nil {
			return nil, errAt(fmt.Sprintf("events[%d]", len(events)), ErrTruncatedEvent, err)
		}
		idPath := fmt.Sprintf("events[%d].id", len(events))
		id, err := c.ReadUint(stream.EventIDWidth, order)
		if err != nil {
			return nil, errAt(idPath, ErrTruncatedEvent, err)
		}
		evt, ok := stream.EventByID(int(id))
		if !ok {
			return nil, errAt(idPath, ErrUnknownEventType, fmt.Errorf("event id %d not defined in stream %q", id, stream.Name))
		}

		e := Event{ID: evt.ID, Name: evt.Name}

		if stream.HasEventTS {
			tsPath := fmt.Sprintf("events[%d].timestamp", len(events))
			if err := c.Align(8); err != nil {
				return nil, errAt(tsPath, ErrTruncatedEvent, err)
			}
			ts, err := c.ReadUint(stream.EventTSWidth, order)
			if err != nil {
				return nil, errAt(tsPath, ErrTruncatedEvent, err)
			}
			e.HasTimestamp = true
			e.Timestamp = ts
		}

		if len(stream.EventContext.Members) > 0 {
			ctxPath := fmt.Sprintf("events[%d].common_context", len(events))
			ctxVal, err := DecodeStruct(c, stream.EventContext, ctxPath)
			if err != nil {
				return nil, wrapTruncated(err)
			}
			e.CommonContext = ctxVal
		}

		if len(evt.SpecificContext.Members) > 0 {
			specificPath := fmt.Sprintf("events[%d].specific_context", len(events))
			specificVal, err := DecodeStruct(c, evt.SpecificContext, specificPath)
			if err != nil {
				return nil, wrapTruncated(err)
			}
			e.SpecificContext = specificVal
		}

		payloadPath := fmt.Sprintf("events[%d].payload", len(events))
		payload, err := DecodeStruct(c, evt.Payload, payloadPath)
		if err != nil {
			return nil, wrapTruncated(err)
		}
		e.Payload = payload

		events = append(events, e)
	}

	return events, nil
}

// wrapTruncated reclassifies an out-of-data failure encountered mid-event as
// a truncated event rather than the field decoder's generic EOF kind, giving
// callers the coarser failure-mode granularity the packet decoder promises.
func wrapTruncated(err error) error {
	de, ok := err.(*Error)
	if !ok {
		return err
	}
	if de.Kind == ErrInsufficientData || de.Kind == ErrUnexpectedEof || de.Kind == ErrBitsOutOfRange {
		return &Error{Path: de.Path, Kind: ErrTruncatedEvent, Err: de.Err}
	}
	return err
}
