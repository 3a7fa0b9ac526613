package engine

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// EventType classifies a serialized event.
type EventType uint8

const (
	TTL EventType = iota + 1
	Text
)

func (t EventType) String() string {
	switch t {
	case TTL:
		return "TTL"
	case Text:
		return "TEXT"
	default:
		return fmt.Sprintf("EventType(%d)", uint8(t))
	}
}

// Indices of the event types registered in the event sink at acquisition
// start. Sync markers are text events flagged with SyncState.
const (
	TTLEventIndex  = 0
	TextEventIndex = 1
	SyncState      = 0xFF
)

// EventChannel is the upstream description of a channel emitting events.
type EventChannel struct {
	Name     string
	Type     EventType
	SourceID uint16
	// Lines is the number of TTL lines; zero disables the line check.
	Lines int
}

// Event is a decoded event.
type Event struct {
	Type      EventType
	SourceID  uint16
	Timestamp int64
	Line      uint8
	State     bool
	Text      string
}

// Serialized layout, little-endian:
//   [0]     event type
//   [1]     TTL line (0 for text)
//   [2:4]   source id
//   [4:12]  timestamp
//   [12]    TTL state                  (TTL only, total 13 bytes)
//   [12:]   UTF-8 text                 (Text only)
const eventHeaderSize = 12

// EncodeTTL serializes a TTL transition.
func EncodeTTL(sourceID uint16, line uint8, state bool, timestamp int64) []byte {
	buf := make([]byte, eventHeaderSize+1)
	putEventHeader(buf, TTL, line, sourceID, timestamp)
	if state {
		buf[eventHeaderSize] = 1
	}
	return buf
}

// EncodeText serializes a text annotation.
func EncodeText(sourceID uint16, text string, timestamp int64) []byte {
	buf := make([]byte, eventHeaderSize+len(text))
	putEventHeader(buf, Text, 0, sourceID, timestamp)
	copy(buf[eventHeaderSize:], text)
	return buf
}

func putEventHeader(buf []byte, t EventType, line uint8, sourceID uint16, timestamp int64) {
	buf[0] = byte(t)
	buf[1] = line
	binary.LittleEndian.PutUint16(buf[2:], sourceID)
	binary.LittleEndian.PutUint64(buf[4:], uint64(timestamp))
}

// PeekEventType returns the type byte of a serialized event, or 0 when the
// buffer is empty.
func PeekEventType(raw []byte) EventType {
	if len(raw) == 0 {
		return 0
	}
	return EventType(raw[0])
}

// DecodeEvent parses raw as an event of channel ch.
func DecodeEvent(raw []byte, ch EventChannel) (*Event, error) {
	if len(raw) < eventHeaderSize {
		return nil, MalformedEventError(fmt.Sprintf("%d byte event shorter than header", len(raw)))
	}
	ev := &Event{
		Type:      EventType(raw[0]),
		Line:      raw[1],
		SourceID:  binary.LittleEndian.Uint16(raw[2:]),
		Timestamp: int64(binary.LittleEndian.Uint64(raw[4:])),
	}
	if ev.Type != ch.Type {
		return nil, MalformedEventError(fmt.Sprintf("%s event on %s channel %q", ev.Type, ch.Type, ch.Name))
	}
	switch ev.Type {
	case TTL:
		if len(raw) != eventHeaderSize+1 {
			return nil, MalformedEventError(fmt.Sprintf("TTL event of %d bytes", len(raw)))
		}
		if ch.Lines > 0 && int(ev.Line) >= ch.Lines {
			return nil, MalformedEventError(fmt.Sprintf("TTL line %d out of %d", ev.Line, ch.Lines))
		}
		switch raw[eventHeaderSize] {
		case 0:
		case 1:
			ev.State = true
		default:
			return nil, MalformedEventError(fmt.Sprintf("TTL state %d", raw[eventHeaderSize]))
		}
	case Text:
		body := raw[eventHeaderSize:]
		if !utf8.Valid(body) {
			return nil, MalformedEventError("text event is not valid UTF-8")
		}
		ev.Text = string(body)
	default:
		return nil, MalformedEventError(ev.Type.String())
	}
	return ev, nil
}
