// This package implements a codec for the Standard MIDI File (SMF) binary
// format. The Reader decodes a byte stream into typed events, broadcasting
// each one to caller-supplied Handlers; the Writer serializes a pushed
// sequence of Messages back into a conformant byte stream, optionally
// compressing consecutive channel voice events with running status. The
// smf_dump and smf_rewrite directories contain command-line tools built on
// the library.
package ghakuf

import (
	"bytes"
	"fmt"
)

// MetaEventType is the one-byte type code that follows the 0xff prefix of
// a meta event. Codes outside the named set are preserved as-is, so
// unknown meta events survive a decode/encode round trip.
type MetaEventType uint8

const (
	MetaSequenceNumber      MetaEventType = 0x00
	MetaTextEvent           MetaEventType = 0x01
	MetaCopyrightNotice     MetaEventType = 0x02
	MetaSequenceOrTrackName MetaEventType = 0x03
	MetaInstrumentName      MetaEventType = 0x04
	MetaLyric               MetaEventType = 0x05
	MetaMarker              MetaEventType = 0x06
	MetaCuePoint            MetaEventType = 0x07
	MetaChannelPrefix       MetaEventType = 0x20
	MetaEndOfTrack          MetaEventType = 0x2f
	MetaSetTempo            MetaEventType = 0x51
	MetaSMPTEOffset         MetaEventType = 0x54
	MetaTimeSignature       MetaEventType = 0x58
	MetaKeySignature        MetaEventType = 0x59
	MetaSequencerSpecific   MetaEventType = 0x7f
)

func (t MetaEventType) String() string {
	switch t {
	case MetaSequenceNumber:
		return "sequence number"
	case MetaTextEvent:
		return "text event"
	case MetaCopyrightNotice:
		return "copyright notice"
	case MetaSequenceOrTrackName:
		return "sequence/track name"
	case MetaInstrumentName:
		return "instrument name"
	case MetaLyric:
		return "lyric"
	case MetaMarker:
		return "marker"
	case MetaCuePoint:
		return "cue point"
	case MetaChannelPrefix:
		return "MIDI channel prefix"
	case MetaEndOfTrack:
		return "end of track"
	case MetaSetTempo:
		return "set tempo"
	case MetaSMPTEOffset:
		return "SMPTE offset"
	case MetaTimeSignature:
		return "time signature"
	case MetaKeySignature:
		return "key signature"
	case MetaSequencerSpecific:
		return "sequencer-specific"
	}
	return fmt.Sprintf("unknown meta event type 0x%02x", uint8(t))
}

// SysExEventType is the status byte introducing a system exclusive event:
// 0xf0 starts a message, 0xf7 continues or escapes one.
type SysExEventType uint8

const (
	SysExF0 SysExEventType = 0xf0
	SysExF7 SysExEventType = 0xf7
)

func (t SysExEventType) String() string {
	if t == SysExF0 {
		return "F0"
	}
	return "F7"
}

// Holds a MIDI note value. The values corresponding to keys on a standard
// keyboard are 21 (A0) through 108 (C8).
type MIDINote uint8

func (n MIDINote) String() string {
	if (n < 21) || (n > 108) {
		return fmt.Sprintf("MIDI note %d", uint8(n))
	}
	notes := [...]string{"A", "A#", "B", "C", "C#", "D", "D#", "E", "F",
		"F#", "G", "G#"}
	index := (int(n) - 21) % 12
	octave := (int(n) - 12) / 12
	return fmt.Sprintf("%s%d", notes[index], octave)
}

// ChannelEvent is a MIDI channel voice event: a status byte carrying an
// opcode and channel, followed by one or two data bytes. It is implemented
// by NoteOffEvent, NoteOnEvent, AftertouchEvent, ControlChangeEvent,
// ProgramChangeEvent, ChannelPressureEvent, and PitchBendEvent.
type ChannelEvent interface {
	String() string
	// StatusByte returns the event's status byte: the opcode in the high
	// nibble and the channel in the low nibble.
	StatusByte() byte
	// SMFData returns the full encoding of the event, status byte
	// included, validating field ranges.
	SMFData() ([]byte, error)
}

type NoteOffEvent struct {
	Channel  uint8
	Note     MIDINote
	Velocity uint8
}

func (v *NoteOffEvent) String() string {
	return fmt.Sprintf("channel %d: %s off, velocity = %d", v.Channel,
		v.Note, v.Velocity)
}

func (v *NoteOffEvent) StatusByte() byte {
	return 0x80 | (v.Channel & 0x0f)
}

func (v *NoteOffEvent) SMFData() ([]byte, error) {
	if v.Channel > 0xf {
		return nil, fmt.Errorf("invalid note-off channel: %d", v.Channel)
	}
	if v.Note > 0x7f {
		return nil, fmt.Errorf("invalid note-off note: %d", v.Note)
	}
	if v.Velocity > 0x7f {
		return nil, fmt.Errorf("invalid note-off velocity: %d", v.Velocity)
	}
	return []byte{v.StatusByte(), byte(v.Note), v.Velocity}, nil
}

type NoteOnEvent struct {
	Channel  uint8
	Note     MIDINote
	Velocity uint8
}

func (v *NoteOnEvent) String() string {
	return fmt.Sprintf("channel %d: %s on, velocity = %d", v.Channel,
		v.Note, v.Velocity)
}

func (v *NoteOnEvent) StatusByte() byte {
	return 0x90 | (v.Channel & 0x0f)
}

func (v *NoteOnEvent) SMFData() ([]byte, error) {
	if v.Channel > 0xf {
		return nil, fmt.Errorf("invalid note-on channel: %d", v.Channel)
	}
	if v.Note > 0x7f {
		return nil, fmt.Errorf("invalid note-on note: %d", v.Note)
	}
	if v.Velocity > 0x7f {
		return nil, fmt.Errorf("invalid note-on velocity: %d", v.Velocity)
	}
	return []byte{v.StatusByte(), byte(v.Note), v.Velocity}, nil
}

// The aftertouch event is also known as a "polyphonic key pressure" event,
// but "aftertouch" is shorter in the source code.
type AftertouchEvent struct {
	Channel  uint8
	Note     MIDINote
	Pressure uint8
}

func (v *AftertouchEvent) String() string {
	return fmt.Sprintf("channel %d: %s aftertouch pressure %d", v.Channel,
		v.Note, v.Pressure)
}

func (v *AftertouchEvent) StatusByte() byte {
	return 0xa0 | (v.Channel & 0x0f)
}

func (v *AftertouchEvent) SMFData() ([]byte, error) {
	if v.Channel > 0xf {
		return nil, fmt.Errorf("invalid aftertouch channel: %d", v.Channel)
	}
	if v.Note > 0x7f {
		return nil, fmt.Errorf("invalid aftertouch note: %d", v.Note)
	}
	if v.Pressure > 0x7f {
		return nil, fmt.Errorf("invalid aftertouch pressure: %d",
			v.Pressure)
	}
	return []byte{v.StatusByte(), byte(v.Note), v.Pressure}, nil
}

// This represents either a control-change message or a channel-mode
// message. It's a channel-mode message if 120 <= Controller <= 127.
type ControlChangeEvent struct {
	Channel    uint8
	Controller uint8
	Value      uint8
}

func (v *ControlChangeEvent) String() string {
	return fmt.Sprintf("channel %d: control change, controller %d, "+
		"value %d", v.Channel, v.Controller, v.Value)
}

func (v *ControlChangeEvent) StatusByte() byte {
	return 0xb0 | (v.Channel & 0x0f)
}

func (v *ControlChangeEvent) SMFData() ([]byte, error) {
	if v.Channel > 0xf {
		return nil, fmt.Errorf("invalid control-change channel: %d",
			v.Channel)
	}
	if v.Controller > 0x7f {
		return nil, fmt.Errorf("invalid control-change controller: %d",
			v.Controller)
	}
	if v.Value > 0x7f {
		return nil, fmt.Errorf("invalid control-change value: %d", v.Value)
	}
	return []byte{v.StatusByte(), v.Controller, v.Value}, nil
}

// This represents a program-change event, often used to set the
// "instrument" associated with a channel.
type ProgramChangeEvent struct {
	Channel uint8
	Program uint8
}

func (v *ProgramChangeEvent) String() string {
	return fmt.Sprintf("channel %d: program change to %d", v.Channel,
		v.Program)
}

func (v *ProgramChangeEvent) StatusByte() byte {
	return 0xc0 | (v.Channel & 0x0f)
}

func (v *ProgramChangeEvent) SMFData() ([]byte, error) {
	if v.Channel > 0xf {
		return nil, fmt.Errorf("invalid program-change channel: %d",
			v.Channel)
	}
	if v.Program > 0x7f {
		return nil, fmt.Errorf("invalid program-change program: %d",
			v.Program)
	}
	return []byte{v.StatusByte(), v.Program}, nil
}

type ChannelPressureEvent struct {
	Channel  uint8
	Pressure uint8
}

func (v *ChannelPressureEvent) String() string {
	return fmt.Sprintf("channel %d: set channel pressure to %d", v.Channel,
		v.Pressure)
}

func (v *ChannelPressureEvent) StatusByte() byte {
	return 0xd0 | (v.Channel & 0x0f)
}

func (v *ChannelPressureEvent) SMFData() ([]byte, error) {
	if v.Channel > 0xf {
		return nil, fmt.Errorf("invalid channel-pressure channel: %d",
			v.Channel)
	}
	if v.Pressure > 0x7f {
		return nil, fmt.Errorf("invalid channel-pressure value: %d",
			v.Pressure)
	}
	return []byte{v.StatusByte(), v.Pressure}, nil
}

// Holds a pitch-bend event. The value is a signed 14-bit quantity: 0 is
// center, and the valid range is -8192 through 8191. On the wire it's
// stored offset by 8192 and split into two 7-bit bytes, low bits first.
type PitchBendEvent struct {
	Channel uint8
	Value   int16
}

func (v *PitchBendEvent) String() string {
	return fmt.Sprintf("channel %d: pitch bend value %d", v.Channel,
		v.Value)
}

func (v *PitchBendEvent) StatusByte() byte {
	return 0xe0 | (v.Channel & 0x0f)
}

func (v *PitchBendEvent) SMFData() ([]byte, error) {
	if v.Channel > 0xf {
		return nil, fmt.Errorf("invalid pitch-bend channel: %d", v.Channel)
	}
	if (v.Value < -8192) || (v.Value > 8191) {
		return nil, fmt.Errorf("invalid pitch-bend value: %d", v.Value)
	}
	wire := uint16(v.Value + 8192)
	lowBits := uint8(wire & 0x7f)
	highBits := uint8(wire >> 7)
	return []byte{v.StatusByte(), lowBits, highBits}, nil
}

// Message is one element of the event sequence consumed by the Writer:
// one of *MetaEvent, *MidiEvent, *SysExEvent, or TrackChange. The set is
// closed; nothing outside this package implements it.
type Message interface {
	String() string
	message()
}

// MetaEvent is a meta event: the 0xff prefix, a type code, and a
// VLQ-length-prefixed data payload.
type MetaEvent struct {
	// Ticks elapsed since the previous event in the same track.
	DeltaTime uint32
	Type      MetaEventType
	Data      []byte
}

func (e *MetaEvent) message() {}

func (e *MetaEvent) String() string {
	return fmt.Sprintf("(delta %d, meta event: %s, data: [% x])",
		e.DeltaTime, e.Type, e.Data)
}

// SMFData returns the event's encoding as it appears inside a track
// chunk, excluding the delta-time.
func (e *MetaEvent) SMFData() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(0xff)
	buf.WriteByte(uint8(e.Type))
	if err := WriteVLQ(&buf, uint32(len(e.Data))); err != nil {
		return nil, fmt.Errorf("failed writing meta event length: %w", err)
	}
	buf.Write(e.Data)
	return buf.Bytes(), nil
}

// MidiEvent is a channel voice event with its delta-time.
type MidiEvent struct {
	DeltaTime uint32
	Event     ChannelEvent
}

func (e *MidiEvent) message() {}

func (e *MidiEvent) String() string {
	return fmt.Sprintf("(delta %d, MIDI event: %s)", e.DeltaTime, e.Event)
}

// SysExEvent is a system exclusive event: an F0 or F7 status byte and a
// VLQ-length-prefixed raw payload.
type SysExEvent struct {
	DeltaTime uint32
	Type      SysExEventType
	Data      []byte
}

func (e *SysExEvent) message() {}

func (e *SysExEvent) String() string {
	return fmt.Sprintf("(delta %d, sysex event: %s, data: [% x])",
		e.DeltaTime, e.Type, e.Data)
}

// SMFData returns the event's encoding as it appears inside a track
// chunk, excluding the delta-time.
func (e *SysExEvent) SMFData() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(uint8(e.Type))
	if err := WriteVLQ(&buf, uint32(len(e.Data))); err != nil {
		return nil, fmt.Errorf("failed writing sysex event length: %w", err)
	}
	buf.Write(e.Data)
	return buf.Bytes(), nil
}

// TrackChange instructs the Writer to close the current track chunk and
// open a new one. It carries no payload and produces no event bytes of
// its own; chunk framing is the Writer's job. A complete track in a
// message sequence ends with a MetaEndOfTrack meta event followed by a
// TrackChange.
type TrackChange struct{}

func (TrackChange) message() {}

func (TrackChange) String() string {
	return "track change"
}
