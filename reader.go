package ghakuf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Reader is a streaming, event-driven SMF parser. It makes one forward
// pass over its input, decoding the header chunk and then each track
// chunk in file order, and broadcasts every decoded unit to its handlers.
// A Reader is good for a single parse: after Read returns an error the
// instance is in an undefined state and must be discarded. Concurrent use
// of one instance is not supported.
type Reader struct {
	input    io.Reader
	handlers []Handler
}

// NewReader returns a Reader that parses the SMF data supplied by input
// and reports it to the given handlers. The input only needs to support
// forward sequential reads; opening and closing it is the caller's
// responsibility.
func NewReader(input io.Reader, handlers ...Handler) *Reader {
	return &Reader{
		input:    input,
		handlers: handlers,
	}
}

// PushHandler registers an additional handler. Handlers are invoked in
// registration order for each decoded unit.
func (r *Reader) PushHandler(h Handler) {
	r.handlers = append(r.handlers, h)
}

// Read parses the entire input, firing handler callbacks for the header,
// each track boundary, and each event. It fails if every registered
// handler already reports HandlerSkipAll, or with a typed error as soon
// as the input stops following the SMF format.
func (r *Reader) Read() error {
	if len(r.handlers) > 0 && r.allSkipAll() {
		return ErrNoValidHandler
	}
	if e := r.readHeaderChunk(); e != nil {
		return e
	}
	for {
		if r.allSkipAll() {
			break
		}
		more, e := r.nextTrackChunk()
		if e != nil {
			return e
		}
		if !more {
			break
		}
	}
	return nil
}

// True if at least one handler still wants events. A Reader with no
// handlers parses everything, acting as a validator.
func (r *Reader) anyContinue() bool {
	if len(r.handlers) == 0 {
		return true
	}
	for _, h := range r.handlers {
		if h.Status() == HandlerContinue {
			return true
		}
	}
	return false
}

func (r *Reader) allSkipAll() bool {
	if len(r.handlers) == 0 {
		return false
	}
	for _, h := range r.handlers {
		if h.Status() != HandlerSkipAll {
			return false
		}
	}
	return true
}

func (r *Reader) broadcastHeader(format Format, trackCount uint16,
	division TimeDivision) {
	for _, h := range r.handlers {
		h.Header(format, trackCount, division)
	}
}

func (r *Reader) broadcastTrackChange() {
	for _, h := range r.handlers {
		if h.Status() != HandlerSkipAll {
			h.TrackChange()
		}
	}
}

func (r *Reader) broadcastMetaEvent(deltaTime uint32, eventType MetaEventType,
	data []byte) {
	for _, h := range r.handlers {
		if h.Status() == HandlerContinue {
			h.MetaEvent(deltaTime, eventType, data)
		}
	}
}

func (r *Reader) broadcastMidiEvent(deltaTime uint32, event ChannelEvent) {
	for _, h := range r.handlers {
		if h.Status() == HandlerContinue {
			h.MidiEvent(deltaTime, event)
		}
	}
}

func (r *Reader) broadcastSysExEvent(deltaTime uint32,
	eventType SysExEventType, data []byte) {
	for _, h := range r.handlers {
		if h.Status() == HandlerContinue {
			h.SysExEvent(deltaTime, eventType, data)
		}
	}
}

// Parses the MThd chunk and fires the header callback. The chunk length
// must be at least 6; any declared bytes past the three 16-bit fields are
// skipped so that files using a future header extension still parse.
func (r *Reader) readHeaderChunk() error {
	var marker [4]byte
	if _, e := io.ReadFull(r.input, marker[:]); e != nil {
		return fmt.Errorf("%w: reading header chunk marker",
			ErrTruncatedInput)
	}
	if marker != headerChunkMarker {
		return fmt.Errorf("%w: got % x, want \"MThd\"",
			ErrMalformedChunkMarker, marker[:])
	}
	var length uint32
	if e := binary.Read(r.input, binary.BigEndian, &length); e != nil {
		return fmt.Errorf("%w: reading header chunk length",
			ErrTruncatedInput)
	}
	if length < 6 {
		return fmt.Errorf("%w: header chunk declares %d bytes, need at "+
			"least 6", ErrChunkLengthMismatch, length)
	}
	var fields struct {
		Format     uint16
		TrackCount uint16
		Division   uint16
	}
	if e := binary.Read(r.input, binary.BigEndian, &fields); e != nil {
		return fmt.Errorf("%w: reading header fields", ErrTruncatedInput)
	}
	format, e := parseFormat(fields.Format)
	if e != nil {
		return e
	}
	if length > 6 {
		if _, e = io.CopyN(io.Discard, r.input, int64(length-6)); e != nil {
			return fmt.Errorf("%w: skipping extra header bytes",
				ErrTruncatedInput)
		}
	}
	r.broadcastHeader(format, fields.TrackCount,
		TimeDivision(fields.Division))
	return nil
}

// Reads one MTrk chunk if the input has one left. Returns false with no
// error when the input ends cleanly at a chunk boundary.
func (r *Reader) nextTrackChunk() (bool, error) {
	var marker [4]byte
	n, e := io.ReadFull(r.input, marker[:])
	if (e == io.EOF) && (n == 0) {
		return false, nil
	}
	if e != nil {
		return false, fmt.Errorf("%w: reading track chunk marker",
			ErrTruncatedInput)
	}
	if marker != trackChunkMarker {
		return false, fmt.Errorf("%w: got % x, want \"MTrk\"",
			ErrMalformedChunkMarker, marker[:])
	}
	var length uint32
	if e = binary.Read(r.input, binary.BigEndian, &length); e != nil {
		return false, fmt.Errorf("%w: reading track chunk length",
			ErrTruncatedInput)
	}
	r.broadcastTrackChange()
	if e = r.readTrackChunk(length); e != nil {
		return false, e
	}
	return true, nil
}

// Distinguishes the two ways a read can fail inside a track chunk:
// exhausting the chunk's declared byte count mid-event means the length
// field and the events disagree, while exhausting the underlying input
// means the file was cut short.
func classifyTrackError(remaining int64, e error, context string) error {
	if errors.Is(e, io.EOF) || errors.Is(e, io.ErrUnexpectedEOF) {
		if remaining == 0 {
			return fmt.Errorf("%w: %s ran past the declared track length",
				ErrChunkLengthMismatch, context)
		}
		return fmt.Errorf("%w: %s", ErrTruncatedInput, context)
	}
	return fmt.Errorf("failed %s: %w", context, e)
}

// Parses exactly length bytes of events. The loop terminates on the byte
// count alone; an end-of-track meta event is reported like any other
// event, so one that doesn't line up with the chunk boundary surfaces as
// a length mismatch instead of silently truncating.
func (r *Reader) readTrackChunk(length uint32) error {
	lr := &io.LimitedReader{R: r.input, N: int64(length)}
	runningStatus := byte(0)
	for lr.N > 0 {
		if !r.anyContinue() {
			// Every handler is skipping; discard the rest of the chunk.
			if _, e := io.CopyN(io.Discard, lr, lr.N); e != nil {
				return fmt.Errorf("%w: skipping track data",
					ErrTruncatedInput)
			}
			break
		}
		deltaTime, e := ReadVLQ(lr)
		if e != nil {
			return classifyTrackError(lr.N, e, "reading delta time")
		}
		firstByte, e := readByte(lr)
		if e != nil {
			return classifyTrackError(lr.N, e, "reading status byte")
		}
		switch {
		case firstByte == 0xff:
			runningStatus = 0
			eventType, e := readByte(lr)
			if e != nil {
				return classifyTrackError(lr.N, e, "reading meta event type")
			}
			data, e := r.readEventPayload(lr, "meta")
			if e != nil {
				return e
			}
			r.broadcastMetaEvent(deltaTime, MetaEventType(eventType), data)
		case (firstByte == 0xf0) || (firstByte == 0xf7):
			runningStatus = 0
			data, e := r.readEventPayload(lr, "sysex")
			if e != nil {
				return e
			}
			r.broadcastSysExEvent(deltaTime, SysExEventType(firstByte), data)
		case (firstByte & 0xf0) == 0xf0:
			// System common and real-time statuses don't appear in SMF
			// track data.
			return fmt.Errorf("%w: 0x%02x", ErrUnrecognizedStatusByte,
				firstByte)
		default:
			event, e := parseChannelEvent(lr, firstByte, &runningStatus)
			if e != nil {
				return classifyTrackError(lr.N, e, "reading channel event")
			}
			r.broadcastMidiEvent(deltaTime, event)
		}
	}
	return nil
}

// Reads a VLQ-length-prefixed event payload from the track chunk.
func (r *Reader) readEventPayload(lr *io.LimitedReader, kind string) (
	[]byte, error) {
	length, e := ReadVLQ(lr)
	if e != nil {
		return nil, classifyTrackError(lr.N, e,
			"reading "+kind+" event length")
	}
	if int64(length) > lr.N {
		// Refuse to allocate for a payload the chunk can't contain.
		return nil, fmt.Errorf("%w: %s event declares %d data bytes but "+
			"only %d remain in the track", ErrChunkLengthMismatch, kind,
			length, lr.N)
	}
	if length == 0 {
		return nil, nil
	}
	data := make([]byte, length)
	if _, e = io.ReadFull(lr, data); e != nil {
		return nil, classifyTrackError(lr.N, e, "reading "+kind+" event data")
	}
	return data, nil
}

// Reads the data bytes of a channel voice event. If the event reuses a
// running status, its first data byte has already been consumed as the
// would-be status byte and is passed in as pushback (or -1 for none).
func readEventData(r io.Reader, pushback, count int) ([2]uint8, error) {
	var data [2]uint8
	for i := 0; i < count; i++ {
		if (i == 0) && (pushback >= 0) {
			data[0] = uint8(pushback)
		} else {
			b, e := readByte(r)
			if e != nil {
				return data, e
			}
			data[i] = b
		}
		if data[i] > 0x7f {
			return data, fmt.Errorf("invalid data byte 0x%02x in channel "+
				"event", data[i])
		}
	}
	return data, nil
}

// Parses a channel voice event whose first byte has been consumed. A
// first byte with the high bit set is a new status and becomes the
// running status; one with the high bit clear is the first data byte of
// an event reusing the previous running status. Running status never
// carries across meta or sysex events; the Reader zeroes it there.
func parseChannelEvent(r io.Reader, firstByte byte, runningStatus *byte) (
	ChannelEvent, error) {
	status := firstByte
	pushback := -1
	if (status & 0x80) == 0 {
		if (*runningStatus & 0x80) == 0 {
			return nil, fmt.Errorf("%w: data byte 0x%02x with no running "+
				"status in effect", ErrUnrecognizedStatusByte, firstByte)
		}
		pushback = int(firstByte)
		status = *runningStatus
	} else {
		*runningStatus = status
	}
	channel := status & 0x0f
	count := 2
	if opcode := status & 0xf0; (opcode == 0xc0) || (opcode == 0xd0) {
		count = 1
	}
	data, e := readEventData(r, pushback, count)
	if e != nil {
		return nil, e
	}
	switch status & 0xf0 {
	case 0x80:
		return &NoteOffEvent{
			Channel:  channel,
			Note:     MIDINote(data[0]),
			Velocity: data[1],
		}, nil
	case 0x90:
		return &NoteOnEvent{
			Channel:  channel,
			Note:     MIDINote(data[0]),
			Velocity: data[1],
		}, nil
	case 0xa0:
		return &AftertouchEvent{
			Channel:  channel,
			Note:     MIDINote(data[0]),
			Pressure: data[1],
		}, nil
	case 0xb0:
		return &ControlChangeEvent{
			Channel:    channel,
			Controller: data[0],
			Value:      data[1],
		}, nil
	case 0xc0:
		return &ProgramChangeEvent{
			Channel: channel,
			Program: data[0],
		}, nil
	case 0xd0:
		return &ChannelPressureEvent{
			Channel:  channel,
			Pressure: data[0],
		}, nil
	case 0xe0:
		value := int16(uint16(data[1])<<7|uint16(data[0])) - 8192
		return &PitchBendEvent{
			Channel: channel,
			Value:   value,
		}, nil
	}
	return nil, fmt.Errorf("%w: 0x%02x", ErrUnrecognizedStatusByte, status)
}
