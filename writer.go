package ghakuf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Writer accumulates an ordered sequence of Messages and serializes them
// as a complete SMF byte stream. Messages are validated when the stream
// is written, not when they are pushed, since a single message isn't
// invalid until it's seen in context. A Writer may be reused for several
// WriteToFile calls over the same sequence; concurrent use of one
// instance is not supported.
type Writer struct {
	messages      []Message
	format        Format
	timeBase      uint16
	runningStatus bool
}

// NewWriter returns a Writer producing format 1 files with a time base of
// 480 ticks per quarter note and running status disabled.
func NewWriter() *Writer {
	return &Writer{
		format:   Format1,
		timeBase: 480,
	}
}

// Push appends a message to the sequence. The caller's message is not
// copied or mutated.
func (w *Writer) Push(m Message) {
	w.messages = append(w.messages, m)
}

// Messages returns the messages pushed so far, in order.
func (w *Writer) Messages() []Message {
	return w.messages
}

// Remove removes and returns the message at index i.
func (w *Writer) Remove(i int) Message {
	m := w.messages[i]
	w.messages = append(w.messages[:i], w.messages[i+1:]...)
	return m
}

// SetFormat sets the header's format field. Returns w for chaining.
func (w *Writer) SetFormat(f Format) *Writer {
	w.format = f
	return w
}

// SetTimeBase sets the header's division field. Returns w for chaining.
func (w *Writer) SetTimeBase(timeBase uint16) *Writer {
	w.timeBase = timeBase
	return w
}

// SetRunningStatus toggles running-status compression of consecutive
// channel voice events sharing a status byte. Returns w for chaining.
func (w *Writer) SetRunningStatus(enabled bool) *Writer {
	w.runningStatus = enabled
	return w
}

// Mirrors the MThd chunk layout for encoding/binary.
type smfHeader struct {
	Marker     [4]byte
	Length     uint32
	Format     uint16
	TrackCount uint16
	Division   uint16
}

func isTrackChange(m Message) bool {
	switch m.(type) {
	case TrackChange, *TrackChange:
		return true
	}
	return false
}

// WriteToFile serializes the header chunk and every track chunk to the
// given output. The message sequence is partitioned at TrackChange
// markers, each partition becoming one track chunk; every track must be
// explicitly closed, so a non-empty sequence whose final message is not a
// TrackChange fails with ErrMissingTrackBoundary. Each chunk's event
// bytes are buffered in memory first, because the chunk's 4-byte length
// field precedes its data on the wire.
func (w *Writer) WriteToFile(file io.Writer) error {
	trackCount := 0
	for _, m := range w.messages {
		if isTrackChange(m) {
			trackCount++
		}
	}
	if len(w.messages) > 0 {
		if trackCount == 0 || !isTrackChange(w.messages[len(w.messages)-1]) {
			return fmt.Errorf("%w: the final message must be a TrackChange",
				ErrMissingTrackBoundary)
		}
	}
	if trackCount > 0xffff {
		return fmt.Errorf("too many tracks (%d), limited to %d", trackCount,
			0xffff)
	}
	header := smfHeader{
		Marker:     headerChunkMarker,
		Length:     6,
		Format:     uint16(w.format),
		TrackCount: uint16(trackCount),
		Division:   w.timeBase,
	}
	if e := binary.Write(file, binary.BigEndian, &header); e != nil {
		return fmt.Errorf("failed writing SMF header: %w", e)
	}
	chunk := &bytes.Buffer{}
	runningStatus := byte(0)
	for i, m := range w.messages {
		if isTrackChange(m) {
			if e := writeTrackChunk(file, chunk); e != nil {
				return e
			}
			runningStatus = 0
			continue
		}
		switch msg := m.(type) {
		case *MetaEvent:
			if e := writeEventBody(chunk, msg.DeltaTime, msg); e != nil {
				return fmt.Errorf("message %d: %w", i, e)
			}
			runningStatus = 0
		case *SysExEvent:
			if e := writeEventBody(chunk, msg.DeltaTime, msg); e != nil {
				return fmt.Errorf("message %d: %w", i, e)
			}
			runningStatus = 0
		case *MidiEvent:
			if e := WriteVLQ(chunk, msg.DeltaTime); e != nil {
				return fmt.Errorf("message %d: failed writing delta "+
					"time: %w", i, e)
			}
			body, e := msg.Event.SMFData()
			if e != nil {
				return fmt.Errorf("message %d: %w", i, e)
			}
			// The status byte may be omitted only when running status is
			// enabled and the previous event in this chunk was a channel
			// voice event with the identical status. Meta and sysex
			// events reset the cursor above, so no elision happens across
			// them.
			if w.runningStatus && (body[0] == runningStatus) {
				chunk.Write(body[1:])
			} else {
				chunk.Write(body)
				runningStatus = body[0]
			}
		}
	}
	return nil
}

// Serializes one non-MIDI event into the chunk buffer: delta-time first,
// then the event's full framing.
func writeEventBody(chunk *bytes.Buffer, deltaTime uint32,
	event interface{ SMFData() ([]byte, error) }) error {
	if e := WriteVLQ(chunk, deltaTime); e != nil {
		return fmt.Errorf("failed writing delta time: %w", e)
	}
	body, e := event.SMFData()
	if e != nil {
		return e
	}
	chunk.Write(body)
	return nil
}

// Emits a finished track chunk: marker, byte length, then the buffered
// event data. Resets the buffer for the next track.
func writeTrackChunk(file io.Writer, chunk *bytes.Buffer) error {
	if e := binary.Write(file, binary.BigEndian, trackChunkMarker); e != nil {
		return fmt.Errorf("failed writing track chunk marker: %w", e)
	}
	if e := binary.Write(file, binary.BigEndian, uint32(chunk.Len())); e != nil {
		return fmt.Errorf("failed writing track chunk length: %w", e)
	}
	if _, e := file.Write(chunk.Bytes()); e != nil {
		return fmt.Errorf("failed writing track chunk data: %w", e)
	}
	chunk.Reset()
	return nil
}
