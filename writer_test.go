package ghakuf

import (
	"bytes"
	"errors"
	"testing"
)

func TestMissingTrackBoundary(t *testing.T) {
	writer := NewWriter()
	writer.Push(&MidiEvent{
		DeltaTime: 0,
		Event:     &NoteOnEvent{Channel: 0, Note: 0x3c, Velocity: 0x7f},
	})
	var output bytes.Buffer
	e := writer.WriteToFile(&output)
	if !errors.Is(e, ErrMissingTrackBoundary) {
		t.Logf("Expected ErrMissingTrackBoundary with no TrackChange, "+
			"got: %v\n", e)
		t.FailNow()
	}
	t.Logf("Got expected error for unclosed track: %s\n", e)
	// A TrackChange followed by further events leaves the last track
	// unclosed too.
	writer = NewWriter()
	writer.Push(&MetaEvent{Type: MetaEndOfTrack})
	writer.Push(TrackChange{})
	writer.Push(&MidiEvent{
		DeltaTime: 0,
		Event:     &NoteOnEvent{Channel: 0, Note: 0x3c, Velocity: 0x7f},
	})
	e = writer.WriteToFile(&output)
	if !errors.Is(e, ErrMissingTrackBoundary) {
		t.Logf("Expected ErrMissingTrackBoundary for trailing events, "+
			"got: %v\n", e)
		t.FailNow()
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	writer := NewWriter().SetFormat(Format1).SetTimeBase(480)
	for i := 0; i < 2; i++ {
		writer.Push(&MetaEvent{Type: MetaEndOfTrack})
		writer.Push(TrackChange{})
	}
	var output bytes.Buffer
	if e := writer.WriteToFile(&output); e != nil {
		t.Logf("Failed writing 2-track file: %s\n", e)
		t.FailNow()
	}
	handler := &recordingHandler{}
	if e := NewReader(&output, handler).Read(); e != nil {
		t.Logf("Failed parsing written file: %s\n", e)
		t.FailNow()
	}
	if (handler.format != Format1) || (handler.trackCount != 2) ||
		(handler.division.TicksPerQuarterNote() != 480) {
		t.Logf("Header didn't round trip: %s, %d tracks, %s\n",
			handler.format, handler.trackCount, handler.division)
		t.FailNow()
	}
}

// Serializes the same two-note track with and without running status and
// returns both outputs.
func writeNotePair(t *testing.T, runningStatus bool) []byte {
	writer := NewWriter().SetRunningStatus(runningStatus)
	writer.Push(&MidiEvent{
		DeltaTime: 0,
		Event:     &NoteOnEvent{Channel: 2, Note: 0x3c, Velocity: 0x60},
	})
	writer.Push(&MidiEvent{
		DeltaTime: 48,
		Event:     &NoteOnEvent{Channel: 2, Note: 0x3e, Velocity: 0x60},
	})
	writer.Push(&MetaEvent{Type: MetaEndOfTrack})
	writer.Push(TrackChange{})
	var output bytes.Buffer
	if e := writer.WriteToFile(&output); e != nil {
		t.Logf("Failed writing note pair (running status %v): %s\n",
			runningStatus, e)
		t.FailNow()
	}
	return output.Bytes()
}

func TestRunningStatusShortensOutput(t *testing.T) {
	plain := writeNotePair(t, false)
	compressed := writeNotePair(t, true)
	if len(compressed) != len(plain)-1 {
		t.Logf("Expected running status to save exactly 1 byte: plain "+
			"%d bytes, compressed %d bytes\n", len(plain), len(compressed))
		t.FailNow()
	}
	// Both forms must parse back to the same two events.
	for _, data := range [][]byte{plain, compressed} {
		handler := &recordingHandler{}
		if e := NewReader(bytes.NewReader(data), handler).Read(); e != nil {
			t.Logf("Failed parsing note pair: %s\n", e)
			t.FailNow()
		}
		first, ok := handler.events[1].event.(*NoteOnEvent)
		if !ok || (*first != NoteOnEvent{Channel: 2, Note: 0x3c,
			Velocity: 0x60}) {
			t.Logf("Got wrong first note: %s\n", handler.events[1].event)
			t.FailNow()
		}
		second, ok := handler.events[2].event.(*NoteOnEvent)
		if !ok || (*second != NoteOnEvent{Channel: 2, Note: 0x3e,
			Velocity: 0x60}) {
			t.Logf("Got wrong second note: %s\n", handler.events[2].event)
			t.FailNow()
		}
		if handler.events[2].deltaTime != 48 {
			t.Logf("Got wrong second delta time: %d\n",
				handler.events[2].deltaTime)
			t.FailNow()
		}
	}
}

func TestMetaEventResetsRunningStatus(t *testing.T) {
	writer := NewWriter().SetRunningStatus(true)
	writer.Push(&MidiEvent{
		DeltaTime: 0,
		Event:     &NoteOnEvent{Channel: 0, Note: 0x3c, Velocity: 0x40},
	})
	writer.Push(&MetaEvent{Type: MetaTextEvent, Data: []byte{'x'}})
	writer.Push(&MidiEvent{
		DeltaTime: 0,
		Event:     &NoteOnEvent{Channel: 0, Note: 0x3c, Velocity: 0x40},
	})
	writer.Push(&MetaEvent{Type: MetaEndOfTrack})
	writer.Push(TrackChange{})
	var output bytes.Buffer
	if e := writer.WriteToFile(&output); e != nil {
		t.Logf("Failed writing file: %s\n", e)
		t.FailNow()
	}
	expectedTrack := []byte{
		0, 0x90, 0x3c, 0x40,
		0, 0xff, 0x01, 1, 'x',
		// The second note must carry its full status byte again.
		0, 0x90, 0x3c, 0x40,
		0, 0xff, 0x2f, 0,
	}
	track := output.Bytes()[14+8:]
	if !bytes.Equal(track, expectedTrack) {
		t.Logf("Got wrong track bytes:\n  expected [% x]\n  got      "+
			"[% x]\n", expectedTrack, track)
		t.FailNow()
	}
}

// The concrete build-then-parse scenario: a single track holding a tempo
// and an end-of-track event.
func TestBuildTempoTrack(t *testing.T) {
	writer := NewWriter()
	writer.Push(&MetaEvent{
		DeltaTime: 0,
		Type:      MetaSetTempo,
		Data:      []byte{0x07, 0xa1, 0x20},
	})
	writer.Push(&MetaEvent{DeltaTime: 0, Type: MetaEndOfTrack})
	writer.Push(TrackChange{})
	var output bytes.Buffer
	if e := writer.WriteToFile(&output); e != nil {
		t.Logf("Failed writing tempo track file: %s\n", e)
		t.FailNow()
	}
	expected := []byte{
		'M', 'T', 'h', 'd',
		0, 0, 0, 6,
		0, 1,
		0, 1,
		0x01, 0xe0,
		'M', 'T', 'r', 'k',
		0, 0, 0, 11,
		0, 0xff, 0x51, 3, 0x07, 0xa1, 0x20,
		0, 0xff, 0x2f, 0,
	}
	if !bytes.Equal(output.Bytes(), expected) {
		t.Logf("Got wrong file bytes:\n  expected [% x]\n  got      "+
			"[% x]\n", expected, output.Bytes())
		t.FailNow()
	}
	handler := &recordingHandler{}
	if e := NewReader(&output, handler).Read(); e != nil {
		t.Logf("Failed parsing written file: %s\n", e)
		t.FailNow()
	}
	if (handler.format != Format1) || (handler.trackCount != 1) ||
		(handler.division.TicksPerQuarterNote() != 480) {
		t.Logf("Got wrong header: %s, %d tracks, %s\n", handler.format,
			handler.trackCount, handler.division)
		t.FailNow()
	}
	if len(handler.events) != 3 {
		t.Logf("Expected exactly 3 callbacks, got %d\n",
			len(handler.events))
		t.FailNow()
	}
	if handler.events[0].kind != "track" {
		t.Logf("Expected track-change first, got %s\n",
			handler.events[0].kind)
		t.FailNow()
	}
	tempo := handler.events[1]
	if (tempo.kind != "meta") || (tempo.metaType != MetaSetTempo) ||
		(tempo.deltaTime != 0) ||
		!bytes.Equal(tempo.data, []byte{0x07, 0xa1, 0x20}) {
		t.Logf("Got wrong tempo event: %+v\n", tempo)
		t.FailNow()
	}
	end := handler.events[2]
	if (end.kind != "meta") || (end.metaType != MetaEndOfTrack) ||
		(len(end.data) != 0) {
		t.Logf("Got wrong end-of-track event: %+v\n", end)
		t.FailNow()
	}
}

// Builds the two-track sample: a tempo track, then three notes played in
// sequence, compressed with running status.
func TestWriteSampleFile(t *testing.T) {
	tempo := uint32(60 * 1000000 / 102)
	writer := NewWriter().SetRunningStatus(true)
	writer.Push(&MetaEvent{
		DeltaTime: 0,
		Type:      MetaSetTempo,
		Data: []byte{uint8(tempo >> 16), uint8(tempo >> 8),
			uint8(tempo)},
	})
	writer.Push(&MetaEvent{DeltaTime: 0, Type: MetaEndOfTrack})
	writer.Push(TrackChange{})
	notes := []struct {
		delta    uint32
		note     MIDINote
		velocity uint8
	}{
		{0, 0x3c, 0x7f},
		{48, 0x3c, 0},
		{0, 0x3e, 0x7f},
		{48, 0x3e, 0},
		{0, 0x40, 0x7f},
		{192, 0x40, 0},
	}
	for _, n := range notes {
		writer.Push(&MidiEvent{
			DeltaTime: n.delta,
			Event: &NoteOnEvent{
				Channel:  0,
				Note:     n.note,
				Velocity: n.velocity,
			},
		})
	}
	writer.Push(&MetaEvent{DeltaTime: 0, Type: MetaEndOfTrack})
	writer.Push(TrackChange{})
	var output bytes.Buffer
	if e := writer.WriteToFile(&output); e != nil {
		t.Logf("Failed writing sample file: %s\n", e)
		t.FailNow()
	}
	expected := []byte{
		'M', 'T', 'h', 'd',
		0, 0, 0, 6,
		0, 1,
		0, 2,
		0x01, 0xe0,
		'M', 'T', 'r', 'k',
		0, 0, 0, 11,
		0, 0xff, 0x51, 3, 0x08, 0xf9, 0xcb,
		0, 0xff, 0x2f, 0,
		'M', 'T', 'r', 'k',
		0, 0, 0, 24,
		0, 0x90, 0x3c, 0x7f,
		0x30, 0x3c, 0,
		0, 0x3e, 0x7f,
		0x30, 0x3e, 0,
		0, 0x40, 0x7f,
		0x81, 0x40, 0x40, 0,
		0, 0xff, 0x2f, 0,
	}
	if !bytes.Equal(output.Bytes(), expected) {
		t.Logf("Got wrong file bytes:\n  expected [% x]\n  got      "+
			"[% x]\n", expected, output.Bytes())
		t.FailNow()
	}
	// The compressed form must parse back to the same six notes.
	handler := &recordingHandler{}
	if e := NewReader(&output, handler).Read(); e != nil {
		t.Logf("Failed parsing sample file: %s\n", e)
		t.FailNow()
	}
	parsed := 0
	for _, ev := range handler.events {
		if ev.kind != "midi" {
			continue
		}
		n := notes[parsed]
		got, ok := ev.event.(*NoteOnEvent)
		if !ok || (got.Note != n.note) || (got.Velocity != n.velocity) ||
			(ev.deltaTime != n.delta) {
			t.Logf("Note %d didn't round trip: %s, delta %d\n", parsed,
				ev.event, ev.deltaTime)
			t.FailNow()
		}
		parsed++
	}
	if parsed != len(notes) {
		t.Logf("Expected %d notes back, got %d\n", len(notes), parsed)
		t.FailNow()
	}
}

func TestWriterAccessors(t *testing.T) {
	writer := NewWriter()
	writer.Push(&MetaEvent{Type: MetaEndOfTrack})
	writer.Push(TrackChange{})
	if len(writer.Messages()) != 2 {
		t.Logf("Expected 2 messages, got %d\n", len(writer.Messages()))
		t.FailNow()
	}
	removed := writer.Remove(1)
	if !isTrackChange(removed) {
		t.Logf("Removed the wrong message: %s\n", removed)
		t.FailNow()
	}
	if len(writer.Messages()) != 1 {
		t.Logf("Expected 1 message after removal, got %d\n",
			len(writer.Messages()))
		t.FailNow()
	}
}
