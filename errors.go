package ghakuf

import "errors"

// Errors returned while parsing or building SMF data. Functions in this
// package wrap these with additional context, so callers should match them
// using errors.Is.
var (
	// ErrMalformedChunkMarker indicates a chunk didn't begin with the
	// expected 4-byte "MThd" or "MTrk" marker.
	ErrMalformedChunkMarker = errors.New("malformed chunk marker")
	// ErrTruncatedInput indicates the input ended before a field it
	// declared was fully read.
	ErrTruncatedInput = errors.New("unexpected end of input")
	// ErrInvalidVLQ indicates a variable-length quantity that exceeds 4
	// encoded bytes, or a value too large to encode in 4 bytes.
	ErrInvalidVLQ = errors.New("invalid variable-length quantity")
	// ErrUnrecognizedStatusByte indicates an event status byte that isn't
	// a meta, sysex, or channel voice status, or a data byte encountered
	// when no running status was in effect.
	ErrUnrecognizedStatusByte = errors.New("unrecognized status byte")
	// ErrInvalidFormat indicates a header format field other than 0, 1,
	// or 2.
	ErrInvalidFormat = errors.New("invalid SMF format")
	// ErrMissingTrackBoundary indicates a Writer message sequence
	// containing events that are never closed by a TrackChange marker.
	ErrMissingTrackBoundary = errors.New("no track boundary in message sequence")
	// ErrChunkLengthMismatch indicates a chunk whose declared byte length
	// doesn't line up with the events it actually contains.
	ErrChunkLengthMismatch = errors.New("chunk length mismatch")
	// ErrNoValidHandler indicates Read was called on a Reader whose
	// handlers all report HandlerSkipAll.
	ErrNoValidHandler = errors.New("no handler will accept events")
)
