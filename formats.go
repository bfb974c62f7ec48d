package ghakuf

import (
	"fmt"
	"io"
)

// The 4-byte markers identifying the two SMF chunk types.
var (
	headerChunkMarker = [4]byte{'M', 'T', 'h', 'd'}
	trackChunkMarker  = [4]byte{'M', 'T', 'r', 'k'}
)

// Format specifies the track layout declared by an SMF header chunk.
type Format uint16

const (
	// Format0 files contain a single track.
	Format0 Format = 0
	// Format1 files contain multiple tracks played simultaneously.
	Format1 Format = 1
	// Format2 files contain multiple independent single-track sequences.
	Format2 Format = 2
)

func (f Format) String() string {
	if f > 2 {
		return fmt.Sprintf("invalid SMF format %d", uint16(f))
	}
	return fmt.Sprintf("format %d", uint16(f))
}

// Converts a header format field to a Format, rejecting anything other
// than 0, 1, or 2.
func parseFormat(v uint16) (Format, error) {
	if v > 2 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidFormat, v)
	}
	return Format(v), nil
}

// TimeDivision is the raw division field of the header chunk. It either
// specifies ticks per quarter note, or an SMPTE frames-per-second time
// code, depending on its high bit.
type TimeDivision uint16

// Returns the number of ticks per quarter note, or 0 if the division
// specifies SMPTE timing instead.
func (d TimeDivision) TicksPerQuarterNote() uint16 {
	if (d & 0x8000) != 0 {
		return 0
	}
	return uint16(d)
}

// Returns the SMPTE frames per second followed by the number of ticks per
// frame. Returns 0, 0 if the division specifies ticks per quarter note
// instead.
func (d TimeDivision) SMPTETimeCode() (uint8, uint8) {
	if (d & 0x8000) == 0 {
		return 0, 0
	}
	// The frames per second is stored as a negative 2's complement 8-bit
	// value; flip it to its positive equivalent.
	fps := uint8(-int8(d >> 8))
	ticksPerFrame := uint8(d & 0xff)
	return fps, ticksPerFrame
}

func (d TimeDivision) String() string {
	if (d & 0x7fff) == 0 {
		return fmt.Sprintf("invalid time division 0x%04x", uint16(d))
	}
	if ticks := d.TicksPerQuarterNote(); ticks != 0 {
		return fmt.Sprintf("%d ticks per quarter note", ticks)
	}
	fps, ticksPerFrame := d.SMPTETimeCode()
	return fmt.Sprintf("%d frames per second, %d ticks per frame", fps,
		ticksPerFrame)
}

// The largest value representable as a 4-byte variable-length quantity.
const maxVLQValue = 0x0fffffff

// Reads and returns the next byte from r.
func readByte(r io.Reader) (uint8, error) {
	tmp := []uint8{0}
	_, e := r.Read(tmp)
	return tmp[0], e
}

// ReadVLQ decodes a variable-length quantity from r: big-endian, 7 bits
// per byte, high bit set on every byte except the last. At most 4 encoded
// bytes are accepted (values up to 0x0fffffff); a 4th byte with its
// continuation bit still set fails with ErrInvalidVLQ. Returns io.EOF if
// and only if the input ends before the first byte, so callers can tell
// "no more data" apart from a torn quantity.
func ReadVLQ(r io.Reader) (uint32, error) {
	value := uint32(0)
	for i := 0; i < 4; i++ {
		b, e := readByte(r)
		if e != nil {
			if i == 0 {
				// Propagate io.EOF from the first byte unchanged.
				return 0, e
			}
			return 0, fmt.Errorf("failed reading full variable-length "+
				"quantity: %w", e)
		}
		value |= uint32(b & 0x7f)
		if (b & 0x80) == 0 {
			return value, nil
		}
		if i == 3 {
			return 0, fmt.Errorf("%w: continuation bit set on byte 4",
				ErrInvalidVLQ)
		}
		value <<= 7
	}
	return value, nil
}

// WriteVLQ encodes n to w as a variable-length quantity using the minimal
// number of bytes. Values larger than 0x0fffffff fail with ErrInvalidVLQ.
func WriteVLQ(w io.Writer, n uint32) error {
	if n > maxVLQValue {
		return fmt.Errorf("%w: 0x%08x does not fit in 4 bytes",
			ErrInvalidVLQ, n)
	}
	if n == 0 {
		_, e := w.Write([]byte{0})
		return e
	}
	// Split into 7-bit groups, least significant first, then emit them in
	// reverse with the continuation bit set on all but the final byte.
	groups := make([]byte, 0, 4)
	for n != 0 {
		groups = append(groups, uint8(n&0x7f))
		n >>= 7
	}
	encoded := make([]byte, len(groups))
	for i := len(groups) - 1; i >= 0; i-- {
		b := groups[i]
		if i != 0 {
			b |= 0x80
		}
		encoded[len(encoded)-i-1] = b
	}
	_, e := w.Write(encoded)
	return e
}
