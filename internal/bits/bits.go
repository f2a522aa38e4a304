// Package bits provides MSB-first bit-level reading and writing over byte
// buffers, used to decode the bit-packed ATSC 3.0 L1 signaling structures.
package bits

// MaxWidth is the largest field width Bits will extract in one call.
const MaxWidth = 64

// Reader extracts fixed-width unsigned integers from a byte buffer,
// MSB-first. The cursor only moves forward; once a read runs past the end
// of the buffer the reader is truncated: the cursor is pinned at the end
// and every later read reports truncation too.
type Reader struct {
	data      []byte
	pos       int // bit offset from the start of data
	truncated bool
}

// NewReader returns a Reader positioned at the first bit of data.
// The buffer is not copied; callers must not mutate it during decoding.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Bits reads n bits (1..64) and advances the cursor. The bits are returned
// right-aligned in the result, first bit read in the highest position.
// If fewer than n bits remain, no value is synthesized: the cursor moves to
// the end of the buffer, the reader becomes truncated, and Bits returns
// (0, false). A width outside 1..64 is also reported as a failed read
// without consuming anything.
func (r *Reader) Bits(n int) (uint64, bool) {
	if n < 1 || n > MaxWidth {
		return 0, false
	}
	if r.truncated || r.pos+n > len(r.data)*8 {
		r.pos = len(r.data) * 8
		r.truncated = true
		return 0, false
	}

	var v uint64
	for i := 0; i < n; i++ {
		byteIdx := r.pos >> 3
		bitIdx := 7 - (r.pos & 7)
		v = v << 1
		if r.data[byteIdx]&(1<<bitIdx) != 0 {
			v |= 1
		}
		r.pos++
	}
	return v, true
}

// Skip advances the cursor by n bits without returning a value. Skipping
// past the end truncates the reader, same as Bits.
func (r *Reader) Skip(n int) bool {
	if n < 0 {
		return false
	}
	if r.truncated || r.pos+n > len(r.data)*8 {
		r.pos = len(r.data) * 8
		r.truncated = true
		return false
	}
	r.pos += n
	return true
}

// Offset returns the cursor position in bits from the start of the buffer.
func (r *Reader) Offset() int { return r.pos }

// Remaining returns the number of unread bits.
func (r *Reader) Remaining() int { return len(r.data)*8 - r.pos }

// Truncated reports whether any read or skip has run past the end of the
// buffer. Once set it never clears.
func (r *Reader) Truncated() bool { return r.truncated }

// Writer packs fixed-width unsigned integers into a byte buffer, MSB-first.
// It is the mirror image of Reader and exists mainly so tests and payload
// generators can build synthetic signaling streams bit by bit.
type Writer struct {
	data []byte
	pos  int // bit offset of the next write
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// PutBits appends the low n bits (1..64) of v, MSB-first.
func (w *Writer) PutBits(v uint64, n int) {
	if n < 1 || n > MaxWidth {
		return
	}
	for i := n - 1; i >= 0; i-- {
		if w.pos>>3 >= len(w.data) {
			w.data = append(w.data, 0)
		}
		if v&(1<<i) != 0 {
			w.data[w.pos>>3] |= 1 << (7 - (w.pos & 7))
		}
		w.pos++
	}
}

// Len returns the number of bits written so far.
func (w *Writer) Len() int { return w.pos }

// Bytes returns the packed buffer. Unwritten bits in the final byte are zero.
func (w *Writer) Bytes() []byte {
	out := make([]byte, len(w.data))
	copy(out, w.data)
	return out
}
