package device

// Ring is a fixed-capacity circular byte store addressed by absolute stream
// position. Position p lives at offset p mod Cap(); the write counter never
// resets, so positions stay comparable across wraparound.
//
// Ring is not safe for concurrent use; [Instance] serializes access.
type Ring struct {
	buf     []byte
	written uint64
}

// NewRing allocates a ring of the given capacity in bytes.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		panic("ring capacity must be positive")
	}
	return &Ring{buf: make([]byte, capacity)}
}

// Cap returns the ring capacity in bytes.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Written returns the total number of bytes ever appended.
func (r *Ring) Written() uint64 {
	return r.written
}

// Retained returns how many of the most recent bytes are still recoverable.
func (r *Ring) Retained() int {
	if r.written < uint64(len(r.buf)) {
		return int(r.written)
	}
	return len(r.buf)
}

// Oldest returns the stream position of the oldest recoverable byte.
func (r *Ring) Oldest() uint64 {
	return r.written - uint64(r.Retained())
}

// Append writes p at the write front, wrapping at the end of storage and
// overwriting the oldest bytes. When p is longer than the ring only its
// final Cap() bytes survive, but the write counter still advances by len(p).
func (r *Ring) Append(p []byte) {
	if len(p) == 0 {
		return
	}

	size := len(r.buf)
	start := r.written
	src := p
	if len(src) > size {
		skip := len(src) - size
		src = src[skip:]
		start += uint64(skip)
	}

	off := int(start % uint64(size))
	n := copy(r.buf[off:], src)
	copy(r.buf, src[n:])

	r.written += uint64(len(p))
}

// CopyFrom copies bytes starting at stream position pos into dst and returns
// the count, which is min(len(dst), Written()-pos). It copies nothing when
// pos is at the write front or outside the retained window.
func (r *Ring) CopyFrom(pos uint64, dst []byte) int {
	if pos < r.Oldest() || pos >= r.written {
		return 0
	}

	n := len(dst)
	if avail := r.written - pos; uint64(n) > avail {
		n = int(avail)
	}

	off := int(pos % uint64(len(r.buf)))
	c := copy(dst[:n], r.buf[off:])
	copy(dst[c:n], r.buf)
	return n
}
