// Package queue holds the outgoing PS/2 scan codes.
//
// Ring is a fixed-capacity circular byte buffer. Frames layers the
// length-prefixed scan code framing on top of it:
//
//	[LEN][BYTE 1]...[BYTE LEN][LEN][BYTE 1]...
//
// Whenever the buffer is non-empty its first byte is the length of the next
// frame.
package queue

// Capacity is the size of the scan code buffer in bytes.
const Capacity = 32

// Ring is a fixed-capacity FIFO of bytes. It does no locking; callers provide
// mutual exclusion.
type Ring struct {
	buf   [Capacity]byte
	start int
	size  int
}

// PushBack appends b. It returns false and leaves the ring untouched when
// the ring is full.
func (r *Ring) PushBack(b byte) bool {
	if r.size >= Capacity {
		return false
	}
	r.buf[r.index(r.size)] = b
	r.size++
	return true
}

// PopFront removes and returns the first byte. An empty ring yields 0.
func (r *Ring) PopFront() byte {
	if r.size == 0 {
		return 0
	}
	b := r.buf[r.start]
	r.start++
	if r.start >= Capacity {
		r.start -= Capacity
	}
	r.size--
	return b
}

// At returns the i-th byte from the front. The result is meaningless when
// i >= Len().
func (r *Ring) At(i int) byte {
	return r.buf[r.index(i)]
}

// Front returns the first byte. Check Empty first.
func (r *Ring) Front() byte { return r.At(0) }

// Back returns the last byte. Check Empty first.
func (r *Ring) Back() byte { return r.At(r.size - 1) }

// Clear empties the ring. Stored bytes are left in place but become
// unreachable.
func (r *Ring) Clear() { r.size = 0 }

func (r *Ring) Len() int    { return r.size }
func (r *Ring) Cap() int    { return Capacity }
func (r *Ring) Empty() bool { return r.size == 0 }

func (r *Ring) index(i int) int {
	i = (r.start + i) % Capacity
	if i < 0 {
		i += Capacity
	}
	return i
}
