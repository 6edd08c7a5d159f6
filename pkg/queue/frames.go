package queue

import "github.com/tuffrabit/tinygo-ps2-bridge/pkg/critical"

// Frames is the outgoing scan code queue. The producer side (PassByte, Emit,
// Clear) and the consumer side (Head, Payload, RemoveHead) both run in the
// polling loop; RemoveHead additionally runs inside the critical section so
// the length-prefix invariant holds even as seen from the tick interrupt.
type Frames struct {
	ring Ring
	sec  critical.Section

	// Payload bytes still expected for the frame the producer is writing.
	remaining byte
	// Set when any part of the producer's current frame was dropped; the
	// rest of that frame is then dropped too.
	skipped bool
}

// NewFrames returns an empty queue whose frame removal is guarded by sec.
func NewFrames(sec critical.Section) *Frames {
	return &Frames{sec: sec}
}

// PassByte feeds one byte of the length-prefixed stream
// {LEN, BYTE 1, ..., BYTE LEN}. accepting reports whether the keyboard is
// enabled and not busy with a host command. Bytes that cannot be stored are
// dropped together with the rest of their frame; a frame is never stored
// partially.
func (f *Frames) PassByte(b byte, accepting bool) {
	if f.remaining == 0 {
		f.remaining = b
		if accepting {
			f.skipped = false
		}
	} else {
		f.remaining--
	}

	// The length bookkeeping above must happen even for dropped bytes,
	// otherwise a dropped length byte would shift every later frame.
	if 1+int(f.remaining)+f.ring.Len() > Capacity {
		f.skipped = true
		return
	}

	if !accepting {
		if f.remaining != 0 {
			f.skipped = true
		}
		return
	}

	if f.skipped {
		return
	}

	f.ring.PushBack(b)
}

// Emit feeds a whole length-prefixed code through PassByte. Empty codes are
// ignored.
func (f *Frames) Emit(code []byte, accepting bool) {
	if len(code) == 0 || code[0] == 0 {
		return
	}
	for _, b := range code[:int(code[0])+1] {
		f.PassByte(b, accepting)
	}
}

// Clear drops every queued frame. A frame the producer is halfway through is
// marked as skipped.
func (f *Frames) Clear() {
	if f.remaining != 0 {
		f.skipped = true
	}
	f.ring.Clear()
}

// Head returns the length of the first frame and whether all of its payload
// bytes are present.
func (f *Frames) Head() (length int, ready bool) {
	if f.ring.Empty() {
		return 0, false
	}
	length = int(f.ring.Front())
	return length, f.ring.Len() >= length+1
}

// Payload returns byte i (zero based) of the first frame.
func (f *Frames) Payload(i int) byte {
	return f.ring.At(i + 1)
}

// RemoveHead removes the first frame as one indivisible operation.
func (f *Frames) RemoveHead() {
	critical.Do(f.sec, func() {
		if f.ring.Empty() {
			return
		}
		n := int(f.ring.Front())
		for i := 0; i <= n; i++ {
			f.ring.PopFront()
		}
	})
}

// Len returns the number of queued bytes including length prefixes.
func (f *Frames) Len() int { return f.ring.Len() }

func (f *Frames) Empty() bool { return f.ring.Empty() }
