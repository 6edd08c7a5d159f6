package hid

// ReportSize is the length of a boot protocol keyboard input report.
const ReportSize = 8

// keyRollOver is reported in every key slot while too many keys are held.
const keyRollOver = 0x01

// maxPressed covers the six report slots plus the eight modifier bits.
const maxPressed = 6 + 8

// Report is a boot protocol keyboard input report:
//
//	[MODIFIERS:1][RESERVED:1][KEY:6]
type Report [ReportSize]byte

// Modifiers returns the modifier bitmap.
func (r *Report) Modifiers() uint8 { return r[0] }

// Keys returns the six key slots.
func (r *Report) Keys() []byte { return r[2:8] }

// rollOver reports whether the keyboard signalled a phantom state.
func (r *Report) rollOver() bool {
	for _, k := range r.Keys() {
		if k == keyRollOver {
			return true
		}
	}
	return false
}

// Sink receives key transitions.
type Sink interface {
	KeyPressed(key uint8)
	KeyReleased(key uint8)
	KeyRepeated(key uint8)
}

// Tracker turns successive boot reports into press and release
// transitions. Modifier bits are reported as their own usage IDs.
type Tracker struct {
	pressed [maxPressed]uint8
}

// Update diffs r against the previous report and calls sink for every key
// that went down or up. Presses are reported before releases.
func (t *Tracker) Update(r *Report, sink Sink) {
	if r.rollOver() {
		return
	}

	var current [maxPressed]uint8
	n := copy(current[:], r.Keys())
	for bit, key := range modifierKeys {
		if r.Modifiers()&(1<<bit) != 0 {
			current[n] = key
			n++
		}
	}

	for _, key := range current {
		if key != KeyNone && !contains(t.pressed[:], key) {
			sink.KeyPressed(key)
		}
	}
	for _, key := range t.pressed {
		if key != KeyNone && !contains(current[:], key) {
			sink.KeyReleased(key)
		}
	}

	t.pressed = current
}

// Reset forgets every held key, for example after the keyboard was
// unplugged. No release events are generated.
func (t *Tracker) Reset() {
	t.pressed = [maxPressed]uint8{}
}

func contains(keys []uint8, key uint8) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
