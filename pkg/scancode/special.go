package scancode

import "github.com/tuffrabit/tinygo-ps2-bridge/pkg/hid"

// Print Screen / SysRq:
//
//	Alt held (any Shift/Ctrl):  84
//	Shift or Ctrl held:         E0 7C
//	nothing held:               E0 12 E0 7C (fake Left Shift press first)
var (
	sysReqMake        = [...]byte{1, 0x84}
	sysReqBreak       = [...]byte{2, 0xF0, 0x84}
	printScreenModMk  = [...]byte{2, 0xE0, 0x7C}
	printScreenModBrk = [...]byte{3, 0xE0, 0xF0, 0x7C}
	printScreenMk     = [...]byte{4, 0xE0, 0x12, 0xE0, 0x7C}
	printScreenBrk    = [...]byte{6, 0xE0, 0xF0, 0x7C, 0xE0, 0xF0, 0x12}
)

// Pause/Break is make-only.
var (
	pauseMake     = [...]byte{8, 0xE1, 0x14, 0x77, 0xE1, 0xF0, 0x14, 0xF0, 0x77}
	ctrlBreakMake = [...]byte{5, 0xE0, 0x7E, 0xE0, 0xF0, 0x7E}
)

func printScreenMake(m Modifiers) []byte {
	switch {
	case m.Alt:
		return sysReqMake[:]
	case m.Ctrl || m.Shift:
		return printScreenModMk[:]
	default:
		return printScreenMk[:]
	}
}

func printScreenBreak(m Modifiers) []byte {
	switch {
	case m.Alt:
		return sysReqBreak[:]
	case m.Ctrl || m.Shift:
		return printScreenModBrk[:]
	default:
		return printScreenBrk[:]
	}
}

// navigation holds the keys that share their base code with the numeric
// keypad. The host tracks Shift and Num Lock and would read a bare E0-prefixed
// code as the keypad digit in some states, so the keyboard wraps the code in
// fake Left Shift releases or presses:
//
//	Shift held, Num Lock off:  make E0 F0 12 E0 xx   break E0 F0 xx E0 12
//	Shift free, Num Lock on:   make E0 12 E0 xx      break E0 F0 xx E0 F0 12
//	otherwise:                 make E0 xx            break E0 F0 xx
type navigation struct {
	key uint8

	shiftMake  [6]byte
	numMake    [5]byte
	plainMake  [3]byte
	shiftBreak [6]byte
	numBreak   [7]byte
	plainBreak [4]byte
}

func newNavigation(key uint8, code byte) navigation {
	return navigation{
		key:        key,
		shiftMake:  [6]byte{5, 0xE0, 0xF0, 0x12, 0xE0, code},
		numMake:    [5]byte{4, 0xE0, 0x12, 0xE0, code},
		plainMake:  [3]byte{2, 0xE0, code},
		shiftBreak: [6]byte{5, 0xE0, 0xF0, code, 0xE0, 0x12},
		numBreak:   [7]byte{6, 0xE0, 0xF0, code, 0xE0, 0xF0, 0x12},
		plainBreak: [4]byte{3, 0xE0, 0xF0, code},
	}
}

var navigationKeys = [...]navigation{
	newNavigation(hid.KeyHome, 0x6C),
	newNavigation(hid.KeyUp, 0x75),
	newNavigation(hid.KeyPageUp, 0x7D),
	newNavigation(hid.KeyLeft, 0x6B),
	newNavigation(hid.KeyRight, 0x74),
	newNavigation(hid.KeyEnd, 0x69),
	newNavigation(hid.KeyDown, 0x72),
	newNavigation(hid.KeyPageDown, 0x7A),
	newNavigation(hid.KeyInsert, 0x70),
	newNavigation(hid.KeyDelete, 0x71),
	newNavigation(hid.KeyKPSlash, 0x4A),
}

func navigationKey(key uint8) *navigation {
	for i := range navigationKeys {
		if navigationKeys[i].key == key {
			return &navigationKeys[i]
		}
	}
	return nil
}

// makeCode omits the Shift wrapper on autorepeat: the host already saw the
// fake Shift transition with the first make.
func (n *navigation) makeCode(m Modifiers, autorepeat bool) []byte {
	switch {
	case m.Shift && !m.NumLock && !autorepeat:
		return n.shiftMake[:]
	case !m.Shift && m.NumLock && !autorepeat:
		return n.numMake[:]
	default:
		return n.plainMake[:]
	}
}

func (n *navigation) breakCode(m Modifiers) []byte {
	switch {
	case m.Shift && !m.NumLock:
		return n.shiftBreak[:]
	case !m.Shift && m.NumLock:
		return n.numBreak[:]
	default:
		return n.plainBreak[:]
	}
}
