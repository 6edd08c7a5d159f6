// Package scancode translates USB HID keyboard usages to PS/2 scan code
// set 2.
//
// Every code is returned length-prefixed, {N, BYTE 1, ..., BYTE N}, as a
// slice aliasing package-level storage. Callers must treat the result as
// read-only. A nil result means the key has nothing to send.
package scancode

import "github.com/tuffrabit/tinygo-ps2-bridge/pkg/hid"

// Maximum payload lengths of the static table entries. Keys that depend on
// modifier or LED state return longer fixed sequences.
const (
	MaxMake  = 2
	MaxBreak = 3
)

// Modifiers is the keyboard state that selects between alternative codes
// for the same key.
type Modifiers struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	// NumLock is the Num Lock LED as last set by the PS/2 host.
	NumLock bool
}

type entry struct {
	down [MaxMake + 1]byte
	up   [MaxBreak + 1]byte
}

func plain(code byte) entry {
	return entry{down: [MaxMake + 1]byte{1, code}, up: [MaxBreak + 1]byte{2, 0xF0, code}}
}

func extended(code byte) entry {
	return entry{down: [MaxMake + 1]byte{2, 0xE0, code}, up: [MaxBreak + 1]byte{3, 0xE0, 0xF0, code}}
}

// table holds every key whose code does not depend on keyboard state.
// Usages that have no set 2 equivalent are left zero.
var table = [hid.KeyMax]entry{
	hid.KeyEscape:     plain(0x76),
	hid.Key1:          plain(0x16),
	hid.Key2:          plain(0x1E),
	hid.Key3:          plain(0x26),
	hid.Key4:          plain(0x25),
	hid.Key5:          plain(0x2E),
	hid.Key6:          plain(0x36),
	hid.Key7:          plain(0x3D),
	hid.Key8:          plain(0x3E),
	hid.Key9:          plain(0x46),
	hid.Key0:          plain(0x45),
	hid.KeyMinus:      plain(0x4E),
	hid.KeyEqual:      plain(0x55),
	hid.KeyBackspace:  plain(0x66),
	hid.KeyTab:        plain(0x0D),
	hid.KeyQ:          plain(0x15),
	hid.KeyW:          plain(0x1D),
	hid.KeyE:          plain(0x24),
	hid.KeyR:          plain(0x2D),
	hid.KeyT:          plain(0x2C),
	hid.KeyY:          plain(0x35),
	hid.KeyU:          plain(0x3C),
	hid.KeyI:          plain(0x43),
	hid.KeyO:          plain(0x44),
	hid.KeyP:          plain(0x4D),
	hid.KeyLeftBrace:  plain(0x54),
	hid.KeyRightBrace: plain(0x5B),
	hid.KeyEnter:      plain(0x5A),
	hid.KeyLeftCtrl:   plain(0x14),
	hid.KeyA:          plain(0x1C),
	hid.KeyS:          plain(0x1B),
	hid.KeyD:          plain(0x23),
	hid.KeyF:          plain(0x2B),
	hid.KeyG:          plain(0x34),
	hid.KeyH:          plain(0x33),
	hid.KeyJ:          plain(0x3B),
	hid.KeyK:          plain(0x42),
	hid.KeyL:          plain(0x4B),
	hid.KeySemicolon:  plain(0x4C),
	hid.KeyQuote:      plain(0x52),
	hid.KeyGrave:      plain(0x0E),
	hid.KeyLeftShift:  plain(0x12),
	hid.KeyBackslash:  plain(0x5D),
	hid.KeyNonUSHash:  plain(0x5D),
	hid.KeyZ:          plain(0x1A),
	hid.KeyX:          plain(0x22),
	hid.KeyC:          plain(0x21),
	hid.KeyV:          plain(0x2A),
	hid.KeyB:          plain(0x32),
	hid.KeyN:          plain(0x31),
	hid.KeyM:          plain(0x3A),
	hid.KeyComma:      plain(0x41),
	hid.KeyDot:        plain(0x49),
	hid.KeySlash:      plain(0x4A),
	hid.KeyRightShift: plain(0x59),
	hid.KeyKPAsterisk: plain(0x7C),
	hid.KeyLeftAlt:    plain(0x11),
	hid.KeySpace:      plain(0x29),
	hid.KeyCapsLock:   plain(0x58),
	hid.KeyF1:         plain(0x05),
	hid.KeyF2:         plain(0x06),
	hid.KeyF3:         plain(0x04),
	hid.KeyF4:         plain(0x0C),
	hid.KeyF5:         plain(0x03),
	hid.KeyF6:         plain(0x0B),
	hid.KeyF7:         plain(0x83),
	hid.KeyF8:         plain(0x0A),
	hid.KeyF9:         plain(0x01),
	hid.KeyF10:        plain(0x09),
	hid.KeyF11:        plain(0x78),
	hid.KeyF12:        plain(0x07),
	hid.KeyNumLock:    plain(0x77),
	hid.KeyScrollLock: plain(0x7E),
	hid.KeyKP7:        plain(0x6C),
	hid.KeyKP8:        plain(0x75),
	hid.KeyKP9:        plain(0x7D),
	hid.KeyKPMinus:    plain(0x7B),
	hid.KeyKP4:        plain(0x6B),
	hid.KeyKP5:        plain(0x73),
	hid.KeyKP6:        plain(0x74),
	hid.KeyKPPlus:     plain(0x79),
	hid.KeyKP1:        plain(0x69),
	hid.KeyKP2:        plain(0x72),
	hid.KeyKP3:        plain(0x7A),
	hid.KeyKP0:        plain(0x70),
	hid.KeyKPDot:      plain(0x71),

	hid.KeyNonUSBackslash: plain(0x61),

	hid.KeyKPEnter:     extended(0x5A),
	hid.KeyRightCtrl:   extended(0x14),
	hid.KeyRightAlt:    extended(0x11),
	hid.KeyMute:        extended(0x23),
	hid.KeyVolumeDown:  extended(0x21),
	hid.KeyVolumeUp:    extended(0x32),
	hid.KeyLeftGUI:     extended(0x1F), // Windows logo
	hid.KeyRightGUI:    extended(0x27),
	hid.KeyApplication: extended(0x2F), // menu
}

// Make returns the code sent when key goes down or autorepeats.
func Make(key uint8, m Modifiers, autorepeat bool) []byte {
	if int(key) >= hid.KeyMax {
		return nil
	}

	switch key {
	case hid.KeyPrintScreen, hid.KeySysReq:
		return printScreenMake(m)
	case hid.KeyPause:
		if m.Ctrl {
			return ctrlBreakMake[:]
		}
		return pauseMake[:]
	}
	if n := navigationKey(key); n != nil {
		return n.makeCode(m, autorepeat)
	}

	e := &table[key]
	if e.down[0] == 0 {
		return nil
	}
	return e.down[:e.down[0]+1]
}

// Break returns the code sent when key goes up.
func Break(key uint8, m Modifiers) []byte {
	if int(key) >= hid.KeyMax {
		return nil
	}

	switch key {
	case hid.KeyPrintScreen, hid.KeySysReq:
		return printScreenBreak(m)
	case hid.KeyPause:
		// Pause/Break has no break code.
		return nil
	}
	if n := navigationKey(key); n != nil {
		return n.breakCode(m)
	}

	e := &table[key]
	if e.up[0] == 0 {
		return nil
	}
	return e.up[:e.up[0]+1]
}
