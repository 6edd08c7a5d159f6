package main

import "github.com/tuffrabit/tinygo-ps2-bridge/pkg/hid"

// typed is a key plus whether Shift must be held to type it.
type typed struct {
	key   uint8
	shift bool
}

// asciiKeys maps terminal input on a US layout.
var asciiKeys = map[byte]typed{
	' ': {hid.KeySpace, false}, '\r': {hid.KeyEnter, false}, '\n': {hid.KeyEnter, false},
	'\t': {hid.KeyTab, false}, 0x7F: {hid.KeyBackspace, false}, 0x08: {hid.KeyBackspace, false},
	'-': {hid.KeyMinus, false}, '_': {hid.KeyMinus, true},
	'=': {hid.KeyEqual, false}, '+': {hid.KeyEqual, true},
	'[': {hid.KeyLeftBrace, false}, '{': {hid.KeyLeftBrace, true},
	']': {hid.KeyRightBrace, false}, '}': {hid.KeyRightBrace, true},
	'\\': {hid.KeyBackslash, false}, '|': {hid.KeyBackslash, true},
	';': {hid.KeySemicolon, false}, ':': {hid.KeySemicolon, true},
	'\'': {hid.KeyQuote, false}, '"': {hid.KeyQuote, true},
	'`': {hid.KeyGrave, false}, '~': {hid.KeyGrave, true},
	',': {hid.KeyComma, false}, '<': {hid.KeyComma, true},
	'.': {hid.KeyDot, false}, '>': {hid.KeyDot, true},
	'/': {hid.KeySlash, false}, '?': {hid.KeySlash, true},
	'!': {hid.Key1, true}, '@': {hid.Key2, true}, '#': {hid.Key3, true},
	'$': {hid.Key4, true}, '%': {hid.Key5, true}, '^': {hid.Key6, true},
	'&': {hid.Key7, true}, '*': {hid.Key8, true}, '(': {hid.Key9, true},
	')': {hid.Key0, true},
}

// escapeKeys maps the final byte of ESC [ x cursor sequences.
var escapeKeys = map[byte]uint8{
	'A': hid.KeyUp,
	'B': hid.KeyDown,
	'C': hid.KeyRight,
	'D': hid.KeyLeft,
	'H': hid.KeyHome,
	'F': hid.KeyEnd,
}

// lookupASCII returns the key that types c.
func lookupASCII(c byte) (typed, bool) {
	switch {
	case c >= 'a' && c <= 'z':
		return typed{hid.KeyA + c - 'a', false}, true
	case c >= 'A' && c <= 'Z':
		return typed{hid.KeyA + c - 'A', true}, true
	case c == '0':
		return typed{hid.Key0, false}, true
	case c >= '1' && c <= '9':
		return typed{hid.Key1 + c - '1', false}, true
	}
	t, ok := asciiKeys[c]
	return t, ok
}
