package hid

import "strings"

var namedKeys = map[string]uint8{
	"enter": KeyEnter, "escape": KeyEscape, "esc": KeyEscape,
	"backspace": KeyBackspace, "tab": KeyTab, "space": KeySpace,
	"minus": KeyMinus, "equal": KeyEqual,
	"leftbrace": KeyLeftBrace, "rightbrace": KeyRightBrace,
	"backslash": KeyBackslash, "nonushash": KeyNonUSHash,
	"semicolon": KeySemicolon, "quote": KeyQuote, "grave": KeyGrave,
	"comma": KeyComma, "dot": KeyDot, "slash": KeySlash,
	"capslock": KeyCapsLock,
	"f1": KeyF1, "f2": KeyF2, "f3": KeyF3, "f4": KeyF4, "f5": KeyF5, "f6": KeyF6,
	"f7": KeyF7, "f8": KeyF8, "f9": KeyF9, "f10": KeyF10, "f11": KeyF11, "f12": KeyF12,
	"printscreen": KeyPrintScreen, "scrolllock": KeyScrollLock, "pause": KeyPause,
	"insert": KeyInsert, "home": KeyHome, "pageup": KeyPageUp,
	"delete": KeyDelete, "end": KeyEnd, "pagedown": KeyPageDown,
	"right": KeyRight, "left": KeyLeft, "down": KeyDown, "up": KeyUp,
	"numlock": KeyNumLock,
	"kpslash": KeyKPSlash, "kpasterisk": KeyKPAsterisk, "kpminus": KeyKPMinus,
	"kpplus": KeyKPPlus, "kpenter": KeyKPEnter, "kpdot": KeyKPDot,
	"kp0": KeyKP0, "kp1": KeyKP1, "kp2": KeyKP2, "kp3": KeyKP3, "kp4": KeyKP4,
	"kp5": KeyKP5, "kp6": KeyKP6, "kp7": KeyKP7, "kp8": KeyKP8, "kp9": KeyKP9,
	"nonusbackslash": KeyNonUSBackslash, "application": KeyApplication,
	"mute": KeyMute, "volumeup": KeyVolumeUp, "volumedown": KeyVolumeDown,
	"sysreq": KeySysReq,
	"leftctrl": KeyLeftCtrl, "leftshift": KeyLeftShift, "leftalt": KeyLeftAlt, "leftgui": KeyLeftGUI,
	"rightctrl": KeyRightCtrl, "rightshift": KeyRightShift, "rightalt": KeyRightAlt, "rightgui": KeyRightGUI,
}

// KeyByName looks up a usage by a case-insensitive name: a single letter or
// digit, or the constant name without the Key prefix ("LeftShift", "KP7").
func KeyByName(name string) (uint8, bool) {
	n := strings.ToLower(name)
	if len(n) == 1 {
		switch c := n[0]; {
		case c >= 'a' && c <= 'z':
			return KeyA + c - 'a', true
		case c == '0':
			return Key0, true
		case c >= '1' && c <= '9':
			return Key1 + c - '1', true
		}
	}
	key, ok := namedKeys[n]
	return key, ok
}
