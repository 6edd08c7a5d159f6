package ps2

// Host command bytes.
const (
	cmdReset                 = 0xFF
	cmdResend                = 0xFE
	cmdSetKeyTypeMake        = 0xFD
	cmdSetKeyTypeMakeBreak   = 0xFC
	cmdSetKeyTypeTypematic   = 0xFB
	cmdSetAllTypematicMakeBr = 0xFA
	cmdSetAllMake            = 0xF9
	cmdSetAllMakeBreak       = 0xF8
	cmdSetAllTypematic       = 0xF7
	cmdSetDefault            = 0xF6
	cmdDisable               = 0xF5
	cmdEnable                = 0xF4
	cmdSetTypematicRate      = 0xF3
	cmdReadID                = 0xF2
	cmdSetScanCodeSet        = 0xF0
	cmdEcho                  = 0xEE
	cmdSetLEDs               = 0xED
)

// Device replies.
const (
	ReplyResend      = 0xFE
	ReplyAcknowledge = 0xFA
	ReplyEcho        = 0xEE
	ReplyBATSuccess  = 0xAA
	ReplyID0         = 0xAB
	ReplyID1         = 0x83
)

// readIDReply is queued as one scan code frame so the three bytes go out
// back to back.
var readIDReply = [...]byte{3, ReplyAcknowledge, ReplyID0, ReplyID1}

// AwaitsArgument reports whether the host sends b as the first of two bytes.
func AwaitsArgument(b byte) bool {
	switch b {
	case cmdSetTypematicRate, cmdSetScanCodeSet, cmdSetLEDs:
		return true
	}
	return false
}

// isNoOp reports whether b is a configuration command that is acknowledged
// and otherwise ignored. Only scan code set 2 with make/break/typematic for
// every key is implemented.
func isNoOp(b byte) bool {
	return b >= cmdSetDefault && b <= cmdSetKeyTypeMake
}

var commandNames = map[byte]string{
	cmdReset:            "Reset",
	cmdResend:           "Resend",
	cmdSetDefault:       "SetDefault",
	cmdDisable:          "Disable",
	cmdEnable:           "Enable",
	cmdSetTypematicRate: "Typematic",
	cmdReadID:           "ReadID",
	cmdSetScanCodeSet:   "ScanSet",
	cmdEcho:             "Echo",
	cmdSetLEDs:          "SetLEDs",
}

// CommandName returns a short name for a host command byte. Legacy scan code
// set 3 commands are reported as "NoOp", anything else as "Unknown".
func CommandName(b byte) string {
	if name, ok := commandNames[b]; ok {
		return name
	}
	if isNoOp(b) {
		return "NoOp"
	}
	return "Unknown"
}
