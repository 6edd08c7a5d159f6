package display

import (
	"fmt"
	"strings"

	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/ps2"
)

// lineBytes is how many recent bytes fit on a 16 column row after the
// direction prefix.
const lineBytes = 4

// Traffic records the most recent PS/2 bytes in each direction and renders
// them as short display rows. It implements ps2.Monitor.
type Traffic struct {
	host   history
	device history

	// command is the host command whose argument byte is expected next.
	command    byte
	hasCommand bool
	hostName   string

	dirty bool
}

type history struct {
	bytes [lineBytes]byte
	n     int
}

func (h *history) push(b byte) {
	if h.n == lineBytes {
		copy(h.bytes[:], h.bytes[1:])
		h.n--
	}
	h.bytes[h.n] = b
	h.n++
}

func (h *history) last() (byte, bool) {
	if h.n == 0 {
		return 0, false
	}
	return h.bytes[h.n-1], true
}

func (h *history) String() string {
	return FormatBytes(h.bytes[:h.n])
}

// HostByte records a byte received from the host.
func (t *Traffic) HostByte(b byte) {
	t.host.push(b)
	switch {
	case t.hasCommand:
		t.hostName = fmt.Sprintf("%s %02X", ps2.CommandName(t.command), b)
		t.hasCommand = false
	case ps2.AwaitsArgument(b):
		t.command = b
		t.hasCommand = true
		t.hostName = ps2.CommandName(b)
	default:
		t.hostName = ps2.CommandName(b)
	}
	t.dirty = true
}

// DeviceByte records a byte queued for the host.
func (t *Traffic) DeviceByte(b byte) {
	t.device.push(b)
	t.dirty = true
}

// Dirty reports whether a byte arrived since the last call to Rows.
func (t *Traffic) Dirty() bool { return t.dirty }

// Rows returns the four monitor rows: host bytes, host command, device
// bytes and the meaning of the last device byte.
func (t *Traffic) Rows() [4]string {
	t.dirty = false

	var deviceName string
	if b, ok := t.device.last(); ok {
		deviceName = DeviceByteName(b)
	}
	return [4]string{
		"H:" + t.host.String(),
		" " + t.hostName,
		"D:" + t.device.String(),
		" " + deviceName,
	}
}

// FormatBytes renders bs as space separated hex.
func FormatBytes(bs []byte) string {
	var b strings.Builder
	for i, v := range bs {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}

// DeviceByteName returns a short name for a byte sent by the keyboard.
func DeviceByteName(b byte) string {
	switch b {
	case ps2.ReplyAcknowledge:
		return "ACK"
	case ps2.ReplyBATSuccess:
		return "BAT ok"
	case ps2.ReplyEcho:
		return "Echo"
	case ps2.ReplyResend:
		return "Resend"
	case 0xF0:
		return "Break"
	case 0xE0:
		return "Extended"
	case 0xE1:
		return "Pause"
	default:
		return fmt.Sprintf("Code %02X", b)
	}
}

// truncate limits a string to maxLen characters, adding ".." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 2 {
		return s[:maxLen]
	}
	return s[:maxLen-2] + ".."
}
