package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/hid"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/ps2"
)

var errQuit = errors.New("quit")

// parseHex parses space separated hex bytes such as "ED 02".
func parseHex(args ...string) ([]byte, error) {
	var out []byte
	for _, a := range args {
		for _, f := range strings.Fields(a) {
			v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(f), "0x"), 16, 8)
			if err != nil {
				return nil, fmt.Errorf("bad hex byte %q", f)
			}
			out = append(out, byte(v))
		}
	}
	return out, nil
}

func formatHex(bs []byte) string {
	var b strings.Builder
	for i, v := range bs {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}

func parseKey(args []string) (uint8, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one key name")
	}
	key, ok := hid.KeyByName(args[0])
	if !ok {
		return 0, fmt.Errorf("unknown key %q", args[0])
	}
	return key, nil
}

// execLine splits line like a shell and runs it.
func execLine(r *rig, w io.Writer, line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	return execCommand(r, w, args)
}

// execCommand runs one simulator command:
//
//	press KEY | release KEY | tap KEY | repeat KEY
//	host HEX...      send command bytes from the host
//	report HEX...    feed an 8 byte boot report
//	wait DURATION    advance virtual time
//	status           print the engine summary
//	quit
func execCommand(r *rig, w io.Writer, args []string) error {
	switch cmd, rest := strings.ToLower(args[0]), args[1:]; cmd {
	case "press", "release", "repeat", "tap":
		key, err := parseKey(rest)
		if err != nil {
			return err
		}
		switch cmd {
		case "press":
			return r.key(hid.EventDown, key)
		case "release":
			return r.key(hid.EventUp, key)
		case "repeat":
			return r.key(hid.EventRepeat, key)
		}
		if err := r.key(hid.EventDown, key); err != nil {
			return err
		}
		return r.key(hid.EventUp, key)
	case "host":
		bs, err := parseHex(rest...)
		if err != nil {
			return err
		}
		if len(bs) == 0 {
			return errors.New("host: no bytes")
		}
		return r.sendHost(bs...)
	case "report":
		bs, err := parseHex(rest...)
		if err != nil {
			return err
		}
		if len(bs) != hid.ReportSize {
			return fmt.Errorf("report: expected %d bytes, got %d", hid.ReportSize, len(bs))
		}
		var rep hid.Report
		copy(rep[:], bs)
		return r.report(&rep)
	case "wait":
		if len(rest) != 1 {
			return errors.New("wait: expected a duration")
		}
		d, err := time.ParseDuration(rest[0])
		if err != nil {
			return err
		}
		r.run(d)
		return nil
	case "status":
		printStatus(w, r.engine.Status(), r.usbLEDs)
		return nil
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printStatus(w io.Writer, s ps2.Status, usbLEDs uint8) {
	fmt.Fprintf(w, "state=%v enabled=%v busy=%v leds=%03b usb_leds=%03b typematic=0x%02X\r\n",
		s.State, s.Enabled, s.Busy, s.LEDs, usbLEDs, s.Typematic)
	fmt.Fprintf(w, "commands=%d failures=%d frames=%d retransmits=%d\r\n",
		s.Commands, s.Failures, s.Frames, s.Retransmits)
}
