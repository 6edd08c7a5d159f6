package main

import (
	"bytes"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/config"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/hid"
)

func newTestRig(t *testing.T) *rig {
	t.Helper()
	r := newRig(rigConfig{
		TickRate:   config.DefaultTickRateHz,
		BATDelay:   config.DefaultBATDelayMs * time.Millisecond,
		Typematic:  config.DefaultTypematic,
		Autorepeat: true,
	})
	if err := r.boot(); err != nil {
		t.Fatalf("boot failed: %v", err)
	}
	if got := r.drain(); !bytes.Equal(got, []byte{0xAA}) {
		t.Fatalf("boot: expected [AA], got % X", got)
	}
	return r
}

func expectHost(t *testing.T, r *rig, want ...byte) {
	t.Helper()
	if got := r.drain(); !bytes.Equal(got, want) {
		t.Errorf("expected % X, got % X", want, got)
	}
}

func TestParseHex(t *testing.T) {
	got, err := parseHex("ED 0x02", "f4")
	if err != nil {
		t.Fatalf("parseHex failed: %v", err)
	}
	if !bytes.Equal(got, []byte{0xED, 0x02, 0xF4}) {
		t.Errorf("expected ED 02 F4, got % X", got)
	}
	if _, err := parseHex("1FF"); err == nil {
		t.Error("expected error for out of range byte")
	}
}

func TestTapAndHostCommand(t *testing.T) {
	r := newTestRig(t)
	var out bytes.Buffer

	if err := execLine(r, &out, "tap a"); err != nil {
		t.Fatalf("tap failed: %v", err)
	}
	expectHost(t, r, 0x1C, 0xF0, 0x1C)

	if err := execLine(r, &out, "host 'ED 02'"); err != nil {
		t.Fatalf("host failed: %v", err)
	}
	expectHost(t, r, 0xFA, 0xFA)
	if r.usbLEDs != hid.LEDNumLock {
		t.Errorf("usb leds: expected %03b, got %03b", hid.LEDNumLock, r.usbLEDs)
	}

	if err := execLine(r, &out, "status"); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out.String(), "leds=010") {
		t.Errorf("status: expected leds=010 in %q", out.String())
	}
}

func TestReportThroughTracker(t *testing.T) {
	r := newTestRig(t)
	var out bytes.Buffer

	if err := execLine(r, &out, "report 00 00 04 00 00 00 00 00"); err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if err := execLine(r, &out, "report 00 00 00 00 00 00 00 00"); err != nil {
		t.Fatalf("report failed: %v", err)
	}
	expectHost(t, r, 0x1C, 0xF0, 0x1C)

	if err := execLine(r, &out, "report 00 00 04"); err == nil {
		t.Error("expected error for short report")
	}
}

func TestAutorepeat(t *testing.T) {
	r := newTestRig(t)
	var out bytes.Buffer

	if err := execLine(r, &out, "press a"); err != nil {
		t.Fatalf("press failed: %v", err)
	}
	expectHost(t, r, 0x1C)

	// 500ms delay, then one repeat every ~92ms.
	if err := execLine(r, &out, "wait 550ms"); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	expectHost(t, r, 0x1C)

	if err := execLine(r, &out, "release a"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	expectHost(t, r, 0xF0, 0x1C)
}

func TestExecCommandErrors(t *testing.T) {
	r := newTestRig(t)
	var out bytes.Buffer

	for _, line := range []string{"press", "press hyper", "host", "host zz", "wait soon", "jump"} {
		if err := execLine(r, &out, line); err == nil {
			t.Errorf("%q: expected error", line)
		}
	}
	if err := execLine(r, &out, "quit"); !errors.Is(err, errQuit) {
		t.Errorf("quit: expected errQuit, got %v", err)
	}
	if err := execLine(r, &out, "   "); err != nil {
		t.Errorf("blank line: expected nil, got %v", err)
	}
}

const shiftedArrow = `
name: shifted arrow
steps:
  - press: LeftShift
  - tap: Up
  - release: LeftShift
  - expect: "12 E0 F0 12 E0 75 E0 F0 75 E0 12 F0 12"
  - host: "ED 02"
  - expect: "FA FA"
  - do: "tap up"
  - expect: "E0 12 E0 75 E0 F0 75 E0 F0 12"
  - wait: 10ms
  - expect: ""
`

func TestScenarioRun(t *testing.T) {
	sc, err := ParseScenario([]byte(shiftedArrow))
	if err != nil {
		t.Fatalf("ParseScenario failed: %v", err)
	}
	if sc.Name != "shifted arrow" || len(sc.Steps) != 10 {
		t.Fatalf("unexpected scenario %+v", sc)
	}
	if time.Duration(sc.Steps[8].Wait) != 10*time.Millisecond {
		t.Errorf("wait: expected 10ms, got %v", time.Duration(sc.Steps[8].Wait))
	}

	r := newRig(rigConfig{
		TickRate:   config.DefaultTickRateHz,
		BATDelay:   config.DefaultBATDelayMs * time.Millisecond,
		Typematic:  config.DefaultTypematic,
		Autorepeat: true,
	})
	var out bytes.Buffer
	if err := sc.Run(r, &out); err != nil {
		t.Fatalf("Run failed: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "< AA") {
		t.Errorf("expected BAT in output:\n%s", out.String())
	}
}

func TestScenarioExpectFailure(t *testing.T) {
	sc, err := ParseScenario([]byte("name: wrong\nsteps:\n  - tap: a\n  - expect: \"1D\"\n"))
	if err != nil {
		t.Fatalf("ParseScenario failed: %v", err)
	}
	r := newRig(rigConfig{
		TickRate:  config.DefaultTickRateHz,
		BATDelay:  config.DefaultBATDelayMs * time.Millisecond,
		Typematic: config.DefaultTypematic,
	})
	var out bytes.Buffer
	if err := sc.Run(r, &out); !errors.Is(err, errExpect) {
		t.Errorf("expected errExpect, got %v", err)
	}
	if !strings.Contains(out.String(), "expected [1D], got [1C F0 1C]") {
		t.Errorf("missing mismatch report:\n%s", out.String())
	}
}

func TestScenarioValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"two actions", "steps:\n  - press: a\n    release: a\n"},
		{"empty step", "steps:\n  - {}\n"},
		{"bad duration", "steps:\n  - wait: soon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseScenario([]byte(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSessionTypesShiftedCharacter(t *testing.T) {
	r := newTestRig(t)
	var out bytes.Buffer
	s := newSession(r, &out)

	if err := s.feed('A'); err != nil {
		t.Fatalf("feed failed: %v", err)
	}
	if !strings.Contains(out.String(), "< 12 1C F0 1C F0 12") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestSessionEscapeAndCommandLine(t *testing.T) {
	r := newTestRig(t)
	var out bytes.Buffer
	s := newSession(r, &out)

	for _, c := range []byte("\x1b[D") {
		if err := s.feed(c); err != nil {
			t.Fatalf("feed failed: %v", err)
		}
	}
	if !strings.Contains(out.String(), "< E0 6B E0 F0 6B") {
		t.Errorf("unexpected output %q", out.String())
	}

	out.Reset()
	for _, c := range []byte(":host ee\r") {
		if err := s.feed(c); err != nil {
			t.Fatalf("feed failed: %v", err)
		}
	}
	if !strings.Contains(out.String(), "< EE") {
		t.Errorf("unexpected output %q", out.String())
	}

	if err := s.feed(ctrlC); !errors.Is(err, errQuit) {
		t.Errorf("Ctrl-C: expected errQuit, got %v", err)
	}
}

func TestRunLines(t *testing.T) {
	r := newTestRig(t)
	var out bytes.Buffer

	in := strings.NewReader("tap b\nhost f2\nquit\ntap c\n")
	if err := runLines(r, in, &out); err != nil {
		t.Fatalf("runLines failed: %v", err)
	}
	want := "< 32 F0 32\n< FA AB 83\n"
	if out.String() != want {
		t.Errorf("expected %q, got %q", want, out.String())
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "device.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	p := writeConfig(t, "version: 2\ntick_rate_hz: 40000\nbat_delay_ms: 600\ntypematic: 0x20\n")

	if err := run([]string{"-config", p, "-tick-rate", "1"}); !errors.Is(err, config.ErrInvalidTickRate) {
		t.Errorf("expected ErrInvalidTickRate, got %v", err)
	}
	if err := run([]string{"-config", p, "-bat-delay", "2s"}); !errors.Is(err, config.ErrInvalidBATDelay) {
		t.Errorf("expected ErrInvalidBATDelay, got %v", err)
	}

	tests := []struct {
		name  string
		args  []string
		check func(cfg config.DeviceConfig) bool
	}{
		{"file only", nil, func(c config.DeviceConfig) bool {
			return c.TickRateHz == 40000 && c.BATDelayMs == 600 && c.Typematic == 0x20
		}},
		{"tick rate", []string{"-tick-rate", "60000"}, func(c config.DeviceConfig) bool {
			return c.TickRateHz == 60000 && c.BATDelayMs == 600
		}},
		{"bat delay", []string{"-bat-delay", "700ms"}, func(c config.DeviceConfig) bool {
			return c.BATDelayMs == 700 && c.TickRateHz == 40000
		}},
		{"typematic", []string{"-typematic", "0x7f"}, func(c config.DeviceConfig) bool {
			return c.Typematic == 0x7F && c.BATDelayMs == 600
		}},
		{"no repeat", []string{"-no-repeat"}, func(c config.DeviceConfig) bool {
			return !c.Has(config.FlagAutorepeat) && c.TickRateHz == 40000
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			fs.Uint("tick-rate", config.DefaultTickRateHz, "")
			fs.Duration("bat-delay", config.DefaultBATDelayMs*time.Millisecond, "")
			fs.Uint("typematic", config.DefaultTypematic, "")
			fs.Bool("no-repeat", false, "")
			if err := fs.Parse(tt.args); err != nil {
				t.Fatalf("parse: %v", err)
			}
			cfg, err := deviceConfig(fs, p)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.check(cfg) {
				t.Errorf("unexpected config %+v", cfg)
			}
		})
	}
}
