package bridge

import (
	"bytes"
	"testing"

	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/critical"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/hid"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/queue"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/typematic"
)

type gate bool

func (g *gate) Accepting() bool { return bool(*g) }

type usbLEDs struct {
	history []uint8
}

func (u *usbLEDs) SetKeyboardLEDs(leds uint8) { u.history = append(u.history, leds) }

// drain removes every queued frame and returns their payloads.
func drain(f *queue.Frames) [][]byte {
	var out [][]byte
	for {
		n, ready := f.Head()
		if !ready {
			return out
		}
		p := make([]byte, n)
		for i := range p {
			p[i] = f.Payload(i)
		}
		out = append(out, p)
		f.RemoveHead()
	}
}

func newBridge(opts Options) (*Bridge, *queue.Frames, *gate) {
	g := gate(true)
	f := queue.NewFrames(&critical.Mutex{})
	return New(f, &g, opts), f, &g
}

func expectFrames(t *testing.T, f *queue.Frames, want ...[]byte) {
	t.Helper()
	got := drain(f)
	if len(got) != len(want) {
		t.Fatalf("expected %d frames, got %d: % X", len(want), len(got), got)
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Errorf("frame %d: expected % X, got % X", i, want[i], got[i])
		}
	}
}

func TestKeyDownUp(t *testing.T) {
	b, f, _ := newBridge(Options{})
	b.KeyPressed(hid.KeyA)
	b.KeyReleased(hid.KeyA)
	expectFrames(t, f, []byte{0x1C}, []byte{0xF0, 0x1C})

	b.KeyPressed(hid.KeyLeftCtrl)
	expectFrames(t, f, []byte{0x14})
}

func TestShiftedArrow(t *testing.T) {
	b, f, _ := newBridge(Options{})
	b.KeyPressed(hid.KeyLeftShift)
	b.KeyPressed(hid.KeyUp)
	b.KeyReleased(hid.KeyLeftShift)
	b.KeyReleased(hid.KeyUp)
	expectFrames(t, f,
		[]byte{0x12},
		[]byte{0xE0, 0xF0, 0x12, 0xE0, 0x75},
		[]byte{0xF0, 0x12},
		[]byte{0xE0, 0xF0, 0x75},
	)
}

func TestShiftedArrowReleasedFirst(t *testing.T) {
	b, f, _ := newBridge(Options{})
	b.KeyPressed(hid.KeyRightShift)
	b.KeyPressed(hid.KeyUp)
	b.KeyReleased(hid.KeyUp)
	got := drain(f)
	if len(got) != 3 || !bytes.Equal(got[2], []byte{0xE0, 0xF0, 0x75, 0xE0, 0x12}) {
		t.Errorf("expected shift break wrapper, got % X", got)
	}
}

func TestNumLockFromHost(t *testing.T) {
	u := &usbLEDs{}
	b, f, _ := newBridge(Options{USB: u})

	b.SetLEDs(hid.PS2NumLock)
	if !b.Modifiers().NumLock {
		t.Fatal("expected Num Lock latched from bit 1")
	}
	b.KeyPressed(hid.KeyHome)
	expectFrames(t, f, []byte{0xE0, 0x12, 0xE0, 0x6C})

	b.SetLEDs(hid.PS2ScrollLock)
	if b.Modifiers().NumLock {
		t.Error("Scroll Lock mistaken for Num Lock")
	}

	want := []uint8{hid.LEDNumLock, hid.LEDScrollLock}
	if !bytes.Equal(u.history, want) {
		t.Errorf("usb LEDs: expected % X, got % X", want, u.history)
	}
	if b.LEDs() != hid.PS2ScrollLock {
		t.Errorf("expected LEDs 0x01, got 0x%02X", b.LEDs())
	}
}

func TestGateClosed(t *testing.T) {
	b, f, g := newBridge(Options{})
	*g = false
	b.KeyPressed(hid.KeyA)
	b.KeyPressed(hid.KeyUp)
	if !f.Empty() {
		t.Errorf("queued %d bytes while not accepting", f.Len())
	}

	// Modifier tracking continues while the gate is closed.
	b.KeyPressed(hid.KeyLeftAlt)
	*g = true
	if !b.Modifiers().Alt {
		t.Error("expected alt held")
	}
	b.KeyPressed(hid.KeyPrintScreen)
	expectFrames(t, f, []byte{0x84})
}

func TestUnknownKeyIgnored(t *testing.T) {
	b, f, _ := newBridge(Options{})
	b.KeyPressed(0x03)
	b.KeyReleased(0xFF)
	if !f.Empty() {
		t.Errorf("queued %d bytes for unknown keys", f.Len())
	}
}

func TestAutorepeat(t *testing.T) {
	tm := typematic.New(50000)
	b, f, _ := newBridge(Options{Timer: tm})

	b.KeyPressed(hid.KeyA)
	expectFrames(t, f, []byte{0x1C})

	for i := uint32(1); i < tm.Delay(); i++ {
		tm.Tick()
	}
	b.Poll()
	if !f.Empty() {
		t.Fatal("repeated before the typematic delay")
	}

	tm.Tick()
	b.Poll()
	expectFrames(t, f, []byte{0x1C})

	for i := uint32(0); i < tm.Period(); i++ {
		tm.Tick()
	}
	b.Poll()
	expectFrames(t, f, []byte{0x1C})

	b.KeyReleased(hid.KeyA)
	expectFrames(t, f, []byte{0xF0, 0x1C})
	for i := uint32(0); i < tm.Delay(); i++ {
		tm.Tick()
	}
	b.Poll()
	if !f.Empty() {
		t.Error("repeated after release")
	}
}

func TestAutorepeatSkipsWrapper(t *testing.T) {
	tm := typematic.New(50000)
	b, f, _ := newBridge(Options{Timer: tm})

	b.KeyPressed(hid.KeyLeftShift)
	b.KeyPressed(hid.KeyLeft)
	drain(f)
	for i := uint32(0); i < tm.Delay(); i++ {
		tm.Tick()
	}
	b.Poll()
	expectFrames(t, f, []byte{0xE0, 0x6B})
}

func TestAutorepeatIgnoresModifiersAndPause(t *testing.T) {
	tm := typematic.New(50000)
	b, f, _ := newBridge(Options{Timer: tm})

	for _, key := range []uint8{hid.KeyLeftShift, hid.KeyPause} {
		b.KeyPressed(key)
		drain(f)
		for i := uint32(0); i < tm.Delay()+tm.Period(); i++ {
			tm.Tick()
		}
		b.Poll()
		if !f.Empty() {
			t.Errorf("key 0x%02X repeated", key)
		}
	}
}

func TestReset(t *testing.T) {
	tm := typematic.New(50000)
	b, f, _ := newBridge(Options{Timer: tm})
	b.SetLEDs(hid.PS2NumLock)
	b.KeyPressed(hid.KeyLeftCtrl)
	b.KeyPressed(hid.KeyB)
	drain(f)

	b.Reset()
	m := b.Modifiers()
	if m.Ctrl || !m.NumLock {
		t.Errorf("expected ctrl cleared and num lock kept, got %+v", m)
	}
	for i := uint32(0); i < tm.Delay(); i++ {
		tm.Tick()
	}
	b.Poll()
	if !f.Empty() {
		t.Error("repeat survived reset")
	}
}

func TestTrackerToFrames(t *testing.T) {
	b, f, _ := newBridge(Options{})
	var tr hid.Tracker

	r := hid.Report{hid.ModLeftShift, 0, hid.KeyA}
	tr.Update(&r, b)
	r = hid.Report{}
	tr.Update(&r, b)

	// Keys array first, then modifier bits; presses before releases.
	expectFrames(t, f,
		[]byte{0x1C},
		[]byte{0x12},
		[]byte{0xF0, 0x1C},
		[]byte{0xF0, 0x12},
	)
}
