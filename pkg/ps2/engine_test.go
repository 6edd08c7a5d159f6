package ps2

import (
	"bytes"
	"testing"
	"time"

	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/bus"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/critical"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/queue"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/sim"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/typematic"
)

type ledRecorder struct {
	history []uint8
}

func (r *ledRecorder) SetLEDs(leds uint8) { r.history = append(r.history, leds) }

type trafficRecorder struct {
	host   []byte
	device []byte
}

func (r *trafficRecorder) HostByte(b byte)   { r.host = append(r.host, b) }
func (r *trafficRecorder) DeviceByte(b byte) { r.device = append(r.device, b) }

type harness struct {
	host    *sim.Host
	drv     *bus.Driver
	frames  *queue.Frames
	timer   *typematic.Timer
	eng     *Engine
	leds    *ledRecorder
	traffic *trafficRecorder
	clock   time.Time
}

func newHarness() *harness {
	w := &sim.Bus{}
	sec := &critical.Mutex{}
	h := &harness{
		host:    sim.NewHost(w),
		drv:     bus.NewDriver(w.Clock.Device(), w.Data.Device(), sec, bus.DefaultTickRate),
		frames:  queue.NewFrames(sec),
		timer:   typematic.New(bus.DefaultTickRate),
		leds:    &ledRecorder{},
		traffic: &trafficRecorder{},
		clock:   time.Unix(0, 0),
	}
	h.eng = New(h.drv, h.frames, h.timer, Options{
		LEDs:    h.leds,
		Monitor: h.traffic,
		Now:     func() time.Time { return h.clock },
	})
	return h
}

// step runs n polling loop iterations, each preceded by four bus ticks and
// one millisecond of wall time.
func (h *harness) step(n int) {
	for i := 0; i < n; i++ {
		h.host.Run(h.drv, 4)
		h.clock = h.clock.Add(time.Millisecond)
		h.eng.Step()
	}
}

func (h *harness) boot(t *testing.T) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		h.step(1)
		if s := h.eng.Status(); s.State == StateWaitingForCommands && s.Enabled {
			return
		}
	}
	t.Fatalf("engine did not finish BAT, state %v", h.eng.Status().State)
}

// exchange sends host bytes and returns what the keyboard answered.
func (h *harness) exchange(b ...byte) []byte {
	start := len(h.host.Received)
	h.host.Send(b...)
	h.step(200)
	return append([]byte(nil), h.host.Received[start:]...)
}

func TestBAT(t *testing.T) {
	h := newHarness()
	h.step(100)
	if len(h.host.Received) != 0 {
		t.Fatalf("sent before BAT delay: % X", h.host.Received)
	}
	if h.eng.Enabled() || !h.eng.Busy() {
		t.Errorf("expected disabled and busy during BAT, got enabled=%v busy=%v", h.eng.Enabled(), h.eng.Busy())
	}
	if s := h.eng.Status(); s.State != StateDelayBeforeBAT || s.LEDs != 0x07 {
		t.Errorf("expected delay with LEDs on, got %v LEDs 0x%02X", s.State, s.LEDs)
	}

	h.boot(t)
	h.step(20)
	if !bytes.Equal(h.host.Received, []byte{ReplyBATSuccess}) {
		t.Errorf("expected AA, got % X", h.host.Received)
	}
	if !bytes.Equal(h.leds.history, []byte{0x07, 0x00}) {
		t.Errorf("expected LEDs 07 then 00, got % X", h.leds.history)
	}
	if !h.eng.Accepting() {
		t.Error("expected keyboard to accept key events after BAT")
	}
	if h.timer.Arg() != typematic.Default {
		t.Errorf("expected default typematic, got 0x%02X", h.timer.Arg())
	}
}

func TestBATWaitsForDelay(t *testing.T) {
	h := newHarness()
	// 549 polls of 1ms each after the start time is recorded.
	h.step(550)
	if len(h.host.Received) != 0 {
		t.Errorf("BAT sent early: % X", h.host.Received)
	}
	h.step(30)
	if !bytes.Equal(h.host.Received, []byte{ReplyBATSuccess}) {
		t.Errorf("expected AA, got % X", h.host.Received)
	}
}

func TestBATRetransmittedAfterInhibit(t *testing.T) {
	h := newHarness()
	for i := 0; i < 1000 && !h.host.Receiving(); i++ {
		h.step(1)
	}
	if !h.host.Receiving() {
		t.Fatal("BAT never started")
	}

	h.host.Inhibit()
	h.step(10)
	if h.eng.Enabled() {
		t.Error("expected keyboard disabled while BAT is undelivered")
	}
	if s := h.eng.Status(); s.State != StateSendingBAT {
		t.Errorf("expected %v, got %v", StateSendingBAT, s.State)
	}

	h.host.Release()
	h.boot(t)
	h.step(20)
	if !bytes.Equal(h.host.Received, []byte{ReplyBATSuccess}) {
		t.Errorf("expected AA, got % X", h.host.Received)
	}
	if s := h.eng.Status(); s.Retransmits != 1 {
		t.Errorf("expected 1 retransmit, got %d", s.Retransmits)
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name string
		send []byte
		want []byte
	}{
		{"unknown resends last byte", []byte{0x00}, []byte{ReplyBATSuccess}},
		{"echo", []byte{cmdEcho}, []byte{ReplyEcho}},
		{"resend", []byte{cmdResend}, []byte{ReplyBATSuccess}},
		{"read id", []byte{cmdReadID}, []byte{ReplyAcknowledge, ReplyID0, ReplyID1}},
		{"set default", []byte{cmdSetDefault}, []byte{ReplyAcknowledge}},
		{"set all keys make", []byte{cmdSetAllMake}, []byte{ReplyAcknowledge}},
		{"set key type make", []byte{cmdSetKeyTypeMake}, []byte{ReplyAcknowledge}},
		{"disable", []byte{cmdDisable}, []byte{ReplyAcknowledge}},
		{"enable", []byte{cmdEnable}, []byte{ReplyAcknowledge}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.boot(t)
			h.step(20)
			got := h.exchange(tt.send...)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("expected % X, got % X", tt.want, got)
			}
		})
	}
}

func TestResendAfterEcho(t *testing.T) {
	h := newHarness()
	h.boot(t)
	h.exchange(cmdEcho)
	if got := h.exchange(cmdResend); !bytes.Equal(got, []byte{ReplyEcho}) {
		t.Errorf("expected EE, got % X", got)
	}
}

func TestSetLEDs(t *testing.T) {
	h := newHarness()
	h.boot(t)
	h.step(20)

	if got := h.exchange(cmdSetLEDs); !bytes.Equal(got, []byte{ReplyAcknowledge}) {
		t.Fatalf("command: expected FA, got % X", got)
	}
	if n := len(h.leds.history); n != 2 {
		t.Errorf("LEDs changed before argument: % X", h.leds.history)
	}
	if got := h.exchange(0x07); !bytes.Equal(got, []byte{ReplyAcknowledge}) {
		t.Fatalf("argument: expected FA, got % X", got)
	}
	if !bytes.Equal(h.host.Received, []byte{ReplyBATSuccess, ReplyAcknowledge, ReplyAcknowledge}) {
		t.Errorf("unexpected traffic % X", h.host.Received)
	}
	if last := h.leds.history[len(h.leds.history)-1]; last != 0x07 {
		t.Errorf("expected LEDs 07, got 0x%02X", last)
	}
	if s := h.eng.Status(); s.LEDs != 0x07 {
		t.Errorf("status: expected LEDs 07, got 0x%02X", s.LEDs)
	}
}

func TestSetTypematicRate(t *testing.T) {
	h := newHarness()
	h.boot(t)
	h.exchange(cmdSetTypematicRate)
	if got := h.exchange(0x7F); !bytes.Equal(got, []byte{ReplyAcknowledge}) {
		t.Fatalf("expected FA, got % X", got)
	}
	if h.timer.Arg() != 0x7F {
		t.Errorf("expected typematic 0x7F, got 0x%02X", h.timer.Arg())
	}
	if h.eng.Status().Typematic != 0x7F {
		t.Errorf("status: expected typematic 0x7F, got 0x%02X", h.eng.Status().Typematic)
	}
}

func TestSetScanCodeSetIgnored(t *testing.T) {
	h := newHarness()
	h.boot(t)
	got := append(h.exchange(cmdSetScanCodeSet), h.exchange(0x03)...)
	if !bytes.Equal(got, []byte{ReplyAcknowledge, ReplyAcknowledge}) {
		t.Errorf("expected FA FA, got % X", got)
	}
}

func TestArgumentWithoutCommand(t *testing.T) {
	h := newHarness()
	h.boot(t)
	// 0x07 with no pending two-byte command is not a valid command.
	if got := h.exchange(0x07); !bytes.Equal(got, []byte{ReplyBATSuccess}) {
		t.Errorf("expected AA, got % X", got)
	}
	if n := len(h.leds.history); n != 2 {
		t.Errorf("LEDs changed: % X", h.leds.history)
	}
}

func TestFailedReceive(t *testing.T) {
	h := newHarness()
	h.boot(t)
	h.host.CorruptParity = true
	if got := h.exchange(cmdEcho); !bytes.Equal(got, []byte{ReplyResend}) {
		t.Errorf("expected FE, got % X", got)
	}
	if s := h.eng.Status(); s.Failures != 1 {
		t.Errorf("expected 1 failure, got %d", s.Failures)
	}
}

func TestReset(t *testing.T) {
	h := newHarness()
	h.boot(t)
	h.exchange(cmdSetTypematicRate, 0x00)

	if got := h.exchange(cmdReset); !bytes.Equal(got, []byte{ReplyAcknowledge}) {
		t.Fatalf("expected FA, got % X", got)
	}
	if h.eng.Enabled() {
		t.Error("expected keyboard disabled during BAT")
	}
	h.step(600)
	want := []byte{ReplyBATSuccess, ReplyAcknowledge, ReplyAcknowledge, ReplyAcknowledge, ReplyBATSuccess}
	if !bytes.Equal(h.host.Received, want) {
		t.Errorf("expected % X, got % X", want, h.host.Received)
	}
	if h.timer.Arg() != typematic.Default {
		t.Errorf("expected typematic reset, got 0x%02X", h.timer.Arg())
	}
	if !h.eng.Accepting() {
		t.Error("expected keyboard enabled after BAT")
	}
}

func TestScanCodeTransmission(t *testing.T) {
	h := newHarness()
	h.boot(t)
	h.step(20)

	h.frames.Emit([]byte{2, 0xF0, 0x1C}, h.eng.Accepting())
	h.frames.Emit([]byte{1, 0x14}, h.eng.Accepting())
	h.step(200)

	want := []byte{ReplyBATSuccess, 0xF0, 0x1C, 0x14}
	if !bytes.Equal(h.host.Received, want) {
		t.Errorf("expected % X, got % X", want, h.host.Received)
	}
	if !h.frames.Empty() {
		t.Errorf("expected empty queue, %d bytes left", h.frames.Len())
	}
	if s := h.eng.Status(); s.Frames != 2 {
		t.Errorf("expected 2 frames, got %d", s.Frames)
	}
}

func TestDisabledHoldsScanCodes(t *testing.T) {
	h := newHarness()
	h.boot(t)
	h.exchange(cmdDisable)
	if h.eng.Enabled() {
		t.Fatal("expected keyboard disabled")
	}

	// Queued regardless of the gate to check the scheduler itself.
	h.frames.Emit([]byte{1, 0x1C}, true)
	h.step(100)
	if n := len(h.host.Received); n != 2 {
		t.Errorf("scan code sent while disabled: % X", h.host.Received)
	}

	h.exchange(cmdEnable)
	if !h.frames.Empty() {
		t.Error("expected enable to clear the queue")
	}
	h.frames.Emit([]byte{1, 0x1C}, h.eng.Accepting())
	h.step(100)
	if last := h.host.Received[len(h.host.Received)-1]; last != 0x1C {
		t.Errorf("expected 1C after enable, got % X", h.host.Received)
	}
}

func TestResendKeepsQueue(t *testing.T) {
	h := newHarness()
	h.boot(t)
	h.exchange(cmdDisable)
	h.frames.Emit([]byte{1, 0x1C}, true)

	if got := h.exchange(cmdResend); !bytes.Equal(got, []byte{ReplyAcknowledge}) {
		t.Errorf("expected FA, got % X", got)
	}
	if h.frames.Empty() {
		t.Error("resend cleared the queue")
	}
}

func TestCommandClearsQueue(t *testing.T) {
	h := newHarness()
	h.boot(t)
	h.exchange(cmdDisable)
	h.frames.Emit([]byte{1, 0x1C}, true)

	if got := h.exchange(cmdEcho); !bytes.Equal(got, []byte{ReplyEcho}) {
		t.Errorf("expected EE, got % X", got)
	}
	if !h.frames.Empty() {
		t.Errorf("expected empty queue, %d bytes left", h.frames.Len())
	}
}

func TestFrameRetransmittedAfterInhibit(t *testing.T) {
	h := newHarness()
	h.boot(t)
	h.step(20)

	h.frames.Emit([]byte{3, 0xE0, 0xF0, 0x75}, h.eng.Accepting())
	for i := 0; i < 200 && len(h.host.Received) < 2; i++ {
		h.step(1)
	}
	for i := 0; i < 200 && !h.host.Receiving(); i++ {
		h.step(1)
	}
	if !h.host.Receiving() {
		t.Fatal("second byte never started")
	}

	h.host.Inhibit()
	h.step(5)
	h.host.Release()
	h.step(200)

	want := []byte{ReplyBATSuccess, 0xE0, 0xE0, 0xF0, 0x75}
	if !bytes.Equal(h.host.Received, want) {
		t.Errorf("expected % X, got % X", want, h.host.Received)
	}
	if s := h.eng.Status(); s.Retransmits != 1 || s.Frames != 1 {
		t.Errorf("expected 1 retransmit and 1 frame, got %d and %d", s.Retransmits, s.Frames)
	}
}

func TestMonitor(t *testing.T) {
	h := newHarness()
	h.boot(t)
	h.exchange(cmdEcho)
	if !bytes.Equal(h.traffic.host, []byte{cmdEcho}) {
		t.Errorf("host bytes: expected EE, got % X", h.traffic.host)
	}
	if !bytes.Equal(h.traffic.device, []byte{ReplyBATSuccess, ReplyEcho}) {
		t.Errorf("device bytes: expected AA EE, got % X", h.traffic.device)
	}
}

func TestStateString(t *testing.T) {
	if got := StateWaitingForCommands.String(); got != "waiting-for-commands" {
		t.Errorf("expected waiting-for-commands, got %q", got)
	}
	if got := State(200).String(); got != "unknown" {
		t.Errorf("expected unknown, got %q", got)
	}
}

func TestCommandName(t *testing.T) {
	tests := map[byte]string{
		0xFF: "Reset",
		0xF6: "SetDefault",
		0xF2: "ReadID",
		0xED: "SetLEDs",
		0xFB: "NoOp",
		0x00: "Unknown",
	}
	for b, want := range tests {
		if got := CommandName(b); got != want {
			t.Errorf("CommandName(0x%02X): expected %q, got %q", b, want, got)
		}
	}
	if !AwaitsArgument(0xF3) || AwaitsArgument(0xF4) {
		t.Error("AwaitsArgument: wrong result for F3/F4")
	}
}
