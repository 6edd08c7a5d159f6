package sim

// Ticker is the device side advanced once per quarter bit.
type Ticker interface {
	Tick()
}

type hostMode uint8

const (
	hostListening hostMode = iota
	hostInhibiting
	hostSending
)

// inhibitTicks is how long the host holds the clock low before a request to
// send: 100µs at the default 50 kHz tick rate.
const inhibitTicks = 5

// Host is a PS/2 keyboard controller. It samples device-to-host frames on
// falling clock edges and sends queued command bytes with the standard
// inhibit, request-to-send, clock-in sequence.
type Host struct {
	bus *Bus

	mode     hostMode
	prevClk  bool
	edges    int
	frame    uint16
	inhibit  int
	outgoing []byte
	current  uint16

	// Received holds every byte the device sent, in order.
	Received []byte
	// FrameErrors counts device frames with a bad start, parity or stop bit.
	FrameErrors int
	// Acked counts host bytes the device acknowledged.
	Acked int
	// CorruptParity makes the next host byte go out with a wrong parity bit.
	CorruptParity bool
}

// NewHost attaches a host to b.
func NewHost(b *Bus) *Host {
	return &Host{bus: b, prevClk: true}
}

// Send queues command bytes for transmission to the device.
func (h *Host) Send(b ...byte) {
	h.outgoing = append(h.outgoing, b...)
}

// Pending reports how many queued host bytes are not yet acknowledged.
func (h *Host) Pending() int {
	n := len(h.outgoing)
	if h.mode != hostListening {
		n++
	}
	return n
}

// Receiving reports whether the host is in the middle of a device frame.
func (h *Host) Receiving() bool {
	return h.mode == hostListening && h.edges > 0
}

// Inhibit pulls the clock low until Release is called. A device frame in
// progress is discarded.
func (h *Host) Inhibit() {
	h.bus.Clock.HostLow()
	h.prevClk = false
	h.edges = 0
	h.frame = 0
}

// Release lets go of the clock line after Inhibit.
func (h *Host) Release() { h.bus.Clock.HostRelease() }

// Observe samples the bus after the device has ticked.
func (h *Host) Observe() {
	clk := h.bus.Clock.Level()
	falling := h.prevClk && !clk
	h.prevClk = clk

	switch h.mode {
	case hostListening:
		if falling {
			h.sampleDeviceBit()
			return
		}
		if h.edges == 0 && len(h.outgoing) > 0 && clk {
			h.startInhibit()
		}
	case hostInhibiting:
		h.inhibit--
		if h.inhibit > 0 {
			return
		}
		// Start bit, then hand the clock to the device.
		h.bus.Data.HostLow()
		h.bus.Clock.HostRelease()
		h.prevClk = true
		h.mode = hostSending
		h.edges = 0
	case hostSending:
		if falling {
			h.clockOutBit()
		}
	}
}

// Run ticks dev and observes the bus n times.
func (h *Host) Run(dev Ticker, n int) {
	for i := 0; i < n; i++ {
		dev.Tick()
		h.Observe()
	}
}

func (h *Host) sampleDeviceBit() {
	if h.bus.Data.Level() {
		h.frame |= 1 << h.edges
	}
	h.edges++
	if h.edges < 11 {
		return
	}

	f := h.frame
	h.frame = 0
	h.edges = 0

	b := byte(f >> 1)
	parity := f >> 9 & 1
	if f&1 != 0 || f>>10&1 != 1 || oddParity(b) != byte(parity) {
		h.FrameErrors++
		return
	}
	h.Received = append(h.Received, b)
}

func (h *Host) startInhibit() {
	b := h.outgoing[0]
	h.outgoing = h.outgoing[1:]

	p := oddParity(b)
	if h.CorruptParity {
		p ^= 1
		h.CorruptParity = false
	}
	// Data bits, parity, stop; the start bit is the request-to-send.
	h.current = uint16(b) | uint16(p)<<8 | 1<<9
	h.bus.Clock.HostLow()
	h.inhibit = inhibitTicks
	h.mode = hostInhibiting
}

func (h *Host) clockOutBit() {
	switch {
	case h.edges < 10:
		if h.current>>h.edges&1 != 0 {
			h.bus.Data.HostRelease()
		} else {
			h.bus.Data.HostLow()
		}
	case h.edges == 10:
		// Acknowledge bit from the device.
		if !h.bus.Data.Level() {
			h.Acked++
		}
	default:
		h.mode = hostListening
		h.edges = 0
		h.bus.Data.HostRelease()
		return
	}
	h.edges++
}

func oddParity(b byte) byte {
	p := byte(1)
	for i := 0; i < 8; i++ {
		p ^= b >> i & 1
	}
	return p
}
