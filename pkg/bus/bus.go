// Package bus bit-bangs the device side of the PS/2 two-wire bus.
//
// The Driver is advanced by Tick, which must be called from a periodic timer
// at four times the PS/2 clock frequency (40..66.8 kHz for the 10..16.7 kHz
// clock the protocol allows). Each PS/2 bit takes exactly four ticks.
//
// Both lines are open collector: the driver only ever pulls a line low or
// releases it and lets the external pull-up raise it.
package bus

import "github.com/tuffrabit/tinygo-ps2-bridge/pkg/critical"

// Line is one open-collector bus line.
type Line interface {
	// Release switches the pin to high-impedance input.
	Release()
	// Low drives the pin low.
	Low()
	// Get reads the current line level.
	Get() bool
}

// Status is the outcome of the most recent send or receive.
type Status uint8

const (
	Complete Status = iota
	// Interrupted: the host inhibited the bus during a send, or SendByte was
	// called while the driver was busy.
	Interrupted
	InProgress
	// Failed: a received byte had a parity or stop bit error.
	Failed
)

// String returns a short name for the status.
func (s Status) String() string {
	switch s {
	case Complete:
		return "complete"
	case Interrupted:
		return "interrupted"
	case InProgress:
		return "in-progress"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// BusState is the line condition observed while idle.
type BusState uint8

const (
	// BusFree: both lines high for at least 50µs.
	BusFree BusState = iota
	// BusInhibit: clock low, data high. The host holds the bus idle.
	BusInhibit
	// BusLow: both lines low, handled like BusInhibit.
	BusLow
	// BusRequestToSend: clock high, data low. The host wants to send.
	BusRequestToSend
	// BusFreeing: both lines high, not yet long enough to count as free.
	BusFreeing
)

// batReply is the byte assumed to have been sent last before anything was.
const batReply = 0xAA

// DefaultTickRate is the quadruple clock rate in Hz (12.5 kHz PS/2 clock).
const DefaultTickRate = 4 * 12500

// freeTicks returns how many consecutive idle ticks make up 50µs at rate.
func freeTicks(rate uint32) uint8 {
	return uint8(1 + 50*uint64(rate)/1000000)
}

// txShift is the device-to-host shift register.
type txShift struct {
	value  byte  // byte as requested, kept for LastSent
	bits   byte  // remaining data bits, LSB first
	parity uint8 // odd parity accumulator
	sent   uint8 // start, data, parity and stop bits already on the wire
}

// rxShift is the host-to-device shift register.
type rxShift struct {
	bits     byte
	parity   uint8
	received uint8 // counts the start bit seen as request-to-send
}

// Snapshot is a consistent view of the driver status.
type Snapshot struct {
	Send          Status
	Receive       Status
	Idle          bool
	ByteAvailable bool
	LastSent      byte
	Bus           BusState
}

// Driver is the PS/2 device electrical state machine.
type Driver struct {
	clock Line
	data  Line
	sec   critical.Section

	next          state
	bus           BusState
	freeCount     uint8
	freeThreshold uint8

	tx txShift
	rx rxShift

	// Written by SendByte, consumed by the tick handler.
	sendRequested bool
	request       byte

	sendStatus    Status
	receiveStatus Status
	available     bool
	received      byte
	lastSent      byte
}

// NewDriver returns an idle driver for the given lines and tick rate in Hz.
// Both lines are released.
func NewDriver(clock, data Line, sec critical.Section, tickRate uint32) *Driver {
	if tickRate == 0 {
		tickRate = DefaultTickRate
	}
	d := &Driver{
		clock:         clock,
		data:          data,
		sec:           sec,
		next:          stateIdle,
		bus:           BusLow,
		freeThreshold: freeTicks(tickRate),
		sendStatus:    Complete,
		receiveStatus: Complete,
		lastSent:      batReply,
	}
	clock.Release()
	data.Release()
	return d
}

// Tick advances the state machine by one quarter bit period.
func (d *Driver) Tick() {
	d.sec.Enter()
	handlers[d.next](d)
	d.sec.Exit()
}

// SendByte asks the driver to transmit b once the bus is free. The request
// is rejected, with the send status set to Interrupted, while the driver is
// not idle or a received byte is still unread.
func (d *Driver) SendByte(b byte) {
	d.sec.Enter()
	defer d.sec.Exit()

	if d.next != stateIdle || d.available {
		d.sendStatus = Interrupted
		return
	}
	d.sendRequested = true
	d.request = b
}

// IsIdle reports whether the driver is waiting for events with no send
// pending.
func (d *Driver) IsIdle() bool {
	d.sec.Enter()
	defer d.sec.Exit()
	return d.next == stateIdle && !d.sendRequested
}

// SendStatus returns the outcome of the last send.
func (d *Driver) SendStatus() Status {
	d.sec.Enter()
	defer d.sec.Exit()
	return d.sendStatus
}

// ReceiveStatus returns the outcome of the last receive.
func (d *Driver) ReceiveStatus() Status {
	d.sec.Enter()
	defer d.sec.Exit()
	return d.receiveStatus
}

// ClearReceiveStatus resets a Failed receive status to Complete.
func (d *Driver) ClearReceiveStatus() {
	d.sec.Enter()
	d.receiveStatus = Complete
	d.sec.Exit()
}

// ReceivedByte returns the byte read from the host and frees the slot for
// the next one. ok is false when no byte is waiting.
func (d *Driver) ReceivedByte() (b byte, ok bool) {
	d.sec.Enter()
	defer d.sec.Exit()
	if !d.available {
		return 0, false
	}
	d.available = false
	return d.received, true
}

// Snapshot returns every status field observed at the same instant.
func (d *Driver) Snapshot() Snapshot {
	d.sec.Enter()
	defer d.sec.Exit()
	return Snapshot{
		Send:          d.sendStatus,
		Receive:       d.receiveStatus,
		Idle:          d.next == stateIdle && !d.sendRequested,
		ByteAvailable: d.available,
		LastSent:      d.lastSent,
		Bus:           d.bus,
	}
}
