package bus

// state is the step the tick handler runs next.
type state uint8

const (
	stateIdle state = iota

	// Device to host, four ticks per bit.
	stateSendUpdateData
	stateSendLowerClock
	stateSendWaitBeforeRaise
	stateSendRaiseClock

	// Host to device, four ticks per bit.
	stateRecvLowerClock
	stateRecvWaitBeforeRaise
	stateRecvRaiseClockReadData
	stateRecvWaitBeforeLower

	// Acknowledge bit after the stop bit.
	stateAckLowerData
	stateAckLowerClock
	stateAckRaiseClock
	stateAckRaiseData
	stateAckFinalLowerClock
	stateAckWaitBeforeFinalRaise
	stateAckFinalRaiseClock

	numStates
)

var stateNames = [numStates]string{
	stateIdle:                    "idle",
	stateSendUpdateData:          "send/update-data",
	stateSendLowerClock:          "send/lower-clock",
	stateSendWaitBeforeRaise:     "send/wait",
	stateSendRaiseClock:          "send/raise-clock",
	stateRecvLowerClock:          "recv/lower-clock",
	stateRecvWaitBeforeRaise:     "recv/wait-raise",
	stateRecvRaiseClockReadData:  "recv/raise-clock-read",
	stateRecvWaitBeforeLower:     "recv/wait-lower",
	stateAckLowerData:            "ack/lower-data",
	stateAckLowerClock:           "ack/lower-clock",
	stateAckRaiseClock:           "ack/raise-clock",
	stateAckRaiseData:            "ack/raise-data",
	stateAckFinalLowerClock:      "ack/final-lower-clock",
	stateAckWaitBeforeFinalRaise: "ack/final-wait",
	stateAckFinalRaiseClock:      "ack/final-raise-clock",
}

func (s state) String() string {
	if s < numStates {
		return stateNames[s]
	}
	return "unknown"
}

// handlers is the transition table. Every entry runs with the critical
// section held.
var handlers = [numStates]func(*Driver){
	stateIdle:                    (*Driver).idle,
	stateSendUpdateData:          (*Driver).sendUpdateData,
	stateSendLowerClock:          (*Driver).sendLowerClock,
	stateSendWaitBeforeRaise:     (*Driver).sendWaitBeforeRaise,
	stateSendRaiseClock:          (*Driver).sendRaiseClock,
	stateRecvLowerClock:          (*Driver).recvLowerClock,
	stateRecvWaitBeforeRaise:     (*Driver).recvWaitBeforeRaise,
	stateRecvRaiseClockReadData:  (*Driver).recvRaiseClockReadData,
	stateRecvWaitBeforeLower:     (*Driver).recvWaitBeforeLower,
	stateAckLowerData:            (*Driver).ackLowerData,
	stateAckLowerClock:           (*Driver).ackLowerClock,
	stateAckRaiseClock:           (*Driver).ackRaiseClock,
	stateAckRaiseData:            (*Driver).ackRaiseData,
	stateAckFinalLowerClock:      (*Driver).ackFinalLowerClock,
	stateAckWaitBeforeFinalRaise: (*Driver).ackWaitBeforeFinalRaise,
	stateAckFinalRaiseClock:      (*Driver).ackFinalRaiseClock,
}

func (d *Driver) idle() {
	// Never hold the bus while idle.
	d.clock.Release()
	d.data.Release()

	clk := d.clock.Get()
	dat := d.data.Get()
	switch {
	case clk && dat:
		if d.freeCount < d.freeThreshold {
			d.freeCount++
		}
		if d.freeCount == d.freeThreshold {
			d.bus = BusFree
		} else {
			d.bus = BusFreeing
		}
	case !clk && dat:
		d.freeCount = 0
		d.bus = BusInhibit
	case clk && !dat:
		d.freeCount = 0
		d.bus = BusRequestToSend
	default:
		d.freeCount = 0
		d.bus = BusLow
	}

	// A new host byte is only accepted once the previous one was read.
	if d.bus == BusRequestToSend && !d.available {
		d.startReceive()
	} else if d.bus == BusFree && d.sendRequested {
		d.startSend()
	}
}

func (d *Driver) startSend() {
	d.sendStatus = InProgress
	// Seeding with 1 makes the parity odd: eight equal bits XOR to 1.
	d.tx = txShift{value: d.request, bits: d.request, parity: 1}
	d.next = stateSendUpdateData
}

func (d *Driver) startReceive() {
	d.receiveStatus = InProgress
	d.available = false
	// The start bit is the data line low of the request-to-send.
	d.rx = rxShift{parity: 1, received: 1}
	d.next = stateRecvLowerClock
}

// endSend abandons or finishes the current send and returns to idle.
func (d *Driver) endSend(s Status) {
	d.sendStatus = s
	d.sendRequested = false
	d.next = stateIdle
}

func (d *Driver) sendUpdateData() {
	switch n := d.tx.sent; {
	case n == 0:
		d.data.Low() // start bit
	case n < 9:
		bit := d.tx.bits & 1
		if bit != 0 {
			d.data.Release()
		} else {
			d.data.Low()
		}
		d.tx.bits >>= 1
		d.tx.parity ^= bit
	case n == 9:
		if d.tx.parity != 0 {
			d.data.Release()
		} else {
			d.data.Low()
		}
	case n == 10:
		d.data.Release() // stop bit
	default:
		d.lastSent = d.tx.value
		d.endSend(Complete)
		return
	}
	d.tx.sent++
	d.next = stateSendLowerClock
}

func (d *Driver) sendLowerClock() {
	if !d.clock.Get() {
		// The host inhibited the bus; the whole byte has to be sent again.
		d.endSend(Interrupted)
		return
	}
	d.clock.Low()
	d.next = stateSendWaitBeforeRaise
}

func (d *Driver) sendWaitBeforeRaise() {
	d.next = stateSendRaiseClock
}

func (d *Driver) sendRaiseClock() {
	d.clock.Release()
	d.next = stateSendUpdateData
}

func (d *Driver) recvLowerClock() {
	if d.available {
		return
	}
	if !d.clock.Get() {
		// Host aborted the transmission.
		d.next = stateIdle
		return
	}
	d.clock.Low()
	d.next = stateRecvWaitBeforeRaise
}

func (d *Driver) recvWaitBeforeRaise() {
	d.next = stateRecvRaiseClockReadData
}

func (d *Driver) recvRaiseClockReadData() {
	d.clock.Release()
	var bit uint8
	if d.data.Get() {
		bit = 1
	}

	switch n := d.rx.received; {
	case n < 9:
		d.rx.bits = d.rx.bits>>1 | bit<<7
		d.rx.parity ^= bit
	case n == 9:
		d.rx.parity ^= bit
	default:
		if bit != 0 && d.rx.parity == 0 {
			d.receiveStatus = Complete
			d.received = d.rx.bits
			d.available = true
		} else {
			d.receiveStatus = Failed
		}
		d.next = stateAckLowerData
		return
	}
	d.rx.received++
	d.next = stateRecvWaitBeforeLower
}

func (d *Driver) recvWaitBeforeLower() {
	if d.clock.Get() {
		d.next = stateRecvLowerClock
	} else {
		// Host aborted the transmission.
		d.next = stateIdle
	}
}

func (d *Driver) ackLowerData() {
	d.data.Low()
	d.next = stateAckLowerClock
}

func (d *Driver) ackLowerClock() {
	d.clock.Low()
	d.next = stateAckRaiseClock
}

func (d *Driver) ackRaiseClock() {
	d.clock.Release()
	d.next = stateAckRaiseData
}

func (d *Driver) ackRaiseData() {
	d.data.Release()
	d.next = stateAckFinalLowerClock
}

func (d *Driver) ackFinalLowerClock() {
	d.clock.Low()
	d.next = stateAckWaitBeforeFinalRaise
}

func (d *Driver) ackWaitBeforeFinalRaise() {
	d.next = stateAckFinalRaiseClock
}

// ackFinalRaiseClock ends the receive. The device should keep clocking
// until the host releases the data line; that case is not handled and
// only arises with a misbehaving host.
func (d *Driver) ackFinalRaiseClock() {
	d.clock.Release()
	d.next = stateIdle
}
