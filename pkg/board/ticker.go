//go:build rp2040

package board

import (
	"device/rp"
	"runtime/interrupt"
)

// The RP2040 timer counts microseconds. Alarm 0 belongs to the TinyGo
// scheduler.
const timerHz = 1_000_000

var (
	tickPeriod uint32
	tickFn     func()
)

// TickRate returns the rate the alarm can actually produce closest to
// requested Hz.
func TickRate(requested uint32) uint32 {
	return timerHz / tickPeriodFor(requested)
}

func tickPeriodFor(rate uint32) uint32 {
	return (timerHz + rate/2) / rate
}

// StartTicker calls fn from the timer 1 interrupt at TickRate(rate) Hz.
// fn must not block, allocate or log.
func StartTicker(rate uint32, fn func()) {
	tickFn = fn
	tickPeriod = tickPeriodFor(rate)

	intr := interrupt.New(rp.IRQ_TIMER_IRQ_1, handleAlarm)
	intr.SetPriority(0x00)

	rp.TIMER.INTE.SetBits(rp.TIMER_INTE_ALARM_1)
	rp.TIMER.ALARM1.Set(rp.TIMER.TIMERAWL.Get() + tickPeriod)
	intr.Enable()
}

func handleAlarm(interrupt.Interrupt) {
	rp.TIMER.INTR.Set(rp.TIMER_INTR_ALARM_1)
	// Rearm from the previous target so jitter does not accumulate.
	rp.TIMER.ALARM1.Set(rp.TIMER.ALARM1.Get() + tickPeriod)
	tickFn()
}
