// Package typematic keeps the autorepeat rate and delay set by the PS/2 host
// and a free-running tick counter to measure them against.
package typematic

import "sync/atomic"

// Default is the factory typematic byte: 10.9 characters per second after a
// 500ms delay.
const Default = 0x2B

// Characters per second for each of the 32 rate codes (bits 0-4).
var ratesCPS = [32]float64{
	30.0, 26.7, 24.0, 21.8, 20.7, 18.5, 17.1, 16.0,
	15.0, 13.3, 12.0, 10.9, 10.0, 9.2, 8.6, 8.0,
	7.5, 6.7, 6.0, 5.5, 5.0, 4.6, 4.3, 4.0,
	3.7, 3.3, 3.0, 2.7, 2.5, 2.3, 2.1, 2.0,
}

// Delays in seconds for each of the 4 delay codes (bits 5-6).
var delaysSec = [4]float64{0.25, 0.50, 0.75, 1.00}

// Timer converts typematic settings into tick counts. Tick is safe to call
// from the tick interrupt; everything else belongs to the polling loop.
type Timer struct {
	ticks atomic.Uint32

	periods [32]uint32
	delays  [4]uint32

	arg    byte
	period uint32
	delay  uint32
	// reset is the byte applied by Reset.
	reset byte
}

// New returns a timer for a tick source running at tickRate Hz, set to
// Default.
func New(tickRate uint32) *Timer {
	t := &Timer{reset: Default}
	for i, cps := range ratesCPS {
		t.periods[i] = uint32(0.5 + float64(tickRate)/cps)
	}
	for i, s := range delaysSec {
		t.delays[i] = uint32(0.5 + float64(tickRate)*s)
	}
	t.Reset()
	return t
}

// Tick advances the counter by one. The counter wraps; compare with Since.
func (t *Timer) Tick() { t.ticks.Add(1) }

// Now returns the current tick count.
func (t *Timer) Now() uint32 { return t.ticks.Load() }

// Since returns the ticks elapsed after start, wrap-around included.
func (t *Timer) Since(start uint32) uint32 { return t.ticks.Load() - start }

// Set applies a Set Typematic Rate argument: rate in bits 0-4, delay in
// bits 5-6. Bit 7 is ignored.
func (t *Timer) Set(arg byte) {
	t.arg = arg & 0x7F
	t.period = t.periods[arg&0x1F]
	t.delay = t.delays[arg>>5&0x03]
}

// Reset applies the power-on byte, Default unless changed by SetPowerOn.
func (t *Timer) Reset() { t.Set(t.reset) }

// SetPowerOn changes the byte applied by Reset and applies it.
func (t *Timer) SetPowerOn(arg byte) {
	t.reset = arg & 0x7F
	t.Reset()
}

// Arg returns the current typematic byte.
func (t *Timer) Arg() byte { return t.arg }

// Period returns the repeat period in ticks.
func (t *Timer) Period() uint32 { return t.period }

// Delay returns the delay before the first repeat in ticks.
func (t *Timer) Delay() uint32 { return t.delay }
