//go:build rp2040

// Package board binds the converter to an RP2040: the PS/2 lines, the
// quadruple-clock tick interrupt, the report UART and the status LED.
package board

import (
	"machine"
	"time"

	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/logging"
)

// Pin assignments. GPIO0/1 carry the debug display I2C bus.
const (
	ClockPin = machine.GPIO2
	DataPin  = machine.GPIO3

	reportTX = machine.GPIO4
	reportRX = machine.GPIO5
)

// ReportBaud is the speed of the UART carrying boot reports from the USB host
// coprocessor.
const ReportBaud = 115200

// Line drives one open collector PS/2 line. The external pull-up (or the
// internal one) holds the line high while released.
type Line struct {
	pin machine.Pin
}

// NewLine returns a released line on pin.
func NewLine(pin machine.Pin) *Line {
	l := &Line{pin: pin}
	l.Release()
	return l
}

func (l *Line) Release() {
	l.pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
}

// Low sets the output latch before switching direction so the line never
// glitches high.
func (l *Line) Low() {
	l.pin.Low()
	l.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
}

func (l *Line) Get() bool { return l.pin.Get() }

// ReportUART configures and returns the UART the USB host coprocessor writes
// boot reports to.
func ReportUART() *machine.UART {
	uart := machine.UART1
	if err := uart.Configure(machine.UARTConfig{
		BaudRate: ReportBaud,
		TX:       reportTX,
		RX:       reportRX,
	}); err != nil {
		logging.Warn(logging.ComponentBoard, "report UART config failed", "err", err)
	}
	return uart
}

// InitStatusLED configures the on-board LED, off.
func InitStatusLED() {
	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	machine.LED.Low()
}

// Fatal logs err, latches the status LED on and halts.
func Fatal(msg string, err error) {
	logging.Error(logging.ComponentBoard, msg, "err", err)
	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	machine.LED.High()
	for {
		time.Sleep(time.Hour)
	}
}
