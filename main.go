//go:build tinygo

package main

import (
	"log/slog"
	"machine"
	"runtime"
	"time"

	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/board"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/bridge"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/bus"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/config"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/critical"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/display"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/hid"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/logging"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/protocol"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/ps2"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/queue"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/storage"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/typematic"
	"github.com/tuffrabit/tinygo-ps2-bridge/serial"
)

// eventQueueSize holds a burst of a full boot report (six keys and eight
// modifiers) going down and up.
const eventQueueSize = 32

// MAIN THREAD DUTIES
//
// Everything except the tick interrupt and the two serial links runs in the
// polling loop below.

func main() {
	board.InitStatusLED()

	mgr, err := storage.New(machine.Flash, true)
	if err != nil {
		board.Fatal("storage init failed", err)
	}
	cfg := mgr.LoadOrDefault()
	logging.SetLevel(slog.Level(cfg.LogLevel))

	rate := board.TickRate(cfg.TickRateHz)
	logging.Info(logging.ComponentBoard, "starting",
		"tick_rate", rate, "bat_delay_ms", cfg.BATDelayMs, "typematic", cfg.Typematic)

	driver := bus.NewDriver(
		board.NewLine(board.ClockPin),
		board.NewLine(board.DataPin),
		&critical.Interrupts{},
		rate,
	)
	frames := queue.NewFrames(&critical.Interrupts{})
	timer := typematic.New(rate)
	timer.SetPowerOn(cfg.Typematic)

	reportLink := board.ReportUART()

	var repeatTimer *typematic.Timer
	if cfg.Has(config.FlagAutorepeat) {
		repeatTimer = timer
	}
	brg := bridge.New(frames, nil, bridge.Options{
		USB:   protocol.LEDWriter{W: reportLink},
		Timer: repeatTimer,
	})

	opts := ps2.Options{
		BATDelay: time.Duration(cfg.BATDelayMs) * time.Millisecond,
		LEDs:     brg,
		Now:      time.Now,
	}
	var monitor *display.Manager
	if cfg.Has(config.FlagDisplay) {
		monitor = display.NewManager()
		if monitor != nil {
			opts.Monitor = monitor
		}
	}
	engine := ps2.New(driver, frames, timer, opts)
	brg.SetGate(engine)

	events := hid.NewEventQueue(eventQueueSize)

	usbSerial := serial.NewSerial(machine.Serial, protocol.NewHandler(mgr, engine, events))
	go usbSerial.Handle()
	reportSerial := serial.NewSerial(reportLink, protocol.NewHandler(mgr, engine, events))
	go reportSerial.Handle()

	board.StartTicker(rate, func() {
		driver.Tick()
		timer.Tick()
	})

	for {
		engine.Step()
		events.Drain(brg)
		brg.Poll()
		if monitor != nil && !engine.Busy() {
			monitor.Refresh(time.Now())
		}
		runtime.Gosched()
	}
}
