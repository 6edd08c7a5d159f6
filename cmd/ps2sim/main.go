// Command ps2sim runs the converter firmware logic against a simulated PS/2
// host on the development machine.
//
// Usage:
//
//	ps2sim [flags]                  interactive: keystrokes become key taps
//	ps2sim -script scenario.yaml    run a scripted session
//	echo "tap a" | ps2sim           one command per input line
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/config"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ps2sim: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("ps2sim", flag.ContinueOnError)
	script := fs.String("script", "", "YAML scenario to run")
	cfgPath := fs.String("config", "", "YAML device config (same fields as the firmware config)")
	fs.Uint("tick-rate", config.DefaultTickRateHz, "bus tick rate in Hz (4 ticks per PS/2 clock)")
	fs.Duration("bat-delay", config.DefaultBATDelayMs*time.Millisecond, "delay before the BAT code")
	fs.Uint("typematic", config.DefaultTypematic, "power-on typematic byte")
	fs.Bool("no-repeat", false, "disable autorepeat generation")
	verbose := fs.Bool("v", false, "debug logging to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := deviceConfig(fs, *cfgPath)
	if err != nil {
		return err
	}

	level := slog.Level(cfg.LogLevel)
	if *verbose {
		level = slog.LevelDebug
	} else if *cfgPath == "" {
		level = slog.LevelWarn
	}
	logging.SetLevel(level)

	r := newRig(rigConfig{
		TickRate:   cfg.TickRateHz,
		BATDelay:   time.Duration(cfg.BATDelayMs) * time.Millisecond,
		Typematic:  cfg.Typematic,
		Autorepeat: cfg.Has(config.FlagAutorepeat),
	})

	if *script != "" {
		sc, err := LoadScenario(*script)
		if err != nil {
			return err
		}
		return sc.Run(r, os.Stdout)
	}

	if err := r.boot(); err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return runInteractive(r, os.Stdin, os.Stdout)
	}
	fmt.Printf("< %s\n", formatHex(r.drain()))
	return runLines(r, os.Stdin, os.Stdout)
}

// deviceConfig starts from the defaults or the YAML file at path and
// applies the flags given on the command line on top.
func deviceConfig(fs *flag.FlagSet, path string) (config.DeviceConfig, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := loadConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		v := f.Value.(flag.Getter).Get()
		switch f.Name {
		case "tick-rate":
			cfg.TickRateHz = uint32(min(v.(uint), math.MaxUint32))
		case "bat-delay":
			cfg.BATDelayMs = uint16(min(max(v.(time.Duration)/time.Millisecond, 0), math.MaxUint16))
		case "typematic":
			cfg.Typematic = uint8(min(v.(uint), math.MaxUint8))
		case "no-repeat":
			if v.(bool) {
				cfg.Flags &^= config.FlagAutorepeat
			} else {
				cfg.Flags |= config.FlagAutorepeat
			}
		}
	})

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadConfig reads a DeviceConfig from YAML. Missing fields keep their
// defaults.
func loadConfig(path string) (config.DeviceConfig, error) {
	cfg := config.Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Version != config.CurrentVersion {
		return cfg, errors.New("config version mismatch")
	}
	return cfg, nil
}
