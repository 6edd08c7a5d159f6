// Package config defines the persisted settings of the converter.
// DeviceConfig has a fixed binary layout for flash storage and YAML tags for
// host-side tools.
package config

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// CurrentVersion is the config format version.
// Bump this when making breaking changes to the config format.
// When firmware boots and finds a different version in flash, the config is wiped.
const CurrentVersion uint16 = 2

// Size is the encoded length of DeviceConfig.
const Size = 16

// Flags
const (
	// FlagAutorepeat generates typematic repeats for held keys.
	FlagAutorepeat uint32 = 1 << 0
	// FlagDisplay enables the PS/2 traffic monitor on the debug display.
	FlagDisplay uint32 = 1 << 1
)

// Limits of the tunable timings.
const (
	MinTickRateHz = 40000 // 10 kHz PS/2 clock
	MaxTickRateHz = 66800 // 16.7 kHz PS/2 clock
	MinBATDelayMs = 500
	MaxBATDelayMs = 750
)

// Defaults
const (
	DefaultTickRateHz = 50000
	DefaultBATDelayMs = 550
	DefaultTypematic  = 0x2B
)

// DeviceConfig holds the boot-time settings.
// Total size: 16 bytes
// Layout:
//
//	[0-1]:   Version (uint16)
//	[2-5]:   Flags (uint32)
//	[6-9]:   TickRateHz (uint32)
//	[10-11]: BATDelayMs (uint16)
//	[12]:    Typematic (uint8)
//	[13]:    LogLevel (int8, slog level)
//	[14-15]: Reserved
type DeviceConfig struct {
	Version    uint16 `yaml:"version"`
	Flags      uint32 `yaml:"flags"`
	TickRateHz uint32 `yaml:"tick_rate_hz"`
	BATDelayMs uint16 `yaml:"bat_delay_ms"`
	Typematic  uint8  `yaml:"typematic"`
	LogLevel   int8   `yaml:"log_level"`
	Reserved   uint16 `yaml:"-"`
}

// Errors
var (
	ErrInvalidSize      = errors.New("invalid config size")
	ErrInvalidTickRate  = errors.New("tick rate out of range")
	ErrInvalidBATDelay  = errors.New("BAT delay out of range")
	ErrInvalidTypematic = errors.New("typematic byte out of range")
)

// Default returns the factory settings.
func Default() DeviceConfig {
	return DeviceConfig{
		Version:    CurrentVersion,
		Flags:      FlagAutorepeat,
		TickRateHz: DefaultTickRateHz,
		BATDelayMs: DefaultBATDelayMs,
		Typematic:  DefaultTypematic,
	}
}

// Validate checks every field against the protocol limits.
func (d *DeviceConfig) Validate() error {
	if d.TickRateHz < MinTickRateHz || d.TickRateHz > MaxTickRateHz {
		return fmt.Errorf("%w: %d Hz", ErrInvalidTickRate, d.TickRateHz)
	}
	if d.BATDelayMs < MinBATDelayMs || d.BATDelayMs > MaxBATDelayMs {
		return fmt.Errorf("%w: %d ms", ErrInvalidBATDelay, d.BATDelayMs)
	}
	if d.Typematic&0x80 != 0 {
		return fmt.Errorf("%w: 0x%02X", ErrInvalidTypematic, d.Typematic)
	}
	return nil
}

// Has reports whether flag is set.
func (d *DeviceConfig) Has(flag uint32) bool { return d.Flags&flag != 0 }

// MarshalBinary implements encoding.BinaryMarshaler for DeviceConfig.
func (d *DeviceConfig) MarshalBinary() ([]byte, error) {
	buf := make([]byte, Size)
	binary.LittleEndian.PutUint16(buf[0:], d.Version)
	binary.LittleEndian.PutUint32(buf[2:], d.Flags)
	binary.LittleEndian.PutUint32(buf[6:], d.TickRateHz)
	binary.LittleEndian.PutUint16(buf[10:], d.BATDelayMs)
	buf[12] = d.Typematic
	buf[13] = uint8(d.LogLevel)
	binary.LittleEndian.PutUint16(buf[14:], d.Reserved)
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for DeviceConfig.
func (d *DeviceConfig) UnmarshalBinary(data []byte) error {
	if len(data) < Size {
		return ErrInvalidSize
	}

	d.Version = binary.LittleEndian.Uint16(data[0:])
	d.Flags = binary.LittleEndian.Uint32(data[2:])
	d.TickRateHz = binary.LittleEndian.Uint32(data[6:])
	d.BATDelayMs = binary.LittleEndian.Uint16(data[10:])
	d.Typematic = data[12]
	d.LogLevel = int8(data[13])
	d.Reserved = binary.LittleEndian.Uint16(data[14:])
	return nil
}
