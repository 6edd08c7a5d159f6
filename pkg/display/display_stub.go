//go:build !tinygo || nodebug

// Package display provides a no-op stub when built with the nodebug tag or
// for the host. This saves memory by excluding the SSD1306 driver.
//
// To build without display support, use:
//
//	tinygo build -tags=nodebug -target=pico -o firmware.uf2 .
package display

import "time"

// Manager is a no-op stub when the display is excluded.
type Manager struct {
	Traffic
}

// NewManager returns nil when the display is excluded.
func NewManager() *Manager {
	return nil
}

// Refresh is a no-op when the display is excluded.
func (m *Manager) Refresh(now time.Time) {}
