//go:build tinygo && !nodebug

// Package display shows PS/2 traffic on an SSD1306 OLED: bytes from the host
// on the yellow rows and bytes from the keyboard on the blue rows.
//
// To build without display support (saves ~1KB RAM and flash), use:
//
//	tinygo build -tags=nodebug -target=pico -o firmware.uf2 .
package display

import (
	"image/color"
	"machine"
	"time"

	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/logging"

	"tinygo.org/x/drivers/ssd1306"
	"tinygo.org/x/tinyfont"
)

const (
	// I2C configuration
	i2cAddress = 0x3C
	sclPin     = machine.GPIO1
	sdaPin     = machine.GPIO0

	// Display dimensions
	screenWidth  = 128
	screenHeight = 64
	charHeight   = 8
	cols         = 16
	rows         = screenHeight / charHeight // 8 rows

	// Row assignments
	rowTitle      = 0 // Yellow
	rowHostBytes  = 1 // Yellow
	rowHostName   = 2 // Blue
	rowDeviceData = 4 // Blue, two rows

	// A full redraw keeps the I2C bus busy for ~25ms at 400kHz.
	refreshInterval = 200 * time.Millisecond
)

// Colors for monochrome display
var (
	black = color.RGBA{0, 0, 0, 0}
	white = color.RGBA{255, 255, 255, 255}
)

var font = &tinyfont.Org01

// Manager renders a Traffic monitor on the SSD1306.
type Manager struct {
	Traffic

	device      *ssd1306.Device
	i2c         *machine.I2C
	lastRefresh time.Time
}

// NewManager creates and initializes the display manager.
// Returns nil if display initialization fails (non-fatal for debug).
func NewManager() *Manager {
	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{
		Frequency: 400000, // 400kHz fast mode
		SCL:       sclPin,
		SDA:       sdaPin,
	}); err != nil {
		logging.Warn(logging.ComponentBoard, "display I2C config failed", "err", err)
		return nil
	}

	// Small delay for bus stabilization
	time.Sleep(10 * time.Millisecond)

	dev := ssd1306.NewI2C(i2c)
	dev.Configure(ssd1306.Config{
		Address: i2cAddress,
		Width:   screenWidth,
		Height:  screenHeight,
	})
	dev.ClearDisplay()

	m := &Manager{
		device: dev,
		i2c:    i2c,
	}
	m.drawString(rowTitle, "PS/2 monitor")
	m.refresh()

	return m
}

// Refresh redraws the traffic rows if bytes arrived and the last redraw is
// older than refreshInterval. Call it from the polling loop while the engine
// is not busy.
func (m *Manager) Refresh(now time.Time) {
	if !m.Dirty() || now.Sub(m.lastRefresh) < refreshInterval {
		return
	}
	m.lastRefresh = now

	r := m.Rows()
	m.drawString(rowHostBytes, r[0])
	m.drawString(rowHostName, r[1])
	m.drawString(rowDeviceData, r[2])
	m.drawString(rowDeviceData+1, r[3])
	m.refresh()
}

// drawString replaces the contents of row with s.
func (m *Manager) drawString(row int, s string) {
	if row < 0 || row >= rows {
		return
	}
	m.clearRow(row)
	y := int16((row + 1) * charHeight)
	tinyfont.WriteLine(m.device, font, 0, y-1, truncate(s, cols-1), white)
}

// clearRow clears the 8 pixel lines of a row.
func (m *Manager) clearRow(row int) {
	yStart := int16(row * charHeight)
	for y := yStart; y < yStart+charHeight; y++ {
		for x := int16(0); x < screenWidth; x++ {
			m.device.SetPixel(x, y, black)
		}
	}
}

// refresh updates the display with current buffer content.
func (m *Manager) refresh() {
	m.device.Display()
}
