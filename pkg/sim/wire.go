// Package sim models the PS/2 bus and a PS/2 host (keyboard controller) in
// software, so the device side can be exercised without hardware.
package sim

// Wire is one open-collector line shared by the device and the host. The
// line is high unless either side pulls it low.
type Wire struct {
	deviceLow bool
	hostLow   bool
}

// Level returns the line level.
func (w *Wire) Level() bool { return !w.deviceLow && !w.hostLow }

// Device returns the device's end of the wire.
func (w *Wire) Device() *DevicePin { return &DevicePin{w: w} }

// DevicePin implements bus.Line for the device end of a Wire.
type DevicePin struct {
	w *Wire
}

func (p *DevicePin) Release()  { p.w.deviceLow = false }
func (p *DevicePin) Low()      { p.w.deviceLow = true }
func (p *DevicePin) Get() bool { return p.w.Level() }

// DeviceDriving reports whether the device pulls the line low.
func (w *Wire) DeviceDriving() bool { return w.deviceLow }

// HostLow pulls the line low from the host side.
func (w *Wire) HostLow() { w.hostLow = true }

// HostRelease releases the host side of the line.
func (w *Wire) HostRelease() { w.hostLow = false }

// Bus is the clock and data wire pair.
type Bus struct {
	Clock Wire
	Data  Wire
}
