// Package protocol implements the binary maintenance protocol spoken over the
// USB CDC port: configuration, status and key injection for bench testing.
//
// Frame format:
//
//	[SYNC:1][CMD:1][LEN:2][PAYLOAD:LEN][CRC:2]
//	- SYNC: 0xAA (frame start marker)
//	- CMD: Command byte
//	- LEN: Payload length (uint16, little-endian)
//	- PAYLOAD: Variable length data
//	- CRC: CRC16-CCITT of [CMD][LEN][PAYLOAD]
//
// Response format is identical.
package protocol

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/config"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/hid"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/logging"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/ps2"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/storage"
)

const (
	SyncByte = 0xAA

	// Command codes (PC → Device)
	CmdGetDeviceConfig = 0x01
	CmdSetDeviceConfig = 0x02
	CmdGetStorageStats = 0x07
	CmdPing            = 0x08
	CmdFactoryReset    = 0x09
	CmdGetVersion      = 0x10
	CmdGetStatus       = 0x11
	CmdInjectKey       = 0x12
	CmdHIDReport       = 0x13

	// Device → USB host coprocessor
	CmdKeyboardLEDs = 0x14

	// Response status codes (Device → PC)
	StatusOK              = 0x00
	StatusError           = 0x01
	StatusInvalidCmd      = 0x02
	StatusInvalidData     = 0x03
	StatusNotFound        = 0x04
	StatusNoSpace         = 0x05
	StatusVersionMismatch = 0x06
	StatusCRCError        = 0x07
	StatusBusy            = 0x08
)

// Firmware version reported by CmdGetVersion.
var (
	FirmwareMajor uint8 = 1
	FirmwareMinor uint8 = 0
)

var (
	ErrInvalidFrame = errors.New("invalid frame")
	ErrCRCMismatch  = errors.New("CRC mismatch")
	ErrTimeout      = errors.New("timeout")
)

// StatusSource reports the PS/2 engine state.
type StatusSource interface {
	Status() ps2.Status
}

// Handler processes protocol commands.
type Handler struct {
	storage *storage.Manager
	engine  StatusSource
	events  *hid.EventQueue
	tracker hid.Tracker
}

// NewHandler creates a new protocol handler. engine and events may be nil,
// in which case CmdGetStatus, CmdInjectKey and CmdHIDReport answer
// StatusError.
func NewHandler(sm *storage.Manager, engine StatusSource, events *hid.EventQueue) *Handler {
	return &Handler{
		storage: sm,
		engine:  engine,
		events:  events,
	}
}

// Frame represents a protocol frame.
type Frame struct {
	Cmd     uint8
	Payload []byte
}

// Response represents a protocol response.
type Response struct {
	Status  uint8
	Payload []byte
}

// ReadFrame reads and validates a frame from the reader.
func ReadFrame(r io.Reader) (*Frame, error) {
	// Read sync byte
	sync := make([]byte, 1)
	if _, err := io.ReadFull(r, sync); err != nil {
		return nil, err
	}
	if sync[0] != SyncByte {
		return nil, ErrInvalidFrame
	}

	// Read header (cmd + len)
	header := make([]byte, 3)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	cmd := header[0]
	length := binary.LittleEndian.Uint16(header[1:])

	// Sanity check on length
	if length > 4096 {
		return nil, ErrInvalidFrame
	}

	// Read payload
	var payload []byte
	if length > 0 {
		payload = make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}

	// Read CRC
	crcBytes := make([]byte, 2)
	if _, err := io.ReadFull(r, crcBytes); err != nil {
		return nil, err
	}
	receivedCRC := binary.LittleEndian.Uint16(crcBytes)

	// Verify CRC
	calculatedCRC := calcCRC(append(header, payload...))
	if receivedCRC != calculatedCRC {
		return nil, ErrCRCMismatch
	}

	return &Frame{
		Cmd:     cmd,
		Payload: payload,
	}, nil
}

// WriteResponse writes a response frame to the writer.
func WriteResponse(w io.Writer, resp *Response) error {
	// Calculate total size
	payloadLen := uint16(len(resp.Payload))
	frameLen := 1 + 1 + 2 + int(payloadLen) + 2 // sync + status + len + payload + crc

	buf := make([]byte, 0, frameLen)

	// Sync byte
	buf = append(buf, SyncByte)

	// Status
	buf = append(buf, resp.Status)

	// Length
	lenBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBytes, payloadLen)
	buf = append(buf, lenBytes...)

	// Payload
	buf = append(buf, resp.Payload...)

	// CRC (of status + len + payload)
	crc := calcCRC(buf[1:]) // Skip sync byte
	crcBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(crcBytes, crc)
	buf = append(buf, crcBytes...)

	_, err := w.Write(buf)
	return err
}

// WriteFrame writes a request frame (for testing/PC side).
func WriteFrame(w io.Writer, frame *Frame) error {
	payloadLen := uint16(len(frame.Payload))
	frameLen := 1 + 1 + 2 + int(payloadLen) + 2

	buf := make([]byte, 0, frameLen)

	// Sync byte
	buf = append(buf, SyncByte)

	// Command
	buf = append(buf, frame.Cmd)

	// Length
	lenBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBytes, payloadLen)
	buf = append(buf, lenBytes...)

	// Payload
	buf = append(buf, frame.Payload...)

	// CRC
	crc := calcCRC(buf[1:])
	crcBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(crcBytes, crc)
	buf = append(buf, crcBytes...)

	_, err := w.Write(buf)
	return err
}

// Handle processes a command frame and returns a response.
func (h *Handler) Handle(frame *Frame) *Response {
	switch frame.Cmd {
	case CmdPing:
		return h.handlePing(frame.Payload)
	case CmdGetDeviceConfig:
		return h.handleGetDeviceConfig()
	case CmdSetDeviceConfig:
		return h.handleSetDeviceConfig(frame.Payload)
	case CmdGetStorageStats:
		return h.handleGetStorageStats()
	case CmdFactoryReset:
		return h.handleFactoryReset()
	case CmdGetVersion:
		return h.handleGetVersion()
	case CmdGetStatus:
		return h.handleGetStatus()
	case CmdInjectKey:
		return h.handleInjectKey(frame.Payload)
	case CmdHIDReport:
		return h.handleHIDReport(frame.Payload)
	default:
		return &Response{Status: StatusInvalidCmd}
	}
}

// handlePing responds with the same payload (echo).
func (h *Handler) handlePing(payload []byte) *Response {
	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// handleGetDeviceConfig returns the stored device configuration.
func (h *Handler) handleGetDeviceConfig() *Response {
	var cfg config.DeviceConfig
	if err := h.storage.LoadDevice(&cfg); err != nil {
		if errors.Is(err, storage.ErrConfigNotFound) {
			return &Response{Status: StatusNotFound}
		}
		return &Response{Status: StatusError}
	}

	data, err := cfg.MarshalBinary()
	if err != nil {
		return &Response{Status: StatusError}
	}

	return &Response{
		Status:  StatusOK,
		Payload: data,
	}
}

// handleSetDeviceConfig stores a new device configuration. It takes effect
// on the next boot.
// Payload: [DeviceConfig:16 bytes]
func (h *Handler) handleSetDeviceConfig(payload []byte) *Response {
	if len(payload) != config.Size {
		return &Response{Status: StatusInvalidData}
	}

	var cfg config.DeviceConfig
	if err := cfg.UnmarshalBinary(payload); err != nil {
		return &Response{Status: StatusInvalidData}
	}

	// Zero means "current" so host tools need not track the format version.
	if cfg.Version != 0 && cfg.Version != config.CurrentVersion {
		return &Response{Status: StatusVersionMismatch}
	}
	if err := cfg.Validate(); err != nil {
		logging.Debug(logging.ComponentSerial, "rejected config", "err", err)
		return &Response{Status: StatusInvalidData}
	}

	if err := h.storage.SaveDevice(&cfg); err != nil {
		if errors.Is(err, storage.ErrFlashFull) {
			return &Response{Status: StatusNoSpace}
		}
		logging.Warn(logging.ComponentSerial, "save config failed", "err", err)
		return &Response{Status: StatusError}
	}

	return &Response{Status: StatusOK}
}

// handleGetStorageStats returns storage statistics.
// Response: [Total:4][Used:4][Free:4][Flags:1]
// Flags bit 0: a config is stored. Bit 1: a config was wiped at boot.
func (h *Handler) handleGetStorageStats() *Response {
	stats, err := h.storage.GetStats()
	if err != nil {
		return &Response{Status: StatusError}
	}

	payload := make([]byte, 13)
	binary.LittleEndian.PutUint32(payload[0:], uint32(stats.TotalSpace))
	binary.LittleEndian.PutUint32(payload[4:], uint32(stats.UsedSpace))
	binary.LittleEndian.PutUint32(payload[8:], uint32(stats.FreeSpace))
	if stats.HasConfig {
		payload[12] |= 1 << 0
	}
	if stats.Wiped {
		payload[12] |= 1 << 1
	}

	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// handleFactoryReset erases the stored configuration.
func (h *Handler) handleFactoryReset() *Response {
	if err := h.storage.ForceWipe(); err != nil {
		return &Response{Status: StatusError}
	}
	return &Response{Status: StatusOK}
}

// handleGetVersion returns firmware and config version info.
// Response: [FirmwareVersionMajor:1][FirmwareVersionMinor:1][ConfigVersion:2]
func (h *Handler) handleGetVersion() *Response {
	payload := make([]byte, 4)
	payload[0] = FirmwareMajor
	payload[1] = FirmwareMinor
	binary.LittleEndian.PutUint16(payload[2:], config.CurrentVersion)

	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// StatusSize is the payload length of a CmdGetStatus response.
const StatusSize = 20

// handleGetStatus returns the engine summary.
// Response: [State:1][Flags:1][LEDs:1][Typematic:1]
//
//	[Commands:4][Failures:4][Frames:4][Retransmits:4]
//
// Flags bit 0: enabled. Bit 1: busy.
func (h *Handler) handleGetStatus() *Response {
	if h.engine == nil {
		return &Response{Status: StatusError}
	}
	return &Response{
		Status:  StatusOK,
		Payload: EncodeStatus(h.engine.Status()),
	}
}

// EncodeStatus lays out s as a CmdGetStatus payload.
func EncodeStatus(s ps2.Status) []byte {
	payload := make([]byte, StatusSize)
	payload[0] = uint8(s.State)
	if s.Enabled {
		payload[1] |= 1 << 0
	}
	if s.Busy {
		payload[1] |= 1 << 1
	}
	payload[2] = s.LEDs
	payload[3] = s.Typematic
	binary.LittleEndian.PutUint32(payload[4:], s.Commands)
	binary.LittleEndian.PutUint32(payload[8:], s.Failures)
	binary.LittleEndian.PutUint32(payload[12:], s.Frames)
	binary.LittleEndian.PutUint32(payload[16:], s.Retransmits)
	return payload
}

// DecodeStatus is the inverse of EncodeStatus.
func DecodeStatus(payload []byte) (ps2.Status, error) {
	if len(payload) != StatusSize {
		return ps2.Status{}, ErrInvalidFrame
	}
	return ps2.Status{
		State:       ps2.State(payload[0]),
		Enabled:     payload[1]&(1<<0) != 0,
		Busy:        payload[1]&(1<<1) != 0,
		LEDs:        payload[2],
		Typematic:   payload[3],
		Commands:    binary.LittleEndian.Uint32(payload[4:]),
		Failures:    binary.LittleEndian.Uint32(payload[8:]),
		Frames:      binary.LittleEndian.Uint32(payload[12:]),
		Retransmits: binary.LittleEndian.Uint32(payload[16:]),
	}, nil
}

// handleInjectKey queues a key event as if it came from the USB keyboard.
// Payload: [Event:1][Usage:1], event 0 down, 1 up, 2 repeat.
func (h *Handler) handleInjectKey(payload []byte) *Response {
	if h.events == nil {
		return &Response{Status: StatusError}
	}
	if len(payload) != 2 {
		return &Response{Status: StatusInvalidData}
	}

	kind := hid.EventKind(payload[0])
	if kind > hid.EventRepeat || payload[1] >= hid.KeyMax {
		return &Response{Status: StatusInvalidData}
	}

	if !h.events.Push(hid.Event{Kind: kind, Key: payload[1]}) {
		return &Response{Status: StatusBusy}
	}
	logging.Debug(logging.ComponentSerial, "injected key", "event", kind, "usage", payload[1])
	return &Response{Status: StatusOK}
}

// handleHIDReport diffs a boot keyboard report against the previous one and
// queues the resulting key events. A USB host coprocessor streams its
// reports this way.
// Payload: [Report:8 bytes]
func (h *Handler) handleHIDReport(payload []byte) *Response {
	if h.events == nil {
		return &Response{Status: StatusError}
	}
	if len(payload) != hid.ReportSize {
		return &Response{Status: StatusInvalidData}
	}

	var r hid.Report
	copy(r[:], payload)
	h.tracker.Update(&r, h.events)
	return &Response{Status: StatusOK}
}

// LEDWriter forwards keyboard LED changes to the USB host coprocessor.
// Payload: [LEDs:1] in HID output report bit order.
type LEDWriter struct {
	W io.Writer
}

func (l LEDWriter) SetKeyboardLEDs(leds uint8) {
	if err := WriteFrame(l.W, &Frame{Cmd: CmdKeyboardLEDs, Payload: []byte{leds}}); err != nil {
		logging.Warn(logging.ComponentSerial, "LED frame not sent", "err", err)
	}
}

// calcCRC calculates CRC16-CCITT.
// Polynomial: 0x1021, Initial: 0xFFFF
func calcCRC(data []byte) uint16 {
	var crc uint16 = 0xFFFF

	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}

	return crc
}
