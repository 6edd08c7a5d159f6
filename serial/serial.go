// Package serial serves the maintenance protocol over the USB CDC port.
package serial

import (
	"errors"
	"time"

	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/logging"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/protocol"
)

// Port is the part of machine.Serialer the protocol needs.
type Port interface {
	ReadByte() (byte, error)
	Buffered() int
	Write(data []byte) (int, error)
}

const (
	pollInterval = time.Millisecond
	// A frame that stalls for longer than this is dropped.
	byteTimeout = 100 * time.Millisecond
)

type Serial struct {
	serial  Port
	handler *protocol.Handler
	reader  reader
}

func NewSerial(serial Port, handler *protocol.Handler) Serial {
	return Serial{
		serial:  serial,
		handler: handler,
		reader:  reader{port: serial},
	}
}

// Handle serves frames forever. Run it in its own goroutine.
func (s *Serial) Handle() {
	for {
		if err := s.ServeFrame(); err != nil {
			logging.Debug(logging.ComponentSerial, "frame dropped", "err", err)
		}
	}
}

// ServeFrame reads one request, handles it and writes the response. Frames
// with a bad CRC are answered with StatusCRCError; other read errors drop
// the frame without a response.
func (s *Serial) ServeFrame() error {
	s.reader.inFrame = false
	frame, err := protocol.ReadFrame(&s.reader)
	if err != nil {
		if errors.Is(err, protocol.ErrCRCMismatch) {
			s.write(&protocol.Response{Status: protocol.StatusCRCError})
		}
		return err
	}

	return s.write(s.handler.Handle(frame))
}

func (s *Serial) write(resp *protocol.Response) error {
	if err := protocol.WriteResponse(s.serial, resp); err != nil {
		logging.Warn(logging.ComponentSerial, "write failed", "err", err)
		return err
	}
	return nil
}

// reader adapts the non-blocking Port to io.Reader. It waits indefinitely for
// the first byte of a frame and at most byteTimeout for each later byte.
type reader struct {
	port    Port
	inFrame bool
}

func (r *reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	var waited time.Duration
	for r.port.Buffered() == 0 {
		if r.inFrame && waited >= byteTimeout {
			return 0, protocol.ErrTimeout
		}
		time.Sleep(pollInterval)
		waited += pollInterval
	}

	n := 0
	for n < len(p) && r.port.Buffered() > 0 {
		b, err := r.port.ReadByte()
		if err != nil {
			return n, err
		}
		p[n] = b
		n++
	}
	r.inFrame = true
	return n, nil
}
