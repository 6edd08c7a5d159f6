package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/hid"
)

const (
	ctrlC  = 0x03
	ctrlD  = 0x04
	escape = 0x1B
)

// session turns terminal bytes into key taps and ':' command lines.
type session struct {
	r *rig
	w io.Writer

	line    []byte
	inLine  bool
	escSeen int
}

func newSession(r *rig, w io.Writer) *session {
	return &session{r: r, w: w}
}

// feed handles one input byte. It returns errQuit when the user quits.
func (s *session) feed(c byte) error {
	switch {
	case c == ctrlC || c == ctrlD:
		return errQuit
	case s.inLine:
		return s.feedLine(c)
	case s.escSeen > 0:
		return s.feedEscape(c)
	case c == escape:
		s.escSeen = 1
		return nil
	case c == ':':
		s.inLine = true
		s.line = s.line[:0]
		fmt.Fprint(s.w, ":")
		return nil
	}

	t, ok := lookupASCII(c)
	if !ok {
		return nil
	}
	fmt.Fprintf(s.w, "%q ", c)
	return s.typeKey(t)
}

func (s *session) feedLine(c byte) error {
	switch c {
	case '\r', '\n':
		s.inLine = false
		fmt.Fprint(s.w, "\r\n")
		err := execLine(s.r, s.w, string(s.line))
		if errors.Is(err, errQuit) {
			return err
		}
		if err != nil {
			fmt.Fprintf(s.w, "error: %v\r\n", err)
		}
		s.report()
	case 0x7F, 0x08:
		if len(s.line) > 0 {
			s.line = s.line[:len(s.line)-1]
			fmt.Fprint(s.w, "\b \b")
		}
	default:
		s.line = append(s.line, c)
		fmt.Fprintf(s.w, "%c", c)
	}
	return nil
}

func (s *session) feedEscape(c byte) error {
	if s.escSeen == 1 {
		if c == '[' {
			s.escSeen = 2
			return nil
		}
		// A lone Escape press followed by another key.
		s.escSeen = 0
		if err := s.typeKey(typed{key: hid.KeyEscape}); err != nil {
			return err
		}
		return s.feed(c)
	}

	s.escSeen = 0
	key, ok := escapeKeys[c]
	if !ok {
		return nil
	}
	fmt.Fprintf(s.w, "ESC[%c ", c)
	return s.typeKey(typed{key: key})
}

func (s *session) typeKey(t typed) error {
	var err error
	if t.shift {
		err = errors.Join(err, s.r.key(hid.EventDown, hid.KeyLeftShift))
	}
	err = errors.Join(err,
		s.r.key(hid.EventDown, t.key),
		s.r.key(hid.EventUp, t.key))
	if t.shift {
		err = errors.Join(err, s.r.key(hid.EventUp, hid.KeyLeftShift))
	}
	s.report()
	return err
}

// report prints what the host received.
func (s *session) report() {
	if got := s.r.drain(); len(got) > 0 {
		fmt.Fprintf(s.w, "< %s\r\n", formatHex(got))
	}
}

// runInteractive reads raw keystrokes from in until Ctrl-C or ":quit".
func runInteractive(r *rig, in *os.File, out io.Writer) error {
	fd := int(in.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("enable raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	fmt.Fprint(out, "type to press keys, ':' for a command (host ed 02, press leftshift, status), Ctrl-C quits\r\n")
	s := newSession(r, out)
	s.report()

	rd := bufio.NewReader(in)
	for {
		c, err := rd.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := s.feed(c); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(out, "error: %v\r\n", err)
		}
	}
}

// runLines executes one command per line, for piped input.
func runLines(r *rig, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		err := execLine(r, out, sc.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			return err
		}
		if got := r.drain(); len(got) > 0 {
			fmt.Fprintf(out, "< %s\n", formatHex(got))
		}
	}
	return sc.Err()
}
