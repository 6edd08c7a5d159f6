package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted session read from YAML:
//
//	name: shifted arrow
//	steps:
//	  - press: LeftShift
//	  - tap: Up
//	  - expect: "12 E0 F0 12 E0 75"
//	  - host: "ED 02"
//	  - expect: "FA FA"
//	  - do: "wait 600ms"
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
}

// Step holds exactly one action.
type Step struct {
	Press   string   `yaml:"press,omitempty"`
	Release string   `yaml:"release,omitempty"`
	Tap     string   `yaml:"tap,omitempty"`
	Host    string   `yaml:"host,omitempty"`
	Report  string   `yaml:"report,omitempty"`
	Wait    Duration `yaml:"wait,omitempty"`
	// Expect compares the bytes the host received since the previous
	// expect step.
	Expect *string `yaml:"expect,omitempty"`
	// Do is a command line as typed in interactive mode.
	Do string `yaml:"do,omitempty"`
}

// Duration wraps time.Duration for YAML unmarshaling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

var errExpect = errors.New("unexpected host bytes")

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	for i, st := range s.Steps {
		if n := st.actions(); n != 1 {
			return nil, fmt.Errorf("step %d: expected one action, got %d", i+1, n)
		}
	}
	return &s, nil
}

func (st *Step) actions() int {
	n := 0
	for _, set := range []bool{
		st.Press != "", st.Release != "", st.Tap != "", st.Host != "",
		st.Report != "", st.Wait != 0, st.Expect != nil, st.Do != "",
	} {
		if set {
			n++
		}
	}
	return n
}

// args renders a non-expect step as a command.
func (st *Step) args() []string {
	switch {
	case st.Press != "":
		return []string{"press", st.Press}
	case st.Release != "":
		return []string{"release", st.Release}
	case st.Tap != "":
		return []string{"tap", st.Tap}
	case st.Host != "":
		return []string{"host", st.Host}
	case st.Report != "":
		return []string{"report", st.Report}
	case st.Wait != 0:
		return []string{"wait", time.Duration(st.Wait).String()}
	}
	return nil
}

// Run executes the scenario against r after boot, printing every action and
// the bytes the host received. It returns errExpect if any expect step
// failed.
func (s *Scenario) Run(r *rig, w io.Writer) error {
	if err := r.boot(); err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	fmt.Fprintf(w, "# %s\n< %s\n", s.Name, formatHex(r.drain()))

	var sinceExpect []byte
	failed := 0
	for i, st := range s.Steps {
		if st.Expect != nil {
			want, err := parseHex(*st.Expect)
			if err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
			if formatHex(want) != formatHex(sinceExpect) {
				fmt.Fprintf(w, "! step %d: expected [%s], got [%s]\n", i+1, formatHex(want), formatHex(sinceExpect))
				failed++
			}
			sinceExpect = nil
			continue
		}

		var err error
		if st.Do != "" {
			fmt.Fprintf(w, "> %s\n", st.Do)
			err = execLine(r, w, st.Do)
		} else {
			args := st.args()
			fmt.Fprintf(w, "> %s %s\n", args[0], args[1])
			err = execCommand(r, w, args)
		}
		if err != nil && !errors.Is(err, errQuit) {
			return fmt.Errorf("step %d: %w", i+1, err)
		}

		got := r.drain()
		sinceExpect = append(sinceExpect, got...)
		if len(got) > 0 {
			fmt.Fprintf(w, "< %s\n", formatHex(got))
		}
		if errors.Is(err, errQuit) {
			break
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d expect step(s) failed", errExpect, failed)
	}
	return nil
}
