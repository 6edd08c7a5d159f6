// Package critical provides the mutual exclusion used between the PS/2 tick
// interrupt and the main polling loop.
//
// On the microcontroller a Section masks interrupts for its duration, so the
// tick handler can never observe a half-written multi-field update. Host
// builds (tests and the simulator) use a mutex instead. Sections must be short
// and must never block.
package critical

import "sync"

// Section guards state shared with the tick interrupt.
type Section interface {
	Enter()
	Exit()
}

// Mutex is a Section backed by sync.Mutex.
type Mutex struct {
	mu sync.Mutex
}

func (m *Mutex) Enter() { m.mu.Lock() }
func (m *Mutex) Exit()  { m.mu.Unlock() }

// Do runs fn inside s.
func Do(s Section, fn func()) {
	s.Enter()
	defer s.Exit()
	fn()
}
