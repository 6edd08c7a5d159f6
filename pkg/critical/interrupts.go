//go:build tinygo

package critical

import "runtime/interrupt"

// Interrupts is a Section that disables interrupts on the current core.
// Sections guarded by the same Interrupts value must not nest.
type Interrupts struct {
	state interrupt.State
}

func (i *Interrupts) Enter() { i.state = interrupt.Disable() }
func (i *Interrupts) Exit()  { interrupt.Restore(i.state) }
