//go:build !tinygo

// Package irq provides the critical section shared by GPIO edge handlers and
// foreground code.
//
// On a microcontroller this masks interrupts. On a hosted OS there are no
// interrupts to mask, so a single process-wide lock stands in for them: every
// GPIO controller runs its edge handlers while holding it, and foreground code
// that touches handler-visible state takes it as well.
package irq

import "sync"

// State is the value returned by Disable and handed back to Restore.
type State uintptr

var mu sync.Mutex

// Disable enters the critical section. It is not reentrant on the host.
func Disable() State {
	mu.Lock()
	return 0
}

// Restore leaves the critical section entered by Disable. The host has no
// mask to restore, so the state is ignored.
func Restore(_ State) {
	mu.Unlock()
}
