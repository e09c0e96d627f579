package rotary

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sweeney/rotary-sensor/internal/gpio"
	"github.com/sweeney/rotary-sensor/internal/irq"
)

// Capacity is the number of encoders that can be bound to pin-change
// interrupts at the same time.
const Capacity = 4

var (
	ErrNoInterruptPin = errors.New("no interrupt capable pin")
	ErrNoFreeSlot     = errors.New("no free dispatch slot")
	ErrNotRegistered  = errors.New("encoder not registered")
)

// slots is read by handlers and written by foreground code under the irq
// critical section.
var slots [Capacity]atomic.Pointer[Encoder]

// trampolines are the context-free handlers bound to pins. Each one knows
// only its slot index.
var trampolines = [Capacity]gpio.Handler{
	func() { dispatch(0) },
	func() { dispatch(1) },
	func() { dispatch(2) },
	func() { dispatch(3) },
}

func dispatch(slot int) {
	if e := slots[slot].Load(); e != nil {
		e.decode()
	}
}

// findSlot returns the index of the slot holding target, or -1. A nil target
// finds the first free slot.
func findSlot(target *Encoder) int {
	for i := range slots {
		if slots[i].Load() == target {
			return i
		}
	}
	return -1
}

// register claims a slot for e and binds its trampoline to every interrupt
// capable pin of e's wiring. Registering an encoder twice is a no-op.
func register(e *Encoder) error {
	s := irq.Disable()
	defer irq.Restore(s)

	if findSlot(e) >= 0 {
		return nil
	}

	var capable []gpio.Pin
	for _, pin := range e.wiring.Pins() {
		if e.ctrl.InterruptCapable(pin) {
			capable = append(capable, pin)
		}
	}
	if len(capable) == 0 {
		return ErrNoInterruptPin
	}

	slot := findSlot(nil)
	if slot < 0 {
		return ErrNoFreeSlot
	}
	slots[slot].Store(e)

	for i, pin := range capable {
		if err := e.ctrl.Attach(pin, trampolines[slot], gpio.TriggerChange); err != nil {
			slots[slot].Store(nil)
			errs := []error{fmt.Errorf("attach pin %d: %w", pin, err)}
			for _, p := range capable[:i] {
				if derr := e.ctrl.Detach(p); derr != nil {
					errs = append(errs, fmt.Errorf("detach pin %d: %w", p, derr))
				}
			}
			return errors.Join(errs...)
		}
	}
	return nil
}

// deregister frees e's slot and detaches its pins. The slot is cleared before
// any pin is detached, so a handler already dispatched for one of them finds
// an empty slot.
func deregister(e *Encoder) error {
	s := irq.Disable()
	defer irq.Restore(s)

	slot := findSlot(e)
	if slot < 0 {
		return ErrNotRegistered
	}
	slots[slot].Store(nil)

	var errs []error
	for _, pin := range e.wiring.Pins() {
		if !e.ctrl.InterruptCapable(pin) {
			continue
		}
		if err := e.ctrl.Detach(pin); err != nil {
			errs = append(errs, fmt.Errorf("detach pin %d: %w", pin, err))
		}
	}
	return errors.Join(errs...)
}

// SlotsInUse returns the number of occupied dispatch slots.
func SlotsInUse() int {
	n := 0
	for i := range slots {
		if slots[i].Load() != nil {
			n++
		}
	}
	return n
}
