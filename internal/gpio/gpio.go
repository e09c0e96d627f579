// Package gpio provides digital input and pin-change interrupt access with
// hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Pin identifies a GPIO line (BCM numbering on the Raspberry Pi, the line
// offset on a gpiochip).
type Pin int

// Mode is the electrical configuration of an input pin.
type Mode int

const (
	ModeInput Mode = iota
	ModeInputPullUp
	ModeInputPullDown
)

// Trigger selects which level changes fire an attached handler.
type Trigger int

const (
	TriggerChange Trigger = iota // both edges
	TriggerRising
	TriggerFalling
)

// Handler is a context-free edge callback. It runs inside the irq critical
// section and must return quickly without blocking.
type Handler func()

// Controller configures pins, samples their levels and binds edge handlers.
type Controller interface {
	// Configure sets the pin's electrical mode.
	Configure(pin Pin, mode Mode) error

	// Read returns the pin's current level (true = high).
	Read(pin Pin) bool

	// InterruptCapable reports whether Attach can be used on the pin.
	InterruptCapable(pin Pin) bool

	// Attach binds h to level changes on pin, replacing any previous binding.
	Attach(pin Pin, h Handler, t Trigger) error

	// Detach removes the pin's binding. Detaching an unbound pin is a no-op.
	Detach(pin Pin) error
}

// Default pin definitions (BCM numbering) for a single KY-040 style encoder.
const (
	DefaultPinCLK = 17
	DefaultPinDIR = 27
	DefaultPinBTN = 22
)

// DefaultChip is the gpiochip the Raspberry Pi header is exposed on.
const DefaultChip = "gpiochip0"
