//go:build tinygo && (rp2040 || rp2350)

package gpio

import (
	"errors"
	"machine"
)

// MachineController drives RP2040/RP2350 pins through TinyGo's machine
// package. Pin numbers are GPIO numbers.
type MachineController struct{}

// NewMachineController returns the on-chip GPIO controller.
func NewMachineController() *MachineController {
	return &MachineController{}
}

func (c *MachineController) Configure(pin Pin, mode Mode) error {
	if !c.valid(pin) {
		return errors.New("gpio: invalid pin")
	}
	m := machine.PinInput
	switch mode {
	case ModeInputPullUp:
		m = machine.PinInputPullup
	case ModeInputPullDown:
		m = machine.PinInputPulldown
	}
	machine.Pin(pin).Configure(machine.PinConfig{Mode: m})
	return nil
}

func (c *MachineController) Read(pin Pin) bool {
	return machine.Pin(pin).Get()
}

// InterruptCapable is true for every bank 0 GPIO.
func (c *MachineController) InterruptCapable(pin Pin) bool {
	return c.valid(pin)
}

// Attach binds h to the pin's edge interrupt. h runs in interrupt context.
func (c *MachineController) Attach(pin Pin, h Handler, t Trigger) error {
	change := machine.PinToggle
	switch t {
	case TriggerRising:
		change = machine.PinRising
	case TriggerFalling:
		change = machine.PinFalling
	}
	return machine.Pin(pin).SetInterrupt(change, func(machine.Pin) { h() })
}

func (c *MachineController) Detach(pin Pin) error {
	return machine.Pin(pin).SetInterrupt(0, nil)
}

// RP2040 has GPIO0-GPIO29; the RP2350A package exposes the same range.
func (c *MachineController) valid(pin Pin) bool {
	return pin >= 0 && pin <= 29
}
