// Package rotary decodes quadrature rotary encoders wired to GPIO inputs.
//
// An Encoder keeps a detent counter and the last sampled channel bits.
// Sampling is driven either by pin-change handlers, routed through a small
// fixed table of dispatch slots, or manually by calling Read.
package rotary

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/sweeney/rotary-sensor/internal/gpio"
	"github.com/sweeney/rotary-sensor/internal/irq"
	"github.com/sweeney/rotary-sensor/internal/logic"
)

// Wiring identifies the three inputs of one encoder.
type Wiring struct {
	CLK gpio.Pin // primary channel
	DIR gpio.Pin // quadrature channel
	BTN gpio.Pin // push-button
}

// Pins returns the wiring as CLK, DIR, BTN.
func (w Wiring) Pins() [3]gpio.Pin {
	return [3]gpio.Pin{w.CLK, w.DIR, w.BTN}
}

func (w Wiring) String() string {
	return fmt.Sprintf("clk=%d dir=%d btn=%d", w.CLK, w.DIR, w.BTN)
}

// Encoder is one quadrature encoder.
//
// A registered encoder is referenced from its dispatch slot until End or
// Close is called, so it stays reachable (and keeps decoding) even if the
// caller drops it.
type Encoder struct {
	wiring Wiring
	ctrl   gpio.Controller

	count atomic.Int32
	bits  atomic.Uint32
}

// New creates an encoder for the given wiring. Nothing touches the hardware
// until Begin.
func New(ctrl gpio.Controller, w Wiring) *Encoder {
	return &Encoder{wiring: w, ctrl: ctrl}
}

// Begin configures the pins as pull-up inputs, resets the state and binds
// the encoder to pin-change interrupts.
//
// Only a pin configuration failure is returned. When no dispatch slot is
// free or no pin is interrupt capable the encoder still works through Read;
// Registered reports which case applies.
func (e *Encoder) Begin() error {
	for _, pin := range e.wiring.Pins() {
		if err := e.ctrl.Configure(pin, gpio.ModeInputPullUp); err != nil {
			return err
		}
	}
	e.Reset()
	if err := register(e); err != nil {
		log.Printf("rotary: %v: interrupts unavailable, sample with Read: %v", e.wiring, err)
	}
	return nil
}

// End releases the encoder's dispatch slot and resets the state.
func (e *Encoder) End() {
	if err := deregister(e); err != nil && !errors.Is(err, ErrNotRegistered) {
		log.Printf("rotary: %v: %v", e.wiring, err)
	}
	e.Reset()
}

// Close is End, for use with defer.
func (e *Encoder) Close() error {
	e.End()
	return nil
}

// Reset sets the counter and channel bits to zero.
func (e *Encoder) Reset() {
	s := irq.Disable()
	e.count.Store(0)
	e.bits.Store(0)
	irq.Restore(s)
}

// Read samples the pins and updates the state, as a pin-change handler
// would. It reports whether a valid change was seen.
func (e *Encoder) Read() bool {
	s := irq.Disable()
	defer irq.Restore(s)
	return e.decode()
}

// decode is the sampling step. It runs inside the irq critical section,
// either from a dispatch slot or from Read.
func (e *Encoder) decode() bool {
	next := e.Sample()
	prev := logic.Bits(e.bits.Load())
	if next == prev {
		return false
	}
	e.bits.Store(uint32(next))

	step, valid := logic.Decode(prev, next)
	if step != 0 {
		e.count.Add(int32(step))
	}
	return valid
}

// Sample reads the three pins without changing any state.
func (e *Encoder) Sample() logic.Bits {
	return logic.MakeBits(
		e.ctrl.Read(e.wiring.CLK),
		e.ctrl.Read(e.wiring.DIR),
		e.ctrl.Read(e.wiring.BTN),
	)
}

// Value returns the detent counter.
func (e *Encoder) Value() int32 {
	return e.count.Load()
}

// State returns the last sampled channel bits.
func (e *Encoder) State() logic.Bits {
	return logic.Bits(e.bits.Load())
}

func (e *Encoder) CLK() bool { return e.State().CLK() }
func (e *Encoder) DIR() bool { return e.State().DIR() }
func (e *Encoder) BTN() bool { return e.State().BTN() }

// Wiring returns the pins the encoder was created with.
func (e *Encoder) Wiring() Wiring {
	return e.wiring
}

// Registered reports whether the encoder currently holds a dispatch slot.
func (e *Encoder) Registered() bool {
	return findSlot(e) >= 0
}
