package gpio

import (
	"fmt"
	"sync"

	"github.com/sweeney/rotary-sensor/internal/irq"
)

// FakeController is a test double with scripted pin levels.
// Unset pins read high, as a pulled-up input with an open contact would.
type FakeController struct {
	mu       sync.Mutex
	levels   map[Pin]bool
	modes    map[Pin]Mode
	bindings map[Pin]binding

	// NoInterrupt lists pins that report as not interrupt capable.
	NoInterrupt map[Pin]bool

	// ConfigureError, if set, will be returned by Configure.
	ConfigureError error

	// AttachError, if set, will be returned by Attach for the listed pins.
	AttachError map[Pin]error

	// DetachError, if set, will be returned by Detach for the listed pins.
	// The binding is removed regardless.
	DetachError map[Pin]error

	// Attaches and Detaches count calls, per pin.
	Attaches map[Pin]int
	Detaches map[Pin]int
}

type binding struct {
	handler Handler
	trigger Trigger
}

// NewFakeController creates a FakeController with every pin interrupt capable.
func NewFakeController() *FakeController {
	return &FakeController{
		levels:      make(map[Pin]bool),
		modes:       make(map[Pin]Mode),
		bindings:    make(map[Pin]binding),
		NoInterrupt: make(map[Pin]bool),
		AttachError: make(map[Pin]error),
		DetachError: make(map[Pin]error),
		Attaches:    make(map[Pin]int),
		Detaches:    make(map[Pin]int),
	}
}

// Configure records the pin mode.
func (f *FakeController) Configure(pin Pin, mode Mode) error {
	if f.ConfigureError != nil {
		return f.ConfigureError
	}
	f.mu.Lock()
	f.modes[pin] = mode
	f.mu.Unlock()
	return nil
}

// ModeOf returns the mode a pin was configured with.
func (f *FakeController) ModeOf(pin Pin) (Mode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.modes[pin]
	return m, ok
}

// Read returns the scripted level.
func (f *FakeController) Read(pin Pin) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	level, ok := f.levels[pin]
	if !ok {
		return true
	}
	return level
}

// InterruptCapable reports false for pins listed in NoInterrupt.
func (f *FakeController) InterruptCapable(pin Pin) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.NoInterrupt[pin]
}

// Attach records the handler for pin.
func (f *FakeController) Attach(pin Pin, h Handler, t Trigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.AttachError[pin]; err != nil {
		return err
	}
	if f.NoInterrupt[pin] {
		return fmt.Errorf("pin %d: not interrupt capable", pin)
	}
	f.bindings[pin] = binding{handler: h, trigger: t}
	f.Attaches[pin]++
	return nil
}

// Detach removes the handler for pin.
func (f *FakeController) Detach(pin Pin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bindings, pin)
	f.Detaches[pin]++
	return f.DetachError[pin]
}

// Attached reports whether pin currently has a handler.
func (f *FakeController) Attached(pin Pin) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.bindings[pin]
	return ok
}

// Handler returns the handler bound to pin, or nil.
func (f *FakeController) Handler(pin Pin) Handler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bindings[pin].handler
}

// SetLevel drives pin to level. If the level changed and a handler is bound
// with a matching trigger, the handler runs before SetLevel returns, inside
// the irq critical section.
func (f *FakeController) SetLevel(pin Pin, level bool) {
	f.mu.Lock()
	old, ok := f.levels[pin]
	if !ok {
		old = true
	}
	f.levels[pin] = level
	b, bound := f.bindings[pin]
	f.mu.Unlock()

	if old == level || !bound || !fires(b.trigger, level) {
		return
	}
	s := irq.Disable()
	b.handler()
	irq.Restore(s)
}

// SetLevels sets several pins without firing any handler.
func (f *FakeController) SetLevels(levels map[Pin]bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pin, level := range levels {
		f.levels[pin] = level
	}
}

// Fire runs pin's handler as if an edge had been seen, without changing
// its level. Returns false if no handler is bound.
func (f *FakeController) Fire(pin Pin) bool {
	h := f.Handler(pin)
	if h == nil {
		return false
	}
	s := irq.Disable()
	h()
	irq.Restore(s)
	return true
}

func fires(t Trigger, level bool) bool {
	switch t {
	case TriggerRising:
		return level
	case TriggerFalling:
		return !level
	default:
		return true
	}
}
