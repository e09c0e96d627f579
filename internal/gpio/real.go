//go:build linux && !tinygo

package gpio

import (
	"fmt"
	"log"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/rotary-sensor/internal/irq"
)

// eventQueue bounds edges waiting for the dispatcher. An edge that finds the
// queue full is dropped; the next handler run samples every pin anyway.
const eventQueue = 64

// RealController drives actual hardware through the Linux GPIO character
// device.
//
// Edge events from every requested line are funnelled into one dispatcher
// goroutine, which runs bound handlers one at a time inside the irq critical
// section.
type RealController struct {
	mu       sync.Mutex
	chip     *gpiocdev.Chip
	lines    map[Pin]*gpiocdev.Line
	handlers map[Pin]Handler

	events chan Pin
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewRealController opens the named gpiochip (e.g. "gpiochip0").
func NewRealController(chipName string) (*RealController, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("rotary-sensor"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	c := &RealController{
		chip:     chip,
		lines:    make(map[Pin]*gpiocdev.Line),
		handlers: make(map[Pin]Handler),
		events:   make(chan Pin, eventQueue),
		done:     make(chan struct{}),
	}
	c.wg.Add(1)
	go c.dispatch()
	return c, nil
}

// Configure requests the line as an input with the bias given by mode.
// The line is requested with an event handler but no edge detection until
// Attach is called.
func (c *RealController) Configure(pin Pin, mode Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, ok := c.lines[pin]
	if !ok {
		var err error
		line, err = c.chip.RequestLine(int(pin),
			gpiocdev.AsInput,
			gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { c.post(pin) }))
		if err != nil {
			return fmt.Errorf("request pin %d: %w", pin, err)
		}
		c.lines[pin] = line
	}
	if err := line.Reconfigure(inputOptions(mode)...); err != nil {
		return fmt.Errorf("configure pin %d: %w", pin, err)
	}
	return nil
}

// Read returns the line level. A failed read reports high, which an
// active-low consumer treats as inactive.
func (c *RealController) Read(pin Pin) bool {
	c.mu.Lock()
	line, ok := c.lines[pin]
	c.mu.Unlock()
	if !ok {
		return true
	}

	v, err := line.Value()
	if err != nil {
		log.Printf("gpio: read pin %d: %v", pin, err)
		return true
	}
	return v != 0
}

// InterruptCapable reports whether pin is a line on this chip. Every cdev
// line supports edge detection.
func (c *RealController) InterruptCapable(pin Pin) bool {
	return pin >= 0 && int(pin) < c.chip.Lines()
}

// Attach enables edge detection on a configured line and binds h to it.
func (c *RealController) Attach(pin Pin, h Handler, t Trigger) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, ok := c.lines[pin]
	if !ok {
		return fmt.Errorf("attach pin %d: not configured", pin)
	}
	c.handlers[pin] = h
	if err := line.Reconfigure(edgeOption(t)); err != nil {
		delete(c.handlers, pin)
		return fmt.Errorf("attach pin %d: %w", pin, err)
	}
	return nil
}

// Detach disables edge detection on pin and forgets its handler.
func (c *RealController) Detach(pin Pin) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.handlers, pin)
	line, ok := c.lines[pin]
	if !ok {
		return nil
	}
	if err := line.Reconfigure(gpiocdev.WithoutEdges); err != nil {
		return fmt.Errorf("detach pin %d: %w", pin, err)
	}
	return nil
}

// post queues an edge for the dispatcher. Called from gpiocdev's watcher
// goroutine, so it must never block.
func (c *RealController) post(pin Pin) {
	select {
	case c.events <- pin:
	default:
	}
}

func (c *RealController) dispatch() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case pin := <-c.events:
			c.mu.Lock()
			h := c.handlers[pin]
			c.mu.Unlock()
			if h == nil {
				continue
			}
			s := irq.Disable()
			h()
			irq.Restore(s)
		}
	}
}

// Close releases all lines and the chip, and stops the dispatcher.
func (c *RealController) Close() error {
	var errs []error

	c.mu.Lock()
	for pin, line := range c.lines {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	c.lines = make(map[Pin]*gpiocdev.Line)
	c.handlers = make(map[Pin]Handler)
	c.mu.Unlock()

	close(c.done)
	c.wg.Wait()

	if err := c.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func inputOptions(mode Mode) []gpiocdev.LineConfigOption {
	switch mode {
	case ModeInputPullUp:
		return []gpiocdev.LineConfigOption{gpiocdev.AsInput, gpiocdev.WithPullUp}
	case ModeInputPullDown:
		return []gpiocdev.LineConfigOption{gpiocdev.AsInput, gpiocdev.WithPullDown}
	default:
		return []gpiocdev.LineConfigOption{gpiocdev.AsInput, gpiocdev.WithBiasDisabled}
	}
}

func edgeOption(t Trigger) gpiocdev.LineConfigOption {
	switch t {
	case TriggerRising:
		return gpiocdev.WithRisingEdge
	case TriggerFalling:
		return gpiocdev.WithFallingEdge
	default:
		return gpiocdev.WithBothEdges
	}
}
