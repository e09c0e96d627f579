// Package uart publishes events as JSON lines over a serial port.
package uart

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/sweeney/rotary-sensor/internal/logic"
	"github.com/sweeney/rotary-sensor/internal/mqtt"
)

// Publisher writes one JSON document per line. It carries the same payloads
// as the MQTT publisher, so a host on the other end of the cable can parse
// both feeds with one decoder.
type Publisher struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// Open opens the named serial device at the given baud rate.
func Open(name string, baud int) (*Publisher, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	return New(port), nil
}

// New wraps an already open writer.
func New(w io.WriteCloser) *Publisher {
	return &Publisher{w: w}
}

// Publish writes an encoder event line.
func (p *Publisher) Publish(event logic.Event) error {
	payload, err := mqtt.FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.writeLine(payload)
}

// PublishSystem writes a system event line.
func (p *Publisher) PublishSystem(event mqtt.SystemEvent) error {
	payload, err := mqtt.FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.writeLine(payload)
}

func (p *Publisher) writeLine(payload []byte) error {
	line := make([]byte, 0, len(payload)+1)
	line = append(line, payload...)
	line = append(line, '\n')

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.w.Write(line); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

// Close closes the underlying port.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.w.Close()
}

var _ mqtt.Publisher = (*Publisher)(nil)
