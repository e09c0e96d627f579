// Package config reads encoder wiring from a configuration file.
//
// Each encoder has its own section, named after the encoder:
//
//	[volume]
//	pins=17,27,22   # CLK, DIR, BTN
package config

import (
	"errors"
	"fmt"

	"github.com/aamcrae/config"

	"github.com/sweeney/rotary-sensor/internal/gpio"
	"github.com/sweeney/rotary-sensor/internal/rotary"
)

// ErrNoEncoders is returned when no encoder names are requested.
var ErrNoEncoders = errors.New("no encoders named")

// Encoder is the configuration of one named encoder.
type Encoder struct {
	Name   string
	Wiring rotary.Wiring
}

// Load parses the file at path and returns the wiring of each named encoder,
// in the order given. A pin may belong to only one encoder.
func Load(path string, names []string) ([]Encoder, error) {
	if len(names) == 0 {
		return nil, ErrNoEncoders
	}
	conf, err := config.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	encoders := make([]Encoder, 0, len(names))
	seen := make(map[string]bool)
	owner := make(map[gpio.Pin]string)
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("encoder %s listed twice", name)
		}
		seen[name] = true

		e, err := section(conf, name)
		if err != nil {
			return nil, err
		}
		for _, p := range e.Wiring.Pins() {
			if other, ok := owner[p]; ok {
				return nil, fmt.Errorf("%s: pin %d already used by %s", name, p, other)
			}
			owner[p] = name
		}
		encoders = append(encoders, e)
	}
	return encoders, nil
}

func section(conf *config.Config, name string) (Encoder, error) {
	s := conf.GetSection(name)
	if s == nil {
		return Encoder{}, fmt.Errorf("no config for %s", name)
	}
	var clk, dir, btn int
	n, err := s.Parse("pins", "%d,%d,%d", &clk, &dir, &btn)
	if err != nil {
		return Encoder{}, fmt.Errorf("%s: pins: %w", name, err)
	}
	if n != 3 {
		return Encoder{}, fmt.Errorf("%s: pins: want CLK,DIR,BTN", name)
	}
	w := rotary.Wiring{CLK: gpio.Pin(clk), DIR: gpio.Pin(dir), BTN: gpio.Pin(btn)}
	if err := Validate(w); err != nil {
		return Encoder{}, fmt.Errorf("%s: %w", name, err)
	}
	return Encoder{Name: name, Wiring: w}, nil
}

// Validate checks that the pins are non-negative and distinct.
func Validate(w rotary.Wiring) error {
	pins := w.Pins()
	for i, p := range pins {
		if p < 0 {
			return fmt.Errorf("pin %d is negative", p)
		}
		for _, q := range pins[:i] {
			if p == q {
				return fmt.Errorf("pin %d used twice", p)
			}
		}
	}
	return nil
}
