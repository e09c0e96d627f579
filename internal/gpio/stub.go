//go:build !linux && !tinygo

package gpio

import "errors"

// RealController is not available on non-Linux platforms.
type RealController struct{}

// NewRealController returns an error on non-Linux platforms.
func NewRealController(chipName string) (*RealController, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

func (c *RealController) Configure(pin Pin, mode Mode) error {
	return errors.New("gpio: not supported")
}

func (c *RealController) Read(pin Pin) bool { return true }

func (c *RealController) InterruptCapable(pin Pin) bool { return false }

func (c *RealController) Attach(pin Pin, h Handler, t Trigger) error {
	return errors.New("gpio: not supported")
}

func (c *RealController) Detach(pin Pin) error { return nil }

// Close is not implemented on non-Linux platforms.
func (c *RealController) Close() error {
	return nil
}
