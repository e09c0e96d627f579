package rotary

import (
	"testing"

	"github.com/sweeney/rotary-sensor/internal/gpio"
)

// clearSlots empties the dispatch table now and after the test, since it is
// process-wide.
func clearSlots(t *testing.T) {
	t.Helper()
	empty := func() {
		for i := range slots {
			slots[i].Store(nil)
		}
	}
	empty()
	t.Cleanup(empty)
}

// wiringN returns distinct wiring for the n-th test encoder.
func wiringN(n int) Wiring {
	base := gpio.Pin(10 * (n + 1))
	return Wiring{CLK: base, DIR: base + 1, BTN: base + 2}
}

// drive sets the encoder's pins to the active-low levels of bits, one pin at
// a time in CLK, DIR, BTN order, firing any bound handlers.
func drive(f *gpio.FakeController, w Wiring, clk, dir, btn bool) {
	f.SetLevel(w.CLK, !clk)
	f.SetLevel(w.DIR, !dir)
	f.SetLevel(w.BTN, !btn)
}

// setRaw sets all three pins without firing handlers.
func setRaw(f *gpio.FakeController, w Wiring, clk, dir, btn bool) {
	f.SetLevels(map[gpio.Pin]bool{w.CLK: !clk, w.DIR: !dir, w.BTN: !btn})
}
