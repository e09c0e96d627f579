package internal

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/rotary-sensor/internal/gpio"
	"github.com/sweeney/rotary-sensor/internal/logic"
	"github.com/sweeney/rotary-sensor/internal/mqtt"
	"github.com/sweeney/rotary-sensor/internal/rotary"
	"github.com/sweeney/rotary-sensor/internal/status"
)

func wiring(n int) rotary.Wiring {
	base := gpio.Pin(10 * (n + 1))
	return rotary.Wiring{CLK: base, DIR: base + 1, BTN: base + 2}
}

func setActive(f *gpio.FakeController, w rotary.Wiring, clk, dir, btn bool) {
	f.SetLevel(w.CLK, !clk)
	f.SetLevel(w.DIR, !dir)
	f.SetLevel(w.BTN, !btn)
}

// turn moves the encoder through n full detents, clockwise when n > 0.
func turn(f *gpio.FakeController, w rotary.Wiring, n int) {
	for ; n > 0; n-- {
		setActive(f, w, false, true, false)
		setActive(f, w, true, true, false)
		setActive(f, w, true, false, false)
		setActive(f, w, false, false, false)
	}
	for ; n < 0; n++ {
		setActive(f, w, true, false, false)
		setActive(f, w, true, true, false)
		setActive(f, w, false, true, false)
		setActive(f, w, false, false, false)
	}
}

func begin(t *testing.T, f *gpio.FakeController, w rotary.Wiring) *rotary.Encoder {
	t.Helper()
	e := rotary.New(f, w)
	if err := e.Begin(); err != nil {
		t.Fatalf("Begin(%s): %v", w, err)
	}
	t.Cleanup(e.End)
	return e
}

// TestIntegrationFullFlow runs pin changes through the dispatch slots, the
// detector and the publisher.
func TestIntegrationFullFlow(t *testing.T) {
	f := gpio.NewFakeController()
	w := wiring(0)
	enc := begin(t, f, w)
	det := logic.NewDetector("volume", time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	pub := mqtt.NewFakePublisher()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	poll := func(step func()) {
		if step != nil {
			step()
		}
		now = now.Add(10 * time.Millisecond)
		for _, ev := range det.Process(logic.Input{Count: enc.Value(), Bits: enc.State(), Time: now}) {
			if err := pub.Publish(ev); err != nil {
				t.Fatalf("publish: %v", err)
			}
		}
	}

	poll(nil)                                            // baseline
	poll(func() { turn(f, w, 3) })                       // three detents between snapshots
	poll(func() { setActive(f, w, false, false, true) }) // press
	poll(func() { turn(f, w, -1) })                      // the detent lets go of the button
	poll(nil)

	want := []struct {
		typ    logic.EventType
		count  int32
		delta  int32
		button logic.State
	}{
		{logic.EventRotateCW, 3, 3, logic.StateReleased},
		{logic.EventButtonPress, 3, 0, logic.StatePressed},
		{logic.EventRotateCCW, 2, -1, logic.StateReleased},
		{logic.EventButtonRelease, 2, 0, logic.StateReleased},
	}
	if len(pub.Events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(pub.Events), len(want), pub.Events)
	}
	for i, w := range want {
		e := pub.Events[i]
		if e.Type != w.typ || e.Count != w.count || e.Delta != w.delta {
			t.Errorf("event %d: got %s count=%d delta=%d, want %s count=%d delta=%d",
				i, e.Type, e.Count, e.Delta, w.typ, w.count, w.delta)
		}
	}

	var parsed mqtt.Payload
	if err := json.Unmarshal(pub.Payloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Rotary.Encoder != "volume" || parsed.Rotary.Delta != 3 {
		t.Errorf("payload: %+v", parsed.Rotary)
	}
}

// TestIntegrationTurnWhileHeld checks the button state carried by a rotation
// that happens with the button held down.
func TestIntegrationTurnWhileHeld(t *testing.T) {
	f := gpio.NewFakeController()
	w := wiring(0)
	enc := begin(t, f, w)

	setActive(f, w, false, false, true)
	detentHeld := func() {
		setActive(f, w, false, true, true)
		setActive(f, w, true, true, true)
		setActive(f, w, true, false, true)
		setActive(f, w, false, false, true)
	}
	detentHeld()
	if enc.Value() != 1 {
		t.Errorf("count %d, want 1", enc.Value())
	}
	if !enc.BTN() {
		t.Error("button should still be held")
	}
}

// TestIntegrationCapacity fills every dispatch slot and checks that the next
// encoder works only through Read.
func TestIntegrationCapacity(t *testing.T) {
	f := gpio.NewFakeController()
	var encs []*rotary.Encoder
	for i := 0; i < rotary.Capacity; i++ {
		encs = append(encs, begin(t, f, wiring(i)))
	}
	extra := begin(t, f, wiring(rotary.Capacity))

	if rotary.SlotsInUse() != rotary.Capacity {
		t.Fatalf("slots in use %d, want %d", rotary.SlotsInUse(), rotary.Capacity)
	}
	if extra.Registered() {
		t.Fatal("extra encoder got a slot")
	}

	for i, e := range encs {
		turn(f, wiring(i), i+1)
		if e.Value() != int32(i+1) {
			t.Errorf("encoder %d: count %d, want %d", i, e.Value(), i+1)
		}
	}

	// Without a slot, edges do nothing until Read is called.
	w := wiring(rotary.Capacity)
	setActive(f, w, true, false, false)
	if extra.Value() != 0 {
		t.Errorf("unregistered encoder changed without Read: %d", extra.Value())
	}
	if !extra.Read() {
		t.Error("Read should report the CLK edge")
	}
	if extra.Value() != -1 {
		t.Errorf("count after Read %d, want -1", extra.Value())
	}

	// Releasing one slot lets the extra encoder take it.
	encs[0].End()
	if err := extra.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !extra.Registered() {
		t.Error("extra encoder did not take the released slot")
	}
}

// TestIntegrationConcurrentEncoders drives several encoders from separate
// goroutines while the foreground reads their state.
func TestIntegrationConcurrentEncoders(t *testing.T) {
	f := gpio.NewFakeController()
	const n = 3
	var encs []*rotary.Encoder
	for i := 0; i < n; i++ {
		encs = append(encs, begin(t, f, wiring(i)))
	}

	var wg sync.WaitGroup
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			turn(f, wiring(i), 50*(i+1))
			turn(f, wiring(i), -10)
		}(i)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	tracker := status.NewTracker(time.Now(), status.Config{})
	for reading := true; reading; {
		select {
		case <-done:
			reading = false
		default:
		}
		for i, e := range encs {
			tracker.Update(status.Encoder{Name: string(rune('a' + i)), Count: e.Value(), Bits: e.State()})
		}
	}

	for i, e := range encs {
		want := int32(50*(i+1) - 10)
		if e.Value() != want {
			t.Errorf("encoder %d: count %d, want %d", i, e.Value(), want)
		}
	}
	if got := len(tracker.Snapshot().Encoders); got != n {
		t.Errorf("tracker has %d encoders, want %d", got, n)
	}
}

// TestIntegrationStatusEvents checks STARTUP and SHUTDOWN payloads built from
// live encoder state.
func TestIntegrationStatusEvents(t *testing.T) {
	f := gpio.NewFakeController()
	w := wiring(0)
	enc := begin(t, f, w)
	turn(f, w, 2)

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tracker := status.NewTracker(start, status.Config{Broker: "tcp://broker:1883", Chip: "gpiochip0"})
	tracker.Update(status.Encoder{
		Name:       "volume",
		Pins:       status.Pins{CLK: int(w.CLK), DIR: int(w.DIR), BTN: int(w.BTN)},
		Count:      enc.Value(),
		Bits:       enc.State(),
		Interrupts: enc.Registered(),
	})
	tracker.SetSlots(rotary.SlotsInUse(), rotary.Capacity)

	pub := mqtt.NewFakePublisher()
	for _, ev := range []struct{ event, reason string }{{"STARTUP", ""}, {"SHUTDOWN", "SIGTERM"}} {
		snap := tracker.Snapshot()
		err := pub.PublishSystem(mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      ev.event,
			Reason:     ev.reason,
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, ev.event, ev.reason),
		})
		if err != nil {
			t.Fatalf("PublishSystem: %v", err)
		}
	}

	if len(pub.SystemPayloads) != 2 {
		t.Fatalf("got %d system payloads, want 2", len(pub.SystemPayloads))
	}
	var shutdown status.StatusJSON
	if err := json.Unmarshal(pub.SystemPayloads[1], &shutdown); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := shutdown.Status
	if s.Event != "SHUTDOWN" || s.Reason != "SIGTERM" {
		t.Errorf("event/reason: %q/%q", s.Event, s.Reason)
	}
	if len(s.Encoders) != 1 || s.Encoders[0].Count != 2 || !s.Encoders[0].Interrupts {
		t.Errorf("encoders: %+v", s.Encoders)
	}
	if s.Slots.InUse != 1 || s.Slots.Capacity != rotary.Capacity {
		t.Errorf("slots: %+v", s.Slots)
	}
}
