package mqtt

import (
	"github.com/sweeney/rotary-sensor/internal/logic"
)

// FakePublisher records encoder and system events in publish order, along
// with the payloads a broker would have received. It also reports a settable
// connection state, so it can stand in for both Publisher and
// ConnectionStatus.
type FakePublisher struct {
	// Events holds every rotation and button event, across all encoders.
	Events []logic.Event

	// Payloads holds the JSON sent for each entry of Events.
	Payloads [][]byte

	// SystemEvents holds STARTUP, HEARTBEAT, SHUTDOWN and similar events.
	SystemEvents []SystemEvent

	// SystemPayloads holds the JSON sent for each entry of SystemEvents.
	SystemPayloads [][]byte

	// PublishError, if set, makes Publish fail without recording.
	PublishError error

	// PublishSystemError, if set, makes PublishSystem fail without recording.
	PublishSystemError error

	// Closed reports whether Close was called.
	Closed bool

	// Connected is returned by IsConnected.
	Connected bool
}

// NewFakePublisher creates an empty, disconnected FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records an encoder event and its payload.
func (f *FakePublisher) Publish(event logic.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records a system event and its payload.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// EventsFor returns the recorded events of one encoder, i.e. what a
// subscriber to EventTopic(encoder) would have seen.
func (f *FakePublisher) EventsFor(encoder string) []logic.Event {
	var out []logic.Event
	for _, e := range f.Events {
		if e.Encoder == encoder {
			out = append(out, e)
		}
	}
	return out
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected returns Connected.
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset forgets everything recorded and clears injected errors.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}
