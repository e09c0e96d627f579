// Package logic contains the pure quadrature decoding rules and the event
// detection built on top of them.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State represents the logical state of the push-button.
type State string

const (
	StatePressed  State = "PRESSED"
	StateReleased State = "RELEASED"
)

// EventType represents a detected change.
type EventType string

const (
	EventRotateCW      EventType = "ROTATE_CW"
	EventRotateCCW     EventType = "ROTATE_CCW"
	EventButtonPress   EventType = "BUTTON_PRESS"
	EventButtonRelease EventType = "BUTTON_RELEASE"
)

// Event represents a change to be published.
type Event struct {
	Timestamp time.Time
	Encoder   string
	Type      EventType
	Count     int32 // counter value after the change
	Delta     int32 // signed detents since the previous sample (rotation only)
	Button    State
}

// Input represents a single snapshot of an encoder.
type Input struct {
	Count int32
	Bits  Bits
	Time  time.Time
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	CW      int
	CCW     int
	Press   int
	Release int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
