// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/rotary-sensor/internal/logic"
)

// TopicPrefix is the root of every topic the daemon publishes to.
const TopicPrefix = "input/rotary"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = TopicPrefix + "/system"

// EventTopic returns the topic for the named encoder's events.
func EventTopic(encoder string) string {
	return TopicPrefix + "/" + encoder + "/events"
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends an encoder event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Rotary RotaryPayload `json:"rotary"`
}

// RotaryPayload contains the encoder event details.
type RotaryPayload struct {
	Timestamp string `json:"timestamp"`
	Encoder   string `json:"encoder"`
	Event     string `json:"event"`
	Count     int32  `json:"count"`
	Delta     int32  `json:"delta,omitempty"`
	Button    string `json:"button"`
}

// FormatPayload creates the JSON payload for an encoder event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Rotary: RotaryPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Encoder:   event.Encoder,
			Event:     string(event.Type),
			Count:     event.Count,
			Delta:     event.Delta,
			Button:    string(event.Button),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
