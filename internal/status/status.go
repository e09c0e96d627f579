// Package status provides a thread-safe status tracker for the rotary-sensor daemon.
// It is read by the HTTP handlers and the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/rotary-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	HeartbeatMs int64
	Chip        string
	Broker      string
	HTTPPort    string
	WSBroker    string // Websocket broker URL for browser MQTT (empty = disabled)
	Serial      string // Serial event port (empty = disabled)
}

// Pins is the wiring of one encoder.
type Pins struct {
	CLK int
	DIR int
	BTN int
}

// Encoder is the state of one encoder as last seen by the run loop.
type Encoder struct {
	Name       string
	Pins       Pins
	Count      int32
	Bits       logic.Bits
	Interrupts bool // holds a dispatch slot; false means the encoder is polled
	Counts     logic.EventCounts
}

// Button returns the push-button state.
func (e Encoder) Button() logic.State {
	if e.Bits.BTN() {
		return logic.StatePressed
	}
	return logic.StateReleased
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and stays valid after the lock is released.
type Snapshot struct {
	Encoders      []Encoder
	SlotsInUse    int
	SlotCapacity  int
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update stores the state of one encoder, keyed by name. Encoders are listed
// in the order they were first updated.
func (t *Tracker) Update(enc Encoder) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.snap.Encoders {
		if t.snap.Encoders[i].Name == enc.Name {
			t.snap.Encoders[i] = enc
			return
		}
	}
	t.snap.Encoders = append(t.snap.Encoders, enc)
}

// SetSlots sets dispatch slot occupancy.
func (t *Tracker) SetSlots(inUse, capacity int) {
	t.mu.Lock()
	t.snap.SlotsInUse = inUse
	t.snap.SlotCapacity = capacity
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Encoders = append([]Encoder(nil), t.snap.Encoders...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
