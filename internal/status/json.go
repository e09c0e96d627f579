package status

import (
	"encoding/json"
	"fmt"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Encoders      []EncoderJSON `json:"encoders"`
	Slots         SlotsJSON     `json:"slots"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// EncoderJSON is the JSON representation of one encoder.
type EncoderJSON struct {
	Name       string     `json:"name"`
	Pins       PinsJSON   `json:"pins"`
	Count      int32      `json:"count"`
	State      string     `json:"state"` // channel bits, BTN DIR CLK
	Button     string     `json:"button"`
	Interrupts bool       `json:"interrupts"`
	Counts     CountsJSON `json:"event_counts"`
}

// PinsJSON is the JSON representation of an encoder's wiring.
type PinsJSON struct {
	CLK int `json:"clk"`
	DIR int `json:"dir"`
	BTN int `json:"btn"`
}

// SlotsJSON reports dispatch slot occupancy.
type SlotsJSON struct {
	InUse    int `json:"in_use"`
	Capacity int `json:"capacity"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	CW      int `json:"cw"`
	CCW     int `json:"ccw"`
	Press   int `json:"press"`
	Release int `json:"release"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Chip        string `json:"chip"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
	WSBroker    string `json:"ws_broker,omitempty"`
	Serial      string `json:"serial,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	encoders := make([]EncoderJSON, 0, len(snap.Encoders))
	for _, e := range snap.Encoders {
		encoders = append(encoders, EncoderJSON{
			Name:       e.Name,
			Pins:       PinsJSON{CLK: e.Pins.CLK, DIR: e.Pins.DIR, BTN: e.Pins.BTN},
			Count:      e.Count,
			State:      fmt.Sprintf("%03b", uint8(e.Bits)),
			Button:     string(e.Button()),
			Interrupts: e.Interrupts,
			Counts: CountsJSON{
				CW:      e.Counts.CW,
				CCW:     e.Counts.CCW,
				Press:   e.Counts.Press,
				Release: e.Counts.Release,
			},
		})
	}

	return StatusInner{
		Encoders:      encoders,
		Slots:         SlotsJSON{InUse: snap.SlotsInUse, Capacity: snap.SlotCapacity},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Chip:        snap.Config.Chip,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			WSBroker:    snap.Config.WSBroker,
			Serial:      snap.Config.Serial,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
