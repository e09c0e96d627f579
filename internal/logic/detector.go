package logic

import "time"

// Detector turns successive encoder snapshots into events.
type Detector struct {
	name          string
	count         int32
	button        State
	baselined     bool
	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// NewDetector creates a detector for the named encoder.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(name string, startTime time.Time) *Detector {
	return &Detector{
		name:          name,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process takes a new snapshot and returns any events that should be emitted.
// The first snapshot only establishes the baseline.
func (d *Detector) Process(input Input) []Event {
	button := buttonState(input.Bits)

	if !d.baselined {
		d.count = input.Count
		d.button = button
		d.baselined = true
		return nil
	}

	var events []Event

	// Wrapping subtraction, so a counter that overflowed still yields the
	// short way round.
	if delta := input.Count - d.count; delta != 0 {
		typ := EventRotateCW
		if delta < 0 {
			typ = EventRotateCCW
		}
		events = append(events, Event{
			Timestamp: input.Time,
			Encoder:   d.name,
			Type:      typ,
			Count:     input.Count,
			Delta:     delta,
			Button:    button,
		})
		d.count = input.Count
	}

	if button != d.button {
		typ := EventButtonRelease
		if button == StatePressed {
			typ = EventButtonPress
		}
		events = append(events, Event{
			Timestamp: input.Time,
			Encoder:   d.name,
			Type:      typ,
			Count:     input.Count,
			Button:    button,
		})
		d.button = button
	}

	for _, e := range events {
		switch e.Type {
		case EventRotateCW:
			d.eventCounts.CW++
		case EventRotateCCW:
			d.eventCounts.CCW++
		case EventButtonPress:
			d.eventCounts.Press++
		case EventButtonRelease:
			d.eventCounts.Release++
		}
	}

	return events
}

func buttonState(b Bits) State {
	if b.BTN() {
		return StatePressed
	}
	return StateReleased
}

// IsBaselined returns whether the detector has seen its first snapshot.
func (d *Detector) IsBaselined() bool {
	return d.baselined
}

// EventCountsSnapshot returns a copy of the current event counts.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.baselined {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.eventCounts,
	}
}
