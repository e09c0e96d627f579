package uart

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/rotary-sensor/internal/logic"
	"github.com/sweeney/rotary-sensor/internal/mqtt"
)

type fakePort struct {
	bytes.Buffer
	err    error
	closed bool
}

func (f *fakePort) Write(p []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.Buffer.Write(p)
}

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

func TestPublisherWritesJSONLines(t *testing.T) {
	port := &fakePort{}
	p := New(port)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := p.PublishSystem(mqtt.SystemEvent{Timestamp: ts, Event: "STARTUP"}); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}
	if err := p.Publish(logic.Event{Timestamp: ts, Encoder: "knob", Type: logic.EventRotateCCW, Count: -2, Delta: -2, Button: logic.StateReleased}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	sc := bufio.NewScanner(&port.Buffer)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), lines)
	}

	var sys mqtt.SystemPayload
	if err := json.Unmarshal([]byte(lines[0]), &sys); err != nil {
		t.Fatalf("line 1 not JSON: %v", err)
	}
	if sys.System.Event != "STARTUP" {
		t.Errorf("system event: got %q", sys.System.Event)
	}

	var ev mqtt.Payload
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatalf("line 2 not JSON: %v", err)
	}
	if ev.Rotary.Encoder != "knob" || ev.Rotary.Count != -2 || ev.Rotary.Event != "ROTATE_CCW" {
		t.Errorf("event payload: %+v", ev.Rotary)
	}
}

func TestPublisherWriteError(t *testing.T) {
	port := &fakePort{err: errors.New("device gone")}
	p := New(port)

	err := p.Publish(logic.Event{Type: logic.EventRotateCW})
	if err == nil {
		t.Fatal("expected write error")
	}
	if !errors.Is(err, port.err) {
		t.Errorf("error does not wrap the port error: %v", err)
	}
}

func TestPublisherClose(t *testing.T) {
	port := &fakePort{}
	if err := New(port).Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !port.closed {
		t.Error("port not closed")
	}
}

func TestOpenMissingDevice(t *testing.T) {
	if _, err := Open("/dev/does-not-exist-rotary", 115200); err == nil {
		t.Error("expected error opening a missing device")
	}
}
