package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/rotary-sensor/internal/logic"
)

// bufferSize is the number of messages held while the broker is unreachable.
const bufferSize = 256

// RealPublisher publishes to an actual MQTT broker.
//
// Messages published while the connection is down are buffered and replayed
// in order once it is back, followed by a RECONNECTED system event.
type RealPublisher struct {
	client paho.Client

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool // at least one successful connection
}

// NewRealPublisher creates a publisher for the given broker. The broker does
// not have to be reachable yet; the client keeps retrying in the background.
func NewRealPublisher(broker, clientID string) (*RealPublisher, error) {
	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	p := &RealPublisher{buf: newRingBuffer(bufferSize)}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: %s not reachable yet, buffering until connected", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// newPublisher wraps an existing client. Used by tests.
func newPublisher(client paho.Client) *RealPublisher {
	return &RealPublisher{client: client, buf: newRingBuffer(bufferSize)}
}

// Publish sends an encoder event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	if err := p.send(bufferedMsg{topic: EventTopic(event.Encoder), payload: payload}); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	msg := bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained}
	if err := p.send(msg); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}
	return p.publishNow(msg)
}

func (p *RealPublisher) publishNow(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("timeout")
	}
	return token.Error()
}

// onConnect replays buffered messages. On reconnection it also announces
// that the daemon is back.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	pending := p.buf.drainAll()
	reconnect := p.connected
	p.connected = true
	p.mu.Unlock()

	if len(pending) > 0 {
		log.Printf("mqtt: replaying %d buffered messages", len(pending))
	}
	for _, msg := range pending {
		if err := p.publishNow(msg); err != nil {
			log.Printf("mqtt: replay to %s: %v", msg.topic, err)
		}
	}

	if !reconnect {
		return
	}
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
	if err != nil {
		log.Printf("mqtt: format reconnected event: %v", err)
		return
	}
	if err := p.publishNow(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1}); err != nil {
		log.Printf("mqtt: publish reconnected event: %v", err)
	}
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// IsConnected reports whether the connection to the broker is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
