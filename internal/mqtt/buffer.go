package mqtt

import "log"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO that stores messages while disconnected.
// Not safe for concurrent use; the caller synchronizes.
type ringBuffer struct {
	buf     []bufferedMsg
	head    int // next write position
	count   int
	dropped int // messages overwritten since the last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{buf: make([]bufferedMsg, capacity)}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	capacity := len(r.buf)
	if r.count == capacity {
		if r.dropped == 0 {
			log.Printf("mqtt: buffer full (%d messages), dropping oldest", capacity)
		}
		r.dropped++
		// head already points at the oldest entry
		r.buf[r.head] = msg
		r.head = (r.head + 1) % capacity
		return
	}
	r.buf[r.head] = msg
	r.head = (r.head + 1) % capacity
	r.count++
}

// drainAll returns the buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		return nil
	}

	capacity := len(r.buf)
	result := make([]bufferedMsg, r.count)
	start := (r.head - r.count + capacity) % capacity
	for i := range result {
		result[i] = r.buf[(start+i)%capacity]
	}

	if r.dropped > 0 {
		log.Printf("mqtt: %d buffered messages were dropped while disconnected", r.dropped)
	}
	r.count = 0
	r.head = 0
	r.dropped = 0
	return result
}

func (r *ringBuffer) len() int {
	return r.count
}
