package mqtt

import log "github.com/sirupsen/logrus"

// bufferedMsg is a serialized MQTT message waiting to be sent.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is the bounded outbound queue between the tick loop and the
// sender goroutine. New messages go to the back; messages that failed to
// send go back to the front, ahead of anything queued meanwhile. When full
// the oldest message is dropped. Not safe for concurrent use.
type ringBuffer struct {
	slots   []bufferedMsg
	first   int // index of the oldest message
	count   int
	dropped int // messages lost since the last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{slots: make([]bufferedMsg, capacity)}
}

func (r *ringBuffer) slot(i int) int {
	return (r.first + i) % len(r.slots)
}

// push appends msg, evicting the oldest message when full.
func (r *ringBuffer) push(msg bufferedMsg) {
	if r.count == len(r.slots) {
		r.first = r.slot(1)
		r.count--
		r.drop(1)
	}
	r.slots[r.slot(r.count)] = msg
	r.count++
}

// pushFront puts msgs, oldest first, ahead of everything queued. When the
// result does not fit, the oldest messages are dropped, so the front of
// msgs goes first.
func (r *ringBuffer) pushFront(msgs []bufferedMsg) {
	room := len(r.slots) - r.count
	if len(msgs) > room {
		r.drop(len(msgs) - room)
		msgs = msgs[len(msgs)-room:]
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		r.first = (r.first - 1 + len(r.slots)) % len(r.slots)
		r.slots[r.first] = msgs[i]
		r.count++
	}
}

func (r *ringBuffer) drop(n int) {
	if r.dropped == 0 {
		log.Warnf("mqtt: outbound queue full (%d messages), dropping oldest", len(r.slots))
	}
	r.dropped += n
}

// drainAll returns the queued messages oldest first and empties the buffer.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		return nil
	}
	out := make([]bufferedMsg, r.count)
	for i := range out {
		out[i] = r.slots[r.slot(i)]
	}
	if r.dropped > 0 {
		log.Warnf("mqtt: %d messages were dropped while queued", r.dropped)
	}
	r.first, r.count, r.dropped = 0, 0, 0
	return out
}

func (r *ringBuffer) len() int {
	return r.count
}
