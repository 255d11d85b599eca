package mqtt

import (
	"log"
	"slices"
)

// bufferedMsg is a serialized message waiting for the broker.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox queues messages published while the broker is unreachable. When it
// is full the oldest transition is evicted first; retained lifecycle events
// go only when nothing else is left to drop.
// Caller must synchronize.
type outbox struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
	}
}

func (o *outbox) push(m bufferedMsg) {
	if len(o.msgs) == o.capacity {
		o.evict()
	}
	o.msgs = append(o.msgs, m)
}

func (o *outbox) evict() {
	if o.dropped == 0 {
		log.Printf("mqtt: buffer full (%d messages), dropping oldest transitions", o.capacity)
	}
	i := slices.IndexFunc(o.msgs, func(m bufferedMsg) bool { return !m.retained })
	if i < 0 {
		i = 0
	}
	o.msgs = slices.Delete(o.msgs, i, i+1)
	o.dropped++
}

// drain returns the queued messages oldest first, and how many were evicted
// since the last drain.
func (o *outbox) drain() ([]bufferedMsg, int) {
	if len(o.msgs) == 0 && o.dropped == 0 {
		return nil, 0
	}
	msgs := o.msgs
	dropped := o.dropped
	o.msgs = make([]bufferedMsg, 0, o.capacity)
	o.dropped = 0
	if len(msgs) == 0 {
		msgs = nil
	}
	return msgs, dropped
}

func (o *outbox) len() int {
	return len(o.msgs)
}
