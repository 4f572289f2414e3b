// bridge.go - Mirrors hub events onto MQTT topics
// Events are queued FIFO and published by one background goroutine so a
// slow broker never blocks socket delivery. A full queue drops the event.

package realtime

import (
	"fmt"
	"sync"

	"go-nutri-backend/logger"
)

const bridgeQueueSize = 100

// PublishFunc sends one payload to a topic, e.g. mqtt.Publish.
type PublishFunc func(topic string, payload interface{}) error

// BridgeStats counts what the bridge did since it started.
type BridgeStats struct {
	Queued    int `json:"queued"`
	Published int `json:"published"`
	Dropped   int `json:"dropped"`
	Failed    int `json:"failed"`
}

type Bridge struct {
	prefix  string
	publish PublishFunc
	queue   chan Event
	done    chan struct{}

	mu     sync.Mutex
	stats  BridgeStats
	closed bool
}

// NewBridge starts a bridge publishing under prefix (e.g. "nutri").
func NewBridge(prefix string, publish PublishFunc) *Bridge {
	b := &Bridge{
		prefix:  prefix,
		publish: publish,
		queue:   make(chan Event, bridgeQueueSize),
		done:    make(chan struct{}),
	}
	go b.run()
	return b
}

// Topic returns where ev is published.
func (b *Bridge) Topic(ev Event) string {
	if ev.ConversationID != 0 {
		return fmt.Sprintf("%s/conversations/%d/%s", b.prefix, ev.ConversationID, ev.Type)
	}
	return fmt.Sprintf("%s/users/%d/%s", b.prefix, ev.UserID, ev.Type)
}

// Forward queues ev without blocking. Events arriving after Close are
// dropped.
func (b *Bridge) Forward(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		b.stats.Dropped++
		return
	}
	select {
	case b.queue <- ev:
		b.stats.Queued++
	default:
		b.stats.Dropped++
	}
}

func (b *Bridge) run() {
	defer close(b.done)
	for ev := range b.queue {
		topic := b.Topic(ev)
		if err := b.publish(topic, ev); err != nil {
			logger.L().Warnw("bridge publish failed", "topic", topic, "error", err)
			b.count(func(s *BridgeStats) { s.Failed++ })
			continue
		}
		b.count(func(s *BridgeStats) { s.Published++ })
	}
}

func (b *Bridge) count(f func(*BridgeStats)) {
	b.mu.Lock()
	f(&b.stats)
	b.mu.Unlock()
}

// Stats returns a snapshot of the counters.
func (b *Bridge) Stats() BridgeStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Pending is the number of queued events not yet published.
func (b *Bridge) Pending() int {
	return len(b.queue)
}

// Close stops accepting events and waits for the queue to drain. It is safe
// to call more than once.
func (b *Bridge) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()
	<-b.done
}
