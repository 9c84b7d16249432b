package broadcast

import (
	"context"
	"sync"

	"github.com/nexus-rd/nexus/pkg/domain"
	"github.com/nexus-rd/nexus/pkg/observability"
)

// subscriber is a single registered snapshot consumer
type subscriber struct {
	ch     chan domain.SessionSnapshot
	closed bool
}

// topic fans snapshots out to the subscribers of one session. A done
// topic keeps its final snapshot for subscribers that arrive late.
type topic struct {
	subs   map[int]*subscriber
	latest domain.SessionSnapshot
	has    bool
	done   bool
}

// Broadcaster distributes session snapshots to subscribers. Delivery is
// strictly non-blocking: a subscriber that stops draining its channel loses
// snapshots rather than stalling the publisher. Sequence numbers on the
// snapshots let consumers detect the gaps.
type Broadcaster struct {
	mu      sync.Mutex
	topics  map[string]*topic
	nextID  int
	buffer  int
	logger  observability.Logger
	metrics *observability.Metrics
}

// New creates a broadcaster whose subscriber channels buffer up to buffer
// snapshots. Metrics may be nil.
func New(buffer int, logger observability.Logger, metrics *observability.Metrics) *Broadcaster {
	if buffer < 1 {
		buffer = 1
	}
	return &Broadcaster{
		topics:  make(map[string]*topic),
		buffer:  buffer,
		logger:  logger,
		metrics: metrics,
	}
}

// Subscribe registers for snapshots of a session. The returned cancel
// function unregisters and closes the channel; calling it twice is safe.
// If the session already published, the latest snapshot is delivered
// first. Subscribing after CloseSession yields the final snapshot and an
// immediately closed channel.
func (b *Broadcaster) Subscribe(sessionID string) (<-chan domain.SessionSnapshot, func()) {
	b.mu.Lock()

	t, ok := b.topics[sessionID]
	if !ok {
		t = &topic{subs: make(map[int]*subscriber)}
		b.topics[sessionID] = t
	}

	if t.done {
		ch := make(chan domain.SessionSnapshot, 1)
		if t.has {
			ch <- t.latest
		}
		close(ch)
		b.mu.Unlock()
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	sub := &subscriber{ch: make(chan domain.SessionSnapshot, b.buffer)}
	t.subs[id] = sub

	if t.has {
		sub.ch <- t.latest
	}
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.SubscriberAdded()
	}

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub.closed {
			return
		}
		sub.closed = true
		delete(t.subs, id)
		close(sub.ch)
		if b.metrics != nil {
			b.metrics.SubscriberRemoved()
		}
	}

	return sub.ch, cancel
}

// Publish delivers a snapshot to every subscriber of its session. Slow
// subscribers with full buffers are skipped.
func (b *Broadcaster) Publish(snapshot domain.SessionSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[snapshot.SessionID]
	if !ok {
		t = &topic{subs: make(map[int]*subscriber)}
		b.topics[snapshot.SessionID] = t
	}
	if t.done {
		return
	}

	// Stale publishes (out-of-order goroutine scheduling) never move the
	// latest snapshot backwards
	if !t.has || snapshot.Sequence >= t.latest.Sequence {
		t.latest = snapshot
		t.has = true
	}

	for _, sub := range t.subs {
		select {
		case sub.ch <- snapshot:
		default:
			if b.metrics != nil {
				b.metrics.RecordSnapshotDropped(context.Background())
			}
			if b.logger != nil {
				b.logger.Debug(context.Background(), "dropped snapshot for slow subscriber", map[string]interface{}{
					"session_id": snapshot.SessionID,
					"sequence":   snapshot.Sequence,
				})
			}
		}
	}
}

// Latest returns the most recent snapshot published for a session
func (b *Broadcaster) Latest(sessionID string) (domain.SessionSnapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[sessionID]
	if !ok || !t.has {
		return domain.SessionSnapshot{}, false
	}
	return t.latest, true
}

// CloseSession closes every subscriber channel of a session and marks
// the topic done. The final snapshot stays available so a subscriber
// racing the session's completion still gets it instead of a channel
// that never closes. Called when a session reaches a terminal phase.
func (b *Broadcaster) CloseSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[sessionID]
	if !ok {
		t = &topic{subs: make(map[int]*subscriber)}
		b.topics[sessionID] = t
	}

	for id, sub := range t.subs {
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
			if b.metrics != nil {
				b.metrics.SubscriberRemoved()
			}
		}
		delete(t.subs, id)
	}
	t.done = true
}
