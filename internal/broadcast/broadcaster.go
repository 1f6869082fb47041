package broadcast

import (
	"log"
	"sync"
	"time"

	"github.com/songbranch/api/internal/model"
)

const subscriberBuffer = 8

// Broadcaster fans out job status events to subscribers. One producer
// (the search worker) publishes per job; any number of consumers
// subscribe. Events are delivered in publish order and the stream is
// closed right after the terminal event. Terminal events are retained
// for a while so a subscriber that connects after the job finished
// still receives the outcome instead of blocking forever.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[string]map[chan model.StatusEvent]struct{}
	terminal    map[string]model.StatusEvent
	retention   time.Duration
}

// NewBroadcaster creates a Broadcaster that retains terminal events for
// the given duration.
func NewBroadcaster(retention time.Duration) *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]map[chan model.StatusEvent]struct{}),
		terminal:    make(map[string]model.StatusEvent),
		retention:   retention,
	}
}

// Subscribe registers for a job's status events. The returned channel is
// closed after the terminal event. The cancel func releases the
// subscriber slot; it never affects the producer or other subscribers.
// Subscribing after the job reached a terminal status delivers that
// event immediately on an already-closed channel.
func (b *Broadcaster) Subscribe(jobID string) (<-chan model.StatusEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ev, ok := b.terminal[jobID]; ok {
		ch := make(chan model.StatusEvent, 1)
		ch <- ev
		close(ch)
		return ch, func() {}
	}

	ch := make(chan model.StatusEvent, subscriberBuffer)
	if b.subscribers[jobID] == nil {
		b.subscribers[jobID] = make(map[chan model.StatusEvent]struct{})
	}
	b.subscribers[jobID][ch] = struct{}{}

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.subscribers[jobID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(b.subscribers, jobID)
				}
			}
		}
	}
	return ch, cancel
}

// Publish delivers an event to all of the job's subscribers. A terminal
// event closes every subscriber channel and is retained for late
// subscribers. Subscribers that cannot keep up are dropped rather than
// blocking the producer.
func (b *Broadcaster) Publish(jobID string, event model.StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, done := b.terminal[jobID]; done {
		// The terminal event was already published; never emit past it.
		log.Printf("broadcast: dropping event for finished job %s", jobID)
		return
	}

	for ch := range b.subscribers[jobID] {
		select {
		case ch <- event:
		default:
			delete(b.subscribers[jobID], ch)
			close(ch)
		}
	}

	if event.Status.Terminal() {
		for ch := range b.subscribers[jobID] {
			close(ch)
		}
		delete(b.subscribers, jobID)

		b.terminal[jobID] = event
		time.AfterFunc(b.retention, func() {
			b.mu.Lock()
			delete(b.terminal, jobID)
			b.mu.Unlock()
		})
	}
}
