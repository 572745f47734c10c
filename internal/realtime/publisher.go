// Package realtime carries job updates to whatever transport the outer
// surface uses. The engine only knows the Publisher contract.
package realtime

import (
	"context"
	"sync"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

// Publisher delivers a job snapshot to the owner's realtime channel.
// Implementations must not block the pipeline; slow consumers drop.
type Publisher interface {
	Publish(ctx context.Context, userID string, job *model.Job)
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, *model.Job) {}

// Event is one published update.
type Event struct {
	UserID string
	Job    *model.Job
}

// MemoryBus is an in-process Publisher for tests and single-node setups.
// Subscribers receive on buffered channels; a full channel drops the event
// rather than stalling the pipeline.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a buffered listener. Close the returned cancel to
// unsubscribe.
func (b *MemoryBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *MemoryBus) Publish(_ context.Context, userID string, job *model.Job) {
	evt := Event{UserID: userID, Job: job.Clone()}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
			// Drop for slow consumers; ordering per user is preserved for
			// subscribers that keep up.
		}
	}
}
