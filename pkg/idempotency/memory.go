package idempotency

import (
	"context"
	"sync"
	"time"
)

type memKey struct {
	channelType     string
	externalEventID string
}

type memGate struct {
	mu        sync.Mutex
	seen      map[memKey]time.Time
	retention time.Duration
}

// NewMemGate creates an in-memory gate for tests and development mode.
func NewMemGate(retention time.Duration) Gate {
	return &memGate{
		seen:      make(map[memKey]time.Time),
		retention: retention,
	}
}

func (g *memGate) CheckAndMark(_ context.Context, channelType, externalEventID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := memKey{channelType: channelType, externalEventID: externalEventID}
	if _, ok := g.seen[key]; ok {
		return ErrAlreadyProcessed
	}
	g.seen[key] = time.Now().UTC().Add(g.retention)
	return nil
}

func (g *memGate) Forget(_ context.Context, channelType, externalEventID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, memKey{channelType: channelType, externalEventID: externalEventID})
	return nil
}

func (g *memGate) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	purged := 0
	for key, expiresAt := range g.seen {
		if !expiresAt.After(now) {
			delete(g.seen, key)
			purged++
		}
	}
	return purged, nil
}
