package graph

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrStaleGeneration signals an attempt to publish a snapshot that is not
// strictly newer than the current one.
var ErrStaleGeneration = errors.New("snapshot generation not newer than current")

// Publisher owns the single current-snapshot reference. Readers load it
// with one atomic pointer read and never block on a publish; a publish
// never waits for readers, old snapshots are dropped once unreferenced.
type Publisher struct {
	mu  sync.Mutex // serializes writers; readers go through cur only
	cur atomic.Pointer[Snapshot]
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish atomically replaces the current snapshot. A snapshot whose
// generation is not strictly greater than the published one is rejected so
// an out-of-order refresh cycle can never regress to stale data.
func (p *Publisher) Publish(s *Snapshot) error {
	if s == nil || s.Graph == nil {
		return fmt.Errorf("publish: nil snapshot")
	}
	if s.Generation == 0 {
		return fmt.Errorf("%w: generation 0 is reserved", ErrStaleGeneration)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if cur := p.cur.Load(); cur != nil && s.Generation <= cur.Generation {
		return fmt.Errorf("%w: have %d, got %d", ErrStaleGeneration, cur.Generation, s.Generation)
	}
	p.cur.Store(s)
	return nil
}

// Current returns the most recently published snapshot, or nil before the
// first publish. Non-blocking.
func (p *Publisher) Current() *Snapshot {
	return p.cur.Load()
}

// Generation returns the current snapshot's generation, 0 when nothing has
// been published yet.
func (p *Publisher) Generation() uint64 {
	if s := p.cur.Load(); s != nil {
		return s.Generation
	}
	return 0
}
