package graph

import "time"

// Snapshot is one immutable graph plus freshness metadata. Exactly one
// snapshot is current at a time; superseded ones are reclaimed by the GC
// once the last in-flight query drops its reference.
type Snapshot struct {
	*Graph
	Generation uint64
	BuiltAt    time.Time
}

func NewSnapshot(g *Graph, generation uint64, builtAt time.Time) *Snapshot {
	return &Snapshot{
		Graph:      g,
		Generation: generation,
		BuiltAt:    builtAt,
	}
}

// Age reports how long ago the snapshot was built.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.BuiltAt)
}
