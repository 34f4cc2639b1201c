package cache

import "sync/atomic"

// stats tracks cache effectiveness counters.
type stats struct {
	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
	Size        int     `json:"size"`
	HitRate     float64 `json:"hit_rate"`
}

func (s *stats) snapshot(size int) Stats {
	hits := s.hits.Load()
	misses := s.misses.Load()
	snap := Stats{
		Hits:        hits,
		Misses:      misses,
		Evictions:   s.evictions.Load(),
		Expirations: s.expirations.Load(),
		Size:        size,
	}
	if total := hits + misses; total > 0 {
		snap.HitRate = float64(hits) / float64(total)
	}
	return snap
}
