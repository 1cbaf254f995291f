// Package recordings reconciles the backend's status-filtered recording
// queries into one deduplicated set whose status is derived from the clock
// rather than trusted from the server.
package recordings

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"nexuspvr/backend"
	"nexuspvr/models"
)

// mergeOrder fixes which filter wins when an id shows up in more than one
// query: later queries overwrite earlier ones.
var mergeOrder = []backend.RecordingFilter{
	backend.FilterPending,
	backend.FilterReady,
	backend.FilterInProgress,
}

// Service holds the reconciled recording set.
type Service struct {
	now func() time.Time

	mu          sync.RWMutex
	recordings  []models.Recording
	lastRefresh time.Time
}

// NewService creates an empty recordings service.
func NewService() *Service {
	return &Service{now: time.Now}
}

// Refresh runs the three filtered queries, merges them by recording id and
// reclassifies every merged recording from its time window. A single failing
// query degrades to an empty result for that filter only.
func (s *Service) Refresh(ctx context.Context, b backend.Backend) error {
	if b == nil {
		return backend.ErrNotConfigured
	}

	merged := make(map[int64]models.Recording)
	for _, filter := range mergeOrder {
		recs, err := b.Recordings(ctx, filter)
		if err != nil {
			log.Printf("[recordings] %s query failed: %v", filter, err)
			continue
		}
		for _, r := range recs {
			merged[r.ID] = r
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := s.now()
	out := make([]models.Recording, 0, len(merged))
	for _, r := range merged {
		r.Status = models.DeriveStatus(now, r)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})

	s.mu.Lock()
	s.recordings = out
	s.lastRefresh = now
	s.mu.Unlock()

	log.Printf("[recordings] refresh complete: %d recordings", len(out))
	return nil
}

// Recordings returns the current reconciled set.
func (s *Service) Recordings() []models.Recording {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Recording, len(s.recordings))
	copy(out, s.recordings)
	return out
}

// LastRefresh reports when the set was last reconciled.
func (s *Service) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh
}
