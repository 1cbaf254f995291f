package recordings

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexuspvr/backend"
	"nexuspvr/models"
)

type stubBackend struct {
	byFilter map[backend.RecordingFilter][]models.Recording
	failing  map[backend.RecordingFilter]error
}

func (s *stubBackend) Recordings(_ context.Context, filter backend.RecordingFilter) ([]models.Recording, error) {
	if err := s.failing[filter]; err != nil {
		return nil, err
	}
	return s.byFilter[filter], nil
}

// Unused Backend surface.
func (s *stubBackend) Authenticate(context.Context) error { return nil }
func (s *stubBackend) Channels(context.Context) ([]models.Channel, error) {
	return nil, nil
}
func (s *stubBackend) EPGSourceID(context.Context, int64) (string, error) { return "", nil }
func (s *stubBackend) Listings(context.Context, int64) ([]models.Program, error) {
	return nil, nil
}
func (s *stubBackend) AllListings(context.Context, []int64) (map[int64][]models.Program, error) {
	return nil, nil
}
func (s *stubBackend) GuideFeed(context.Context) (io.ReadCloser, error) { return nil, nil }
func (s *stubBackend) StreamURL(int64) string                           { return "" }
func (s *stubBackend) RecordingURL(int64) string                        { return "" }
func (s *stubBackend) IconURL(int64) string                             { return "" }

func fixedNow() time.Time {
	return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
}

func rec(id int64, start time.Time, duration time.Duration, status models.RecordingStatus) models.Recording {
	return models.Recording{
		ID:        id,
		Name:      "rec",
		StartTime: start.Unix(),
		Duration:  int64(duration / time.Second),
		ChannelID: 1,
		Status:    status,
	}
}

func TestRefreshMergesAndReclassifies(t *testing.T) {
	now := fixedNow()

	// Overlapping filter results {1,2}, {2,3}, {3,4}. Time windows:
	// 1 starts in an hour, 2 and 4 are mid-window, 3 ended an hour ago.
	r1 := rec(1, now.Add(time.Hour), time.Hour, models.StatusPending)
	r2 := rec(2, now.Add(-30*time.Minute), time.Hour, models.StatusPending)
	r3 := rec(3, now.Add(-2*time.Hour), time.Hour, models.StatusReady)
	r4 := rec(4, now.Add(-10*time.Minute), time.Hour, models.StatusRecording)

	b := &stubBackend{byFilter: map[backend.RecordingFilter][]models.Recording{
		backend.FilterPending:    {r1, r2},
		backend.FilterReady:      {r2, r3},
		backend.FilterInProgress: {r3, r4},
	}}

	s := NewService()
	s.now = fixedNow
	require.NoError(t, s.Refresh(context.Background(), b))

	got := s.Recordings()
	require.Len(t, got, 4, "merged set must have exactly ids 1-4")

	byID := make(map[int64]models.Recording, len(got))
	for _, r := range got {
		byID[r.ID] = r
	}

	// Status is derived from the clock, not from which filter returned
	// the recording.
	assert.Equal(t, models.StatusPending, byID[1].Status)
	assert.Equal(t, models.StatusRecording, byID[2].Status, "mid-window recording is active even though the pending and ready filters surfaced it")
	assert.Equal(t, models.StatusReady, byID[3].Status)
	assert.Equal(t, models.StatusRecording, byID[4].Status)

	// Sorted by start time.
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].StartTime, got[i].StartTime)
	}
}

func TestRefreshContainsSingleQueryFailure(t *testing.T) {
	now := fixedNow()
	b := &stubBackend{
		byFilter: map[backend.RecordingFilter][]models.Recording{
			backend.FilterPending:    {rec(1, now.Add(time.Hour), time.Hour, models.StatusPending)},
			backend.FilterInProgress: {rec(2, now.Add(-10*time.Minute), time.Hour, models.StatusRecording)},
		},
		failing: map[backend.RecordingFilter]error{
			backend.FilterReady: errors.New("query timed out"),
		},
	}

	s := NewService()
	s.now = fixedNow
	require.NoError(t, s.Refresh(context.Background(), b), "one failing filter must not fail the refresh")

	got := s.Recordings()
	require.Len(t, got, 2)
}

func TestRefreshPassesThroughTerminalStatuses(t *testing.T) {
	now := fixedNow()
	failed := rec(10, now.Add(-2*time.Hour), time.Hour, models.StatusFailed)
	conflict := rec(11, now.Add(-30*time.Minute), time.Hour, models.StatusConflict)
	deleted := rec(12, now.Add(time.Hour), time.Hour, models.StatusDeleted)

	b := &stubBackend{byFilter: map[backend.RecordingFilter][]models.Recording{
		backend.FilterReady: {failed, conflict, deleted},
	}}

	s := NewService()
	s.now = fixedNow
	require.NoError(t, s.Refresh(context.Background(), b))

	byID := make(map[int64]models.Recording)
	for _, r := range s.Recordings() {
		byID[r.ID] = r
	}
	assert.Equal(t, models.StatusFailed, byID[10].Status)
	assert.Equal(t, models.StatusConflict, byID[11].Status)
	assert.Equal(t, models.StatusDeleted, byID[12].Status)
}

func TestRefreshNilBackend(t *testing.T) {
	s := NewService()
	assert.ErrorIs(t, s.Refresh(context.Background(), nil), backend.ErrNotConfigured)
}
