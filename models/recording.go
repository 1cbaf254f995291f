package models

import "time"

// RecordingStatus is the lifecycle state of a recording. The time-derivable
// states (pending, recording, ready) are recomputed from the clock on every
// fetch; failed, conflict and deleted have no time equivalent and are passed
// through as the backend reported them.
type RecordingStatus string

const (
	StatusPending   RecordingStatus = "pending"
	StatusRecording RecordingStatus = "recording"
	StatusReady     RecordingStatus = "ready"
	StatusFailed    RecordingStatus = "failed"
	StatusConflict  RecordingStatus = "conflict"
	StatusDeleted   RecordingStatus = "deleted"
)

// Recording is one scheduled, running, or finished recording. StartTime is
// epoch seconds, Duration is seconds.
type Recording struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Subtitle         string          `json:"subtitle,omitempty"`
	Description      string          `json:"description,omitempty"`
	StartTime        int64           `json:"startTime"`
	Duration         int64           `json:"duration"`
	ChannelID        int64           `json:"channelId"`
	Status           RecordingStatus `json:"status"`
	EPGEventID       int64           `json:"epgEventId,omitempty"`
	PlaybackPosition int64           `json:"playbackPosition,omitempty"`
}

// DeriveStatus recomputes a recording's status from the clock instead of
// trusting the backend's filter semantics. It is a pure function of
// (now, StartTime, Duration, reported status).
func DeriveStatus(now time.Time, r Recording) RecordingStatus {
	switch r.Status {
	case StatusFailed, StatusConflict, StatusDeleted:
		return r.Status
	}
	if r.Duration <= 0 {
		// No well-formed time window; the best claim we can make is that
		// it has not happened yet.
		return StatusPending
	}
	n := now.Unix()
	switch {
	case n < r.StartTime:
		return StatusPending
	case n < r.StartTime+r.Duration:
		return StatusRecording
	default:
		return StatusReady
	}
}
