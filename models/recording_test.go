package models

import (
	"testing"
	"time"
)

func TestDeriveStatus(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	n := now.Unix()

	cases := []struct {
		name string
		rec  Recording
		want RecordingStatus
	}{
		{"before window", Recording{StartTime: n + 3600, Duration: 3600}, StatusPending},
		{"inside window", Recording{StartTime: n - 600, Duration: 3600}, StatusRecording},
		{"after window", Recording{StartTime: n - 7200, Duration: 3600}, StatusReady},
		{"at exact start", Recording{StartTime: n, Duration: 3600}, StatusRecording},
		{"at exact end", Recording{StartTime: n - 3600, Duration: 3600}, StatusReady},
		{"zero duration", Recording{StartTime: n - 600, Duration: 0}, StatusPending},
		{"negative duration", Recording{StartTime: n - 600, Duration: -5}, StatusPending},
		{"failed passes through", Recording{StartTime: n - 600, Duration: 3600, Status: StatusFailed}, StatusFailed},
		{"conflict passes through", Recording{StartTime: n + 3600, Duration: 3600, Status: StatusConflict}, StatusConflict},
		{"deleted passes through", Recording{StartTime: n - 7200, Duration: 3600, Status: StatusDeleted}, StatusDeleted},
		{"stale server status recomputed", Recording{StartTime: n - 7200, Duration: 3600, Status: StatusRecording}, StatusReady},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveStatus(now, tc.rec); got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}
