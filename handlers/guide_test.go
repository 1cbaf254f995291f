package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"nexuspvr/services/guide"
	"nexuspvr/services/recordings"
)

func newGuideHandler() *GuideHandler {
	return NewGuideHandler(guide.NewService(guide.Config{}), nil)
}

func TestGetProgramsRejectsBadParams(t *testing.T) {
	h := newGuideHandler()

	rec := httptest.NewRecorder()
	h.GetPrograms(rec, httptest.NewRequest(http.MethodGet, "/api/guide/programs", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing channel: got %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.GetPrograms(rec, httptest.NewRequest(http.MethodGet, "/api/guide/programs?channel=7&date=01/15/2026", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: got %d, want 400", rec.Code)
	}
}

func TestGetProgramsEmptyIndex(t *testing.T) {
	h := newGuideHandler()
	rec := httptest.NewRecorder()
	h.GetPrograms(rec, httptest.NewRequest(http.MethodGet, "/api/guide/programs?channel=7&date=2026-01-15", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}

	var body struct {
		ChannelID int64             `json:"channelId"`
		Date      string            `json:"date"`
		Programs  []json.RawMessage `json:"programs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.ChannelID != 7 || body.Date != "2026-01-15" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if len(body.Programs) != 0 {
		t.Fatalf("expected no programs, got %d", len(body.Programs))
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	h := newGuideHandler()
	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/guide/search?q=%20%20", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rec.Code)
	}
}

func TestKeywordsRequiresParam(t *testing.T) {
	h := newGuideHandler()
	rec := httptest.NewRecorder()
	h.Keywords(rec, httptest.NewRequest(http.MethodGet, "/api/guide/keywords", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rec.Code)
	}
}

func TestRefreshWithoutBackend(t *testing.T) {
	h := newGuideHandler()
	rec := httptest.NewRecorder()
	h.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/guide/refresh", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503", rec.Code)
	}
}

func TestStatusReportsIdle(t *testing.T) {
	h := newGuideHandler()
	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/guide/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("got content type %q", ct)
	}

	var status struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.State != "idle" {
		t.Fatalf("got state %q, want idle", status.State)
	}
}

func TestGetRecordingsWithoutBackend(t *testing.T) {
	h := NewRecordingsHandler(recordings.NewService(), nil)
	rec := httptest.NewRecorder()
	h.GetRecordings(rec, httptest.NewRequest(http.MethodGet, "/api/recordings", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	var body []json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body) != 0 {
		t.Fatalf("expected empty set, got %d entries", len(body))
	}
}
