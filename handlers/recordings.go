package handlers

import (
	"log"
	"net/http"
	"time"

	"nexuspvr/backend"
	"nexuspvr/services/recordings"
)

// recordingsMaxAge is how stale the reconciled set may be before a GET
// triggers a refresh.
const recordingsMaxAge = 30 * time.Second

// RecordingsHandler exposes the reconciled recording set over HTTP.
type RecordingsHandler struct {
	recordings *recordings.Service
	backend    backend.Backend
}

func NewRecordingsHandler(recordingsService *recordings.Service, b backend.Backend) *RecordingsHandler {
	return &RecordingsHandler{recordings: recordingsService, backend: b}
}

// GetRecordings returns the reconciled recordings, refreshing first when
// the cached set is stale or ?refresh=1 is passed.
// GET /api/recordings
func (h *RecordingsHandler) GetRecordings(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("refresh") == "1"
	stale := time.Since(h.recordings.LastRefresh()) > recordingsMaxAge

	if h.backend != nil && (force || stale) {
		if err := h.recordings.Refresh(r.Context(), h.backend); err != nil {
			// Degrade to whatever we already have.
			log.Printf("[recordings] refresh: %v", err)
		}
	}
	writeJSON(w, h.recordings.Recordings())
}
