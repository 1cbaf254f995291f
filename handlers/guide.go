package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nexuspvr/backend"
	"nexuspvr/services/guide"
)

// GuideHandler exposes the guide index over HTTP.
type GuideHandler struct {
	guide   *guide.Service
	backend backend.Backend
}

// NewGuideHandler creates a guide handler. The backend may be nil when no
// target is configured; requests then answer 503.
func NewGuideHandler(guideService *guide.Service, b backend.Backend) *GuideHandler {
	return &GuideHandler{guide: guideService, backend: b}
}

// GetChannels returns the reconciled channel catalog.
// GET /api/guide/channels
func (h *GuideHandler) GetChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.guide.Channels())
}

// GetStatus returns the index state.
// GET /api/guide/status
func (h *GuideHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.guide.Status())
}

// GetPrograms returns a channel's programs for one calendar day, loading
// the day on demand.
// GET /api/guide/programs?channel=42&date=2026-01-15
func (h *GuideHandler) GetPrograms(w http.ResponseWriter, r *http.Request) {
	channelID, err := strconv.ParseInt(r.URL.Query().Get("channel"), 10, 64)
	if err != nil {
		http.Error(w, `{"error":"missing or invalid channel parameter"}`, http.StatusBadRequest)
		return
	}

	date := time.Now().UTC()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			http.Error(w, `{"error":"invalid date, want YYYY-MM-DD"}`, http.StatusBadRequest)
			return
		}
		date = parsed
	}

	if h.backend != nil {
		if err := h.guide.EnsureDay(r.Context(), h.backend, date); err != nil {
			log.Printf("[guide] ensure day: %v", err)
		}
	}

	writeJSON(w, struct {
		ChannelID int64       `json:"channelId"`
		Date      string      `json:"date"`
		Programs  interface{} `json:"programs"`
	}{channelID, date.Format("2006-01-02"), h.guide.Programs(channelID, date)})
}

// Search returns programs matching a substring query.
// GET /api/guide/search?q=news
func (h *GuideHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		http.Error(w, `{"error":"missing q parameter"}`, http.StatusBadRequest)
		return
	}
	writeJSON(w, h.guide.Search(q))
}

// Keywords returns still-airing programs matching any of the keywords.
// GET /api/guide/keywords?k=hockey,news
func (h *GuideHandler) Keywords(w http.ResponseWriter, r *http.Request) {
	param := r.URL.Query().Get("k")
	if strings.TrimSpace(param) == "" {
		http.Error(w, `{"error":"missing k parameter"}`, http.StatusBadRequest)
		return
	}
	keywords := strings.Split(param, ",")
	writeJSON(w, h.guide.MatchingKeywords(keywords))
}

// Refresh starts a full load. Returns once channels are available; programs
// continue loading in the background.
// POST /api/guide/refresh
func (h *GuideHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.backend == nil {
		http.Error(w, `{"error":"backend not configured"}`, http.StatusServiceUnavailable)
		return
	}
	if err := h.guide.Load(r.Context(), h.backend); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, backend.ErrAuthFailed) || errors.Is(err, backend.ErrSessionExpired) {
			status = http.StatusUnauthorized
		}
		log.Printf("[guide] refresh: %v", err)
		writeJSONStatus(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, h.guide.Status())
}

// Invalidate cancels background work and clears the index.
// POST /api/guide/invalidate
func (h *GuideHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	h.guide.Invalidate()
	writeJSON(w, h.guide.Status())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] JSON encode error: %v", err)
	}
}
