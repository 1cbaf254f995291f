package api

import (
	"net/http"

	"nexuspvr/handlers"

	"github.com/gorilla/mux"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter wires the HTTP surface over the guide and recordings services.
func NewRouter(guideHandler *handlers.GuideHandler, recordingsHandler *handlers.RecordingsHandler) *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	apiRouter := r.PathPrefix("/api").Subrouter()

	apiRouter.HandleFunc("/guide/channels", guideHandler.GetChannels).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.HandleFunc("/guide/programs", guideHandler.GetPrograms).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.HandleFunc("/guide/search", guideHandler.Search).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.HandleFunc("/guide/keywords", guideHandler.Keywords).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.HandleFunc("/guide/status", guideHandler.GetStatus).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.HandleFunc("/guide/refresh", guideHandler.Refresh).Methods(http.MethodPost, http.MethodOptions)
	apiRouter.HandleFunc("/guide/invalidate", guideHandler.Invalidate).Methods(http.MethodPost, http.MethodOptions)

	apiRouter.HandleFunc("/recordings", recordingsHandler.GetRecordings).Methods(http.MethodGet, http.MethodOptions)

	return r
}
