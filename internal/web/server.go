// Package web exposes a small read-only JSON API over the friend store
// and the last refresh snapshot.
package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"closer/internal/config"
	"closer/internal/dates"
	"closer/internal/jobs"
	"closer/internal/logging"
	"closer/internal/store/friendstore"
	"closer/internal/suggest"
)

type Server struct {
	db  *friendstore.DB
	cfg config.Config
	now func() time.Time
}

func NewServer(db *friendstore.DB, cfg config.Config) *Server {
	return &Server{db: db, cfg: cfg, now: time.Now}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/suggestions", s.handleSuggestions)
		r.Get("/slots", s.handleSlots)
		r.Get("/friends", s.handleFriends)
		r.Get("/friends/{id}", s.handleFriend)
		r.Get("/dates", s.handleDates)
	})
	return r
}

// ListenAndServe blocks serving the API on the configured address.
func (s *Server) ListenAndServe() error {
	logging.Info("api_listen", map[string]any{"addr": s.cfg.Server.Listen})
	return http.ListenAndServe(s.cfg.Server.Listen, s.Router())
}

type suggestionsResponse struct {
	GeneratedAt *time.Time           `json:"generatedAt,omitempty"`
	Suggestions []suggest.Suggestion `json:"suggestions"`
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	snap, err := jobs.LoadSnapshot(r.Context(), s.db)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp := suggestionsResponse{Suggestions: []suggest.Suggestion{}}
	if snap != nil {
		resp.GeneratedAt = &snap.GeneratedAt
		resp.Suggestions = snap.Suggestions
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	snap, err := jobs.LoadSnapshot(r.Context(), s.db)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if snap == nil {
		writeJSON(w, http.StatusOK, map[string]any{"slots": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"generatedAt": snap.GeneratedAt, "slots": snap.Slots})
}

func (s *Server) handleFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := s.db.ListFriends(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, friends)
}

func (s *Server) handleFriend(w http.ResponseWriter, r *http.Request) {
	f, err := s.db.GetFriend(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	lookahead := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errBadDays)
			return
		}
		lookahead = n
	}
	friends, err := s.db.ListFriends(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	all, err := s.db.ListImportantDates(r.Context(), "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	upcoming := dates.Within(friends, all, s.now(), lookahead)
	if upcoming == nil {
		upcoming = []dates.Upcoming{}
	}
	writeJSON(w, http.StatusOK, upcoming)
}

var errBadDays = badDaysError{}

type badDaysError struct{}

func (badDaysError) Error() string { return "days must be a positive integer" }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
