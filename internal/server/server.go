// Package server is the thin HTTP layer over the cache manager. It does
// request/response mapping only; no scoring logic lives here.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/civicbrief/civicbrief/internal/cache"
	"github.com/civicbrief/civicbrief/internal/metrics"
	"github.com/civicbrief/civicbrief/internal/pipeline"
	"github.com/civicbrief/civicbrief/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Server struct {
	cache *cache.Manager
	store *storage.FeedbackStore
}

func New(manager *cache.Manager, store *storage.FeedbackStore) *Server {
	return &Server{cache: manager, store: store}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/api/news", s.handleNews)
	r.Post("/api/refresh", s.handleRefresh)
	r.Post("/api/track", s.handleTrack)
	r.Get("/api/export", s.handleExport)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	return r
}

type newsResponse struct {
	Success   bool         `json:"success"`
	News      []cache.Item `json:"news"`
	Total     int          `json:"total"`
	Message   string       `json:"message,omitempty"`
	CachedAt  *time.Time   `json:"cached_at"`
	Timestamp time.Time    `json:"timestamp"`
}

// handleNews serves the current snapshot with optional category, language
// and search filters. An empty cache answers immediately with a loading
// message and kicks off a best-effort background refresh.
func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.Snapshot()

	if len(snap.Items) == 0 {
		// Refresh outlives the request, so it gets its own context.
		s.cache.ForceRefresh(context.Background())
		writeJSON(w, http.StatusOK, newsResponse{
			Success:   true,
			News:      []cache.Item{},
			Total:     0,
			Message:   "Loading news... Please refresh in a moment.",
			Timestamp: time.Now().In(pipeline.IST),
		})
		return
	}

	filtered := filterItems(snap.Items, r.URL.Query().Get("category"),
		r.URL.Query().Get("language"), r.URL.Query().Get("search"))

	cachedAt := snap.GeneratedAt
	writeJSON(w, http.StatusOK, newsResponse{
		Success:   true,
		News:      filtered,
		Total:     len(filtered),
		CachedAt:  &cachedAt,
		Timestamp: time.Now().In(pipeline.IST),
	})
}

func filterItems(items []cache.Item, category, language, search string) []cache.Item {
	search = strings.ToLower(strings.TrimSpace(search))
	filtered := make([]cache.Item, 0, len(items))
	for _, item := range items {
		if category != "" && category != "all" && item.CategoryKey != category {
			continue
		}
		if language != "" && language != "all" && item.Language != language {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(item.Title), search) &&
			!strings.Contains(strings.ToLower(item.Description), search) {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	started := s.cache.ForceRefresh(context.Background())

	msg := "Cache refresh started in background"
	if !started {
		msg = "Refresh already in progress"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   msg,
		"total":     s.cache.Health().SnapshotSize,
		"timestamp": time.Now().In(pipeline.IST),
	})
}

type trackRequest struct {
	NewsURL     string `json:"news_url"`
	Action      string `json:"action"`
	Category    string `json:"category"`
	ReadingTime int    `json:"reading_time"`
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewsURL == "" || req.Action == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false, "error": "news_url and action are required",
		})
		return
	}

	if err := s.store.Track(req.NewsURL, req.Action, req.Category, req.ReadingTime); err != nil {
		slog.Warn("feedback tracking failed", "error", err)
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.cache.Health()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":                 "healthy",
		"state":                  h.State.String(),
		"snapshotSize":           h.SnapshotSize,
		"ageMinutes":             h.AgeMinutes,
		"refreshing":             h.Refreshing,
		"externalServiceEnabled": h.ExternalEnabled,
		"timestamp":              time.Now().In(pipeline.IST),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.GetStats()
	if fb, err := s.store.Stats(); err == nil {
		for k, v := range fb {
			stats["feedback_"+k] = v
		}
	} else {
		slog.Warn("feedback stats unavailable", "error", err)
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encoding failed", "error", err)
	}
}
