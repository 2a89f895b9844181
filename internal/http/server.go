// Package http exposes the persisted snapshot chain and the refresh
// trigger as a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"madad/internal/amqp"
	"madad/internal/cache"
	"madad/internal/core"
	"madad/internal/snapshot"
	"madad/internal/storage"
)

const snapshotsCacheKey = "snapshots"

// Server wires storage reads, the refresh path and the response cache.
type Server struct {
	repo   *storage.SQLiteRepository
	engine *snapshot.Engine
	queue  *amqp.Client

	// listCache smooths over repeated chain reads between refreshes.
	listCache *cache.LRUCache[[]snapshot.SnapshotRecord]
	caches    *cache.Manager
}

// NewServer builds the API server. queue may be nil; refreshes then run
// inline instead of being enqueued.
func NewServer(repo *storage.SQLiteRepository, engine *snapshot.Engine, queue *amqp.Client) *Server {
	s := &Server{
		repo:      repo,
		engine:    engine,
		queue:     queue,
		listCache: cache.NewLRUCache[[]snapshot.SnapshotRecord](4, 30*time.Second),
		caches:    cache.NewManager(),
	}
	s.caches.Register(s.listCache)
	s.caches.StartCleanup(time.Minute)
	return s
}

// Close stops the background cache cleanup.
func (s *Server) Close() {
	s.caches.Stop()
}

// Router assembles the chi route tree.
func (s *Server) Router(logger *slog.Logger) http.Handler {
	mux := chi.NewRouter()
	mux.Use(requestLogger(logger))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	mux.Get("/api/dashboard/latest", instrument("/api/dashboard/latest", s.handleLatest))
	mux.Get("/api/snapshots", instrument("/api/snapshots", s.handleListSnapshots))
	mux.Get("/api/snapshots/{month}", instrument("/api/snapshots/{month}", s.handleGetSnapshot))
	mux.Get("/api/snapshots/{month}/breakdowns", instrument("/api/snapshots/{month}/breakdowns", s.handleGetBreakdowns))
	mux.Post("/api/refresh", instrument("/api/refresh", s.handleRefresh))

	return mux
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	latest, err := s.repo.GetLatest(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Read latest dashboard failed", "error", err)
		http.Error(w, "read latest dashboard", http.StatusInternalServerError)
		return
	}
	if latest == nil {
		http.Error(w, "no dashboard computed yet", http.StatusNotFound)
		return
	}
	writeJSON(w, latest)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if records, ok := s.listCache.Get(snapshotsCacheKey); ok {
		writeJSON(w, records)
		return
	}

	records, err := s.repo.ListSnapshots(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List snapshots failed", "error", err)
		http.Error(w, "list snapshots", http.StatusInternalServerError)
		return
	}
	s.listCache.Set(snapshotsCacheKey, records)
	writeJSON(w, records)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	month := chi.URLParam(r, "month")
	if _, err := core.ParseMonth(month); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := s.repo.GetSnapshot(r.Context(), month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Read snapshot failed", "month", month, "error", err)
		http.Error(w, "read snapshot", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "no snapshot for "+month, http.StatusNotFound)
		return
	}
	writeJSON(w, rec)
}

func (s *Server) handleGetBreakdowns(w http.ResponseWriter, r *http.Request) {
	month := chi.URLParam(r, "month")
	if _, err := core.ParseMonth(month); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	docs, err := s.repo.GetBreakdowns(r.Context(), month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Read breakdowns failed", "month", month, "error", err)
		http.Error(w, "read breakdowns", http.StatusInternalServerError)
		return
	}
	writeJSON(w, docs)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month == "" {
		month = core.MonthOf(time.Now().UTC())
	}
	if _, err := core.ParseMonth(month); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	force := r.URL.Query().Get("force") == "true"

	if s.queue != nil {
		if err := s.queue.PublishRefresh(r.Context(), month, force); err != nil {
			slog.ErrorContext(r.Context(), "Enqueue refresh failed", "month", month, "error", err)
			http.Error(w, "enqueue refresh", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, map[string]any{"enqueued": true, "month": month})
		return
	}

	// No queue configured: run the refresh inline.
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	records, err := s.engine.Refresh(ctx, month, time.Now().UTC(), force)
	refreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, core.ErrInvalidMonth) || errors.Is(err, core.ErrRangeTooLarge) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.ErrorContext(ctx, "Inline refresh failed", "month", month, "error", err)
		http.Error(w, "refresh failed", http.StatusBadGateway)
		return
	}

	s.listCache.Delete(snapshotsCacheKey)
	months := make([]string, 0, len(records))
	for _, rec := range records {
		months = append(months, rec.Month)
	}
	writeJSON(w, map[string]any{"computed": months})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	enc.Encode(v)
}

// requestLogger logs one line per request in the access-log shape.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Duration("latency", time.Since(start)))
		})
	}
}
