package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"madad/internal/core"
	"madad/internal/metrics"
	"madad/internal/snapshot"
	"madad/internal/storage"
)

type stubComputer struct{}

func (stubComputer) Compute(_ context.Context, month string, _ metrics.ComputeOptions) (*metrics.DashboardResult, error) {
	doc := metrics.DashboardMetrics{Version: metrics.DocumentVersion, Month: month}
	doc.Financial.MonthlyRevenue = metrics.CurrencyMetric{
		GrossILS: core.Float(1180),
		NetILS:   core.Float(1000),
		Meta:     metrics.Meta{Source: metrics.SourceComputed},
	}
	return &metrics.DashboardResult{Metrics: doc}, nil
}

func newTestServer(t *testing.T) (*Server, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	engine := snapshot.NewEngine(stubComputer{}, repo, false)
	srv := NewServer(repo, engine, nil)
	t.Cleanup(srv.Close)
	return srv, repo
}

func testRouter(t *testing.T) (http.Handler, *storage.SQLiteRepository) {
	t.Helper()
	srv, repo := newTestServer(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return srv.Router(logger), repo
}

func seedSnapshot(t *testing.T, repo *storage.SQLiteRepository, month string) {
	t.Helper()
	rec := snapshot.SnapshotRecord{
		Version:    metrics.DocumentVersion,
		Month:      month,
		ComputedAt: time.Now().UTC(),
	}
	rec.Metrics.Version = metrics.DocumentVersion
	rec.Metrics.Month = month
	if err := repo.SaveSnapshot(context.Background(), rec, nil); err != nil {
		t.Fatalf("seed snapshot %s: %v", month, err)
	}
	if err := repo.SetLatest(context.Background(), rec); err != nil {
		t.Fatalf("seed latest: %v", err)
	}
}

func TestServer_Latest(t *testing.T) {
	router, repo := testRouter(t)

	t.Run("404 before first computation", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dashboard/latest", nil))
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})

	t.Run("200 with the latest document", func(t *testing.T) {
		seedSnapshot(t, repo, "2025-11")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dashboard/latest", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var latest storage.LatestDashboard
		if err := json.Unmarshal(w.Body.Bytes(), &latest); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if latest.Month != "2025-11" {
			t.Fatalf("expected month 2025-11, got %q", latest.Month)
		}
	})
}

func TestServer_GetSnapshot(t *testing.T) {
	router, repo := testRouter(t)
	seedSnapshot(t, repo, "2025-11")

	cases := []struct {
		name string
		path string
		code int
	}{
		{"present month", "/api/snapshots/2025-11", http.StatusOK},
		{"absent month", "/api/snapshots/2025-01", http.StatusNotFound},
		{"malformed month", "/api/snapshots/202511", http.StatusBadRequest},
		{"month out of range", "/api/snapshots/2025-13", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
			if w.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, w.Code, w.Body.String())
			}
		})
	}
}

func TestServer_Breakdowns(t *testing.T) {
	router, repo := testRouter(t)

	rec := snapshot.SnapshotRecord{Version: metrics.DocumentVersion, Month: "2025-11", ComputedAt: time.Now().UTC()}
	breakdowns := map[string]metrics.BreakdownDoc{
		"closures": {Kind: metrics.BreakdownNames, Names: []string{"Amir"}},
	}
	if err := repo.SaveSnapshot(context.Background(), rec, breakdowns); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/snapshots/2025-11/breakdowns", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var docs map[string]metrics.BreakdownDoc
	if err := json.Unmarshal(w.Body.Bytes(), &docs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if docs["closures"].Names[0] != "Amir" {
		t.Fatalf("unexpected breakdowns: %v", docs)
	}
}

func TestServer_Refresh(t *testing.T) {
	router, repo := testRouter(t)

	t.Run("inline refresh computes and persists", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/refresh?month=2025-06", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp struct {
			Computed []string `json:"computed"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(resp.Computed) != 1 || resp.Computed[0] != "2025-06" {
			t.Fatalf("expected computed [2025-06], got %v", resp.Computed)
		}

		rec, err := repo.GetSnapshot(context.Background(), "2025-06")
		if err != nil || rec == nil {
			t.Fatalf("expected persisted snapshot, got %v err=%v", rec, err)
		}
	})

	t.Run("covered month recomputed only with force", func(t *testing.T) {
		post := func(path string) []string {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
			}
			var resp struct {
				Computed []string `json:"computed"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			return resp.Computed
		}

		if got := post("/api/refresh?month=2025-06"); len(got) != 0 {
			t.Fatalf("expected no recomputation without force, got %v", got)
		}
		if got := post("/api/refresh?month=2025-06&force=true"); len(got) != 1 || got[0] != "2025-06" {
			t.Fatalf("expected forced recomputation of 2025-06, got %v", got)
		}
	})

	t.Run("invalid month rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/refresh?month=banana", nil))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})
}

func TestServer_ListSnapshotsCache(t *testing.T) {
	router, repo := testRouter(t)
	seedSnapshot(t, repo, "2025-10")

	list := func() []snapshot.SnapshotRecord {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/snapshots", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var records []snapshot.SnapshotRecord
		if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return records
	}

	if got := list(); len(got) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(got))
	}

	// A direct store write is invisible until the cache entry expires or
	// a refresh invalidates it.
	seedSnapshot(t, repo, "2025-11")
	if got := list(); len(got) != 1 {
		t.Fatalf("expected cached response with 1 snapshot, got %d", len(got))
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/refresh?month=2025-11", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("refresh expected 200, got %d", w.Code)
	}
	if got := list(); len(got) != 2 {
		t.Fatalf("expected invalidated cache with 2 snapshots, got %d", len(got))
	}
}
