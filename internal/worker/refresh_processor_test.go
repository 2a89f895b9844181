package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"madad/internal/metrics"
	"madad/internal/snapshot"
)

type stubComputer struct {
	mu       sync.Mutex
	computed []string
}

func (s *stubComputer) Compute(_ context.Context, month string, _ metrics.ComputeOptions) (*metrics.DashboardResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.computed = append(s.computed, month)
	return &metrics.DashboardResult{
		Metrics: metrics.DashboardMetrics{Version: metrics.DocumentVersion, Month: month},
	}, nil
}

func (s *stubComputer) computedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.computed)
}

type stubStore struct {
	mu      sync.Mutex
	records map[string]snapshot.SnapshotRecord
}

func newStubStore() *stubStore {
	return &stubStore{records: make(map[string]snapshot.SnapshotRecord)}
}

func (s *stubStore) LastSnapshotMonth(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := ""
	for m := range s.records {
		if m > last {
			last = m
		}
	}
	return last, nil
}

func (s *stubStore) GetSnapshot(_ context.Context, month string) (*snapshot.SnapshotRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[month]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *stubStore) SaveSnapshot(_ context.Context, rec snapshot.SnapshotRecord, _ map[string]metrics.BreakdownDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Month] = rec
	return nil
}

func (s *stubStore) SetLatest(context.Context, snapshot.SnapshotRecord) error { return nil }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestRefreshProcessor_Lifecycle(t *testing.T) {
	comp := &stubComputer{}
	store := newStubStore()
	engine := snapshot.NewEngine(comp, store, false)

	p := NewRefreshProcessor(engine, nil, RefreshProcessorConfig{PollInterval: time.Hour})
	ctx := context.Background()

	if p.IsRunning() {
		t.Fatal("expected not running before start")
	}
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !p.IsRunning() {
		t.Fatal("expected running after start")
	}

	// Startup triggers an immediate refresh of the current month.
	waitFor(t, func() bool { return comp.computedCount() >= 1 })

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if p.IsRunning() {
		t.Fatal("expected not running after stop")
	}
}

func TestRefreshProcessor_DoubleStart(t *testing.T) {
	comp := &stubComputer{}
	engine := snapshot.NewEngine(comp, newStubStore(), false)
	p := NewRefreshProcessor(engine, nil, DefaultRefreshProcessorConfig())
	ctx := context.Background()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_ = p.Stop(stopCtx)
	}()

	if err := p.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}
}

func TestRefreshProcessor_StopWhenNotRunning(t *testing.T) {
	engine := snapshot.NewEngine(&stubComputer{}, newStubStore(), false)
	p := NewRefreshProcessor(engine, nil, DefaultRefreshProcessorConfig())
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("expected stop of idle processor to be a no-op, got %v", err)
	}
}

func TestRefreshProcessor_PollTick(t *testing.T) {
	comp := &stubComputer{}
	engine := snapshot.NewEngine(comp, newStubStore(), false)
	p := NewRefreshProcessor(engine, nil, RefreshProcessorConfig{PollInterval: 20 * time.Millisecond})
	ctx := context.Background()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_ = p.Stop(stopCtx)
	}()

	// Initial refresh plus at least one tick.
	waitFor(t, func() bool { return comp.computedCount() >= 2 })
}