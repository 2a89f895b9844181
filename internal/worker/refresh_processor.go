// Package worker keeps the snapshot chain current: it refreshes the
// running month on a poll interval and serves on-demand refresh
// requests arriving over AMQP.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"madad/internal/amqp"
	"madad/internal/core"
	"madad/internal/snapshot"
)

// RefreshProcessorConfig holds configuration for the refresh processor
type RefreshProcessorConfig struct {
	// PollInterval is how often the current month is recomputed
	PollInterval time.Duration
}

// DefaultRefreshProcessorConfig returns sensible defaults
func DefaultRefreshProcessorConfig() RefreshProcessorConfig {
	return RefreshProcessorConfig{
		PollInterval: 6 * time.Hour,
	}
}

// RefreshProcessor drives periodic and on-demand snapshot refreshes
type RefreshProcessor struct {
	engine *snapshot.Engine
	queue  *amqp.Client
	config RefreshProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRefreshProcessor creates a new refresh processor. queue may be nil;
// the processor then only runs on the poll interval.
func NewRefreshProcessor(engine *snapshot.Engine, queue *amqp.Client, config RefreshProcessorConfig) *RefreshProcessor {
	return &RefreshProcessor{
		engine: engine,
		queue:  queue,
		config: config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *RefreshProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("refresh processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	if p.queue != nil {
		go p.consumeLoop(ctx)
	}

	slog.InfoContext(ctx, "Refresh processor started",
		"poll_interval", p.config.PollInterval,
		"amqp", p.queue != nil)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *RefreshProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Refresh processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Refresh processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *RefreshProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *RefreshProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Refresh immediately on startup
	p.refreshCurrentMonth(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refreshCurrentMonth(ctx)
		}
	}
}

func (p *RefreshProcessor) consumeLoop(ctx context.Context) {
	err := p.queue.ConsumeRefresh(ctx, func(msg *amqp.RefreshMessage) error {
		_, err := p.engine.Refresh(ctx, msg.Month, time.Now().UTC(), msg.Force)
		return err
	})
	if err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "Refresh consumption ended", "error", err)
	}
}

func (p *RefreshProcessor) refreshCurrentMonth(ctx context.Context) {
	now := time.Now().UTC()
	month := core.MonthOf(now)

	records, err := p.engine.Refresh(ctx, month, now, false)
	if err != nil {
		slog.ErrorContext(ctx, "Scheduled refresh failed", "month", month, "error", err)
		return
	}

	slog.InfoContext(ctx, "Scheduled refresh completed",
		"month", month,
		"snapshots_written", len(records))
}
