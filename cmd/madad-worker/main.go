package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	appamqp "madad/internal/amqp"
	"madad/internal/clickup"
	"madad/internal/config"
	"madad/internal/insights"
	applog "madad/internal/log"
	"madad/internal/metrics"
	"madad/internal/snapshot"
	"madad/internal/storage"
	"madad/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     applog.DefaultConfig().Level,
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open snapshot store", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	taskSource := clickup.NewClient(cfg.ClickUpToken)

	var insightsSource insights.InsightsSource
	if cfg.InsightsEnabled() {
		insightsSource = insights.NewClient(cfg.InsightsBaseURL, cfg.InsightsAccessToken)
	}

	composer := metrics.NewComposer(taskSource, insightsSource, metrics.ComposerConfig{
		LeadsListID:    cfg.ClickUpLeadsListID,
		EventsListID:   cfg.ClickUpEventsListID,
		ExpensesListID: cfg.ClickUpExpensesListID,
		Fields:         metrics.DefaultFieldMap(),
		Vocab:          metrics.DefaultVocabulary(),
	})
	engine := snapshot.NewEngine(composer, repo, cfg.WithBreakdowns)

	var queue *appamqp.Client
	if cfg.AMQPURL != "" {
		queue, err = appamqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP", "error", err)
			os.Exit(1)
		}
		defer queue.Close()
		logger.Info("AMQP refresh queue connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP not configured, running poll-only")
	}

	processor := worker.NewRefreshProcessor(engine, queue, worker.RefreshProcessorConfig{
		PollInterval: cfg.RefreshInterval,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start refresh processor", "error", err)
		os.Exit(1)
	}
	logger.Info("Refresh processor started", "poll_interval", cfg.RefreshInterval.String())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())

	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := processor.Stop(stopCtx); err != nil {
		logger.Error("Refresh processor stop error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
