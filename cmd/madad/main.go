package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	appamqp "madad/internal/amqp"
	"madad/internal/clickup"
	"madad/internal/config"
	apphttp "madad/internal/http"
	"madad/internal/insights"
	applog "madad/internal/log"
	"madad/internal/metrics"
	"madad/internal/snapshot"
	"madad/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
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
		logger.Info("Insights source configured")
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
	}

	api := apphttp.NewServer(repo, engine, queue)
	defer api.Close()
	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        api.Router(logger.Logger),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   6 * time.Minute, // inline refresh can be slow
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting madad server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
