package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"gopkg.in/natefinch/lumberjack.v2"

	"jobs_ingest/internal/config"
	"jobs_ingest/internal/dedup"
	"jobs_ingest/internal/domain"
	"jobs_ingest/internal/lake"
	"jobs_ingest/internal/metrics"
	"jobs_ingest/internal/publisher"
	"jobs_ingest/internal/scheduler"
	"jobs_ingest/internal/service"
	"jobs_ingest/internal/source"
	"jobs_ingest/internal/source/djinni"
	"jobs_ingest/internal/source/dou"
	"jobs_ingest/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	sourceName := flag.String("source", "", "run only this source")
	once := flag.Bool("once", false, "run one ingestion cycle and exit")
	runID := flag.String("run-id", "", "run identifier for -once mode (generated when empty)")
	flag.Parse()

	logger := setupLogger("info", "")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel, cfg.LogFile)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	var pub service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		pub = rabbitMQ
	}

	postingStore := postgres.NewPostingStore(db)
	runStore := postgres.NewRunStore(db)
	txManager := postgres.NewTransactionManager(db)
	lakeWriter := lake.NewWriter(lake.NewFSStore(cfg.Lake.RootPath), logger)
	policy := dedup.Policy{AuditMode: cfg.Dedup.AuditMode}

	var pipelines []*service.Pipeline
	for _, srcCfg := range cfg.Sources {
		if *sourceName != "" && srcCfg.Name != *sourceName {
			continue
		}

		adapter, err := buildAdapter(srcCfg, logger)
		if err != nil {
			logger.Error("failed to build source", "source", srcCfg.Name, "error", err)
			os.Exit(1)
		}

		fetcher := source.NewFetcher(adapter, source.FetcherConfig{
			Retry: source.RetryPolicy{
				MaxAttempts:    srcCfg.Retry.MaxAttempts,
				InitialBackoff: srcCfg.Retry.InitialBackoff,
				MaxBackoff:     srcCfg.Retry.MaxBackoff,
			},
			Delay:    srcCfg.RateLimit,
			MaxPages: srcCfg.MaxPages,
		}, logger)

		pipelines = append(pipelines, service.NewPipeline(
			adapter,
			fetcher,
			postingStore,
			runStore,
			txManager,
			pub,
			lakeWriter,
			policy,
			cfg.Pipeline,
			logger,
		))
	}

	if len(pipelines) == 0 {
		logger.Error("no sources configured")
		os.Exit(1)
	}

	runner := service.NewRunner(pipelines, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if cfg.Metrics.Enabled {
		go metrics.ExposeMetrics(cfg.Metrics.Addr)
	}

	if *once {
		summaries := runner.RunAll(ctx, *runID)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summaries); err != nil {
			logger.Error("failed to encode run summaries", "error", err)
			os.Exit(1)
		}

		for _, summary := range summaries {
			if summary == nil || summary.Status == domain.RunFailed {
				os.Exit(1)
			}
		}
		return
	}

	sched := scheduler.NewScheduler(runner, cfg.Schedule, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	sched.Stop()
}

func buildAdapter(cfg config.SourceConfig, logger *slog.Logger) (source.Adapter, error) {
	switch cfg.Name {
	case string(domain.SourceDjinni):
		return djinni.New(djinni.Config{
			BaseURL:    cfg.BaseURL,
			Categories: cfg.Categories,
			Timeout:    cfg.Timeout,
		}, logger), nil
	case string(domain.SourceDou):
		return dou.New(dou.Config{
			BaseURL:    cfg.BaseURL,
			Categories: cfg.Categories,
			Timeout:    cfg.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Name)
	}
}

func setupLogger(level, file string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	// stdout is reserved for the run summary in -once mode.
	var out io.Writer = os.Stderr
	if file != "" {
		out = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	return slog.New(slog.NewJSONHandler(out, opts))
}
