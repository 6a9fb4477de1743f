package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/pkruczek/spizarka-backend/internal/catalog"
	"github.com/pkruczek/spizarka-backend/internal/inventory"
	"github.com/pkruczek/spizarka-backend/internal/matcher"
	"github.com/pkruczek/spizarka-backend/internal/ocr"
	"github.com/pkruczek/spizarka-backend/internal/parser"
	"github.com/pkruczek/spizarka-backend/internal/pipeline"
	"github.com/pkruczek/spizarka-backend/internal/receipts"
	"github.com/pkruczek/spizarka-backend/internal/tasks"
	"github.com/pkruczek/spizarka-backend/pkg/config"
	"github.com/pkruczek/spizarka-backend/pkg/db"
	"github.com/pkruczek/spizarka-backend/pkg/llm"
	"github.com/pkruczek/spizarka-backend/pkg/logger"
	"github.com/pkruczek/spizarka-backend/pkg/metrics"
	"github.com/pkruczek/spizarka-backend/pkg/migrate"
	"github.com/pkruczek/spizarka-backend/pkg/pubsub"
	"github.com/pkruczek/spizarka-backend/pkg/redis"
	"github.com/pkruczek/spizarka-backend/pkg/storage"
	"github.com/pkruczek/spizarka-backend/pkg/vision"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var pubsubClient *pubsub.Client
	if cfg.GCP.ProjectID != "" {
		pubsubClient, err = pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub client", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "gcp project not configured, progress events disabled")
	}

	store, err := storage.NewLocalStore(cfg.Storage, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to prepare upload storage", err)
		os.Exit(1)
	}

	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)

	backends := []ocr.Backend{ocr.NewTesseractBackend(cfg.OCR.Languages)}
	if cfg.Vision.Enabled {
		visionClient, err := vision.NewClient(context.Background(), cfg.Vision, cfg.OCR.Languages)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap cloud vision", err)
			os.Exit(1)
		}
		backends = append(backends, ocr.NewVisionBackend(visionClient))
	}

	coordinator, err := ocr.NewCoordinator(backends, cfg.OCR, pipelineMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ocr coordinator", err)
		os.Exit(1)
	}

	parserService, err := parser.NewService(llm.NewClient(cfg.LLM), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create parser service", err)
		os.Exit(1)
	}

	matcherService, err := matcher.NewService(catalog.NewRepository(dbClient.DB()), dbClient, cfg.Matcher, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create matcher service", err)
		os.Exit(1)
	}

	lowStock, err := decimal.NewFromString(cfg.Inventory.LowStockThreshold)
	if err != nil {
		logg.Error(context.Background(), "invalid low stock threshold", err)
		os.Exit(1)
	}

	inventoryService, err := inventory.NewService(inventory.NewRepository(dbClient.DB()), dbClient, lowStock)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	queue, err := tasks.NewQueue(redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create task queue", err)
		os.Exit(1)
	}

	orchestrator, err := pipeline.NewOrchestrator(
		receipts.NewRepository(dbClient.DB()),
		coordinator,
		parserService,
		matcherService,
		inventoryService,
		queue,
		pipeline.NewNotifier(pubsubClient, logg),
		pipelineMetrics,
		logg,
		cfg.Pipeline,
		cfg.OCR.PaidAttemptBudget,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create pipeline orchestrator", err)
		os.Exit(1)
	}

	worker, err := tasks.NewWorker(queue, orchestrator, cfg.Pipeline, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker pool", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:  cfg,
		Logger:  logg,
		Worker:  worker,
		Janitor: store,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"workers": cfg.Pipeline.WorkerCount,
	})
	logg.Info(ctx, "starting receipt worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}
