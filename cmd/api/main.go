package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/pkruczek/spizarka-backend/api/controllers"
	"github.com/pkruczek/spizarka-backend/api/routes"
	"github.com/pkruczek/spizarka-backend/internal/inventory"
	"github.com/pkruczek/spizarka-backend/internal/receipts"
	"github.com/pkruczek/spizarka-backend/internal/tasks"
	"github.com/pkruczek/spizarka-backend/pkg/config"
	"github.com/pkruczek/spizarka-backend/pkg/db"
	"github.com/pkruczek/spizarka-backend/pkg/logger"
	"github.com/pkruczek/spizarka-backend/pkg/migrate"
	"github.com/pkruczek/spizarka-backend/pkg/redis"
	"github.com/pkruczek/spizarka-backend/pkg/storage"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	store, err := storage.NewLocalStore(cfg.Storage, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to prepare upload storage", err)
		os.Exit(1)
	}

	queue, err := tasks.NewQueue(redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create task queue", err)
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

	receiptService, err := receipts.NewService(
		receipts.NewRepository(dbClient.DB()),
		dbClient,
		store,
		queue,
		inventoryService,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create receipt service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, receiptService, inventoryService, map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
