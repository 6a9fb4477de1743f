package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/pkruczek/spizarka-backend/internal/tasks"
	"github.com/pkruczek/spizarka-backend/pkg/config"
	"github.com/pkruczek/spizarka-backend/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// Janitor removes stale preprocessed images.
type Janitor interface {
	CleanupProcessed(ctx context.Context) (int, error)
}

// ServiceParams carries the worker service dependencies.
type ServiceParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	Worker  *tasks.Worker
	Janitor Janitor
}

// Service runs the worker pool, the preprocessed-image janitor and a small
// HTTP listener exposing metrics and liveness.
type Service struct {
	cfg     *config.Config
	logg    *logger.Logger
	worker  *tasks.Worker
	janitor Janitor
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	if params.Worker == nil {
		return nil, fmt.Errorf("worker required")
	}
	return &Service{
		cfg:     params.Config,
		logg:    params.Logger,
		worker:  params.Worker,
		janitor: params.Janitor,
	}, nil
}

// Run blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.worker.Run(ctx)
	})
	g.Go(func() error {
		return s.runJanitor(ctx)
	})
	g.Go(func() error {
		return s.runHTTP(ctx)
	})

	return g.Wait()
}

func (s *Service) runJanitor(ctx context.Context) error {
	if s.janitor == nil {
		return nil
	}
	interval := s.cfg.Storage.CleanupInterval
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed, err := s.janitor.CleanupProcessed(ctx)
			if err != nil {
				if s.logg != nil {
					s.logg.Warn(ctx, fmt.Sprintf("processed image cleanup failed: %v", err))
				}
				continue
			}
			if removed > 0 && s.logg != nil {
				s.logg.Info(ctx, fmt.Sprintf("removed %d stale processed images", removed))
			}
		}
	}
}

func (s *Service) runHTTP(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	server := &http.Server{
		Addr:    ":" + s.cfg.App.Port,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics listener: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
