// Command app serves the read-only city and postal code directory over HTTP.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexivanou/simple-geo/internal/api"
	"github.com/alexivanou/simple-geo/internal/config"
	"github.com/alexivanou/simple-geo/internal/database"
	"github.com/alexivanou/simple-geo/internal/repository"
	"github.com/alexivanou/simple-geo/internal/service"
	"github.com/alexivanou/simple-geo/internal/stats"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// JSON logs unless LOG_FORMAT says otherwise
	logCfg := cfg.Log
	if os.Getenv("LOG_FORMAT") == "" {
		logCfg.Format = "json"
	}
	logger, err := config.NewLogger(logCfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server exited")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := database.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(db, cfg.DB); err != nil {
		return err
	}
	logger.Info("Connected to database",
		zap.String("type", string(cfg.DB.Type)),
		zap.String("city_table", cfg.Tables.City),
		zap.String("postal_code_table", cfg.Tables.PostalCode),
	)

	repos := repository.NewRepositories(db, cfg.DB.Type, cfg.Tables)
	svc := service.NewService(repos.City, repos.PostalCode, service.WithLogger(logger))
	collector := stats.NewCollector(db, cfg.DB, cfg.Tables)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(svc, collector, cfg.Admin, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port), zap.Bool("hide_admin", cfg.Admin.Hidden))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
