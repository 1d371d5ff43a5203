// Command simplegeo imports, exports and geocodes city and postal code data.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alexivanou/simple-geo/internal/config"
	"github.com/alexivanou/simple-geo/internal/database"
	"github.com/alexivanou/simple-geo/internal/geocode"
	"github.com/alexivanou/simple-geo/internal/repository"
	"github.com/alexivanou/simple-geo/internal/service"
	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:          "simplegeo",
	Short:        "City and postal code directory tools",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		l, err := config.NewLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// store is an open, migrated database with its repositories
type store struct {
	db    *sqlx.DB
	repos *repository.Container
}

// openStore connects and migrates. Commands that write rows meant to
// outlive the process must not run against an in-memory database.
func openStore(ctx context.Context) (*store, error) {
	if cfg.DB.IsMemory() {
		return nil, fmt.Errorf("%w: DB_TYPE=memory discards everything when the command exits, use sqlite or postgres",
			config.ErrImproperlyConfigured)
	}

	db, err := database.Connect(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db, cfg.DB); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("Connected to database", zap.String("type", string(cfg.DB.Type)))
	return &store{
		db:    db,
		repos: repository.NewRepositories(db, cfg.DB.Type, cfg.Tables),
	}, nil
}

func (s *store) Close() error {
	return s.db.Close()
}

func newGeocoder() (*geocode.Client, error) {
	client, err := geocode.NewClientFromConfig(cfg.Geocoder, logger)
	if err != nil {
		return nil, eris.Wrap(err, "geocoder")
	}
	if cfg.Geocoder.APIKey == "" {
		logger.Warn("GEOCODER_API_KEY is not set, geocoding requests will likely be denied")
	}
	return client, nil
}

func newService(s *store, geocoder service.Geocoder) *service.Service {
	opts := []service.Option{service.WithLogger(logger)}
	if geocoder != nil {
		opts = append(opts, service.WithGeocoder(geocoder))
	}
	return service.NewService(s.repos.City, s.repos.PostalCode, opts...)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
