package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/catalog/internal/config"
	"github.com/JonMunkholm/catalog/internal/core"
	"github.com/JonMunkholm/catalog/internal/images"
	"github.com/JonMunkholm/catalog/internal/logging"
	"github.com/JonMunkholm/catalog/internal/shop"
	"github.com/JonMunkholm/catalog/internal/store/postgres"
	"github.com/JonMunkholm/catalog/internal/store/sqlite"
	"github.com/JonMunkholm/catalog/internal/web"
)

// catalogStore is what the server needs from either database backend.
type catalogStore interface {
	core.Store
	web.Pinger
}

func main() {
	// Overload lets a local .env win over the shell environment.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"driver", cfg.Database.Driver,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"images_enabled", cfg.Images.Enabled(),
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open catalog store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	mapper, err := core.LoadMapper(cfg.Import.AliasesFile)
	if err != nil {
		slog.Error("failed to load header aliases", "file", cfg.Import.AliasesFile, "error", err)
		os.Exit(1)
	}
	policy, err := core.ParseTaxonomyFailurePolicy(cfg.Import.TaxonomyFailure)
	if err != nil {
		slog.Error("invalid taxonomy failure policy", "error", err)
		os.Exit(1)
	}

	service, err := core.NewService(store, core.ServiceConfig{
		MaxFileSize:     cfg.Upload.MaxFileSize,
		MaxConcurrent:   cfg.Upload.MaxConcurrent,
		MaxWait:         cfg.Upload.MaxWaitTime,
		CommitTimeout:   cfg.Upload.Timeout,
		TaxonomyFailure: policy,
		StrictGate:      cfg.Import.StrictGate,
		Mapper:          mapper,
	})
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	shopStore, err := shop.Open(cfg.Shop.Dir, cfg.Shop.InMemory, logger)
	if err != nil {
		slog.Error("failed to open shop store", "dir", cfg.Shop.Dir, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shopStore.Close(); err != nil {
			slog.Error("close shop store", "error", err)
		}
	}()

	opts := []web.Option{web.WithShop(shopStore), web.WithHealthCheck(store)}
	if cfg.Images.Enabled() {
		imageStore, err := images.NewS3Store(ctx, cfg.Images)
		if err != nil {
			slog.Error("failed to configure image storage", "bucket", cfg.Images.Bucket, "error", err)
			os.Exit(1)
		}
		opts = append(opts, web.WithImages(imageStore))
		slog.Info("image uploads enabled", "bucket", cfg.Images.Bucket)
	}

	server := web.NewServer(cfg, service, opts...)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		limiter := service.Limiter()
		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Error("server stopped", "error", err)
	}
}

// openStore connects the configured backend and applies its schema.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (catalogStore, func(), error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.URL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("opened sqlite catalog", "path", cfg.URL)
		return store, func() {
			if err := store.Close(); err != nil {
				slog.Error("close sqlite catalog", "error", err)
			}
		}, nil
	default:
		pool, err := postgres.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		logDatabaseName(cfg.URL)

		pg := postgres.New(pool)
		if cfg.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return pgStore{Store: pg, ping: pool.Ping}, pool.Close, nil
	}
}

// pgStore pairs the postgres store with its pool's health check.
type pgStore struct {
	*postgres.Store
	ping func(context.Context) error
}

func (s pgStore) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

func logDatabaseName(raw string) {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
		return
	}
	slog.Info("connected to database")
}
