package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"vidfetch/internal/api"
	"vidfetch/internal/cache"
	"vidfetch/internal/config"
	"vidfetch/internal/downloader"
	"vidfetch/internal/engine"
	"vidfetch/internal/format"
	"vidfetch/internal/info"
	"vidfetch/internal/retention"
	"vidfetch/internal/ytdl"
	"vidfetch/pkg/models"
)

const shutdownTimeout = 10 * time.Second

func (c *CLI) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return c.serve(cmd.Context(), cfg, log)
		},
	}

	fs := cmd.Flags()
	fs.IntP("port", "p", 5000, "Port to listen on (0 picks a free port)")
	fs.String("host", "0.0.0.0", "Interface to bind")
	fs.String("static-dir", "", "Directory of front-end assets served at /")
	fs.StringP("download-dir", "d", "downloads", "Directory downloads are written to")
	fs.String("ytdlp", "yt-dlp", "Path to the yt-dlp executable")

	return cmd
}

func (c *CLI) serve(ctx context.Context, cfg *models.Config, log *slog.Logger) error {
	store, cleanup, err := openCache(ctx, cfg, log)
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}
	defer cleanup()

	eng, err := openEngine(ctx, cfg, log)
	if err != nil {
		return &ExitError{Code: ExitEngineError, Err: err}
	}

	policy, err := format.ParsePolicy(cfg.Engine.TierPolicy)
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}

	svc := info.NewService(eng, store, policy, cfg.Engine.ProbeTimeout, log)

	dl, err := downloader.NewDownloader(cfg.Downloads.Dir, eng, svc, cfg.Downloads.MaxConcurrent, cfg.Engine.DownloadTimeout, log)
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}

	sweeper := retention.NewSweeper(cfg.Downloads.Dir, cfg.Downloads.MaxAge, dl, log)
	go sweeper.Run(ctx, cfg.Downloads.SweepInterval)

	var stats api.CacheStats
	if mem, ok := store.(*cache.Manager); ok {
		stats = mem
	}

	api.Version = c.version
	server := api.NewServer(cfg.Server, svc, dl, stats, log)
	if err := server.Start(); err != nil {
		return &ExitError{Code: ExitServerError, Err: err}
	}

	log.Info("vidfetch started",
		"version", c.version,
		"addr", server.GetActualAddr(),
		"downloads", cfg.Downloads.Dir,
		"engine", eng.Path(),
	)

	<-ctx.Done()
	log.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Stop(stopCtx); err != nil && !errors.Is(err, api.ErrServerNotRunning) {
		return &ExitError{Code: ExitServerError, Err: err}
	}
	return nil
}

// openCache returns the Redis store when configured, else an in-memory
// cache pruned in the background
func openCache(ctx context.Context, cfg *models.Config, log *slog.Logger) (cache.Store, func(), error) {
	if cfg.Cache.RedisAddr != "" {
		store, err := cache.NewRedisStore(ctx, &redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		}, cfg.Cache.TTL, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using redis metadata cache", "addr", cfg.Cache.RedisAddr)
		return store, func() { store.Close() }, nil
	}

	mem := cache.NewManager(cfg.Cache.TTL, cache.WithMaxEntries(cfg.Cache.MaxEntries))
	mem.StartJanitor(ctx, cfg.Cache.TTL)
	return mem, func() {}, nil
}

// openEngine resolves the yt-dlp binary, installing it first when
// engine.autoInstall is set
func openEngine(ctx context.Context, cfg *models.Config, log *slog.Logger) (*engine.YtDLP, error) {
	path := cfg.Engine.Path
	if cfg.Engine.AutoInstall {
		installed, err := ytdl.NewManager(config.GetToolsDir(cfg), log).EnsureInstalled(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to install yt-dlp: %w", err)
		}
		path = installed
	}

	return engine.NewYtDLP(path, log), nil
}
