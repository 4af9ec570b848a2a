package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/config"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/database"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/engine"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/handler/health"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/migrations"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ratelimit"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/security"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/server"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- libSQL ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to libsql: %w", err)
	}
	defer db.Close()

	version, err := migrations.Up(ctx, db)
	if err != nil {
		return err
	}
	logger.Info("connected to libsql", "path", cfg.DBPath, "schema_version", version)

	checks := map[string]health.Checker{"libsql": dbChecker{db}}

	// --- Redis (optional) ---
	var (
		notifier *store.RedisNotifier
		limiter  ratelimit.Limiter = ratelimit.Unlimited{}
		rdb      *redis.Client
	)
	if cfg.RedisURL != "" {
		rdb, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		logger.Info("connected to redis")

		checks["redis"] = redisChecker{rdb}
		notifier = store.NewRedisNotifier(rdb, cfg.RedisChannel, logger)
		limiter = ratelimit.NewRedisLimiter(ratelimit.RedisLimiterConfig{
			RedisClient: rdb,
			LimiterKey:  "team",
			PerMinute:   int64(cfg.SubmitPerMinute),
			FailOpen:    cfg.RateLimitFailOpen,
		})
	} else {
		logger.Warn("REDIS_URL not set: snapshots stay in-process and submissions are not rate limited")
	}

	// --- Engine ---
	hasher, err := security.New(cfg.HashAlgo, cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("building hasher: %w", err)
	}

	var st *store.DocStore
	if notifier != nil {
		st = store.NewDocStore(db, notifier, logger)
	} else {
		st = store.NewDocStore(db, nil, logger)
	}
	eng := engine.New(st, hasher, logger)

	if err := server.SeedAdmin(ctx, logger, st, hasher, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}
	if err := server.SeedSettings(ctx, logger, st); err != nil {
		return fmt.Errorf("seeding settings: %w", err)
	}

	// --- HTTP Server ---
	deps := server.Deps{
		Engine:         eng,
		Store:          st,
		Hasher:         hasher,
		Limiter:        limiter,
		TokenDigits:    cfg.TokenDigits,
		SessionTTL:     cfg.SessionTTL,
		AllowedOrigins: cfg.AllowedOrigins,
		Frontend:       frontend(logger, cfg.StaticDir),
	}
	srv := server.New(cfg.HTTPAddr, logger, deps, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, checks).Routes())
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	if notifier != nil {
		g.Go(func() error {
			logger.Info("relaying snapshots", "channel", cfg.RedisChannel)
			return notifier.Run(gctx)
		})
	}

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

// openRedis pings with a short Fibonacci backoff so the server can start
// alongside a Redis container that is still booting.
func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	b := retry.WithMaxRetries(5, retry.NewFibonacci(250*time.Millisecond))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

func frontend(logger *slog.Logger, dir string) fs.FS {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		logger.Warn("STATIC_DIR is not a directory, frontend disabled", "dir", dir)
		return nil
	}
	logger.Info("serving frontend", "dir", dir)
	return os.DirFS(dir)
}

// dbChecker adapts *sql.DB to health.Checker.
type dbChecker struct{ db *sql.DB }

func (d dbChecker) Check(ctx context.Context) error { return d.db.PingContext(ctx) }

// redisChecker adapts *redis.Client to health.Checker.
type redisChecker struct{ client *redis.Client }

func (r redisChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }
