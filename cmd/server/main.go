package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	enrollmentCache "registrar/internal/enrollment/cache"
	enrollmentHandler "registrar/internal/enrollment/handler"
	enrollmentService "registrar/internal/enrollment/service"
	identityHandler "registrar/internal/identity/handler"
	identity "registrar/internal/identity/models"
	"registrar/internal/identity/secrets"
	identityService "registrar/internal/identity/service"
	"registrar/internal/platform/config"
	"registrar/internal/platform/httpserver"
	"registrar/internal/platform/logger"
	"registrar/internal/platform/metrics"
	"registrar/internal/platform/middleware/auth"
	"registrar/internal/platform/postgres"
	platformRedis "registrar/internal/platform/redis"
	rateLimitMiddleware "registrar/internal/ratelimit/middleware"
	"registrar/internal/ratelimit/store/bucket"
	"registrar/internal/storage/memory"
	postgresStore "registrar/internal/storage/postgres"
	"registrar/internal/token"
	httptransport "registrar/internal/transport/http"
	"registrar/pkg/platform/httputil"
	"registrar/pkg/platform/middleware/metadata"
)

// store is everything both services need from persistence.
type store interface {
	identityService.Store
	enrollmentService.Store
}

type txRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// run wires storage, services and the router, then serves until SIGINT or SIGTERM.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Server.LogLevel)
	slog.SetDefault(log)
	httputil.SetDevelopmentMode(cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]httptransport.HealthCheck{}

	var (
		st store
		tx txRunner
	)
	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer closeDB(db, log)
		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
		}
		st = postgresStore.New(db)
		tx = postgres.NewTxRunner(db, cfg.Database.TxTimeout)
		checks["database"] = db.PingContext
		log.Info("using postgres storage")
	} else {
		mem := memory.New()
		st, tx = mem, mem
		log.Warn("DATABASE_URL not set, using in-memory storage")
	}

	redisClient, err := platformRedis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("failed to close redis", "error", err)
			}
		}()
		checks["redis"] = redisClient.Health
	}

	m := metrics.New()
	hasher, err := secrets.NewHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	tokens := token.New(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience,
		token.WithTTLs(cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL))

	ledgerOpts := []enrollmentService.Option{
		enrollmentService.WithLogger(log),
		enrollmentService.WithMetrics(m),
	}
	identityOpts := []identityService.Option{
		identityService.WithLogger(log),
		identityService.WithMetrics(m),
	}
	var buckets rateLimitMiddleware.BucketStore = bucket.NewInMemoryBucketStore()
	if redisClient != nil {
		statsCache := enrollmentCache.NewStatsCache(redisClient.Client, cfg.Redis.StatsTTL)
		ledgerOpts = append(ledgerOpts, enrollmentService.WithStatsCache(statsCache))
		identityOpts = append(identityOpts, identityService.WithStatsInvalidator(statsCache))
		buckets = bucket.NewRedisBucketStore(redisClient.Client)
	}

	identities := identityService.New(st, tx, hasher, tokens, identityOpts...)
	ledger := enrollmentService.New(st, tx, ledgerOpts...)

	if cfg.Bootstrap.AdminEmail != "" {
		err := identities.EnsureAdmin(ctx, identity.BootstrapAdmin{
			Email:     cfg.Bootstrap.AdminEmail,
			Password:  cfg.Bootstrap.AdminPassword,
			FirstName: cfg.Bootstrap.AdminFirstName,
			LastName:  cfg.Bootstrap.AdminLastName,
		})
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	authenticate := auth.RequireAuth(tokens, identities, log, m)
	limiter := rateLimitMiddleware.New(buckets, cfg.RateLimit.Requests, cfg.RateLimit.Window, log,
		rateLimitMiddleware.WithDisabled(!cfg.RateLimit.Enabled),
		rateLimitMiddleware.WithMetrics(m),
	)

	trusted, err := metadata.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:         log,
		Metrics:        m,
		MetricsHandler: promhttp.Handler(),
		RequestTimeout: cfg.Server.RequestTimeout,
		TrustedProxies: trusted,
		HealthChecks:   checks,
		Groups: []httptransport.RouteGroup{
			identityHandler.New(identities, log, authenticate, limiter.RateLimit),
			enrollmentHandler.New(ledger, log, authenticate),
		},
	})

	srv := httpserver.New(cfg.Server.Addr, router)
	log.Info("starting registrar", "addr", cfg.Server.Addr, "environment", cfg.Server.Environment)
	if err := httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout, log); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func closeDB(db *sql.DB, log *slog.Logger) {
	if err := db.Close(); err != nil {
		log.Error("failed to close database", "error", err)
	}
}
