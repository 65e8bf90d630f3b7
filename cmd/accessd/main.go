// Command accessd runs the access-control core of the engrama memory
// service as an HTTP front: it authenticates, authorizes, and rate-limits
// every request, then hands the bound identity to the business layer.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/engrama/accesscore/internal/auth"
	"github.com/engrama/accesscore/internal/config"
	"github.com/engrama/accesscore/internal/credstore"
	"github.com/engrama/accesscore/internal/middleware"
	"github.com/engrama/accesscore/internal/ratelimit"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Configuration errors are fatal by design: never degrade.
		zap.NewExample().Fatal("configuration invalid", zap.Error(err))
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		zap.NewExample().Fatal("logger init failed", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("accessd exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	hasher, err := auth.NewHasher(cfg.KeyHashAlgorithm)
	if err != nil {
		return err
	}

	authMetrics := auth.NewMetrics("accesscore")
	resolver, err := auth.NewResolver(store,
		auth.WithResolverLogger(logger),
		auth.WithResolverHasher(hasher),
		auth.WithResolverMetrics(authMetrics),
	)
	if err != nil {
		return err
	}

	var redisClient redis.UniversalClient
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	limitMetrics := ratelimit.NewMetrics("accesscore")
	limiter := ratelimit.Instrument(ratelimit.New(ratelimit.Config{
		Algorithm: ratelimit.Algorithm(cfg.RateLimitAlgorithm),
		Requests:  cfg.RateLimit,
		Window:    cfg.RateLimitWindow,
	}, redisClient, logger), limitMetrics)

	accessCfg := middleware.DefaultAccessConfig()
	accessCfg.Resolver = resolver
	accessCfg.Guard = auth.NewGuard(logger)
	accessCfg.AdminGuard = auth.NewAdminGuard(cfg.AdminToken, logger)
	accessCfg.Limiter = limiter
	accessCfg.Logger = logger

	if cfg.Environment == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.Access(accessCfg))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		prometheus.Gatherers{authMetrics.Registry(), limitMetrics.Registry()},
		promhttp.HandlerOpts{},
	)))

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("accessd listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("environment", cfg.Environment),
			zap.Bool("admin_enabled", accessCfg.AdminGuard.Configured()),
			zap.Int("rate_limit", cfg.RateLimit),
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("accessd stopped")
	return nil
}

// buildStore selects and wraps the credential store: circuit breaker
// around the backend, bounded pool in front so slow storage calls cannot
// stall unrelated requests.
func buildStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (credstore.Store, error) {
	var backend credstore.Store
	if cfg.PostgresURI != "" {
		pg, err := credstore.NewPostgresStore(ctx, cfg.PostgresURI, logger)
		if err != nil {
			return nil, err
		}
		backend = pg
	} else {
		if cfg.Environment == config.EnvProduction {
			return nil, errors.New("ENGRAMA_PG_URI is required in production")
		}
		logger.Warn("using in-memory credential store")
		backend = credstore.NewMemoryStore()
	}

	breaker := credstore.NewBreakerStore(backend, credstore.DefaultBreakerConfig(), logger)
	return credstore.NewPooledStore(breaker, cfg.StorePoolSize), nil
}

// newLogger builds the production zap logger at the configured level.
func newLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(parsed)
	return zcfg.Build()
}
