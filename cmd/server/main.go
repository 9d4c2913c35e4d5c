package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mcd-dashboard/api"
	"mcd-dashboard/config"
	"mcd-dashboard/mcp"
	"mcd-dashboard/middleware/pipeline"
	"mcd-dashboard/middleware/ratelimit"
	"mcd-dashboard/middleware/ratelimit/application"
	"mcd-dashboard/middleware/ratelimit/domain"
	"mcd-dashboard/middleware/ratelimit/infra"
	"mcd-dashboard/security/cors"
	"mcd-dashboard/security/csrf"
	"mcd-dashboard/security/events"
	"mcd-dashboard/security/headers"
	"mcd-dashboard/security/identity"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		events.NewZap(events.LogOptions{}).Fatal("config error", zap.Error(err))
	}

	logger := events.NewZap(events.LogOptions{Level: cfg.LogLevel, File: cfg.LogFile})
	defer func() { _ = logger.Sync() }()
	ev := events.New(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancelPing()
		if err != nil {
			// não derruba o processo: a política fail-open/fail-closed decide
			// por request o que fazer com o store indisponível
			logger.Warn("redis unreachable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
	}

	var store domain.CounterStore
	var stats domain.StatsStore
	switch cfg.RateStore {
	case "redis":
		store = infra.NewRedisCounterStore(rdb)
		stats = infra.NewRedisStatsStore(rdb)
	case "memory":
		mem := infra.NewMemoryCounterStore()
		mem.StartJanitor(ctx)
		store = mem
		stats = infra.NewMemoryStatsStore()
	default:
		// sem store: fail closed em produção, fail open fora dela
	}

	resolver := &identity.Resolver{
		Secret:     []byte(cfg.SessionSecret),
		CookieName: cfg.SessionCookieName,
	}
	guard := csrf.NewGuard(cfg.CSRFCookieName, cfg.CSRFHeaderName, cfg.Env.IsProduction())

	mcpOpts := []mcp.Option{
		mcp.WithHTTPClient(&http.Client{Timeout: cfg.MCPTimeout}),
		mcp.WithThrottle(cfg.MCPRPS, cfg.MCPBurst),
	}
	if rdb != nil {
		mcpOpts = append(mcpOpts, mcp.WithCache(mcp.NewRedisCache(rdb, "mcp:cache"), cfg.MCPCacheTTL))
	}
	client := mcp.New(cfg.MCPBaseURL, cfg.MCPToken, mcpOpts...)

	p := &pipeline.Pipeline{
		Env:      cfg.Env,
		Headers:  headers.NewInjector(cfg.Env),
		Cors:     cors.NewPolicy(cfg.AllowedOrigins, cfg.CSRFHeaderName),
		Resolver: resolver,
		Csrf:     guard,
		Limiter: application.Service{
			Store:    store,
			FailOpen: !cfg.Env.IsProduction(),
		},
		Stats:  stats,
		Events: ev,
		Buckets: map[string]domain.Bucket{
			"api":       {Name: "api", Limit: cfg.RateAPI.Limit, Window: cfg.RateAPI.Window},
			"write":     {Name: "write", Limit: cfg.RateWrite.Limit, Window: cfg.RateWrite.Window},
			"autoClaim": {Name: "autoClaim", Limit: cfg.RateAutoClaim.Limit, Window: cfg.RateAutoClaim.Window},
		},
		MaxBodyBytes: cfg.MaxBodyBytes,
		Concurrency: ratelimit.ConcurrencyOptions{
			Max:            cfg.ConcurrencyMax,
			AcquireTimeout: cfg.ConcurrencyTimeout,
		},
	}

	router := api.NewRouter(p, api.NewHandlers(client, guard, logger))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("dashboard gateway listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("env", string(cfg.Env)),
		zap.String("rate_store", cfg.RateStore),
		zap.String("upstream", cfg.MCPBaseURL),
		zap.Bool("fail_open", !cfg.Env.IsProduction()),
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
