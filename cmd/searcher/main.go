package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/core"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/httpserver"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/feedrank/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		m.Serve(ctx, cfg.Metrics)
	}

	c, err := core.Open(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer c.Close()

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m.CacheLookup("query"))
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	checker := health.NewChecker(2 * time.Second)
	checker.RegisterPing("postgres", c.DB.Ping, false)
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return health.PingCheck(redisClient.Ping, true)(ctx)
	})
	checker.Register("language_models", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("loaded: %v", c.Models.Loaded())}
	})

	h := handler.New(c.Engine, c.Entries, queryCache, cfg.Search.MaxResults)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/score", h.Score)
	mux.HandleFunc("POST /api/v1/analyze", h.Analyze)
	mux.HandleFunc("POST /api/v1/rules", h.CreateRule)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m, mux)(chain)
	chain = middleware.RequestID(chain)

	return httpserver.Run(ctx, "searcher", cfg.Server, chain)
}
