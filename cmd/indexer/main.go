// Command indexer consumes entry events, tags and learns from each entry,
// stores the result and publishes its importance on the ranked topic.
// Liveness and readiness are served on the server port.
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

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/core"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/httpserver"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/feedrank/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/resilience"
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
		slog.Error("indexer service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("indexer service stopped")
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

	var invalidator consumer.Invalidator
	redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search cache will not be invalidated", "error", err)
	} else {
		defer redisClient.Close()
		invalidator = cache.New(redisClient, cfg.Redis.CacheTTL, m.CacheLookup("query"))
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.EntryRanked)
	defer producer.Close()

	pipeline := consumer.New(c.Engine, c.Entries, producer, invalidator, consumer.Options{
		Timeout:       cfg.Kafka.HandleTimeout,
		MaxAttempts:   cfg.Kafka.MaxAttempts,
		Observer:      m.Message,
		RetryObserver: m.Retried,
		BreakerObserver: func(name string, state resilience.State) {
			m.SetBreakerState(name, int(state))
		},
	})
	entryConsumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.EntryProcess,
		pipeline.HandleMessage,
		kafka.WithObserver(m.Message),
	)

	checker := health.NewChecker(2 * time.Second)
	checker.RegisterPing("postgres", c.DB.Ping, false)
	if redisClient != nil {
		checker.RegisterPing("redis", redisClient.Ping, true)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	slog.Info("indexer consuming",
		"topic", cfg.Kafka.Topics.EntryProcess,
		"group", cfg.Kafka.ConsumerGroup,
		"ranked_topic", cfg.Kafka.Topics.EntryRanked,
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return entryConsumer.Start(gctx) })
	g.Go(func() error { return httpserver.Run(gctx, "indexer", cfg.Server, mux) })
	return g.Wait()
}
