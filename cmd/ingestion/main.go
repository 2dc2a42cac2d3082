// Command ingestion starts the entry intake HTTP service.
//
// The service accepts entries via POST /api/v1/entries (one object or an
// array), validates them and queues them on the entry-process topic for the
// indexer. DELETE /api/v1/entries/{id} queues a removal.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/httpserver"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/middleware"
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
		slog.Error("ingestion service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		m.Serve(ctx, cfg.Metrics)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.EntryProcess)
	defer producer.Close()
	slog.Info("queueing entries", "topic", cfg.Kafka.Topics.EntryProcess, "brokers", cfg.Kafka.Brokers)

	h := handler.New(publisher.New(producer))
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/entries", h.Ingest)
	mux.HandleFunc("DELETE /api/v1/entries/{id}", h.Delete)
	mux.HandleFunc("GET /health", h.Health)

	var chain http.Handler = mux
	chain = middleware.Metrics(m, mux)(chain)
	chain = middleware.RequestID(chain)

	return httpserver.Run(ctx, "ingestion", cfg.Server, chain)
}
