// Package core assembles the pieces the indexer and searcher share: language
// models, the phrase cache, the entry store and the engine over them.
package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/lang"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/phrase"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/store"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/postgres"
)

type Core struct {
	Models  *lang.Registry
	Phrases *phrase.Cache
	DB      *postgres.Client
	Entries *store.Store
	Engine  *engine.Engine
}

// ModelSource layers the configured models directory over the embedded
// bundles.
func ModelSource(cfg config.LanguageConfig) lang.Source {
	if cfg.ModelsDir == "" {
		return lang.Embedded()
	}
	return lang.Layered{lang.DirSource(cfg.ModelsDir), lang.Embedded()}
}

// Open loads the default model, connects to Postgres and migrates the
// schema. A default model that cannot load fails startup.
func Open(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Core, error) {
	models := lang.NewRegistry(ModelSource(cfg.Language), m.ModelLoaded)
	models.SetDefault(cfg.Language.Default)
	if _, err := models.Get(""); err != nil {
		return nil, fmt.Errorf("default language model %q: %w", cfg.Language.Default, err)
	}

	phrases, err := phrase.NewCache(cfg.Search.PhraseCacheSize, m.CacheLookup("phrase"))
	if err != nil {
		return nil, fmt.Errorf("phrase cache: %w", err)
	}

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	entries := store.New(db)
	if err := entries.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	slog.Info("core ready",
		"default_lang", cfg.Language.Default,
		"models_dir", cfg.Language.ModelsDir,
		"phrase_cache", cfg.Search.PhraseCacheSize,
	)
	return &Core{
		Models:  models,
		Phrases: phrases,
		DB:      db,
		Entries: entries,
		Engine:  engine.New(models, entries, entries, phrases, engine.OptionsFromConfig(cfg.Search), m),
	}, nil
}

func (c *Core) Close() error {
	return c.DB.Close()
}
