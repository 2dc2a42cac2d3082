package lang

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/Adithya-Monish-Kumar-K/feedrank/pkg/errors"
)

// LoadHook observes every model load attempt.
type LoadHook func(id string, took time.Duration, err error)

type alias struct {
	id    string
	globs []glob.Glob
}

// Registry resolves language ids (or glob aliases such as "en-*") to loaded
// models. Each model is loaded at most once per Registry; concurrent first
// requests for the same language share a single load.
type Registry struct {
	source   Source
	onLoad   LoadHook
	fallback string
	logger   *slog.Logger

	mu     sync.RWMutex
	models map[string]*Model
	group  singleflight.Group

	catalogOnce sync.Once
	aliases     []alias
	catalogErr  error
}

func NewRegistry(source Source, onLoad LoadHook) *Registry {
	return &Registry{
		source: source,
		onLoad: onLoad,
		logger: slog.Default().With("component", "lang-registry"),
		models: make(map[string]*Model),
	}
}

// SetDefault names the language used for documents that carry none. The
// empty string and "heuristic" select the heuristic model.
func (r *Registry) SetDefault(lang string) {
	r.fallback = strings.ToLower(strings.TrimSpace(lang))
}

func (r *Registry) loadCatalog() {
	headers, err := r.source.Catalog()
	if err != nil {
		r.catalogErr = fmt.Errorf("reading model catalog: %w", err)
		return
	}
	for _, h := range headers {
		a := alias{id: strings.ToLower(h.ID)}
		for _, name := range h.Names {
			g, err := glob.Compile(strings.ToLower(name))
			if err != nil {
				r.catalogErr = fmt.Errorf("model %s alias %q: %w", h.ID, name, err)
				return
			}
			a.globs = append(a.globs, g)
		}
		r.aliases = append(r.aliases, a)
	}
}

// Resolve maps a language tag to a model id. An empty tag resolves to the
// default language, or the heuristic model when none is set.
func (r *Registry) Resolve(lang string) (string, error) {
	r.catalogOnce.Do(r.loadCatalog)
	if r.catalogErr != nil {
		return "", r.catalogErr
	}
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = r.fallback
	}
	if lang == "" {
		lang = HeuristicID
	}
	for _, a := range r.aliases {
		if a.id == lang {
			return a.id, nil
		}
	}
	for _, a := range r.aliases {
		for _, g := range a.globs {
			if g.Match(lang) {
				return a.id, nil
			}
		}
	}
	if lang == HeuristicID {
		return "", apperrors.ErrFallbackMissing
	}
	return "", fmt.Errorf("language %q: %w", lang, apperrors.ErrModelNotFound)
}

// Get returns the loaded model for a language tag.
func (r *Registry) Get(lang string) (*Model, error) {
	id, err := r.Resolve(lang)
	if err != nil {
		return nil, err
	}
	if m := r.cached(id); m != nil {
		return m, nil
	}
	v, err, _ := r.group.Do(id, func() (any, error) {
		if m := r.cached(id); m != nil {
			return m, nil
		}
		start := time.Now()
		m, err := r.load(id)
		if r.onLoad != nil {
			r.onLoad(id, time.Since(start), err)
		}
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.models[id] = m
		r.mu.Unlock()
		r.logger.Info("language model loaded",
			"model", id,
			"version", m.Version,
			"rules", len(m.Rules),
			"lookups", len(m.Lookups),
			"took", time.Since(start),
		)
		return m, nil
	})
	if err != nil {
		if id == HeuristicID {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrFallbackMissing, err)
		}
		return nil, err
	}
	return v.(*Model), nil
}

// Loaded lists the ids of models loaded so far.
func (r *Registry) Loaded() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) cached(id string) *Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.models[id]
}

func (r *Registry) load(id string) (*Model, error) {
	b, err := r.source.Bundle(id)
	if err != nil {
		return nil, err
	}
	warn := func(msg string, args ...any) {
		r.logger.Warn(msg, args...)
	}
	return compile(b, func(name string) ([]DictEntry, error) {
		return r.source.Dictionary(id, name)
	}, warn)
}
