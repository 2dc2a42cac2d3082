// Package store persists processed entries and scoring rules in PostgreSQL
// and serves them back to the engine as candidates and rule sets.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/field"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/postgres"
)

// Schema is applied by Migrate. Streams and the joined body are kept as
// plain text so candidate patterns can run as LIKE filters.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS entries (
	    id             BIGINT PRIMARY KEY,
	    feed_id        BIGINT NOT NULL DEFAULT 0,
	    category       TEXT NOT NULL DEFAULT '',
	    lang           TEXT NOT NULL DEFAULT '',
	    model          TEXT NOT NULL DEFAULT '',
	    published_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	    fields         JSONB NOT NULL,
	    body           TEXT NOT NULL DEFAULT '',
	    word_count     INTEGER NOT NULL DEFAULT 0,
	    weight         DOUBLE PRECISION NOT NULL DEFAULT 1,
	    readability    DOUBLE PRECISION NOT NULL DEFAULT 0,
	    class          SMALLINT NOT NULL DEFAULT 1,
	    stemmed_stream TEXT NOT NULL DEFAULT '',
	    raw_stream     TEXT NOT NULL DEFAULT '',
	    importance     DOUBLE PRECISION NOT NULL DEFAULT 0,
	    flag           BIGINT NOT NULL DEFAULT 0,
	    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS entries_feed_idx ON entries (feed_id)`,
	`CREATE TABLE IF NOT EXISTS rules (
	    id               BIGSERIAL PRIMARY KEY,
	    name             TEXT NOT NULL DEFAULT '',
	    type             SMALLINT NOT NULL,
	    feed_id          BIGINT NOT NULL DEFAULT 0,
	    category         TEXT NOT NULL DEFAULT '',
	    field            SMALLINT NOT NULL DEFAULT 0,
	    search           TEXT NOT NULL,
	    case_insensitive BOOLEAN NOT NULL DEFAULT FALSE,
	    lang             TEXT NOT NULL DEFAULT '',
	    weight           DOUBLE PRECISION NOT NULL DEFAULT 0,
	    additive         BOOLEAN NOT NULL DEFAULT TRUE,
	    learned          BOOLEAN NOT NULL DEFAULT FALSE,
	    flag             BIGINT NOT NULL DEFAULT 0,
	    context_id       BIGINT NOT NULL DEFAULT 0,
	    archived_weight  DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS rules_context_idx ON rules (context_id) WHERE learned`,
}

// Store implements the engine's candidate, corpus and rule collaborators.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// New creates a Store on an open client.
func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "store"),
	}
}

// Migrate creates the tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.Apply(ctx, Schema...); err != nil {
		return fmt.Errorf("migrating store schema: %w", err)
	}
	s.logger.Info("store schema applied", "statements", len(Schema))
	return nil
}

type storedField struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func encodeFields(fields []field.Value) ([]byte, string, error) {
	stored := make([]storedField, 0, len(fields))
	texts := make([]string, 0, len(fields))
	for _, f := range fields {
		stored = append(stored, storedField{Role: f.Role.String(), Text: f.Text})
		texts = append(texts, f.Text)
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, "", fmt.Errorf("marshaling fields: %w", err)
	}
	return data, strings.Join(texts, "\n"), nil
}

func decodeFields(data []byte) ([]field.Value, error) {
	var stored []storedField
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("unmarshaling fields: %w", err)
	}
	out := make([]field.Value, 0, len(stored))
	for _, f := range stored {
		role, err := field.Parse(f.Role)
		if err != nil {
			return nil, err
		}
		out = append(out, field.Value{Role: role, Text: f.Text})
	}
	return out, nil
}
