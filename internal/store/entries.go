package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/engine"
	apperrors "github.com/Adithya-Monish-Kumar-K/feedrank/pkg/errors"
)

// SaveEntry upserts a processed entry with its stats and streams.
func (s *Store) SaveEntry(ctx context.Context, doc engine.Document, res engine.Result) error {
	fields, body, err := encodeFields(doc.Fields)
	if err != nil {
		return err
	}
	_, err = s.db.DB.ExecContext(ctx, `
		INSERT INTO entries (id, feed_id, category, lang, model, published_at, fields, body,
		                     word_count, weight, readability, class, stemmed_stream, raw_stream, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		ON CONFLICT (id) DO UPDATE SET
		    feed_id = EXCLUDED.feed_id,
		    category = EXCLUDED.category,
		    lang = EXCLUDED.lang,
		    model = EXCLUDED.model,
		    published_at = EXCLUDED.published_at,
		    fields = EXCLUDED.fields,
		    body = EXCLUDED.body,
		    word_count = EXCLUDED.word_count,
		    weight = EXCLUDED.weight,
		    readability = EXCLUDED.readability,
		    class = EXCLUDED.class,
		    stemmed_stream = EXCLUDED.stemmed_stream,
		    raw_stream = EXCLUDED.raw_stream,
		    updated_at = NOW()`,
		doc.ID, doc.FeedID, doc.Category, doc.Lang, res.Model, doc.Published.UTC(), fields, body,
		res.Stats.Words, res.Stats.Weight, res.Stats.Readability, res.Stats.Class,
		res.Streams.Stemmed, res.Streams.Raw,
	)
	if err != nil {
		return fmt.Errorf("saving entry %d: %w", doc.ID, err)
	}
	return nil
}

// SetImportance records the rule score and flag of an entry.
func (s *Store) SetImportance(ctx context.Context, id int64, score float64, flag int64) error {
	res, err := s.db.DB.ExecContext(ctx,
		`UPDATE entries SET importance = $2, flag = $3, updated_at = NOW() WHERE id = $1`,
		id, score, flag,
	)
	if err != nil {
		return fmt.Errorf("setting importance of entry %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entry %d: %w", id, apperrors.ErrDocumentNotFound)
	}
	return nil
}

// Entry loads the stored fields of an entry.
func (s *Store) Entry(ctx context.Context, id int64) (engine.Document, error) {
	var (
		doc  engine.Document
		data []byte
	)
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, feed_id, category, lang, published_at, fields FROM entries WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.FeedID, &doc.Category, &doc.Lang, &doc.Published, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Document{}, fmt.Errorf("entry %d: %w", id, apperrors.ErrDocumentNotFound)
	}
	if err != nil {
		return engine.Document{}, fmt.Errorf("loading entry %d: %w", id, err)
	}
	if doc.Fields, err = decodeFields(data); err != nil {
		return engine.Document{}, fmt.Errorf("entry %d: %w", id, err)
	}
	return doc, nil
}

// DeleteEntry removes an entry. Its learned rules are archived when archive
// is set and deleted otherwise.
func (s *Store) DeleteEntry(ctx context.Context, id int64, archive bool) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("deleting entry %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("entry %d: %w", id, apperrors.ErrDocumentNotFound)
		}
		return releaseLearned(ctx, tx, id, archive)
	})
}

// CorpusSize counts the stored entries.
func (s *Store) CorpusSize(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}

// Candidates runs the candidate pre-filter.
func (s *Store) Candidates(ctx context.Context, q engine.CandidateQuery) ([]engine.Candidate, error) {
	query, args := candidateSQL(q)
	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying candidates: %w", err)
	}
	defer rows.Close()

	var out []engine.Candidate
	for rows.Next() {
		var (
			c    engine.Candidate
			data []byte
		)
		if err := rows.Scan(&c.ID, &c.Words, &c.Readability, &c.Weight, &c.Published,
			&c.Streams.Stemmed, &c.Streams.Raw, &data); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		if c.Fields, err = decodeFields(data); err != nil {
			return nil, fmt.Errorf("candidate %d: %w", c.ID, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidates: %w", err)
	}
	return out, nil
}

var patternColumns = map[engine.Column]string{
	engine.ColumnText:    "body",
	engine.ColumnStemmed: "stemmed_stream",
	engine.ColumnRaw:     "raw_stream",
}

// candidateSQL builds the candidate query. Newest entries come first so a
// limit keeps the most recent ones.
func candidateSQL(q engine.CandidateQuery) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if col, ok := patternColumns[q.Column]; ok && q.Pattern != "" {
		if q.Fold {
			col = "lower(" + col + ")"
		}
		where = append(where, col+" LIKE "+arg(q.Pattern))
	}
	if q.FeedID != 0 {
		where = append(where, "feed_id = "+arg(q.FeedID))
	}
	if q.Category != "" {
		where = append(where, "lower(category) = lower("+arg(q.Category)+")")
	}
	if q.Within != nil {
		ids := make([]int64, 0, q.Within.GetCardinality())
		it := q.Within.Iterator()
		for it.HasNext() {
			ids = append(ids, int64(it.Next()))
		}
		where = append(where, "id = ANY("+arg(pq.Array(ids))+")")
	}

	var b strings.Builder
	b.WriteString(`SELECT id, word_count, readability, weight, published_at, stemmed_stream, raw_stream, fields FROM entries`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY published_at DESC, id DESC")
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + arg(q.Limit))
	}
	return b.String(), args
}
