package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/field"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/rules"
)

const ruleColumns = `id, name, type, feed_id, category, field, search, case_insensitive, lang,
	weight, additive, learned, flag, context_id, archived_weight`

// Rules loads the rules scoped to a feed and category, plus the unscoped
// ones. Language scoping is left to rules.Rule.Applies since rule
// languages may be globs.
func (s *Store) Rules(ctx context.Context, scope engine.RuleScope) ([]rules.Rule, error) {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT `+ruleColumns+` FROM rules
		WHERE (feed_id = 0 OR feed_id = $1)
		  AND (category = '' OR lower(category) = lower($2))
		ORDER BY id`,
		scope.FeedID, scope.Category,
	)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	var out []rules.Rule
	for rows.Next() {
		var (
			r         rules.Rule
			typ, role int
		)
		if err := rows.Scan(&r.ID, &r.Name, &typ, &r.FeedID, &r.Category, &role, &r.Search,
			&r.CaseInsensitive, &r.Lang, &r.Weight, &r.Additive, &r.Learned, &r.Flag,
			&r.ContextID, &r.ArchivedWeight); err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		r.Type, r.Field = rules.Type(typ), field.Role(role)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rules: %w", err)
	}
	return out, nil
}

// SaveRule validates and inserts a rule, returning its id.
func (s *Store) SaveRule(ctx context.Context, r rules.Rule) (int64, error) {
	if err := rules.Validate(r); err != nil {
		return 0, err
	}
	var id int64
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = insertRule(ctx, tx, r)
		return err
	})
	return id, err
}

// ReplaceLearned swaps the learned rules of a context entry for rs in one
// transaction.
func (s *Store) ReplaceLearned(ctx context.Context, contextID int64, rs []rules.Rule) error {
	keyed := make([]rules.Rule, len(rs))
	for i, r := range rs {
		r.ContextID = contextID
		if err := rules.Validate(r); err != nil {
			return err
		}
		keyed[i] = r
	}
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM rules WHERE learned AND context_id = $1`, contextID); err != nil {
			return fmt.Errorf("clearing learned rules of %d: %w", contextID, err)
		}
		for _, r := range keyed {
			if _, err := insertRule(ctx, tx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("learned rules replaced", "context_id", contextID, "rules", len(rs))
	return nil
}

// DeleteByContext drops or archives the learned rules of a context entry.
func (s *Store) DeleteByContext(ctx context.Context, contextID int64, archive bool) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		return releaseLearned(ctx, tx, contextID, archive)
	})
}

func releaseLearned(ctx context.Context, tx *sql.Tx, contextID int64, archive bool) error {
	query := `DELETE FROM rules WHERE learned AND context_id = $1`
	if archive {
		query = `UPDATE rules
			SET archived_weight = CASE WHEN archived_weight = 0 THEN weight ELSE archived_weight END,
			    context_id = 0
			WHERE learned AND context_id = $1`
	}
	if _, err := tx.ExecContext(ctx, query, contextID); err != nil {
		return fmt.Errorf("releasing learned rules of %d: %w", contextID, err)
	}
	return nil
}

func insertRule(ctx context.Context, tx *sql.Tx, r rules.Rule) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO rules (name, type, feed_id, category, field, search, case_insensitive, lang,
		                   weight, additive, learned, flag, context_id, archived_weight)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		r.Name, int(r.Type), r.FeedID, r.Category, int(r.Field), r.Search, r.CaseInsensitive, r.Lang,
		r.Weight, r.Additive, r.Learned, r.Flag, r.ContextID, r.ArchivedWeight,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting rule %q: %w", r.Name, err)
	}
	return id, nil
}
