package engine

import (
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/field"
	apperrors "github.com/Adithya-Monish-Kumar-K/feedrank/pkg/errors"
)

// Entry is the wire form of a document: fields keyed by name.
type Entry struct {
	ID        int64             `json:"id"`
	FeedID    int64             `json:"feed_id,omitempty"`
	Category  string            `json:"category,omitempty"`
	Lang      string            `json:"lang,omitempty"`
	Published time.Time         `json:"published"`
	Fields    map[string]string `json:"fields"`
	// Learn marks the entry as a learning context. Rules mined from it are
	// stored and rank other entries.
	Learn bool `json:"learn,omitempty"`
}

// Document validates the entry and converts it.
func (e Entry) Document() (Document, error) {
	if e.ID <= 0 {
		return Document{}, fmt.Errorf("entry id %d: %w", e.ID, apperrors.ErrInvalidInput)
	}
	fields, err := field.FromMap(e.Fields)
	if err != nil {
		return Document{}, fmt.Errorf("entry %d: %w: %v", e.ID, apperrors.ErrInvalidInput, err)
	}
	return Document{
		ID:        e.ID,
		FeedID:    e.FeedID,
		Category:  e.Category,
		Lang:      e.Lang,
		Published: e.Published,
		Fields:    fields,
	}, nil
}
