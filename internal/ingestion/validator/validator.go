// Package validator checks entries before they are queued, reporting every
// problem per field.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/field"
)

const (
	maxFieldLength = 1048576
	maxLangLength  = 35
	// MaxBatch bounds the entries accepted in one request.
	MaxBatch = 500
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for name, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", name, msg))
	}
	return strings.Join(parts, "; ")
}

// ValidateEntry checks the id, the language tag and every field.
func ValidateEntry(e engine.Entry) error {
	errs := make(map[string]string)
	if e.ID <= 0 {
		errs["id"] = "id must be a positive integer"
	}
	if e.FeedID < 0 {
		errs["feed_id"] = "feed_id must not be negative"
	}
	if len(e.Lang) > maxLangLength {
		errs["lang"] = fmt.Sprintf("lang must be at most %d characters", maxLangLength)
	}

	nonBlank := 0
	for name, text := range e.Fields {
		role, err := field.Parse(name)
		if err != nil || role == field.Any {
			errs["fields."+name] = "unknown field"
			continue
		}
		if len(text) > maxFieldLength {
			errs["fields."+name] = fmt.Sprintf("must be at most %d bytes", maxFieldLength)
			continue
		}
		if strings.TrimSpace(text) != "" {
			nonBlank++
		}
	}
	if nonBlank == 0 {
		errs["fields"] = "at least one non-blank field is required"
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateBatch validates every entry. Keys of the returned error are
// prefixed with the entry's position.
func ValidateBatch(entries []engine.Entry) error {
	errs := make(map[string]string)
	if len(entries) == 0 {
		errs["entries"] = "at least one entry is required"
	}
	if len(entries) > MaxBatch {
		errs["entries"] = fmt.Sprintf("at most %d entries per request", MaxBatch)
	}
	seen := make(map[int64]int, len(entries))
	for i, e := range entries {
		if j, dup := seen[e.ID]; dup && e.ID > 0 {
			errs[fmt.Sprintf("[%d].id", i)] = fmt.Sprintf("duplicates entry %d", j)
		}
		seen[e.ID] = i
		var verr *ValidationError
		if errors.As(ValidateEntry(e), &verr) {
			for k, v := range verr.Fields {
				errs[fmt.Sprintf("[%d].%s", i, k)] = v
			}
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
