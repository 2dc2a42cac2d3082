// Package handler serves the entry intake endpoints.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/feedrank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/respond"
)

const maxBodyBytes = 8 << 20

// Queue accepts validated entries and deletions.
type Queue interface {
	Submit(ctx context.Context, entries []engine.Entry) (*ingestion.IngestResponse, error)
	Delete(ctx context.Context, id int64, archive bool) (*ingestion.IngestResponse, error)
}

type Handler struct {
	queue Queue
}

func New(queue Queue) *Handler {
	return &Handler{queue: queue}
}

// Ingest accepts one entry object or an array of entries.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	entries, err := decodeEntries(w, r)
	if err != nil {
		respond.Error(w, r, apperrors.Invalid("invalid JSON body: %v", err))
		return
	}
	if err := validator.ValidateBatch(entries); err != nil {
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			respond.Invalid(w, r, "validation failed", verr.Fields)
			return
		}
		respond.Error(w, r, apperrors.Invalid("%v", err))
		return
	}

	resp, err := h.queue.Submit(r.Context(), entries)
	if err != nil {
		respond.Error(w, r, fmt.Errorf("queueing %d entries: %w", len(entries), err))
		return
	}
	logger.FromContext(r.Context()).Info("entries queued", "count", len(resp.IDs))
	respond.JSON(w, r, http.StatusAccepted, resp)
}

// Delete queues removal of the entry named by the {id} path value.
// ?archive=true keeps its learned rules.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(w, r, apperrors.Invalid("entry id must be a positive integer"))
		return
	}
	archive, _ := strconv.ParseBool(r.URL.Query().Get("archive"))

	resp, err := h.queue.Delete(r.Context(), id, archive)
	if err != nil {
		respond.Error(w, r, fmt.Errorf("queueing delete of entry %d: %w", id, err))
		return
	}
	respond.JSON(w, r, http.StatusAccepted, resp)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeEntries(w http.ResponseWriter, r *http.Request) ([]engine.Entry, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var entries []engine.Entry
		err := json.Unmarshal(raw, &entries)
		return entries, err
	}
	var e engine.Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	return []engine.Entry{e}, nil
}
