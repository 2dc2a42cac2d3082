// Package ingestion accepts feed entries over HTTP and queues them on the
// entry-process topic for the indexer.
package ingestion

// IngestResponse is returned once entries are queued.
type IngestResponse struct {
	IDs    []int64 `json:"ids"`
	Status string  `json:"status"`
}

// StatusQueued reports that entries were handed to the broker.
const StatusQueued = "QUEUED"
