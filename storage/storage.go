// Package storage defines the persistence interface for anomaly reports
// received over the A2A protocol, with in-memory and Redis-backed
// implementations in subpackages.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("anomaly record not found")

// AnomalyRecord is the persisted form of a geospatial anomaly message.
type AnomalyRecord struct {
	MessageID   string    `json:"message_id"`
	SenderAgent string    `json:"sender_agent"`
	ObservedAt  time.Time `json:"observed_at"`
	AnomalyType string    `json:"anomaly_type"`
	Description string    `json:"description"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Confidence  float64   `json:"confidence"`
	SourceURL   string    `json:"source_url,omitempty"`
}

// AnomalyStore persists anomaly records keyed by message id. Put is
// idempotent per message id: storing the same id twice overwrites.
type AnomalyStore interface {
	// Put stores the record, overwriting any record with the same message id.
	Put(ctx context.Context, rec AnomalyRecord) error

	// Get retrieves the record with the given message id, or ErrNotFound.
	Get(ctx context.Context, messageID string) (*AnomalyRecord, error)

	// List returns up to limit records, most recently stored first.
	List(ctx context.Context, limit int) ([]AnomalyRecord, error)

	// Close releases any resources held by the store.
	Close() error
}
