// Package handlers provides the stock A2A method handlers and wires them
// into a dispatcher.
package handlers

import (
	"context"
	"fmt"

	"github.com/terra-constellata/a2a-server-go/a2a"
	"github.com/terra-constellata/a2a-server-go/dispatch"
	"github.com/terra-constellata/a2a-server-go/storage"
)

// AnomalyResult is the response payload of GEOSPATIAL_ANOMALY_IDENTIFIED.
type AnomalyResult struct {
	Status    string `json:"status"`
	AnomalyID string `json:"anomaly_id"`
}

// Anomaly returns the handler for GEOSPATIAL_ANOMALY_IDENTIFIED: it
// persists the reported anomaly and acknowledges with its id.
func Anomaly(store storage.AnomalyStore) dispatch.Method {
	return dispatch.Typed(func(ctx context.Context, msg *a2a.GeospatialAnomaly) (any, error) {
		rec := storage.AnomalyRecord{
			MessageID:   msg.MessageID,
			SenderAgent: msg.SenderAgent,
			ObservedAt:  msg.Timestamp,
			AnomalyType: msg.AnomalyType,
			Description: msg.Description,
			Latitude:    msg.Latitude,
			Longitude:   msg.Longitude,
			Confidence:  msg.Confidence,
			SourceURL:   msg.SourceURL,
		}

		if err := store.Put(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to store anomaly %s: %w", msg.MessageID, err)
		}

		return AnomalyResult{Status: "processed", AnomalyID: msg.MessageID}, nil
	})
}

// InspirationResult is the response payload of INSPIRATION_REQUEST.
type InspirationResult struct {
	Inspiration string                  `json:"inspiration"`
	Sources     []storage.AnomalyRecord `json:"sources,omitempty"`
}

// recentSourceLimit bounds how many stored anomalies an inspiration
// response cites.
const recentSourceLimit = 5

// Inspiration returns the handler for INSPIRATION_REQUEST: it consults
// recently stored anomalies and offers them as creative source material
// for the requested context.
func Inspiration(store storage.AnomalyStore) dispatch.Method {
	return dispatch.Typed(func(ctx context.Context, msg *a2a.InspirationRequest) (any, error) {
		sources, err := store.List(ctx, recentSourceLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to list anomalies: %w", err)
		}

		inspiration := fmt.Sprintf("Consider the context %q", msg.Context)
		if len(sources) > 0 {
			inspiration = fmt.Sprintf("%s alongside %d recently observed anomalies", inspiration, len(sources))
		}

		return InspirationResult{
			Inspiration: inspiration,
			Sources:     sources,
		}, nil
	})
}

// RegisterAll registers the stock handlers on the dispatcher.
func RegisterAll(d *dispatch.Dispatcher, store storage.AnomalyStore) error {
	if err := d.Register(a2a.MethodGeospatialAnomaly, Anomaly(store)); err != nil {
		return err
	}
	return d.Register(a2a.MethodInspirationRequest, Inspiration(store))
}
