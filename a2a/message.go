package a2a

import (
	"fmt"
	"time"
)

// Method names understood by the stock Terra Constellata agents. Handlers
// for additional methods can be registered under any non-empty name.
const (
	MethodGeospatialAnomaly  = "GEOSPATIAL_ANOMALY_IDENTIFIED"
	MethodInspirationRequest = "INSPIRATION_REQUEST"
)

// Message is a validated A2A protocol message. The two-stage validation
// contract is: structural decoding happens when the params are
// unmarshaled into the concrete type; Validate then applies the business
// rules. A message that decodes but fails Validate must be rejected with
// a distinguishable error.
type Message interface {
	// ID returns the protocol-level message id (distinct from the
	// JSON-RPC request id).
	ID() string
	// Sender returns the name of the originating agent.
	Sender() string
	// Validate applies the business rules for the message type.
	Validate() error
}

// BaseMessage carries the fields common to every A2A message.
type BaseMessage struct {
	MessageID   string    `json:"message_id"`
	SenderAgent string    `json:"sender_agent"`
	Timestamp   time.Time `json:"timestamp"`
}

func (m *BaseMessage) ID() string     { return m.MessageID }
func (m *BaseMessage) Sender() string { return m.SenderAgent }

func (m *BaseMessage) validateBase() error {
	if m.MessageID == "" {
		return fmt.Errorf("message_id must not be empty")
	}
	if m.SenderAgent == "" {
		return fmt.Errorf("sender_agent must not be empty")
	}
	if m.Timestamp.IsZero() {
		return fmt.Errorf("timestamp must be set")
	}
	return nil
}

// GeospatialAnomaly reports an anomaly detected at a geographic location.
type GeospatialAnomaly struct {
	BaseMessage
	AnomalyType string  `json:"anomaly_type"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude" jsonschema:"minimum=-90,maximum=90"`
	Longitude   float64 `json:"longitude" jsonschema:"minimum=-180,maximum=180"`
	Confidence  float64 `json:"confidence" jsonschema:"minimum=0,maximum=1"`
	SourceURL   string  `json:"source_url,omitempty"`
}

func (m *GeospatialAnomaly) Validate() error {
	if err := m.validateBase(); err != nil {
		return err
	}
	if m.Description == "" {
		return fmt.Errorf("description must not be empty")
	}
	if m.Latitude < -90 || m.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", m.Latitude)
	}
	if m.Longitude < -180 || m.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", m.Longitude)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0, 1]", m.Confidence)
	}
	return nil
}

// InspirationRequest asks another agent for creative input about the
// given context.
type InspirationRequest struct {
	BaseMessage
	Context     string   `json:"context"`
	TargetAgent string   `json:"target_agent,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
}

func (m *InspirationRequest) Validate() error {
	if err := m.validateBase(); err != nil {
		return err
	}
	if m.Context == "" {
		return fmt.Errorf("context must not be empty")
	}
	return nil
}
