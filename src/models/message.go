package models

import "fmt"

// MMessageType tags a WebSocket message. The set is closed: every consumer
// switches over all three kinds.
type MMessageType string

const (
	// MessageInitial carries the full filtered state on connect/subscribe.
	MessageInitial MMessageType = "INITIAL"
	// MessageLevels carries a freshly detected snapshot for one stream.
	MessageLevels MMessageType = "LEVELS"
	// MessagePrice carries a live price tick and annotations recomputed from it.
	MessagePrice MMessageType = "PRICE"
)

// Validate rejects tags outside the closed set.
func (t MMessageType) Validate() error {
	switch t {
	case MessageInitial, MessageLevels, MessagePrice:
		return nil
	default:
		return fmt.Errorf("unknown message type %q", string(t))
	}
}

// -----------------------------------------------------------------------------

// MServerMessage is the envelope pushed to WebSocket clients. Which fields
// are set depends on Type.
type MServerMessage struct {
	Type        MMessageType       `json:"type"`
	Timestamp   int64              `json:"timestamp"`
	Stream      *MStreamKey        `json:"stream,omitempty"`
	Snapshot    *MLevelSnapshot    `json:"snapshot,omitempty"`
	Price       float64            `json:"price,omitempty"`
	Annotations []MChartAnnotation `json:"annotations,omitempty"`
	State       *MLatestData       `json:"state,omitempty"`
}
