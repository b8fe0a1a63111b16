package models

// -----------------------------------------------------------------------------
// Server State Structure
// -----------------------------------------------------------------------------

// MLatestData is the server-side view of every stream. Snapshots and Prices
// are keyed by MStreamKey.String().
type MLatestData struct {
	Snapshots         map[string]MLevelSnapshot `json:"snapshots"`
	Prices            map[string]float64        `json:"prices"`
	Timestamp         int64                     `json:"timestamp"`
	ProcessingMetrics MProcessingMetrics        `json:"processing_metrics"`
}

// -----------------------------------------------------------------------------
// SubscribeCommand for client messages
// -----------------------------------------------------------------------------

type MSubscribeCommand struct {
	Command    string   `json:"command"`
	Symbols    []string `json:"symbols"`
	Resolution string   `json:"resolution"`
}
