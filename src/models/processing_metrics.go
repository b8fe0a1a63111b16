package models

// MProcessingMetrics represents the performance metrics for the detection pipeline.
type MProcessingMetrics struct {
	DetectionTimeSeconds float64 `json:"detection_time_seconds"`
	StreamsProcessed     int     `json:"streams_processed"`
	LevelsDetected       int     `json:"levels_detected"`
	SupersededSnapshots  int     `json:"superseded_snapshots"`
}
