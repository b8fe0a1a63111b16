package interfaces

import "level-observer/src/models"

// -----------------------------------------------------------------------------
// IDataExchanger defining the interface for sharing data with external systems (Server/Push).
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// -----------------------------------------------------------------------------
	// PublishSnapshot records a detection result and pushes a LEVELS message.
	PublishSnapshot(snapshot models.MLevelSnapshot)

	// -----------------------------------------------------------------------------
	// PublishPrice records a live price and pushes a PRICE message with
	// annotations recomputed against it.
	PublishPrice(stream models.MStreamKey, price float64)

	// -----------------------------------------------------------------------------
	// UpdateMetrics replaces the processing metrics served to clients.
	UpdateMetrics(metrics models.MProcessingMetrics)

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}
