package interfaces

import "level-observer/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for storage operations.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// RegisterSymbols records which symbols a source tracks in a quote currency.
	RegisterSymbols(source, quote string, symbols []string) error

	// -----------------------------------------------------------------------------

	// SaveCandles upserts a candle series for one stream.
	SaveCandles(stream models.MStreamKey, candles []models.MCandle) error

	// -----------------------------------------------------------------------------

	// SaveLevelSnapshot stores the result of one detection pass.
	SaveLevelSnapshot(snapshot models.MLevelSnapshot) error

	// -----------------------------------------------------------------------------

	// LoadLatestSnapshot returns the stored snapshot with the newest series
	// end for stream, or nil when there is none.
	LoadLatestSnapshot(stream models.MStreamKey) (*models.MLevelSnapshot, error)

	// -----------------------------------------------------------------------------

	// CleanupOldData removes data older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
