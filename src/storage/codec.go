package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"level-observer/src/models"
)

// snapshotColumns is the select list shared by both backends. The order
// must match scanSnapshot.
const snapshotColumns = `id, symbol, quote, resolution, levels, average_range, candle_count, current_price, series_from, series_to, computed_at`

// Symbol row types recorded in the symbols table.
const (
	SymbolTypeClassic = "classic"
	SymbolTypeRef     = "postgres_ref"
)

const cleanupLogTemplate = "%s: cleaning up data older than %d days (timestamp < %d)"

// -----------------------------------------------------------------------------

func encodeLevels(levels []models.MLevel) (string, error) {
	if levels == nil {
		levels = []models.MLevel{}
	}
	b, err := json.Marshal(levels)
	if err != nil {
		return "", fmt.Errorf("encode levels: %w", err)
	}
	return string(b), nil
}

// -----------------------------------------------------------------------------

func scanSnapshot(row *sql.Row) (*models.MLevelSnapshot, error) {
	var (
		s          models.MLevelSnapshot
		levelsJSON string
		computedMs int64
	)
	err := row.Scan(
		&s.ID, &s.Stream.Symbol, &s.Stream.Quote, &s.Stream.Resolution,
		&levelsJSON, &s.AverageRange, &s.CandleCount, &s.CurrentPrice,
		&s.SeriesFrom, &s.SeriesTo, &computedMs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(levelsJSON), &s.Levels); err != nil {
		return nil, fmt.Errorf("decode levels of snapshot %s: %w", s.ID, err)
	}
	s.ComputedAt = time.UnixMilli(computedMs).UTC()
	return &s, nil
}

// retentionCutoff returns the Unix second before which rows are expired.
func retentionCutoff(cfg *models.MConfig, now time.Time) (int, int64) {
	days := cfg.DataSource.DataRetentionDays
	return days, now.UTC().AddDate(0, 0, -days).Unix()
}
