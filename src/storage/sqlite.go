package storage

import (
	"database/sql"
	"fmt"
	"time"

	"level-observer/src/logger"
	"level-observer/src/models"

	_ "modernc.org/sqlite"
)

// SQLite batch constants
const (
	sqliteMaxVars   = 32000
	paramsPerRow    = 9
	sqliteBatchSize = sqliteMaxVars / paramsPerRow // ~3555 rows
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

// createTables keeps existing rows so snapshots survive a restart.
func (d *AsyncSQLiteDB) createTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			symbol TEXT,
			quote TEXT,
			resolution TEXT,
			timestamp INTEGER,
			open REAL,
			high REAL,
			low REAL,
			close REAL,
			volume REAL,
			PRIMARY KEY (symbol, quote, resolution, timestamp)
		)`,
		`CREATE TABLE IF NOT EXISTS level_snapshots (
			id TEXT PRIMARY KEY,
			symbol TEXT,
			quote TEXT,
			resolution TEXT,
			levels TEXT,
			average_range REAL,
			candle_count INTEGER,
			current_price REAL,
			series_from INTEGER,
			series_to INTEGER,
			computed_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_level_snapshots_stream
			ON level_snapshots (symbol, quote, resolution, series_to)`,
		`CREATE TABLE IF NOT EXISTS symbols (
			source_name TEXT,
			quote TEXT,
			symbol TEXT,
			type TEXT,
			updated_at INTEGER,
			PRIMARY KEY (source_name, quote, symbol)
		)`,
	}

	for _, stmt := range statements {
		if _, err := d.DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create sqlite schema: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// RegisterSymbols replaces the symbol list recorded for source and quote.
func (d *AsyncSQLiteDB) RegisterSymbols(source, quote string, symbols []string) error {
	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM symbols WHERE source_name = ? AND quote = ?`, source, quote); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO symbols (source_name, quote, symbol, type, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (source_name, quote, symbol) DO UPDATE SET updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for _, sym := range symbols {
		if _, err := stmt.Exec(source, quote, sym, SymbolTypeClassic, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

// SaveCandles upserts the series in transactions of sqliteBatchSize rows.
func (d *AsyncSQLiteDB) SaveCandles(stream models.MStreamKey, candles []models.MCandle) error {
	for start := 0; start < len(candles); start += sqliteBatchSize {
		end := min(start+sqliteBatchSize, len(candles))
		if err := d.saveCandleBatch(stream, candles[start:end]); err != nil {
			return fmt.Errorf("save candles %s: %w", stream, err)
		}
	}
	return nil
}

func (d *AsyncSQLiteDB) saveCandleBatch(stream models.MStreamKey, batch []models.MCandle) error {
	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO candles (symbol, quote, resolution, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, quote, resolution, timestamp) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range batch {
		if _, err := stmt.Exec(stream.Symbol, stream.Quote, stream.Resolution, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveLevelSnapshot(snapshot models.MLevelSnapshot) error {
	levels, err := encodeLevels(snapshot.Levels)
	if err != nil {
		return err
	}

	_, err = d.DB.Exec(`
		INSERT INTO level_snapshots (`+snapshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`,
		snapshot.ID, snapshot.Stream.Symbol, snapshot.Stream.Quote, snapshot.Stream.Resolution,
		levels, snapshot.AverageRange, snapshot.CandleCount, snapshot.CurrentPrice,
		snapshot.SeriesFrom, snapshot.SeriesTo, snapshot.ComputedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snapshot.Stream, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) LoadLatestSnapshot(stream models.MStreamKey) (*models.MLevelSnapshot, error) {
	row := d.DB.QueryRow(`
		SELECT `+snapshotColumns+`
		FROM level_snapshots
		WHERE symbol = ? AND quote = ? AND resolution = ?
		ORDER BY series_to DESC, computed_at DESC
		LIMIT 1
	`, stream.Symbol, stream.Quote, stream.Resolution)
	return scanSnapshot(row)
}

// -----------------------------------------------------------------------------

// CleanupOldData drops expired candles and snapshots. The newest snapshot of
// each stream is always kept.
func (d *AsyncSQLiteDB) CleanupOldData() error {
	days, cutoff := retentionCutoff(d.Config, time.Now())
	d.Logger.Info(cleanupLogTemplate, "SQLite", days, cutoff)

	var lastErr error
	if _, err := d.DB.Exec(`DELETE FROM candles WHERE timestamp < ?`, cutoff); err != nil {
		d.Logger.Error("Cleanup candles error: %v", err)
		lastErr = fmt.Errorf("cleanup candles: %w", err)
	}

	_, err := d.DB.Exec(`
		DELETE FROM level_snapshots
		WHERE series_to < ?
		AND id NOT IN (
			SELECT s.id FROM level_snapshots s
			WHERE s.series_to = (
				SELECT MAX(t.series_to) FROM level_snapshots t
				WHERE t.symbol = s.symbol AND t.quote = s.quote AND t.resolution = s.resolution
			)
		)
	`, cutoff)
	if err != nil {
		d.Logger.Error("Cleanup level_snapshots error: %v", err)
		lastErr = fmt.Errorf("cleanup level_snapshots: %w", err)
	}

	return lastErr
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
