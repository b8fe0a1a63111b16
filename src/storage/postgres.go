package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"level-observer/src/logger"
	"level-observer/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewPostgresDB names the schema after the running executable.
func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}

	return &PostgresDB{
		Config: cfg,
		Schema: SchemaName(exe),
		Logger: log,
	}, nil
}

// SchemaName derives a schema name from an executable path.
func SchemaName(exePath string) string {
	name := filepath.Base(exePath)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	// Expands schema.table.field references in the shared config so the
	// sources only ever see plain tickers.
	for i := range d.Config.DataSource.Sources {
		srcCfg := &d.Config.DataSource.Sources[i]
		classicSymbols, err := d.FilterAndRegisterSymbols(srcCfg.Name, srcCfg.Quote, srcCfg.Symbols)
		if err != nil {
			d.Logger.Error("PostgresDB: Failed to filter/register symbols for source %s: %v", srcCfg.Name, err)
		} else {
			srcCfg.Symbols = classicSymbols
		}
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) table(name string) string {
	return fmt.Sprintf(`"%s"."%s"`, d.Schema, name)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				symbol TEXT,
				quote TEXT,
				resolution TEXT,
				timestamp BIGINT,
				open DOUBLE PRECISION,
				high DOUBLE PRECISION,
				low DOUBLE PRECISION,
				close DOUBLE PRECISION,
				volume DOUBLE PRECISION,
				PRIMARY KEY (symbol, quote, resolution, timestamp)
			);
		`, d.table("candles")),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				symbol TEXT,
				quote TEXT,
				resolution TEXT,
				levels JSONB,
				average_range DOUBLE PRECISION,
				candle_count INTEGER,
				current_price DOUBLE PRECISION,
				series_from BIGINT,
				series_to BIGINT,
				computed_at BIGINT
			);
		`, d.table("level_snapshots")),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS level_snapshots_stream_idx
			ON %s (symbol, quote, resolution, series_to);
		`, d.table("level_snapshots")),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				source_name TEXT,
				quote TEXT,
				symbol TEXT,
				type TEXT,
				ref_schema TEXT,
				ref_table TEXT,
				ref_field TEXT,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (source_name, quote, symbol)
			);
		`, d.table("symbols")),
	}

	for _, stmt := range statements {
		if _, err := d.DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create postgres schema objects: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveCandles(stream models.MStreamKey, candles []models.MCandle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (symbol, quote, resolution, timestamp, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, quote, resolution, timestamp) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`, d.table("candles"))
	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.Exec(stream.Symbol, stream.Quote, stream.Resolution, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return fmt.Errorf("save candles %s: %w", stream, err)
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveLevelSnapshot(snapshot models.MLevelSnapshot) error {
	levels, err := encodeLevels(snapshot.Levels)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`, d.table("level_snapshots"), snapshotColumns)

	_, err = d.DB.Exec(query,
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

func (d *PostgresDB) LoadLatestSnapshot(stream models.MStreamKey) (*models.MLevelSnapshot, error) {
	// levels is JSONB; cast back to text so the shared scanner can decode it.
	columns := strings.Replace(snapshotColumns, "levels,", "levels::text,", 1)
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE symbol = $1 AND quote = $2 AND resolution = $3
		ORDER BY series_to DESC, computed_at DESC
		LIMIT 1
	`, columns, d.table("level_snapshots"))

	return scanSnapshot(d.DB.QueryRow(query, stream.Symbol, stream.Quote, stream.Resolution))
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) CleanupOldData() error {
	days, cutoff := retentionCutoff(d.Config, time.Now())
	d.Logger.Info(cleanupLogTemplate, "PostgresDB", days, cutoff)

	var lastErr error
	if _, err := d.DB.Exec(fmt.Sprintf(`DELETE FROM %s WHERE timestamp < $1`, d.table("candles")), cutoff); err != nil {
		d.Logger.Error("Cleanup candles error: %v", err)
		lastErr = fmt.Errorf("cleanup candles: %w", err)
	}

	snapshots := d.table("level_snapshots")
	query := fmt.Sprintf(`
		DELETE FROM %[1]s
		WHERE series_to < $1
		AND id NOT IN (
			SELECT s.id FROM %[1]s s
			WHERE s.series_to = (
				SELECT MAX(t.series_to) FROM %[1]s t
				WHERE t.symbol = s.symbol AND t.quote = s.quote AND t.resolution = s.resolution
			)
		)
	`, snapshots)
	if _, err := d.DB.Exec(query, cutoff); err != nil {
		d.Logger.Error("Cleanup %s error: %v", snapshots, err)
		lastErr = fmt.Errorf("cleanup %s: %w", snapshots, err)
	}

	return lastErr
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
