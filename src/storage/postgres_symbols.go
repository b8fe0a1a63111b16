package storage

import (
	"fmt"
	"regexp"
	"time"
)

// Symbol registration specific to Postgres. A configured symbol written as
// schema.table.field is a reference: the tickers are read from that column.

var pgSymbolRegex = regexp.MustCompile(`^(\w+)\.(\w+)\.(\w+)$`)

// SymbolMetadata is one row of the symbols table.
type SymbolMetadata struct {
	Symbol     string
	Type       string
	RefSchema  string
	RefTable   string
	RefField   string
	SourceName string
	Quote      string
}

// -----------------------------------------------------------------------------

// ParseSymbolRef splits a schema.table.field reference. ok is false for a
// plain ticker.
func ParseSymbolRef(sym string) (schema, table, field string, ok bool) {
	matches := pgSymbolRegex.FindStringSubmatch(sym)
	if len(matches) != 4 {
		return "", "", "", false
	}
	return matches[1], matches[2], matches[3], true
}

// -----------------------------------------------------------------------------

// FilterAndRegisterSymbols expands references, registers every symbol and
// returns the plain tickers.
func (d *PostgresDB) FilterAndRegisterSymbols(sourceName, quote string, rawSymbols []string) ([]string, error) {
	var classicSymbols []string
	var rows []SymbolMetadata

	classic := func(sym string) {
		classicSymbols = append(classicSymbols, sym)
		rows = append(rows, SymbolMetadata{
			Symbol:     sym,
			Type:       SymbolTypeClassic,
			SourceName: sourceName,
			Quote:      quote,
		})
	}

	for _, sym := range rawSymbols {
		schema, table, field, ok := ParseSymbolRef(sym)
		if !ok {
			classic(sym)
			continue
		}

		rows = append(rows, SymbolMetadata{
			Symbol:     sym,
			Type:       SymbolTypeRef,
			RefSchema:  schema,
			RefTable:   table,
			RefField:   field,
			SourceName: sourceName,
			Quote:      quote,
		})

		loaded, err := d.GetSymbolsFromTable(schema, table, field)
		if err != nil {
			return classicSymbols, fmt.Errorf("failed to load symbols from %s: %w", sym, err)
		}
		for _, s := range loaded {
			classic(s)
		}
	}

	if err := d.registerSymbolRows(rows); err != nil {
		return classicSymbols, fmt.Errorf("failed to register symbols: %w", err)
	}

	return classicSymbols, nil
}

// -----------------------------------------------------------------------------

// RegisterSymbols replaces the plain tickers recorded for source and quote.
// Reference rows are left alone.
func (d *PostgresDB) RegisterSymbols(source, quote string, symbols []string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE source_name = $1 AND quote = $2 AND type = $3`, d.table("symbols"))
	if _, err := d.DB.Exec(query, source, quote, SymbolTypeClassic); err != nil {
		return err
	}

	rows := make([]SymbolMetadata, 0, len(symbols))
	for _, sym := range symbols {
		rows = append(rows, SymbolMetadata{Symbol: sym, Type: SymbolTypeClassic, SourceName: source, Quote: quote})
	}
	return d.registerSymbolRows(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) registerSymbolRows(symbols []SymbolMetadata) error {
	if len(symbols) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (source_name, quote, symbol, type, ref_schema, ref_table, ref_field, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source_name, quote, symbol) DO UPDATE SET
			type = EXCLUDED.type,
			ref_schema = EXCLUDED.ref_schema,
			ref_table = EXCLUDED.ref_table,
			ref_field = EXCLUDED.ref_field,
			updated_at = EXCLUDED.updated_at
	`, d.table("symbols"))

	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, s := range symbols {
		if _, err := stmt.Exec(s.SourceName, s.Quote, s.Symbol, s.Type, s.RefSchema, s.RefTable, s.RefField, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

// GetSymbolsFromTable reads non-empty values of one column. Identifiers have
// already been restricted to \w+ by ParseSymbolRef and are quoted here.
func (d *PostgresDB) GetSymbolsFromTable(schema, table, field string) ([]string, error) {
	query := fmt.Sprintf(`SELECT "%s" FROM "%s"."%s"`, field, schema, table)

	rows, err := d.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		if s != "" {
			symbols = append(symbols, s)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return symbols, nil
}
