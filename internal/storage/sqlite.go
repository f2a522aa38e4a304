// Package storage provides persistent storage for tuner readings and signal telemetry.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Reading represents a stored tuner reading with its parsed result.
type Reading struct {
	ID         int64
	Timestamp  time.Time
	DeviceID   string
	Tuner      int
	Var        string
	ParserType string
	Frequency  int64
	RawValue   string
	ParsedJSON string
	Truncated  bool
}

// LocalDB wraps a SQLite database connection for reading storage.
type LocalDB struct {
	db *sql.DB
}

// OpenLocal opens or creates a SQLite database at the given path.
func OpenLocal(path string) (*LocalDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	// Create schema.
	if err := createLocalSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &LocalDB{db: db}, nil
}

// Close closes the database connection.
func (d *LocalDB) Close() error {
	return d.db.Close()
}

// createLocalSchema creates the database tables and indices.
func createLocalSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		device_id TEXT NOT NULL,
		tuner INTEGER NOT NULL,
		var TEXT NOT NULL,
		parser_type TEXT NOT NULL,
		frequency INTEGER,
		raw_value TEXT NOT NULL,
		parsed_json TEXT NOT NULL,
		truncated INTEGER DEFAULT 0,
		created_at TEXT DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_readings_device ON readings(device_id);
	CREATE INDEX IF NOT EXISTS idx_readings_var ON readings(var);
	CREATE INDEX IF NOT EXISTS idx_readings_parser_type ON readings(parser_type);
	CREATE INDEX IF NOT EXISTS idx_readings_frequency ON readings(frequency);
	CREATE INDEX IF NOT EXISTS idx_readings_timestamp ON readings(timestamp);

	-- FTS5 virtual table for full-text search on raw reading text.
	CREATE VIRTUAL TABLE IF NOT EXISTS readings_fts USING fts5(
		raw_value,
		content='readings',
		content_rowid='id'
	);

	-- Triggers to keep FTS index in sync.
	CREATE TRIGGER IF NOT EXISTS readings_ai AFTER INSERT ON readings BEGIN
		INSERT INTO readings_fts(rowid, raw_value) VALUES (new.id, new.raw_value);
	END;

	CREATE TRIGGER IF NOT EXISTS readings_ad AFTER DELETE ON readings BEGIN
		INSERT INTO readings_fts(readings_fts, rowid, raw_value) VALUES('delete', old.id, old.raw_value);
	END;

	CREATE TRIGGER IF NOT EXISTS readings_au AFTER UPDATE ON readings BEGIN
		INSERT INTO readings_fts(readings_fts, rowid, raw_value) VALUES('delete', old.id, old.raw_value);
		INSERT INTO readings_fts(rowid, raw_value) VALUES (new.id, new.raw_value);
	END;
	`

	_, err := db.Exec(schema)
	return err
}

// InsertParams contains the parameters for inserting a reading.
type InsertParams struct {
	Timestamp  string
	DeviceID   string
	Tuner      int
	Var        string
	ParserType string
	Frequency  int64
	RawValue   string
	ParsedData interface{}
	Truncated  bool
}

// Insert stores a parsed reading in the database.
func (d *LocalDB) Insert(p InsertParams) (int64, error) {
	parsedJSON, err := json.Marshal(p.ParsedData)
	if err != nil {
		return 0, fmt.Errorf("marshal parsed data: %w", err)
	}

	result, err := d.db.Exec(`
		INSERT INTO readings (timestamp, device_id, tuner, var, parser_type, frequency, raw_value, parsed_json, truncated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Timestamp, p.DeviceID, p.Tuner, p.Var, p.ParserType, p.Frequency, p.RawValue, string(parsedJSON), p.Truncated)
	if err != nil {
		return 0, fmt.Errorf("insert reading: %w", err)
	}

	return result.LastInsertId()
}

// QueryParams contains filtering options for querying readings.
type QueryParams struct {
	ID         int64  // Filter by specific reading ID.
	DeviceID   string // Filter by device id (exact match).
	Var        string // Filter by variable name (exact match).
	ParserType string // Filter by parser type (exact match).
	Frequency  int64  // Filter by tuned frequency.
	Truncated  bool   // Only show readings with truncated payloads.
	FullText   string // FTS5 full-text search on raw_value.
	Limit      int    // Max results (default 100).
	Offset     int    // Pagination offset.
	OrderBy    string // Sort field (timestamp, device_id, var, parser_type, frequency).
	OrderDesc  bool   // Sort descending.
}

// Query retrieves readings matching the given parameters.
func (d *LocalDB) Query(p QueryParams) ([]Reading, error) {
	var conditions []string
	var args []interface{}

	if p.ID != 0 {
		conditions = append(conditions, "id = ?")
		args = append(args, p.ID)
	}
	if p.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, p.DeviceID)
	}
	if p.Var != "" {
		conditions = append(conditions, "var = ?")
		args = append(args, p.Var)
	}
	if p.ParserType != "" {
		conditions = append(conditions, "parser_type = ?")
		args = append(args, p.ParserType)
	}
	if p.Frequency != 0 {
		conditions = append(conditions, "frequency = ?")
		args = append(args, p.Frequency)
	}
	if p.Truncated {
		conditions = append(conditions, "truncated = 1")
	}

	// Handle FTS5 search - requires a JOIN with the FTS table.
	var query string
	if p.FullText != "" {
		query = `SELECT r.id, r.timestamp, r.device_id, r.tuner, r.var, r.parser_type,
				r.frequency, r.raw_value, r.parsed_json, r.truncated
				FROM readings r
				JOIN readings_fts fts ON r.id = fts.rowid
				WHERE readings_fts MATCH ?`
		args = append([]interface{}{p.FullText}, args...)
		if len(conditions) > 0 {
			query += " AND " + strings.Join(conditions, " AND ")
		}
	} else {
		query = `SELECT id, timestamp, device_id, tuner, var, parser_type,
				frequency, raw_value, parsed_json, truncated
				FROM readings`
		if len(conditions) > 0 {
			query += " WHERE " + strings.Join(conditions, " AND ")
		}
	}

	// Order by.
	orderField := "id"
	if p.OrderBy != "" {
		switch p.OrderBy {
		case "timestamp", "device_id", "var", "parser_type", "frequency":
			orderField = p.OrderBy
		}
	}
	direction := "ASC"
	if p.OrderDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", orderField, direction)

	// Limit and offset.
	limit := 100
	if p.Limit > 0 {
		limit = p.Limit
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, p.Offset)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var readings []Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		readings = append(readings, *r)
	}

	return readings, rows.Err()
}

// scanReading reads one readings row from a *sql.Rows or *sql.Row cursor.
func scanReading(row interface {
	Scan(dest ...interface{}) error
}) (*Reading, error) {
	var r Reading
	var ts sql.NullString
	var frequency, truncated sql.NullInt64

	err := row.Scan(&r.ID, &ts, &r.DeviceID, &r.Tuner, &r.Var, &r.ParserType,
		&frequency, &r.RawValue, &r.ParsedJSON, &truncated)
	if err != nil {
		return nil, err
	}

	if ts.Valid {
		r.Timestamp, _ = time.Parse(time.RFC3339, ts.String)
	}
	if frequency.Valid {
		r.Frequency = frequency.Int64
	}
	if truncated.Valid {
		r.Truncated = truncated.Int64 == 1
	}

	return &r, nil
}

// LocalStats contains aggregate statistics about stored readings.
type LocalStats struct {
	TotalReadings int
	ByVar         map[string]int
	ByParserType  map[string]int
	ByDevice      map[string]int
	Truncated     int
}

// GetStats returns statistics about the stored readings.
func (d *LocalDB) GetStats() (*LocalStats, error) {
	stats := &LocalStats{
		ByVar:        make(map[string]int),
		ByParserType: make(map[string]int),
		ByDevice:     make(map[string]int),
	}

	// Total readings.
	row := d.db.QueryRow("SELECT COUNT(*) FROM readings")
	if err := row.Scan(&stats.TotalReadings); err != nil {
		return nil, err
	}

	// By variable.
	rows, err := d.db.Query("SELECT var, COUNT(*) FROM readings GROUP BY var ORDER BY COUNT(*) DESC")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stats.ByVar[name] = count
	}
	_ = rows.Close()

	// By parser type.
	rows, err = d.db.Query("SELECT parser_type, COUNT(*) FROM readings GROUP BY parser_type ORDER BY COUNT(*) DESC")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var typ string
		var count int
		if err := rows.Scan(&typ, &count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stats.ByParserType[typ] = count
	}
	_ = rows.Close()

	// By device.
	rows, err = d.db.Query("SELECT device_id, COUNT(*) FROM readings GROUP BY device_id ORDER BY COUNT(*) DESC LIMIT 20")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var device string
		var count int
		if err := rows.Scan(&device, &count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stats.ByDevice[device] = count
	}
	_ = rows.Close()

	// Truncated payloads.
	row = d.db.QueryRow("SELECT COUNT(*) FROM readings WHERE truncated = 1")
	if err := row.Scan(&stats.Truncated); err != nil {
		return nil, err
	}

	return stats, nil
}

// Distinct returns distinct values for a given column.
func (d *LocalDB) Distinct(column string) ([]string, error) {
	// Validate column name to prevent SQL injection.
	validColumns := map[string]bool{
		"device_id":   true,
		"var":         true,
		"parser_type": true,
	}
	if !validColumns[column] {
		return nil, fmt.Errorf("invalid column: %s", column)
	}

	query := fmt.Sprintf("SELECT DISTINCT %s FROM readings WHERE %s IS NOT NULL AND %s != '' ORDER BY %s", column, column, column, column)
	rows, err := d.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// GetByID retrieves a single reading by ID.
func (d *LocalDB) GetByID(id int64) (*Reading, error) {
	query := `SELECT id, timestamp, device_id, tuner, var, parser_type,
			frequency, raw_value, parsed_json, truncated
			FROM readings WHERE id = ?`

	r, err := scanReading(d.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return r, nil
}

// UpdateParsedParams contains parameters for updating a parsed reading.
type UpdateParsedParams struct {
	ID         int64
	ParserType string
	ParsedData interface{}
	Truncated  bool
}

// UpdateParsed updates the parsed result for an existing reading.
func (d *LocalDB) UpdateParsed(p UpdateParsedParams) error {
	parsedJSON, err := json.Marshal(p.ParsedData)
	if err != nil {
		return fmt.Errorf("marshal parsed data: %w", err)
	}

	_, err = d.db.Exec(`UPDATE readings SET parser_type = ?, parsed_json = ?, truncated = ? WHERE id = ?`,
		p.ParserType, string(parsedJSON), p.Truncated, p.ID)
	if err != nil {
		return fmt.Errorf("update reading: %w", err)
	}

	return nil
}

// CountByType returns reading counts grouped by parser type.
func (d *LocalDB) CountByType() (map[string]int, error) {
	counts := make(map[string]int)
	rows, err := d.db.Query("SELECT parser_type, COUNT(*) FROM readings GROUP BY parser_type")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var typ string
		var count int
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, err
		}
		counts[typ] = count
	}
	return counts, rows.Err()
}
