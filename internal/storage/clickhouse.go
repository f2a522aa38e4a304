// Package storage provides persistent storage for tuner readings and signal telemetry.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseDB wraps a ClickHouse connection for telemetry storage.
type ClickHouseDB struct {
	conn driver.Conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS signal_samples (
			id              UInt64,
			timestamp       DateTime64(3),
			device_id       LowCardinality(String),
			tuner           UInt8,
			channel         LowCardinality(String),
			lock            LowCardinality(String),
			frequency       UInt32,
			rf_channel      UInt16,
			signal_strength UInt8,
			signal_quality  UInt8,
			symbol_quality  UInt8,
			signal_dbmv     Nullable(Int16),
			snr_db          Nullable(Int16),
			bitrate_bps     UInt64,
			packets_per_sec UInt32,
			raw_status      String,
			created_at      DateTime64(3) DEFAULT now64(3)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (device_id, tuner, timestamp, id)
		SETTINGS index_granularity = 8192`,

		`CREATE TABLE IF NOT EXISTS l1_snapshots (
			id              UInt64,
			device_id       LowCardinality(String),
			tuner           UInt8,
			frequency       UInt32,
			bsid            Int64,
			capture         String,
			decoded_lines   String,
			summary         String,
			truncated       UInt8,
			recorded_at     DateTime64(3) DEFAULT now64(3)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(recorded_at)
		ORDER BY (frequency, recorded_at, id)`,
	}

	for _, q := range queries {
		if err := d.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	// Add bloom filter index for full-text search (ignore error if already exists).
	_ = d.conn.Exec(ctx, `ALTER TABLE signal_samples ADD INDEX IF NOT EXISTS idx_raw_status_bloom raw_status TYPE tokenbf_v1(32768, 3, 0) GRANULARITY 1`)

	return nil
}

// CHSample represents a signal sample stored in ClickHouse.
type CHSample struct {
	ID             uint64
	Timestamp      time.Time
	DeviceID       string
	Tuner          uint8
	Channel        string
	Lock           string
	Frequency      uint32
	RFChannel      uint16
	SignalStrength uint8
	SignalQuality  uint8
	SymbolQuality  uint8
	SignalDBmV     *int16
	SNRdB          *int16
	BitrateBPS     uint64
	PacketsPerSec  uint32
	RawStatus      string
	CreatedAt      time.Time
}

// CHSampleParams contains parameters for inserting a signal sample.
type CHSampleParams struct {
	ID             uint64
	Timestamp      time.Time
	DeviceID       string
	Tuner          uint8
	Channel        string
	Lock           string
	Frequency      uint32
	RFChannel      uint16
	SignalStrength uint8
	SignalQuality  uint8
	SymbolQuality  uint8
	SignalDBmV     *int16
	SNRdB          *int16
	BitrateBPS     uint64
	PacketsPerSec  uint32
	RawStatus      string
}

// Insert stores a single signal sample in ClickHouse.
func (d *ClickHouseDB) Insert(ctx context.Context, p CHSampleParams) error {
	err := d.conn.Exec(ctx, `
		INSERT INTO signal_samples (id, timestamp, device_id, tuner, channel, lock, frequency, rf_channel, signal_strength, signal_quality, symbol_quality, signal_dbmv, snr_db, bitrate_bps, packets_per_sec, raw_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Timestamp, p.DeviceID, p.Tuner, p.Channel, p.Lock, p.Frequency, p.RFChannel,
		p.SignalStrength, p.SignalQuality, p.SymbolQuality, p.SignalDBmV, p.SNRdB,
		p.BitrateBPS, p.PacketsPerSec, p.RawStatus)
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}

	return nil
}

// InsertBatch stores multiple signal samples in ClickHouse efficiently.
func (d *ClickHouseDB) InsertBatch(ctx context.Context, samples []CHSampleParams) error {
	if len(samples) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO signal_samples (id, timestamp, device_id, tuner, channel, lock, frequency, rf_channel, signal_strength, signal_quality, symbol_quality, signal_dbmv, snr_db, bitrate_bps, packets_per_sec, raw_status)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range samples {
		err = batch.Append(p.ID, p.Timestamp, p.DeviceID, p.Tuner, p.Channel, p.Lock, p.Frequency,
			p.RFChannel, p.SignalStrength, p.SignalQuality, p.SymbolQuality, p.SignalDBmV, p.SNRdB,
			p.BitrateBPS, p.PacketsPerSec, p.RawStatus)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// CHSampleQuery contains filtering options for querying signal samples.
type CHSampleQuery struct {
	ID         uint64
	DeviceID   string
	Channel    string
	Frequency  uint32
	LockedOnly bool      // Only samples where the tuner held a lock.
	FullText   string    // LIKE match on raw_status.
	Since      time.Time // Inclusive lower bound on timestamp.
	Until      time.Time // Exclusive upper bound on timestamp.
	Limit      int
	Offset     int
	OrderBy    string
	OrderDesc  bool
}

// Query retrieves signal samples matching the given parameters.
func (d *ClickHouseDB) Query(ctx context.Context, p CHSampleQuery) ([]CHSample, error) {
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
	if p.Channel != "" {
		conditions = append(conditions, "channel = ?")
		args = append(args, p.Channel)
	}
	if p.Frequency != 0 {
		conditions = append(conditions, "frequency = ?")
		args = append(args, p.Frequency)
	}
	if p.LockedOnly {
		conditions = append(conditions, "lock != '' AND lock != 'none'")
	}
	if p.FullText != "" {
		conditions = append(conditions, "raw_status LIKE ?")
		args = append(args, "%"+p.FullText+"%")
	}
	if !p.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, p.Since)
	}
	if !p.Until.IsZero() {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, p.Until)
	}

	query := `SELECT id, timestamp, device_id, tuner, channel, lock, frequency, rf_channel, signal_strength, signal_quality, symbol_quality, signal_dbmv, snr_db, bitrate_bps, packets_per_sec, raw_status, created_at FROM signal_samples`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	// Order by.
	orderField := "id"
	if p.OrderBy != "" {
		switch p.OrderBy {
		case "timestamp", "device_id", "channel", "frequency", "signal_strength", "signal_quality":
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

	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var samples []CHSample
	for rows.Next() {
		var s CHSample
		err := rows.Scan(&s.ID, &s.Timestamp, &s.DeviceID, &s.Tuner, &s.Channel, &s.Lock,
			&s.Frequency, &s.RFChannel, &s.SignalStrength, &s.SignalQuality, &s.SymbolQuality,
			&s.SignalDBmV, &s.SNRdB, &s.BitrateBPS, &s.PacketsPerSec, &s.RawStatus, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return samples, nil
}

// CHL1Snapshot represents an archived Layer-1 signaling capture.
type CHL1Snapshot struct {
	ID           uint64
	DeviceID     string
	Tuner        uint8
	Frequency    uint32
	BSID         int64
	Capture      string
	DecodedLines string
	Summary      string
	Truncated    bool
	RecordedAt   time.Time
}

// CHL1Params contains parameters for archiving a Layer-1 capture.
type CHL1Params struct {
	ID           uint64
	DeviceID     string
	Tuner        uint8
	Frequency    uint32
	BSID         int64
	Capture      string
	DecodedLines []string
	Summary      interface{}
	Truncated    bool
}

// InsertL1Snapshot archives a Layer-1 capture in ClickHouse.
func (d *ClickHouseDB) InsertL1Snapshot(ctx context.Context, p CHL1Params) error {
	summaryJSON, err := json.Marshal(p.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	lines := strings.Join(p.DecodedLines, "\n")

	err = d.conn.Exec(ctx, `
		INSERT INTO l1_snapshots (id, device_id, tuner, frequency, bsid, capture, decoded_lines, summary, truncated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.DeviceID, p.Tuner, p.Frequency, p.BSID, p.Capture, lines, string(summaryJSON), p.Truncated)
	if err != nil {
		return fmt.Errorf("insert l1 snapshot: %w", err)
	}

	return nil
}

// L1History retrieves archived Layer-1 captures, newest first. A zero
// frequency returns captures across all channels.
func (d *ClickHouseDB) L1History(ctx context.Context, frequency uint32, limit int) ([]CHL1Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, device_id, tuner, frequency, bsid, capture, decoded_lines, summary, truncated, recorded_at FROM l1_snapshots`
	var args []interface{}
	if frequency != 0 {
		query += " WHERE frequency = ?"
		args = append(args, frequency)
	}
	query += fmt.Sprintf(" ORDER BY recorded_at DESC LIMIT %d", limit)

	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query l1 snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []CHL1Snapshot
	for rows.Next() {
		var s CHL1Snapshot
		err := rows.Scan(&s.ID, &s.DeviceID, &s.Tuner, &s.Frequency, &s.BSID,
			&s.Capture, &s.DecodedLines, &s.Summary, &s.Truncated, &s.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return snapshots, nil
}

// CHStats contains aggregate statistics about stored telemetry.
type CHStats struct {
	TotalSamples  uint64
	ByDevice      map[string]uint64
	ByChannel     map[string]uint64
	LockedSamples uint64
	L1Snapshots   uint64
}

// GetStats returns statistics about stored telemetry.
func (d *ClickHouseDB) GetStats(ctx context.Context) (*CHStats, error) {
	stats := &CHStats{
		ByDevice:  make(map[string]uint64),
		ByChannel: make(map[string]uint64),
	}

	// Total samples.
	row := d.conn.QueryRow(ctx, "SELECT count() FROM signal_samples")
	if err := row.Scan(&stats.TotalSamples); err != nil {
		return nil, err
	}

	// By device.
	rows, err := d.conn.Query(ctx, "SELECT device_id, count() FROM signal_samples GROUP BY device_id ORDER BY count() DESC")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var device string
		var count uint64
		if err := rows.Scan(&device, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan device stats: %w", err)
		}
		stats.ByDevice[device] = count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate device stats: %w", err)
	}
	rows.Close()

	// By channel.
	rows, err = d.conn.Query(ctx, "SELECT channel, count() FROM signal_samples WHERE channel != '' GROUP BY channel ORDER BY count() DESC LIMIT 20")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var channel string
		var count uint64
		if err := rows.Scan(&channel, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan channel stats: %w", err)
		}
		stats.ByChannel[channel] = count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate channel stats: %w", err)
	}
	rows.Close()

	// Samples taken while locked.
	row = d.conn.QueryRow(ctx, "SELECT count() FROM signal_samples WHERE lock != '' AND lock != 'none'")
	if err := row.Scan(&stats.LockedSamples); err != nil {
		return nil, err
	}

	// Archived Layer-1 captures.
	row = d.conn.QueryRow(ctx, "SELECT count() FROM l1_snapshots")
	if err := row.Scan(&stats.L1Snapshots); err != nil {
		return nil, err
	}

	return stats, nil
}

// MaxID returns the maximum sample ID in the table.
func (d *ClickHouseDB) MaxID(ctx context.Context) (uint64, error) {
	var maxID uint64
	row := d.conn.QueryRow(ctx, "SELECT max(id) FROM signal_samples")
	if err := row.Scan(&maxID); err != nil {
		return 0, err
	}
	return maxID, nil
}
