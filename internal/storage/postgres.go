package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresDB wraps a PostgreSQL connection pool for state storage.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	-- Reference data: Tuner devices
	CREATE TABLE IF NOT EXISTS devices (
		device_id       TEXT PRIMARY KEY,
		model           TEXT,
		firmware        TEXT,
		ip              TEXT,
		tuners          INTEGER,
		first_seen      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		reading_count   INTEGER NOT NULL DEFAULT 1,
		synced_at       TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_devices_model ON devices(model);
	CREATE INDEX IF NOT EXISTS idx_devices_synced ON devices(synced_at);

	-- Reference data: RF channels observed on air
	CREATE TABLE IF NOT EXISTS channels (
		frequency           BIGINT PRIMARY KEY,
		rf_channel          INTEGER,
		modulation          TEXT,
		bsid                BIGINT,
		tsid                BIGINT,
		observation_count   INTEGER NOT NULL DEFAULT 1,
		first_seen          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		synced_at           TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_channels_rf ON channels(rf_channel);
	CREATE INDEX IF NOT EXISTS idx_channels_synced ON channels(synced_at);

	-- Reference data: Program lineup per channel
	CREATE TABLE IF NOT EXISTS channel_programs (
		frequency           BIGINT NOT NULL REFERENCES channels(frequency) ON DELETE CASCADE,
		number              BIGINT NOT NULL,
		vchannel            TEXT,
		name                TEXT,
		encrypted           BOOLEAN NOT NULL DEFAULT FALSE,
		observation_count   INTEGER NOT NULL DEFAULT 1,
		first_seen          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (frequency, number)
	);

	CREATE INDEX IF NOT EXISTS idx_channel_programs_name ON channel_programs(name);

	-- Reference data: Which devices receive which channels
	CREATE TABLE IF NOT EXISTS channel_devices (
		frequency           BIGINT NOT NULL REFERENCES channels(frequency) ON DELETE CASCADE,
		device_id           TEXT NOT NULL,
		observation_count   INTEGER NOT NULL DEFAULT 1,
		first_seen          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (frequency, device_id)
	);

	CREATE INDEX IF NOT EXISTS idx_channel_devices_device ON channel_devices(device_id);

	-- Operational: Latest Layer-1 capture per channel
	CREATE TABLE IF NOT EXISTS l1_current (
		frequency       BIGINT PRIMARY KEY,
		device_id       TEXT,
		tuner           INTEGER,
		capture         TEXT NOT NULL,
		summary         JSONB,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		synced_at       TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_l1_current_synced ON l1_current(synced_at);

	-- Ephemeral: Tuner state
	CREATE TABLE IF NOT EXISTS tuner_state (
		key             TEXT PRIMARY KEY,
		device_id       TEXT,
		tuner           INTEGER,
		channel         TEXT,
		lock            TEXT,
		frequency       BIGINT,
		rf_channel      INTEGER,
		signal_strength INTEGER,
		signal_quality  INTEGER,
		symbol_quality  INTEGER,
		signal_dbmv     INTEGER,
		snr_db          INTEGER,
		bsid            BIGINT,
		tsid            BIGINT,
		version         TEXT,
		plps            JSONB,
		first_seen      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		reading_count   INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_tuner_state_device ON tuner_state(device_id);
	CREATE INDEX IF NOT EXISTS idx_tuner_state_last_seen ON tuner_state(last_seen);
	`

	_, err := d.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Device represents a tuner device record.
type Device struct {
	ID           string
	Model        string
	Firmware     string
	IP           string
	Tuners       int
	FirstSeen    time.Time
	LastSeen     time.Time
	ReadingCount int
	SyncedAt     *time.Time
}

// UpsertDevice inserts or updates a device record.
func (d *PostgresDB) UpsertDevice(ctx context.Context, dev Device) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO devices (device_id, model, firmware, ip, tuners, first_seen, last_seen, reading_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (device_id) DO UPDATE SET
			model = COALESCE(NULLIF(EXCLUDED.model, ''), devices.model),
			firmware = COALESCE(NULLIF(EXCLUDED.firmware, ''), devices.firmware),
			ip = COALESCE(NULLIF(EXCLUDED.ip, ''), devices.ip),
			tuners = COALESCE(NULLIF(EXCLUDED.tuners, 0), devices.tuners),
			last_seen = EXCLUDED.last_seen,
			reading_count = EXCLUDED.reading_count
	`, dev.ID, dev.Model, dev.Firmware, dev.IP, dev.Tuners, dev.FirstSeen, dev.LastSeen, dev.ReadingCount)
	return err
}

// GetDevice retrieves a device by id.
func (d *PostgresDB) GetDevice(ctx context.Context, deviceID string) (*Device, error) {
	var dev Device
	var syncedAt *time.Time
	err := d.pool.QueryRow(ctx, `
		SELECT device_id, model, firmware, ip, tuners, first_seen, last_seen, reading_count, synced_at
		FROM devices WHERE device_id = $1
	`, deviceID).Scan(&dev.ID, &dev.Model, &dev.Firmware, &dev.IP, &dev.Tuners, &dev.FirstSeen, &dev.LastSeen, &dev.ReadingCount, &syncedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	dev.SyncedAt = syncedAt
	return &dev, nil
}

// ListDevices retrieves all known devices.
func (d *PostgresDB) ListDevices(ctx context.Context) ([]Device, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT device_id, model, firmware, ip, tuners, first_seen, last_seen, reading_count, synced_at
		FROM devices
		ORDER BY device_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var dev Device
		if err := rows.Scan(&dev.ID, &dev.Model, &dev.Firmware, &dev.IP, &dev.Tuners, &dev.FirstSeen, &dev.LastSeen, &dev.ReadingCount, &dev.SyncedAt); err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}
	return devices, rows.Err()
}

// Channel represents an observed RF channel record.
type Channel struct {
	Frequency        int64
	RFChannel        int
	Modulation       string
	BSID             int64
	TSID             int64
	ObservationCount int
	FirstSeen        time.Time
	LastSeen         time.Time
	SyncedAt         *time.Time
}

// UpsertChannel inserts or updates a channel record.
func (d *PostgresDB) UpsertChannel(ctx context.Context, c Channel) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO channels (frequency, rf_channel, modulation, bsid, tsid, observation_count, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (frequency) DO UPDATE SET
			rf_channel = COALESCE(NULLIF(EXCLUDED.rf_channel, 0), channels.rf_channel),
			modulation = COALESCE(NULLIF(EXCLUDED.modulation, ''), channels.modulation),
			bsid = COALESCE(NULLIF(EXCLUDED.bsid, 0), channels.bsid),
			tsid = COALESCE(NULLIF(EXCLUDED.tsid, 0), channels.tsid),
			observation_count = EXCLUDED.observation_count,
			last_seen = EXCLUDED.last_seen
	`, c.Frequency, c.RFChannel, c.Modulation, c.BSID, c.TSID, c.ObservationCount, c.FirstSeen, c.LastSeen)
	return err
}

// GetChannel retrieves a channel by frequency.
func (d *PostgresDB) GetChannel(ctx context.Context, frequency int64) (*Channel, error) {
	var c Channel
	var syncedAt *time.Time
	err := d.pool.QueryRow(ctx, `
		SELECT frequency, rf_channel, modulation, bsid, tsid, observation_count, first_seen, last_seen, synced_at
		FROM channels WHERE frequency = $1
	`, frequency).Scan(&c.Frequency, &c.RFChannel, &c.Modulation, &c.BSID, &c.TSID, &c.ObservationCount, &c.FirstSeen, &c.LastSeen, &syncedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.SyncedAt = syncedAt
	return &c, nil
}

// ListChannels retrieves all channels with at least minObservations.
func (d *PostgresDB) ListChannels(ctx context.Context, minObservations int) ([]Channel, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT frequency, rf_channel, modulation, bsid, tsid, observation_count, first_seen, last_seen, synced_at
		FROM channels
		WHERE observation_count >= $1
		ORDER BY frequency
	`, minObservations)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var c Channel
		if err := rows.Scan(&c.Frequency, &c.RFChannel, &c.Modulation, &c.BSID, &c.TSID, &c.ObservationCount, &c.FirstSeen, &c.LastSeen, &c.SyncedAt); err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

// Program represents a broadcast program on a channel.
type Program struct {
	Frequency        int64
	Number           int64
	VChannel         string
	Name             string
	Encrypted        bool
	ObservationCount int
	FirstSeen        time.Time
	LastSeen         time.Time
}

// UpsertChannelProgram inserts or updates a program record.
func (d *PostgresDB) UpsertChannelProgram(ctx context.Context, p Program) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO channel_programs (frequency, number, vchannel, name, encrypted, observation_count, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (frequency, number) DO UPDATE SET
			vchannel = COALESCE(NULLIF(EXCLUDED.vchannel, ''), channel_programs.vchannel),
			name = COALESCE(NULLIF(EXCLUDED.name, ''), channel_programs.name),
			encrypted = EXCLUDED.encrypted,
			observation_count = EXCLUDED.observation_count,
			last_seen = EXCLUDED.last_seen
	`, p.Frequency, p.Number, p.VChannel, p.Name, p.Encrypted, p.ObservationCount, p.FirstSeen, p.LastSeen)
	return err
}

// GetChannelPrograms retrieves the program lineup for a channel.
func (d *PostgresDB) GetChannelPrograms(ctx context.Context, frequency int64) ([]Program, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT frequency, number, vchannel, name, encrypted, observation_count, first_seen, last_seen
		FROM channel_programs
		WHERE frequency = $1
		ORDER BY number
	`, frequency)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var programs []Program
	for rows.Next() {
		var p Program
		if err := rows.Scan(&p.Frequency, &p.Number, &p.VChannel, &p.Name, &p.Encrypted, &p.ObservationCount, &p.FirstSeen, &p.LastSeen); err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	return programs, rows.Err()
}

// ChannelDevice represents a device seen receiving a channel.
type ChannelDevice struct {
	Frequency        int64
	DeviceID         string
	ObservationCount int
	FirstSeen        time.Time
	LastSeen         time.Time
}

// UpsertChannelDevice inserts or updates a channel-device association.
func (d *PostgresDB) UpsertChannelDevice(ctx context.Context, cd ChannelDevice) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO channel_devices (frequency, device_id, observation_count, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (frequency, device_id) DO UPDATE SET
			observation_count = channel_devices.observation_count + 1,
			last_seen = EXCLUDED.last_seen
	`, cd.Frequency, cd.DeviceID, cd.ObservationCount, cd.FirstSeen, cd.LastSeen)
	return err
}

// GetChannelDevices retrieves the devices that have received a channel.
func (d *PostgresDB) GetChannelDevices(ctx context.Context, frequency int64) ([]ChannelDevice, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT frequency, device_id, observation_count, first_seen, last_seen
		FROM channel_devices
		WHERE frequency = $1
		ORDER BY device_id
	`, frequency)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []ChannelDevice
	for rows.Next() {
		var cd ChannelDevice
		if err := rows.Scan(&cd.Frequency, &cd.DeviceID, &cd.ObservationCount, &cd.FirstSeen, &cd.LastSeen); err != nil {
			return nil, err
		}
		devices = append(devices, cd)
	}
	return devices, rows.Err()
}

// L1Current represents the latest Layer-1 capture for a channel.
type L1Current struct {
	Frequency int64
	DeviceID  string
	Tuner     int
	Capture   string
	Summary   map[string]interface{}
	UpdatedAt time.Time
	SyncedAt  *time.Time
}

// UpsertL1Current inserts or updates the current Layer-1 capture for a channel.
func (d *PostgresDB) UpsertL1Current(ctx context.Context, c L1Current) error {
	summaryJSON, _ := json.Marshal(c.Summary)

	_, err := d.pool.Exec(ctx, `
		INSERT INTO l1_current (frequency, device_id, tuner, capture, summary, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (frequency) DO UPDATE SET
			device_id = EXCLUDED.device_id,
			tuner = EXCLUDED.tuner,
			capture = EXCLUDED.capture,
			summary = EXCLUDED.summary,
			updated_at = EXCLUDED.updated_at
	`, c.Frequency, c.DeviceID, c.Tuner, c.Capture, summaryJSON, c.UpdatedAt)
	return err
}

// GetL1Current retrieves the current Layer-1 capture for a channel.
func (d *PostgresDB) GetL1Current(ctx context.Context, frequency int64) (*L1Current, error) {
	var c L1Current
	var summaryJSON []byte
	var syncedAt *time.Time

	err := d.pool.QueryRow(ctx, `
		SELECT frequency, device_id, tuner, capture, summary, updated_at, synced_at
		FROM l1_current WHERE frequency = $1
	`, frequency).Scan(&c.Frequency, &c.DeviceID, &c.Tuner, &c.Capture, &summaryJSON, &c.UpdatedAt, &syncedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	_ = json.Unmarshal(summaryJSON, &c.Summary)
	c.SyncedAt = syncedAt
	return &c, nil
}

// TunerState represents the current state of one tuner.
type TunerState struct {
	Key            string
	DeviceID       string
	Tuner          int
	Channel        string
	Lock           string
	Frequency      int64
	RFChannel      int
	SignalStrength *int
	SignalQuality  *int
	SymbolQuality  *int
	SignalDBmV     *int
	SNRdB          *int
	BSID           *int64
	TSID           *int64
	Version        string
	PLPs           []string
	FirstSeen      time.Time
	LastSeen       time.Time
	ReadingCount   int
}

// UpsertTunerState inserts or updates tuner state.
func (d *PostgresDB) UpsertTunerState(ctx context.Context, ts TunerState) error {
	plpsJSON, _ := json.Marshal(ts.PLPs)

	_, err := d.pool.Exec(ctx, `
		INSERT INTO tuner_state (key, device_id, tuner, channel, lock, frequency, rf_channel, signal_strength, signal_quality, symbol_quality, signal_dbmv, snr_db, bsid, tsid, version, plps, first_seen, last_seen, reading_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (key) DO UPDATE SET
			channel = COALESCE(NULLIF(EXCLUDED.channel, ''), tuner_state.channel),
			lock = COALESCE(NULLIF(EXCLUDED.lock, ''), tuner_state.lock),
			frequency = COALESCE(NULLIF(EXCLUDED.frequency, 0), tuner_state.frequency),
			rf_channel = COALESCE(NULLIF(EXCLUDED.rf_channel, 0), tuner_state.rf_channel),
			signal_strength = COALESCE(EXCLUDED.signal_strength, tuner_state.signal_strength),
			signal_quality = COALESCE(EXCLUDED.signal_quality, tuner_state.signal_quality),
			symbol_quality = COALESCE(EXCLUDED.symbol_quality, tuner_state.symbol_quality),
			signal_dbmv = COALESCE(EXCLUDED.signal_dbmv, tuner_state.signal_dbmv),
			snr_db = COALESCE(EXCLUDED.snr_db, tuner_state.snr_db),
			bsid = COALESCE(EXCLUDED.bsid, tuner_state.bsid),
			tsid = COALESCE(EXCLUDED.tsid, tuner_state.tsid),
			version = COALESCE(NULLIF(EXCLUDED.version, ''), tuner_state.version),
			plps = EXCLUDED.plps,
			last_seen = EXCLUDED.last_seen,
			reading_count = EXCLUDED.reading_count
	`, ts.Key, ts.DeviceID, ts.Tuner, ts.Channel, ts.Lock, ts.Frequency, ts.RFChannel,
		ts.SignalStrength, ts.SignalQuality, ts.SymbolQuality, ts.SignalDBmV, ts.SNRdB,
		ts.BSID, ts.TSID, ts.Version, plpsJSON, ts.FirstSeen, ts.LastSeen, ts.ReadingCount)
	return err
}

// Pool returns the underlying connection pool for advanced operations.
func (d *PostgresDB) Pool() *pgxpool.Pool {
	return d.pool
}

// GetTunerState retrieves tuner state by key.
func (d *PostgresDB) GetTunerState(ctx context.Context, key string) (*TunerState, error) {
	var ts TunerState
	var plpsJSON []byte

	err := d.pool.QueryRow(ctx, `
		SELECT key, device_id, tuner, channel, lock, frequency, rf_channel, signal_strength, signal_quality, symbol_quality, signal_dbmv, snr_db, bsid, tsid, version, plps, first_seen, last_seen, reading_count
		FROM tuner_state WHERE key = $1
	`, key).Scan(&ts.Key, &ts.DeviceID, &ts.Tuner, &ts.Channel, &ts.Lock, &ts.Frequency, &ts.RFChannel,
		&ts.SignalStrength, &ts.SignalQuality, &ts.SymbolQuality, &ts.SignalDBmV, &ts.SNRdB,
		&ts.BSID, &ts.TSID, &ts.Version, &plpsJSON, &ts.FirstSeen, &ts.LastSeen, &ts.ReadingCount)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	_ = json.Unmarshal(plpsJSON, &ts.PLPs)
	return &ts, nil
}
