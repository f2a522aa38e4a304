// Package state provides live tuner state tracking and broadcast reference
// data management.
package state

// schema contains the SQLite table definitions for state tracking.
const schema = `
-- Reference data: devices (id to model/firmware mapping).
CREATE TABLE IF NOT EXISTS devices (
	device_id     TEXT PRIMARY KEY,
	model         TEXT,
	firmware      TEXT,
	ip            TEXT,
	tuners        INTEGER NOT NULL DEFAULT 0,
	first_seen    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_seen     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	reading_count INTEGER NOT NULL DEFAULT 1,
	synced_at     DATETIME
);

CREATE INDEX IF NOT EXISTS idx_devices_model ON devices(model);
CREATE INDEX IF NOT EXISTS idx_devices_synced ON devices(synced_at);

-- Reference data: RF channels observed on air.
CREATE TABLE IF NOT EXISTS channels (
	frequency         INTEGER PRIMARY KEY,
	rf_channel        INTEGER NOT NULL DEFAULT 0,
	modulation        TEXT,
	bsid              INTEGER,
	tsid              INTEGER,
	observation_count INTEGER NOT NULL DEFAULT 1,
	first_seen        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_seen         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	synced_at         DATETIME
);

CREATE INDEX IF NOT EXISTS idx_channels_rf ON channels(rf_channel);
CREATE INDEX IF NOT EXISTS idx_channels_synced ON channels(synced_at);

-- Reference data: programs seen per channel (junction table).
CREATE TABLE IF NOT EXISTS channel_programs (
	frequency         INTEGER NOT NULL REFERENCES channels(frequency) ON DELETE CASCADE,
	number            INTEGER NOT NULL,
	vchannel          TEXT,
	name              TEXT,
	encrypted         INTEGER NOT NULL DEFAULT 0,
	observation_count INTEGER NOT NULL DEFAULT 1,
	first_seen        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_seen         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (frequency, number)
);

CREATE INDEX IF NOT EXISTS idx_channel_programs_name ON channel_programs(name);

-- Operational: current L1 capture per channel.
CREATE TABLE IF NOT EXISTS l1_current (
	frequency  INTEGER PRIMARY KEY,
	device_id  TEXT,
	tuner      INTEGER,
	capture    TEXT NOT NULL,  -- Base64 as read from the tuner.
	summary    TEXT,           -- JSON structural digest.
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	synced_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_l1_current_synced ON l1_current(synced_at);

-- Operational: L1 capture history.
CREATE TABLE IF NOT EXISTS l1_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	frequency   INTEGER NOT NULL,
	device_id   TEXT,
	tuner       INTEGER,
	capture     TEXT NOT NULL,
	summary     TEXT,
	recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_l1_history_frequency ON l1_history(frequency);
CREATE INDEX IF NOT EXISTS idx_l1_history_time ON l1_history(recorded_at);

-- Ephemeral: current tuner state (for live tracking).
CREATE TABLE IF NOT EXISTS tuner_state (
	key             TEXT PRIMARY KEY,  -- Device id + tuner index.
	device_id       TEXT,
	tuner           INTEGER,
	channel         TEXT,
	lock            TEXT,
	frequency       INTEGER,
	rf_channel      INTEGER,
	signal_strength INTEGER,
	signal_quality  INTEGER,
	symbol_quality  INTEGER,
	signal_dbmv     INTEGER,
	snr_db          INTEGER,
	has_db          INTEGER,
	bsid            INTEGER,
	tsid            INTEGER,
	version         TEXT,
	plps            TEXT,  -- JSON array of PLP descriptors seen.
	first_seen      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_seen       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	reading_count   INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_tuner_state_device ON tuner_state(device_id);
CREATE INDEX IF NOT EXISTS idx_tuner_state_last_seen ON tuner_state(last_seen);
`
