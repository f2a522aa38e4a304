package state

import (
	"database/sql"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Tracker manages tuner state and broadcast reference data.
type Tracker struct {
	db *sql.DB
	mu sync.RWMutex

	// In-memory tuner state cache for fast access.
	tuners map[string]*TunerState

	// Callbacks for change notifications.
	onDeviceNew  func(*Device)
	onChannelNew func(*Channel)
	onProgramNew func(*Program)
	onL1Changed  func(*L1Capture)
}

// Key builds the tuner state key from a device id and tuner index.
func Key(deviceID string, tuner int) string {
	return deviceID + "/" + strconv.Itoa(tuner)
}

// NewTracker creates a new state tracker with the given database path.
// If dbPath is empty or ":memory:", uses an in-memory database.
func NewTracker(dbPath string) (*Tracker, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// A single connection keeps an in-memory database alive across queries
	// and serialises writers on file-backed databases.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Initialise the schema.
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	t := &Tracker{
		db:     db,
		tuners: make(map[string]*TunerState),
	}

	// Load existing tuner states into memory.
	if err := t.loadTunerStates(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return t, nil
}

// Close closes the database connection.
func (t *Tracker) Close() error {
	return t.db.Close()
}

// OnDeviceNew sets a callback for when a new device is seen.
func (t *Tracker) OnDeviceNew(fn func(*Device)) {
	t.onDeviceNew = fn
}

// OnChannelNew sets a callback for when a new RF channel is observed.
func (t *Tracker) OnChannelNew(fn func(*Channel)) {
	t.onChannelNew = fn
}

// OnProgramNew sets a callback for when a new program is discovered.
func (t *Tracker) OnProgramNew(fn func(*Program)) {
	t.onProgramNew = fn
}

// OnL1Changed sets a callback for when a channel's L1 capture changes.
func (t *Tracker) OnL1Changed(fn func(*L1Capture)) {
	t.onL1Changed = fn
}

// loadTunerStates loads existing tuner states from the database into memory.
func (t *Tracker) loadTunerStates() error {
	rows, err := t.db.Query(`
		SELECT key, device_id, tuner, channel, lock, frequency, rf_channel,
		       signal_strength, signal_quality, symbol_quality, signal_dbmv,
		       snr_db, has_db, bsid, tsid, version, plps,
		       first_seen, last_seen, reading_count
		FROM tuner_state
		WHERE last_seen > ?
	`, time.Now().Add(-time.Hour))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var st TunerState
		var deviceID, channel, lock, version sql.NullString
		var tuner, ss, snq, seq, dbmv, snr sql.NullInt64
		var frequency, rf, hasDB, bsid, tsid sql.NullInt64
		var plps sql.NullString

		err := rows.Scan(
			&st.Key, &deviceID, &tuner, &channel, &lock, &frequency, &rf,
			&ss, &snq, &seq, &dbmv, &snr, &hasDB, &bsid, &tsid, &version,
			&plps, &st.FirstSeen, &st.LastSeen, &st.ReadingCount,
		)
		if err != nil {
			continue
		}

		st.DeviceID = deviceID.String
		st.Tuner = int(tuner.Int64)
		st.Channel = channel.String
		st.Lock = lock.String
		st.Frequency = uint32(frequency.Int64)
		st.RF = uint32(rf.Int64)
		st.SignalStrength = int(ss.Int64)
		st.SignalQuality = int(snq.Int64)
		st.SymbolQuality = int(seq.Int64)
		st.SignalDBmV = int(dbmv.Int64)
		st.SNRdB = int(snr.Int64)
		st.HasDB = hasDB.Int64 != 0
		st.BSID = bsid.Int64
		st.TSID = tsid.Int64
		st.Version = version.String

		if plps.Valid && plps.String != "" {
			_ = json.Unmarshal([]byte(plps.String), &st.PLPs)
		}

		t.tuners[st.Key] = &st
	}

	return rows.Err()
}

// UpdateTuner updates the tuner state with new information.
// Returns true if this is a new tuning session (tuner appeared or retuned).
func (t *Tracker) UpdateTuner(update TunerUpdate) (*TunerState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if update.DeviceID == "" {
		return nil, false
	}
	key := Key(update.DeviceID, update.Tuner)

	now := time.Now()
	isNewTuning := false

	st, exists := t.tuners[key]
	if !exists {
		st = &TunerState{
			Key:       key,
			DeviceID:  update.DeviceID,
			Tuner:     update.Tuner,
			FirstSeen: now,
		}
		t.tuners[key] = st
		isNewTuning = true
	}

	// Check if the tuning spec changed (indicates a retune).
	if update.Channel != "" && st.Channel != "" && update.Channel != st.Channel {
		// Reset channel-specific data for the new tuning session.
		st.Lock = ""
		st.Frequency = 0
		st.RF = 0
		st.BSID = 0
		st.TSID = 0
		st.PLPs = nil
		st.FirstSeen = now
		st.ReadingCount = 0
		isNewTuning = true
	}

	// Update tuning.
	if update.Channel != "" {
		st.Channel = update.Channel
	}
	if update.Lock != "" {
		st.Lock = update.Lock
	}
	if update.Frequency != 0 {
		st.Frequency = update.Frequency
	}
	if update.RF != 0 {
		st.RF = update.RF
	}

	// Update signal readings only when the update actually carries them;
	// zero is a real level once a status reading is present.
	if update.HasSignal {
		st.SignalStrength = update.SignalStrength
		st.SignalQuality = update.SignalQuality
		st.SymbolQuality = update.SymbolQuality
	}
	if update.HasDB {
		st.SignalDBmV = update.SignalDBmV
		st.SNRdB = update.SNRdB
		st.HasDB = true
	}

	// Update stream identity.
	if update.BSID != 0 {
		st.BSID = update.BSID
	}
	if update.TSID != 0 {
		st.TSID = update.TSID
	}
	if update.Version != "" {
		st.Version = update.Version
	}

	// Add PLP descriptors if provided.
	for _, desc := range update.PLPs {
		st.AddPLP(desc)
	}

	st.LastSeen = now
	st.ReadingCount++

	// Persist to database.
	t.saveTunerState(st)

	// Update reference data.
	t.updateDevice(update.DeviceID, update.Model, st.Version, update.IP)

	// Update channel reference only while locked; an unlocked tuner reports
	// the spec it is searching for, not a channel that exists on air.
	if st.Frequency != 0 && st.Locked() {
		t.updateChannel(st.Frequency, st.RF, update.Modulation, st.BSID, st.TSID, update.Programs)
	}

	return st, isNewTuning
}

// TunerUpdate contains data to update a tuner state.
type TunerUpdate struct {
	DeviceID       string
	Tuner          int
	Channel        string
	Lock           string
	Frequency      uint32
	RF             uint32
	Modulation     string
	HasSignal      bool
	SignalStrength int
	SignalQuality  int
	SymbolQuality  int
	HasDB          bool
	SignalDBmV     int
	SNRdB          int
	BSID           int64
	TSID           int64
	Version        string
	PLPs           []string
	Model          string
	IP             string
	Programs       []ProgramSeen
}

// ProgramSeen is one program row carried by a tuner update.
type ProgramSeen struct {
	Number    int64
	VChannel  string
	Name      string
	Encrypted bool
}

// saveTunerState persists a tuner state to the database.
func (t *Tracker) saveTunerState(st *TunerState) {
	plps, _ := json.Marshal(st.PLPs)

	_, err := t.db.Exec(`
		INSERT INTO tuner_state (key, device_id, tuner, channel, lock, frequency, rf_channel,
		                         signal_strength, signal_quality, symbol_quality, signal_dbmv,
		                         snr_db, has_db, bsid, tsid, version, plps,
		                         first_seen, last_seen, reading_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			device_id = excluded.device_id,
			tuner = excluded.tuner,
			channel = excluded.channel,
			lock = excluded.lock,
			frequency = excluded.frequency,
			rf_channel = excluded.rf_channel,
			signal_strength = excluded.signal_strength,
			signal_quality = excluded.signal_quality,
			symbol_quality = excluded.symbol_quality,
			signal_dbmv = excluded.signal_dbmv,
			snr_db = excluded.snr_db,
			has_db = excluded.has_db,
			bsid = excluded.bsid,
			tsid = excluded.tsid,
			version = excluded.version,
			plps = excluded.plps,
			first_seen = excluded.first_seen,
			last_seen = excluded.last_seen,
			reading_count = excluded.reading_count
	`,
		st.Key, st.DeviceID, st.Tuner, st.Channel, st.Lock, st.Frequency, st.RF,
		st.SignalStrength, st.SignalQuality, st.SymbolQuality, st.SignalDBmV,
		st.SNRdB, st.HasDB, st.BSID, st.TSID, st.Version, string(plps),
		st.FirstSeen, st.LastSeen, st.ReadingCount,
	)
	// Silently ignore errors - tuner state is best-effort.
	_ = err
}

// updateDevice updates or inserts a device record.
func (t *Tracker) updateDevice(deviceID, model, firmware, ip string) {
	// Check if this is a new device.
	var exists bool
	_ = t.db.QueryRow("SELECT 1 FROM devices WHERE device_id = ?", deviceID).Scan(&exists)

	if !exists {
		// New device - insert and trigger callback.
		_, err := t.db.Exec(`
			INSERT INTO devices (device_id, model, firmware, ip)
			VALUES (?, ?, ?, ?)
		`, deviceID, model, firmware, ip)

		if err == nil && t.onDeviceNew != nil {
			t.onDeviceNew(&Device{
				ID:           deviceID,
				Model:        model,
				Firmware:     firmware,
				IP:           ip,
				FirstSeen:    time.Now(),
				LastSeen:     time.Now(),
				ReadingCount: 1,
			})
		}
	} else {
		// Update existing device.
		_, _ = t.db.Exec(`
			UPDATE devices SET
				model = COALESCE(NULLIF(?, ''), model),
				firmware = COALESCE(NULLIF(?, ''), firmware),
				ip = COALESCE(NULLIF(?, ''), ip),
				last_seen = CURRENT_TIMESTAMP,
				reading_count = reading_count + 1
			WHERE device_id = ?
		`, model, firmware, ip, deviceID)
	}
}

// updateChannel updates or inserts a channel record.
func (t *Tracker) updateChannel(frequency, rf uint32, modulation string, bsid, tsid int64, programs []ProgramSeen) {
	// Check if this channel exists.
	var existing uint32
	err := t.db.QueryRow(`
		SELECT frequency FROM channels WHERE frequency = ?
	`, frequency).Scan(&existing)

	switch err {
	case sql.ErrNoRows:
		// New channel - insert and trigger callback.
		_, err := t.db.Exec(`
			INSERT INTO channels (frequency, rf_channel, modulation, bsid, tsid)
			VALUES (?, ?, ?, ?, ?)
		`, frequency, rf, modulation, bsid, tsid)

		if err == nil {
			for _, p := range programs {
				t.updateChannelProgram(frequency, p)
			}

			if t.onChannelNew != nil {
				t.onChannelNew(&Channel{
					Frequency:        frequency,
					RF:               rf,
					Modulation:       modulation,
					BSID:             bsid,
					TSID:             tsid,
					ObservationCount: 1,
					FirstSeen:        time.Now(),
					LastSeen:         time.Now(),
				})
			}
		}
	case nil:
		// Update existing channel.
		_, _ = t.db.Exec(`
			UPDATE channels SET
				rf_channel = COALESCE(NULLIF(?, 0), rf_channel),
				modulation = COALESCE(NULLIF(?, ''), modulation),
				bsid = COALESCE(NULLIF(?, 0), bsid),
				tsid = COALESCE(NULLIF(?, 0), tsid),
				observation_count = observation_count + 1,
				last_seen = CURRENT_TIMESTAMP,
				synced_at = NULL
			WHERE frequency = ?
		`, rf, modulation, bsid, tsid, frequency)

		for _, p := range programs {
			t.updateChannelProgram(frequency, p)
		}
	default:
		// Silently ignore query errors.
	}
}

// updateChannelProgram updates or inserts a program observation for a channel.
func (t *Tracker) updateChannelProgram(frequency uint32, p ProgramSeen) {
	// Check if this is a new program.
	var exists bool
	_ = t.db.QueryRow(`
		SELECT 1 FROM channel_programs WHERE frequency = ? AND number = ?
	`, frequency, p.Number).Scan(&exists)

	if !exists {
		// New program - insert and trigger callback.
		_, err := t.db.Exec(`
			INSERT INTO channel_programs (frequency, number, vchannel, name, encrypted)
			VALUES (?, ?, ?, ?, ?)
		`, frequency, p.Number, p.VChannel, p.Name, p.Encrypted)

		if err == nil && t.onProgramNew != nil {
			t.onProgramNew(&Program{
				Frequency:        frequency,
				Number:           p.Number,
				VChannel:         p.VChannel,
				Name:             p.Name,
				Encrypted:        p.Encrypted,
				ObservationCount: 1,
				FirstSeen:        time.Now(),
				LastSeen:         time.Now(),
			})
		}
	} else {
		// Update existing program.
		_, _ = t.db.Exec(`
			UPDATE channel_programs SET
				vchannel = COALESCE(NULLIF(?, ''), vchannel),
				name = COALESCE(NULLIF(?, ''), name),
				encrypted = ?,
				observation_count = observation_count + 1,
				last_seen = CURRENT_TIMESTAMP
			WHERE frequency = ? AND number = ?
		`, p.VChannel, p.Name, p.Encrypted, frequency, p.Number)
	}
}

// UpdateL1 updates the current L1 capture for a channel.
func (t *Tracker) UpdateL1(c *L1Capture) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c.Frequency == 0 || c.Capture == "" {
		return
	}

	// Check if the capture changed.
	var current sql.NullString
	_ = t.db.QueryRow("SELECT capture FROM l1_current WHERE frequency = ?", c.Frequency).Scan(&current)

	summaryJSON, _ := json.Marshal(c.Summary)

	// Update or insert the current capture.
	_, err := t.db.Exec(`
		INSERT INTO l1_current (frequency, device_id, tuner, capture, summary)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(frequency) DO UPDATE SET
			device_id = excluded.device_id,
			tuner = excluded.tuner,
			capture = excluded.capture,
			summary = excluded.summary,
			updated_at = CURRENT_TIMESTAMP,
			synced_at = NULL
	`, c.Frequency, c.DeviceID, c.Tuner, c.Capture, string(summaryJSON))

	if err != nil {
		return
	}

	// If the capture changed, archive to history and trigger callback.
	if !current.Valid || current.String != c.Capture {
		_, _ = t.db.Exec(`
			INSERT INTO l1_history (frequency, device_id, tuner, capture, summary)
			VALUES (?, ?, ?, ?, ?)
		`, c.Frequency, c.DeviceID, c.Tuner, c.Capture, string(summaryJSON))

		if t.onL1Changed != nil {
			t.onL1Changed(c)
		}
	}
}

// GetTuner returns the current state of a tuner by key.
func (t *Tracker) GetTuner(key string) *TunerState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tuners[key]
}

// GetAllTuners returns all current tuner states.
func (t *Tracker) GetAllTuners() []*TunerState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]*TunerState, 0, len(t.tuners))
	for _, st := range t.tuners {
		result = append(result, st)
	}
	return result
}

// GetActiveTuners returns tuners seen within the given duration.
func (t *Tracker) GetActiveTuners(within time.Duration) []*TunerState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := time.Now().Add(-within)
	result := make([]*TunerState, 0)
	for _, st := range t.tuners {
		if st.LastSeen.After(cutoff) {
			result = append(result, st)
		}
	}
	return result
}

// CleanupStale removes tuner states older than the given duration.
func (t *Tracker) CleanupStale(olderThan time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	removed := 0

	for key, st := range t.tuners {
		if st.LastSeen.Before(cutoff) {
			delete(t.tuners, key)
			removed++
		}
	}

	// Also cleanup database.
	_, _ = t.db.Exec("DELETE FROM tuner_state WHERE last_seen < ?", cutoff)

	return removed
}

// GetDevices returns all known devices.
func (t *Tracker) GetDevices() ([]*Device, error) {
	return t.queryDevices("SELECT device_id, model, firmware, ip, tuners, first_seen, last_seen, reading_count FROM devices")
}

// GetUnsyncedDevices returns devices that haven't been synced.
func (t *Tracker) GetUnsyncedDevices() ([]*Device, error) {
	return t.queryDevices(`
		SELECT device_id, model, firmware, ip, tuners, first_seen, last_seen, reading_count
		FROM devices WHERE synced_at IS NULL
	`)
}

func (t *Tracker) queryDevices(query string) ([]*Device, error) {
	rows, err := t.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*Device
	for rows.Next() {
		var d Device
		var model, firmware, ip sql.NullString
		if err := rows.Scan(&d.ID, &model, &firmware, &ip, &d.Tuners,
			&d.FirstSeen, &d.LastSeen, &d.ReadingCount); err != nil {
			continue
		}
		d.Model = model.String
		d.Firmware = firmware.String
		d.IP = ip.String
		result = append(result, &d)
	}
	return result, rows.Err()
}

// GetChannels returns all observed channels.
func (t *Tracker) GetChannels() ([]*Channel, error) {
	return t.queryChannels(`
		SELECT frequency, rf_channel, modulation, bsid, tsid,
		       observation_count, first_seen, last_seen
		FROM channels ORDER BY frequency
	`)
}

// GetUnsyncedChannels returns channels that haven't been synced.
func (t *Tracker) GetUnsyncedChannels() ([]*Channel, error) {
	return t.queryChannels(`
		SELECT frequency, rf_channel, modulation, bsid, tsid,
		       observation_count, first_seen, last_seen
		FROM channels WHERE synced_at IS NULL
	`)
}

func (t *Tracker) queryChannels(query string, args ...any) ([]*Channel, error) {
	rows, err := t.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*Channel
	for rows.Next() {
		var c Channel
		var modulation sql.NullString
		var bsid, tsid sql.NullInt64
		if err := rows.Scan(&c.Frequency, &c.RF, &modulation, &bsid, &tsid,
			&c.ObservationCount, &c.FirstSeen, &c.LastSeen); err != nil {
			continue
		}
		c.Modulation = modulation.String
		c.BSID = bsid.Int64
		c.TSID = tsid.Int64
		result = append(result, &c)
	}
	return result, rows.Err()
}

// GetChannelPrograms returns all programs seen on a specific channel.
func (t *Tracker) GetChannelPrograms(frequency uint32) ([]*Program, error) {
	rows, err := t.db.Query(`
		SELECT frequency, number, vchannel, name, encrypted,
		       observation_count, first_seen, last_seen
		FROM channel_programs WHERE frequency = ? ORDER BY number
	`, frequency)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*Program
	for rows.Next() {
		var p Program
		var vchannel, name sql.NullString
		if err := rows.Scan(&p.Frequency, &p.Number, &vchannel, &name, &p.Encrypted,
			&p.ObservationCount, &p.FirstSeen, &p.LastSeen); err != nil {
			continue
		}
		p.VChannel = vchannel.String
		p.Name = name.String
		result = append(result, &p)
	}
	return result, rows.Err()
}

// GetProgramChannels returns all channels a program name has been seen on.
func (t *Tracker) GetProgramChannels(name string) ([]*Channel, error) {
	return t.queryChannels(`
		SELECT c.frequency, c.rf_channel, c.modulation, c.bsid, c.tsid,
		       c.observation_count, c.first_seen, c.last_seen
		FROM channels c
		JOIN channel_programs cp ON c.frequency = cp.frequency
		WHERE cp.name = ?
	`, name)
}

// GetL1Current returns the current L1 capture for a channel, or nil.
func (t *Tracker) GetL1Current(frequency uint32) (*L1Capture, error) {
	var c L1Capture
	var deviceID, summary sql.NullString
	err := t.db.QueryRow(`
		SELECT frequency, device_id, tuner, capture, summary, updated_at
		FROM l1_current WHERE frequency = ?
	`, frequency).Scan(&c.Frequency, &deviceID, &c.Tuner, &c.Capture,
		&summary, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c.DeviceID = deviceID.String
	if summary.Valid && summary.String != "" {
		_ = json.Unmarshal([]byte(summary.String), &c.Summary)
	}
	return &c, nil
}

// MarkDeviceSynced marks a device record as synced.
func (t *Tracker) MarkDeviceSynced(deviceID string) error {
	_, err := t.db.Exec("UPDATE devices SET synced_at = CURRENT_TIMESTAMP WHERE device_id = ?", deviceID)
	return err
}

// MarkChannelSynced marks a channel record as synced.
func (t *Tracker) MarkChannelSynced(frequency uint32) error {
	_, err := t.db.Exec("UPDATE channels SET synced_at = CURRENT_TIMESTAMP WHERE frequency = ?", frequency)
	return err
}

// Stats returns statistics about tracked data.
type Stats struct {
	ActiveTuners  int
	TotalDevices  int
	TotalChannels int
	TotalPrograms int
	UnsyncedCount int
}

func (t *Tracker) GetStats() Stats {
	t.mu.RLock()
	activeTuners := len(t.tuners)
	t.mu.RUnlock()

	var stats Stats
	stats.ActiveTuners = activeTuners

	_ = t.db.QueryRow("SELECT COUNT(*) FROM devices").Scan(&stats.TotalDevices)
	_ = t.db.QueryRow("SELECT COUNT(*) FROM channels").Scan(&stats.TotalChannels)
	_ = t.db.QueryRow("SELECT COUNT(*) FROM channel_programs").Scan(&stats.TotalPrograms)
	_ = t.db.QueryRow(`
		SELECT (SELECT COUNT(*) FROM devices WHERE synced_at IS NULL) +
		       (SELECT COUNT(*) FROM channels WHERE synced_at IS NULL) +
		       (SELECT COUNT(*) FROM l1_current WHERE synced_at IS NULL)
	`).Scan(&stats.UnsyncedCount)

	return stats
}
