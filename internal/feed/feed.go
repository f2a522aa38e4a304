// Package feed consumes tuner readings from a NATS feed and fans them out
// to the state tracker and storage sinks.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"atsc3_parser/internal/l1"
	"atsc3_parser/internal/parsers/l1detail"
	"atsc3_parser/internal/parsers/status"
	"atsc3_parser/internal/registry"
	"atsc3_parser/internal/state"
	"atsc3_parser/internal/storage"
	"atsc3_parser/internal/tuner"
)

// Config holds feed daemon settings.
type Config struct {
	URL     string // NATS server URL.
	Subject string // Subject to subscribe to.
	Queue   string // Optional queue group for load-balanced consumers.

	BatchSize     int           // Samples per ClickHouse batch.
	FlushInterval time.Duration // Maximum time a sample waits in the batch.
	SyncInterval  time.Duration // How often reference data syncs to PostgreSQL.
	ActiveWindow  time.Duration // Tuners seen within this window sync state.
	StaleAfter    time.Duration // Tuner states older than this are dropped.
}

// DefaultConfig returns feed settings with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Subject:       "hdhomerun.readings",
		BatchSize:     200,
		FlushInterval: 5 * time.Second,
		SyncInterval:  30 * time.Second,
		ActiveWindow:  5 * time.Minute,
		StaleAfter:    time.Hour,
	}
}

// Feed subscribes to a reading feed and drives the tracker and storage.
// The db and local sinks are optional; a nil db runs tracker-only.
type Feed struct {
	cfg     Config
	reg     *registry.Registry
	tracker *state.Tracker
	db      *storage.DB
	local   *storage.LocalDB
	metrics *Metrics

	session string
	nextID  atomic.Uint64

	mu    sync.Mutex
	batch []storage.CHSampleParams

	// Changed L1 captures queue here so archive writes happen outside
	// the tracker's lock.
	l1ch chan *state.L1Capture
}

// New creates a feed and wires the tracker change callbacks.
func New(cfg Config, reg *registry.Registry, tracker *state.Tracker, db *storage.DB, local *storage.LocalDB, m *Metrics) *Feed {
	f := &Feed{
		cfg:     cfg,
		reg:     reg,
		tracker: tracker,
		db:      db,
		local:   local,
		metrics: m,
		session: uuid.New().String(),
		l1ch:    make(chan *state.L1Capture, 16),
	}

	tracker.OnDeviceNew(func(d *state.Device) {
		log.Printf("new device %s (%s, firmware %s)", d.ID, d.Model, d.Firmware)
		f.metrics.RecordDeviceNew()
	})
	tracker.OnChannelNew(func(c *state.Channel) {
		log.Printf("new channel %d Hz (RF %d, %s)", c.Frequency, c.RF, c.Modulation)
		f.metrics.RecordChannelNew()
	})
	tracker.OnProgramNew(func(p *state.Program) {
		log.Printf("new program %q (%s) on %d Hz", p.Name, p.VChannel, p.Frequency)
	})
	tracker.OnL1Changed(func(c *state.L1Capture) {
		f.metrics.RecordL1Change()
		log.Printf("l1 capture changed on %d Hz (device %s tuner %d)", c.Frequency, c.DeviceID, c.Tuner)
		select {
		case f.l1ch <- c:
		default:
			// Archive queue full; the tracker still holds the current capture.
		}
	})

	return f
}

// Session returns the unique id for this feed run.
func (f *Feed) Session() string {
	return f.session
}

// Run connects to NATS and processes readings until the context is
// cancelled, then drains the subscription and flushes pending samples.
func (f *Feed) Run(ctx context.Context) error {
	if f.db != nil {
		maxID, err := f.db.CH.MaxID(ctx)
		if err != nil {
			return fmt.Errorf("seed sample id: %w", err)
		}
		f.nextID.Store(maxID)
	}

	nc, err := nats.Connect(f.cfg.URL,
		nats.Name("signal-feed-"+f.session),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("connect %s: %w", f.cfg.URL, err)
	}

	handler := func(msg *nats.Msg) {
		if err := f.HandleMessage(ctx, msg.Data); err != nil {
			f.metrics.RecordDecodeError()
			log.Printf("reading dropped: %v", err)
		}
	}
	if f.cfg.Queue != "" {
		_, err = nc.QueueSubscribe(f.cfg.Subject, f.cfg.Queue, handler)
	} else {
		_, err = nc.Subscribe(f.cfg.Subject, handler)
	}
	if err != nil {
		nc.Close()
		return fmt.Errorf("subscribe %q: %w", f.cfg.Subject, err)
	}
	log.Printf("subscribed to %q on %s (session %s)", f.cfg.Subject, f.cfg.URL, f.session)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.flushLoop(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.syncLoop(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.archiveLoop(ctx)
	}()

	<-ctx.Done()

	// Drain stops delivery after in-flight handlers complete.
	if err := nc.Drain(); err != nil {
		log.Printf("nats drain: %v", err)
	}
	wg.Wait()
	f.flush(context.Background())
	return nil
}

// DecodeReading decodes a feed message in either the wrapped envelope form
// or the flat reading form.
func DecodeReading(data []byte) (*tuner.Reading, error) {
	var w tuner.FeedWrapper
	if err := json.Unmarshal(data, &w); err == nil && w.Reading != nil {
		if rd := w.ToReading(); rd != nil && rd.Var != "" {
			return rd, nil
		}
	}

	var rd tuner.Reading
	if err := json.Unmarshal(data, &rd); err != nil {
		return nil, fmt.Errorf("decode reading: %w", err)
	}
	if rd.Var == "" && rd.Path != "" {
		if idx, name, ok := tuner.SplitVarPath(rd.Path); ok {
			rd.Tuner = idx
			rd.Var = name
		}
	}
	if rd.Var == "" {
		return nil, fmt.Errorf("reading has no variable name")
	}
	return &rd, nil
}

// HandleMessage decodes one feed message and fans it out to the tracker
// and storage. Exported so capture replays can push recorded lines through
// the same path.
func (f *Feed) HandleMessage(ctx context.Context, data []byte) error {
	rd, err := DecodeReading(data)
	if err != nil {
		return err
	}
	f.metrics.RecordReading(rd.Var)

	results := f.reg.Dispatch(rd)
	for _, res := range results {
		f.metrics.RecordResult(res.Type())
	}

	state.ExtractAndUpdate(f.tracker, rd, results)

	if f.local != nil {
		f.archiveReading(rd, results)
	}

	if f.db != nil {
		if sample, ok := f.buildSample(rd, results); ok {
			f.metrics.RecordSample()
			if f.enqueue(sample) {
				f.flush(ctx)
			}
		}
	}

	return nil
}

// buildSample converts a status reading into a ClickHouse sample row. Only
// readings that parsed as tuner status produce samples.
func (f *Feed) buildSample(rd *tuner.Reading, results []registry.Result) (storage.CHSampleParams, bool) {
	var st *status.Result
	for _, res := range results {
		if r, ok := res.(*status.Result); ok {
			st = r
			break
		}
	}
	if st == nil {
		return storage.CHSampleParams{}, false
	}

	ts, err := time.Parse(time.RFC3339, rd.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}

	p := storage.CHSampleParams{
		ID:             f.nextID.Add(1),
		Timestamp:      ts,
		DeviceID:       rd.DeviceID,
		Channel:        st.Channel,
		Lock:           st.Lock,
		SignalStrength: clampPct(st.SignalStrength),
		SignalQuality:  clampPct(st.SignalQuality),
		SymbolQuality:  clampPct(st.SymbolQuality),
		BitrateBPS:     uint64(st.BitsPerSecond),
		PacketsPerSec:  uint32(st.PacketsPerSecond),
		RawStatus:      rd.Value,
	}
	if rd.Tuner >= 0 && rd.Tuner < 256 {
		p.Tuner = uint8(rd.Tuner)
	}
	if st.SignalDBmV != nil {
		v := int16(*st.SignalDBmV)
		p.SignalDBmV = &v
	}
	if st.SNRdB != nil {
		v := int16(*st.SNRdB)
		p.SNRdB = &v
	}

	spec := tuner.ParseChannelSpec(st.Channel)
	if spec.Frequency != 0 {
		p.Frequency = uint32(spec.Frequency)
	} else if rd.Channel != nil {
		p.Frequency = uint32(rd.Channel.Frequency)
	}
	if rf := tuner.RFChannel(st.Channel); rf != 0 {
		p.RFChannel = uint16(rf)
	}

	return p, true
}

// clampPct bounds a reported percentage to the storage column range.
func clampPct(v int64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return uint8(v)
}

// enqueue adds a sample to the pending batch, reporting whether the batch
// reached the flush threshold.
func (f *Feed) enqueue(p storage.CHSampleParams) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batch = append(f.batch, p)
	return len(f.batch) >= f.cfg.BatchSize
}

// flush writes the pending sample batch to ClickHouse.
func (f *Feed) flush(ctx context.Context) {
	f.mu.Lock()
	pending := f.batch
	f.batch = nil
	f.mu.Unlock()

	if len(pending) == 0 || f.db == nil {
		return
	}
	if err := f.db.CH.InsertBatch(ctx, pending); err != nil {
		f.metrics.RecordStorageError()
		log.Printf("sample batch dropped (%d rows): %v", len(pending), err)
	}
}

func (f *Feed) flushLoop(ctx context.Context) {
	interval := f.cfg.FlushInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.flush(ctx)
		}
	}
}

// archiveReading stores the raw reading and its first parse result in the
// local archive.
func (f *Feed) archiveReading(rd *tuner.Reading, results []registry.Result) {
	ts := rd.Timestamp
	if ts == "" {
		ts = time.Now().UTC().Format(time.RFC3339)
	}

	p := storage.InsertParams{
		Timestamp: ts,
		DeviceID:  rd.DeviceID,
		Tuner:     rd.Tuner,
		Var:       rd.Var,
		Frequency: int64(rd.Frequency),
		RawValue:  rd.Value,
	}
	if len(results) > 0 {
		p.ParserType = results[0].Type()
		p.ParsedData = results[0]
		if lr, ok := results[0].(*l1detail.Result); ok {
			p.Truncated = lr.Truncated
		}
	}

	if _, err := f.local.Insert(p); err != nil {
		f.metrics.RecordStorageError()
		log.Printf("local archive: %v", err)
	}
}

func (f *Feed) syncLoop(ctx context.Context) {
	if f.db == nil {
		return
	}

	interval := f.cfg.SyncInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.sync(ctx); err != nil {
				f.metrics.RecordSyncError()
				log.Printf("sync: %v", err)
			} else {
				f.metrics.RecordSyncRun()
			}
			if f.cfg.StaleAfter > 0 {
				f.tracker.CleanupStale(f.cfg.StaleAfter)
			}
			f.metrics.SetActiveTuners(len(f.tracker.GetActiveTuners(f.activeWindow())))
		}
	}
}

func (f *Feed) activeWindow() time.Duration {
	if f.cfg.ActiveWindow > 0 {
		return f.cfg.ActiveWindow
	}
	return 5 * time.Minute
}

// sync pushes unsynced reference data and active tuner state to PostgreSQL.
// Records are marked synced only after a successful upsert, so a failed
// pass retries on the next tick.
func (f *Feed) sync(ctx context.Context) error {
	pg := f.db.PG

	devices, err := f.tracker.GetUnsyncedDevices()
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	for _, d := range devices {
		err := pg.UpsertDevice(ctx, storage.Device{
			ID:           d.ID,
			Model:        d.Model,
			Firmware:     d.Firmware,
			IP:           d.IP,
			Tuners:       d.Tuners,
			FirstSeen:    d.FirstSeen,
			LastSeen:     d.LastSeen,
			ReadingCount: d.ReadingCount,
		})
		if err != nil {
			return fmt.Errorf("device %s: %w", d.ID, err)
		}
		if err := f.tracker.MarkDeviceSynced(d.ID); err != nil {
			return fmt.Errorf("mark device %s: %w", d.ID, err)
		}
	}

	channels, err := f.tracker.GetUnsyncedChannels()
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}
	for _, c := range channels {
		err := pg.UpsertChannel(ctx, storage.Channel{
			Frequency:        int64(c.Frequency),
			RFChannel:        int(c.RF),
			Modulation:       c.Modulation,
			BSID:             c.BSID,
			TSID:             c.TSID,
			ObservationCount: c.ObservationCount,
			FirstSeen:        c.FirstSeen,
			LastSeen:         c.LastSeen,
		})
		if err != nil {
			return fmt.Errorf("channel %d: %w", c.Frequency, err)
		}

		programs, err := f.tracker.GetChannelPrograms(c.Frequency)
		if err != nil {
			return fmt.Errorf("programs %d: %w", c.Frequency, err)
		}
		for _, p := range programs {
			err := pg.UpsertChannelProgram(ctx, storage.Program{
				Frequency:        int64(p.Frequency),
				Number:           p.Number,
				VChannel:         p.VChannel,
				Name:             p.Name,
				Encrypted:        p.Encrypted,
				ObservationCount: p.ObservationCount,
				FirstSeen:        p.FirstSeen,
				LastSeen:         p.LastSeen,
			})
			if err != nil {
				return fmt.Errorf("program %d/%d: %w", p.Frequency, p.Number, err)
			}
		}

		if err := f.tracker.MarkChannelSynced(c.Frequency); err != nil {
			return fmt.Errorf("mark channel %d: %w", c.Frequency, err)
		}
	}

	// Active tuner state and channel coverage.
	for _, st := range f.tracker.GetActiveTuners(f.activeWindow()) {
		if err := pg.UpsertTunerState(ctx, tunerStateParams(st)); err != nil {
			return fmt.Errorf("tuner %s: %w", st.Key, err)
		}
		if st.Locked() && st.Frequency != 0 {
			err := pg.UpsertChannelDevice(ctx, storage.ChannelDevice{
				Frequency: int64(st.Frequency),
				DeviceID:  st.DeviceID,
				FirstSeen: st.FirstSeen,
				LastSeen:  st.LastSeen,
			})
			if err != nil {
				return fmt.Errorf("channel device %s: %w", st.Key, err)
			}
		}
	}

	return nil
}

// tunerStateParams converts tracked tuner state to storage form. Signal
// levels are genuine zeroes once a tuner reports, so they always carry;
// dB figures and stream ids carry only when present.
func tunerStateParams(st *state.TunerState) storage.TunerState {
	ts := storage.TunerState{
		Key:          st.Key,
		DeviceID:     st.DeviceID,
		Tuner:        st.Tuner,
		Channel:      st.Channel,
		Lock:         st.Lock,
		Frequency:    int64(st.Frequency),
		RFChannel:    int(st.RF),
		Version:      st.Version,
		PLPs:         st.PLPs,
		FirstSeen:    st.FirstSeen,
		LastSeen:     st.LastSeen,
		ReadingCount: st.ReadingCount,
	}

	ss, sq, sym := st.SignalStrength, st.SignalQuality, st.SymbolQuality
	ts.SignalStrength, ts.SignalQuality, ts.SymbolQuality = &ss, &sq, &sym

	if st.HasDB {
		dbmv, snr := st.SignalDBmV, st.SNRdB
		ts.SignalDBmV, ts.SNRdB = &dbmv, &snr
	}
	if st.BSID != 0 {
		bsid := st.BSID
		ts.BSID = &bsid
	}
	if st.TSID != 0 {
		tsid := st.TSID
		ts.TSID = &tsid
	}

	return ts
}

func (f *Feed) archiveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-f.l1ch:
			f.archiveL1(ctx, c)
		}
	}
}

// archiveL1 records a changed Layer-1 capture in both storage sinks: the
// current row in PostgreSQL and an immutable snapshot in ClickHouse.
func (f *Feed) archiveL1(ctx context.Context, c *state.L1Capture) {
	if f.db == nil {
		return
	}

	// The PostgreSQL row stores the summary as JSONB.
	var summary map[string]interface{}
	if b, err := json.Marshal(c.Summary); err == nil {
		_ = json.Unmarshal(b, &summary)
	}

	err := f.db.PG.UpsertL1Current(ctx, storage.L1Current{
		Frequency: int64(c.Frequency),
		DeviceID:  c.DeviceID,
		Tuner:     c.Tuner,
		Capture:   c.Capture,
		Summary:   summary,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		f.metrics.RecordStorageError()
		log.Printf("l1 current %d Hz: %v", c.Frequency, err)
	}

	snap := storage.CHL1Params{
		ID:        f.nextID.Add(1),
		DeviceID:  c.DeviceID,
		Frequency: c.Frequency,
		Capture:   c.Capture,
		Summary:   c.Summary,
	}
	if c.Tuner >= 0 && c.Tuner < 256 {
		snap.Tuner = uint8(c.Tuner)
	}
	if c.Summary.HasBSID {
		snap.BSID = int64(c.Summary.BSID)
	}
	if dec := l1.Decode(c.Capture); dec != nil {
		snap.DecodedLines = dec.Lines
		snap.Truncated = dec.Truncated
	}

	if err := f.db.CH.InsertL1Snapshot(ctx, snap); err != nil {
		f.metrics.RecordStorageError()
		log.Printf("l1 snapshot %d Hz: %v", c.Frequency, err)
	}
}
