// Package api provides REST API endpoints over live tuner signal state.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"atsc3_parser/internal/l1"
	"atsc3_parser/internal/modcod"
	"atsc3_parser/internal/state"
	"atsc3_parser/internal/storage"
)

// SignalServer provides REST API access to tracked device, channel, and
// tuner state. History endpoints require ClickHouse and return 503 when
// the server runs tracker-only.
type SignalServer struct {
	tracker     *state.Tracker
	ch          *storage.ClickHouseDB // Optional: enables /history endpoints.
	port        int
	authEnabled bool
	apiKeys     map[string]bool // Simple API key auth (when enabled).
}

// Config holds configuration for the signal API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string // List of valid API keys.
}

// NewSignalServer creates a new signal API server. ch may be nil.
func NewSignalServer(tracker *state.Tracker, ch *storage.ClickHouseDB, cfg Config) *SignalServer {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	return &SignalServer{
		tracker:     tracker,
		ch:          ch,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
	}
}

// Run starts the HTTP server.
func (s *SignalServer) Run() error {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS for browser access.
	r.Use(corsMiddleware)

	// Optional authentication.
	if s.authEnabled {
		r.Use(s.authMiddleware)
	}

	r.Route("/api/v1", func(r chi.Router) {
		s.routes(r)
	})

	addr := ":" + itoa(s.port)
	log.Printf("Signal API starting at http://localhost%s", addr)
	if s.authEnabled {
		log.Printf("Authentication: ENABLED (API key required)")
	} else {
		log.Printf("Authentication: DISABLED (open access)")
	}

	return http.ListenAndServe(addr, r)
}

// Router returns the configured chi router for embedding in other servers.
func (s *SignalServer) Router() chi.Router {
	r := chi.NewRouter()

	// Optional authentication.
	if s.authEnabled {
		r.Use(s.authMiddleware)
	}

	s.routes(r)

	return r
}

func (s *SignalServer) routes(r chi.Router) {
	// Health check (no auth required beyond the shared middleware).
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)

	// Devices and their tuners.
	r.Get("/devices", s.handleListDevices)
	r.Get("/devices/{device_id}", s.handleGetDevice)

	// Current tuner state.
	r.Get("/tuners", s.handleListTuners)
	r.Get("/tuners/{device_id}/{tuner}", s.handleGetTuner)

	// Channels observed on air.
	r.Get("/channels", s.handleListChannels)
	r.Get("/channels/{frequency}", s.handleGetChannel)
	r.Get("/channels/{frequency}/l1", s.handleGetL1)

	// Reverse lookup: which channels carry a program name.
	r.Get("/programs/{name}/channels", s.handleProgramChannels)

	// ModCod threshold lookup.
	r.Get("/snr", s.handleSNR)

	// Sample history (ClickHouse-backed).
	r.Get("/history/samples", s.handleHistorySamples)
	r.Get("/history/l1/{frequency}", s.handleHistoryL1)
	r.Get("/history/stats", s.handleHistoryStats)
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *SignalServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check X-API-Key header first.
		apiKey := r.Header.Get("X-API-Key")

		// Fall back to Authorization: Bearer <key>.
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Fall back to query parameter (for simple testing).
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// PLPStatus annotates one PLP with the SNR threshold its modulation and
// code rate require. MinSNRdB is nil when the table has no row for the
// pair; MarginDB is nil until the tuner reports a measured SNR.
type PLPStatus struct {
	PLP        int      `json:"plp"`
	Modulation string   `json:"modulation"`
	CodeRate   string   `json:"code_rate"`
	MinSNRdB   *float64 `json:"min_snr_db,omitempty"`
	MarginDB   *float64 `json:"margin_db,omitempty"`
}

// TunerResponse is the JSON response for tuner state queries.
type TunerResponse struct {
	*state.TunerState
	PLPStatus []PLPStatus `json:"plp_status,omitempty"`
}

func tunerToResponse(st *state.TunerState) TunerResponse {
	resp := TunerResponse{TunerState: st}

	for _, desc := range st.PLPs {
		// Descriptors look like "0:qam256:11/15".
		parts := strings.SplitN(desc, ":", 3)
		if len(parts) != 3 {
			continue
		}
		id, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}

		ps := PLPStatus{PLP: id, Modulation: parts[1], CodeRate: parts[2]}
		if snr, ok := modcod.Lookup(modcod.Normalize(parts[1]), parts[2]); ok {
			min := snr.Min
			ps.MinSNRdB = &min
			if st.HasDB {
				margin := float64(st.SNRdB) - snr.Min
				ps.MarginDB = &margin
			}
		}
		resp.PLPStatus = append(resp.PLPStatus, ps)
	}

	return resp
}

// ChannelResponse is the JSON response for single-channel queries.
type ChannelResponse struct {
	*state.Channel
	Programs []*state.Program `json:"programs,omitempty"`
}

// DeviceResponse is the JSON response for single-device queries.
type DeviceResponse struct {
	*state.Device
	TunerStates []TunerResponse `json:"tuner_states,omitempty"`
}

// L1Response is the JSON response for L1 signaling queries: the stored
// summary plus the display lines decoded from the raw capture.
type L1Response struct {
	Frequency uint32     `json:"frequency"`
	DeviceID  string     `json:"device_id,omitempty"`
	Tuner     int        `json:"tuner"`
	Summary   l1.Summary `json:"summary"`
	Lines     []string   `json:"lines,omitempty"`
	Truncated bool       `json:"truncated,omitempty"`
	UpdatedAt string     `json:"updated_at"`
}

func l1ToResponse(c *state.L1Capture) L1Response {
	resp := L1Response{
		Frequency: c.Frequency,
		DeviceID:  c.DeviceID,
		Tuner:     c.Tuner,
		Summary:   c.Summary,
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}

	if dec := l1.Decode(c.Capture); dec != nil {
		resp.Lines = dec.Lines
		resp.Truncated = dec.Truncated
	}

	return resp
}

// SNRResponse is the JSON response for modcod threshold lookups.
type SNRResponse struct {
	Modulation string  `json:"modulation"`
	CodeRate   string  `json:"code_rate"`
	MinSNRdB   float64 `json:"min_snr_db"`
	MaxSNRdB   float64 `json:"max_snr_db"`
}

// SampleResponse is the JSON response for sample history queries.
type SampleResponse struct {
	ID             uint64 `json:"id"`
	Timestamp      string `json:"timestamp"`
	DeviceID       string `json:"device_id"`
	Tuner          uint8  `json:"tuner"`
	Channel        string `json:"channel,omitempty"`
	Lock           string `json:"lock,omitempty"`
	Frequency      uint32 `json:"frequency,omitempty"`
	RFChannel      uint16 `json:"rf_channel,omitempty"`
	SignalStrength uint8  `json:"signal_strength"`
	SignalQuality  uint8  `json:"signal_quality"`
	SymbolQuality  uint8  `json:"symbol_quality"`
	SignalDBmV     *int16 `json:"signal_dbmv,omitempty"`
	SNRdB          *int16 `json:"snr_db,omitempty"`
	BitrateBPS     uint64 `json:"bitrate_bps"`
	PacketsPerSec  uint32 `json:"packets_per_sec"`
	RawStatus      string `json:"raw_status,omitempty"`
}

func sampleToResponse(s *storage.CHSample) SampleResponse {
	return SampleResponse{
		ID:             s.ID,
		Timestamp:      s.Timestamp.Format(time.RFC3339),
		DeviceID:       s.DeviceID,
		Tuner:          s.Tuner,
		Channel:        s.Channel,
		Lock:           s.Lock,
		Frequency:      s.Frequency,
		RFChannel:      s.RFChannel,
		SignalStrength: s.SignalStrength,
		SignalQuality:  s.SignalQuality,
		SymbolQuality:  s.SymbolQuality,
		SignalDBmV:     s.SignalDBmV,
		SNRdB:          s.SNRdB,
		BitrateBPS:     s.BitrateBPS,
		PacketsPerSec:  s.PacketsPerSec,
		RawStatus:      s.RawStatus,
	}
}

// L1SnapshotResponse is the JSON response for archived L1 captures.
type L1SnapshotResponse struct {
	ID         uint64          `json:"id"`
	DeviceID   string          `json:"device_id,omitempty"`
	Tuner      uint8           `json:"tuner"`
	Frequency  uint32          `json:"frequency"`
	BSID       int64           `json:"bsid,omitempty"`
	Capture    string          `json:"capture"`
	Lines      []string        `json:"lines,omitempty"`
	Summary    json.RawMessage `json:"summary,omitempty"`
	Truncated  bool            `json:"truncated,omitempty"`
	RecordedAt string          `json:"recorded_at"`
}

func l1SnapshotToResponse(s *storage.CHL1Snapshot) L1SnapshotResponse {
	resp := L1SnapshotResponse{
		ID:         s.ID,
		DeviceID:   s.DeviceID,
		Tuner:      s.Tuner,
		Frequency:  s.Frequency,
		BSID:       s.BSID,
		Capture:    s.Capture,
		Truncated:  s.Truncated,
		RecordedAt: s.RecordedAt.Format(time.RFC3339),
	}

	if s.DecodedLines != "" {
		resp.Lines = strings.Split(s.DecodedLines, "\n")
	}
	// The summary column already holds JSON; pass it through verbatim.
	if s.Summary != "" {
		resp.Summary = json.RawMessage(s.Summary)
	}

	return resp
}

// HistoryStatsResponse is the JSON response for archive statistics.
type HistoryStatsResponse struct {
	TotalSamples  uint64            `json:"total_samples"`
	LockedSamples uint64            `json:"locked_samples"`
	L1Snapshots   uint64            `json:"l1_snapshots"`
	ByDevice      map[string]uint64 `json:"by_device,omitempty"`
	ByChannel     map[string]uint64 `json:"by_channel,omitempty"`
}

// StatsResponse is the JSON response for tracker statistics.
type StatsResponse struct {
	ActiveTuners  int `json:"active_tuners"`
	TotalDevices  int `json:"total_devices"`
	TotalChannels int `json:"total_channels"`
	TotalPrograms int `json:"total_programs"`
	UnsyncedCount int `json:"unsynced_count"`
}

func (s *SignalServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *SignalServer) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.tracker.GetStats()
	writeJSON(w, http.StatusOK, StatsResponse{
		ActiveTuners:  st.ActiveTuners,
		TotalDevices:  st.TotalDevices,
		TotalChannels: st.TotalChannels,
		TotalPrograms: st.TotalPrograms,
		UnsyncedCount: st.UnsyncedCount,
	})
}

func (s *SignalServer) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.tracker.GetDevices()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, devices)
}

func (s *SignalServer) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "device_id")
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "device_id is required")
		return
	}

	devices, err := s.tracker.GetDevices()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var device *state.Device
	for _, d := range devices {
		if strings.EqualFold(d.ID, deviceID) {
			device = d
			break
		}
	}
	if device == nil {
		writeError(w, http.StatusNotFound, "Device not found")
		return
	}

	resp := DeviceResponse{Device: device}
	for _, st := range s.tracker.GetAllTuners() {
		if strings.EqualFold(st.DeviceID, deviceID) {
			resp.TunerStates = append(resp.TunerStates, tunerToResponse(st))
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *SignalServer) handleListTuners(w http.ResponseWriter, r *http.Request) {
	var tuners []*state.TunerState

	if active := r.URL.Query().Get("active"); active != "" {
		window, err := time.ParseDuration(active)
		if err != nil || window <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid active window (use a duration like 5m)")
			return
		}
		tuners = s.tracker.GetActiveTuners(window)
	} else {
		tuners = s.tracker.GetAllTuners()
	}

	results := make([]TunerResponse, 0, len(tuners))
	for _, st := range tuners {
		results = append(results, tunerToResponse(st))
	}

	writeJSON(w, http.StatusOK, results)
}

func (s *SignalServer) handleGetTuner(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "device_id")
	tunerStr := chi.URLParam(r, "tuner")

	index, err := strconv.Atoi(tunerStr)
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "Invalid tuner index")
		return
	}

	// Device ids are stored as reported; fall back to a case-insensitive
	// scan when the exact key misses.
	st := s.tracker.GetTuner(state.Key(deviceID, index))
	if st == nil {
		for _, t := range s.tracker.GetAllTuners() {
			if t.Tuner == index && strings.EqualFold(t.DeviceID, deviceID) {
				st = t
				break
			}
		}
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "Tuner not found")
		return
	}

	writeJSON(w, http.StatusOK, tunerToResponse(st))
}

func (s *SignalServer) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.tracker.GetChannels()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, channels)
}

func (s *SignalServer) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	frequency, ok := parseFrequency(w, r)
	if !ok {
		return
	}

	channels, err := s.tracker.GetChannels()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var channel *state.Channel
	for _, c := range channels {
		if c.Frequency == frequency {
			channel = c
			break
		}
	}
	if channel == nil {
		writeError(w, http.StatusNotFound, "Channel not found")
		return
	}

	programs, err := s.tracker.GetChannelPrograms(frequency)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ChannelResponse{Channel: channel, Programs: programs})
}

func (s *SignalServer) handleGetL1(w http.ResponseWriter, r *http.Request) {
	frequency, ok := parseFrequency(w, r)
	if !ok {
		return
	}

	capture, err := s.tracker.GetL1Current(frequency)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if capture == nil {
		writeError(w, http.StatusNotFound, "No L1 capture for channel")
		return
	}

	writeJSON(w, http.StatusOK, l1ToResponse(capture))
}

func (s *SignalServer) handleProgramChannels(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	channels, err := s.tracker.GetProgramChannels(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(channels) == 0 {
		writeError(w, http.StatusNotFound, "Program not found")
		return
	}

	writeJSON(w, http.StatusOK, channels)
}

// handleSNR looks up the operating SNR window for a modulation and code
// rate. Both come as query parameters since code rates contain a slash.
func (s *SignalServer) handleSNR(w http.ResponseWriter, r *http.Request) {
	mod := r.URL.Query().Get("modulation")
	cod := r.URL.Query().Get("coderate")

	if mod == "" || cod == "" {
		writeError(w, http.StatusBadRequest, "modulation and coderate are required")
		return
	}

	normalized := modcod.Normalize(mod)
	snr, ok := modcod.Lookup(normalized, cod)
	if !ok {
		writeError(w, http.StatusNotFound, "No SNR entry for modulation/coderate")
		return
	}

	writeJSON(w, http.StatusOK, SNRResponse{
		Modulation: normalized,
		CodeRate:   cod,
		MinSNRdB:   snr.Min,
		MaxSNRdB:   snr.Max,
	})
}

func (s *SignalServer) handleHistorySamples(w http.ResponseWriter, r *http.Request) {
	if s.ch == nil {
		writeError(w, http.StatusServiceUnavailable, "History storage not configured")
		return
	}

	q := r.URL.Query()
	params := storage.CHSampleQuery{
		DeviceID:   q.Get("device_id"),
		Channel:    q.Get("channel"),
		LockedOnly: q.Get("locked") == "true",
		OrderBy:    "timestamp",
		OrderDesc:  true,
		Limit:      100,
	}

	if v := q.Get("frequency"); v != "" {
		hz, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid frequency")
			return
		}
		params.Frequency = uint32(hz)
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid since timestamp (use RFC3339)")
			return
		}
		params.Since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid until timestamp (use RFC3339)")
			return
		}
		params.Until = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 10000 {
			writeError(w, http.StatusBadRequest, "Invalid limit (1-10000)")
			return
		}
		params.Limit = n
	}

	ctx := context.Background()
	samples, err := s.ch.Query(ctx, params)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]SampleResponse, 0, len(samples))
	for i := range samples {
		results = append(results, sampleToResponse(&samples[i]))
	}

	writeJSON(w, http.StatusOK, results)
}

func (s *SignalServer) handleHistoryL1(w http.ResponseWriter, r *http.Request) {
	if s.ch == nil {
		writeError(w, http.StatusServiceUnavailable, "History storage not configured")
		return
	}

	frequency, ok := parseFrequency(w, r)
	if !ok {
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "Invalid limit (1-1000)")
			return
		}
		limit = n
	}

	ctx := context.Background()
	snapshots, err := s.ch.L1History(ctx, frequency, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]L1SnapshotResponse, 0, len(snapshots))
	for i := range snapshots {
		results = append(results, l1SnapshotToResponse(&snapshots[i]))
	}

	writeJSON(w, http.StatusOK, results)
}

func (s *SignalServer) handleHistoryStats(w http.ResponseWriter, r *http.Request) {
	if s.ch == nil {
		writeError(w, http.StatusServiceUnavailable, "History storage not configured")
		return
	}

	ctx := context.Background()
	stats, err := s.ch.GetStats(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, HistoryStatsResponse{
		TotalSamples:  stats.TotalSamples,
		LockedSamples: stats.LockedSamples,
		L1Snapshots:   stats.L1Snapshots,
		ByDevice:      stats.ByDevice,
		ByChannel:     stats.ByChannel,
	})
}

// Helper functions.

func parseFrequency(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	hz, err := strconv.ParseUint(chi.URLParam(r, "frequency"), 10, 32)
	if err != nil || hz == 0 {
		writeError(w, http.StatusBadRequest, "Invalid frequency (use Hz)")
		return 0, false
	}
	return uint32(hz), true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
