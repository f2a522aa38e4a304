package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"atsc3_parser/internal/l1"
	"atsc3_parser/internal/state"
)

// newTestServer builds a server over an in-memory tracker.
func newTestServer(t *testing.T, cfg Config) (*SignalServer, *state.Tracker) {
	t.Helper()

	tracker, err := state.NewTracker("")
	if err != nil {
		t.Fatalf("failed to create tracker: %v", err)
	}
	t.Cleanup(func() { tracker.Close() })

	return NewSignalServer(tracker, nil, cfg), tracker
}

func seedTuner(t *testing.T, tracker *state.Tracker) {
	t.Helper()

	_, isNew := tracker.UpdateTuner(state.TunerUpdate{
		DeviceID:       "1058A2C4",
		Tuner:          0,
		Channel:        "atsc3:605000000",
		Lock:           "atsc3",
		Frequency:      605000000,
		RF:             36,
		Modulation:     "qam256",
		HasSignal:      true,
		SignalStrength: 94,
		SignalQuality:  87,
		SymbolQuality:  100,
		HasDB:          true,
		SignalDBmV:     -7,
		SNRdB:          23,
		BSID:           2648,
		PLPs:           []string{"0:qam256:11/15"},
		Model:          "HDHR5-4K",
		Programs: []state.ProgramSeen{
			{Number: 5004, VChannel: "5.4", Name: "KCNS-TV"},
		},
	})
	if !isNew {
		t.Fatalf("expected first update to open a tuning session")
	}
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t, Config{Port: 8081})
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	server, _ := newTestServer(t, Config{
		Port:        8081,
		AuthEnabled: true,
		APIKeys:     []string{"test-key-123", "another-key"},
	})
	router := server.Router()

	tests := []struct {
		name       string
		apiKey     string
		keyHeader  string
		wantStatus int
	}{
		{
			name:       "no key",
			apiKey:     "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "invalid key",
			apiKey:     "wrong-key",
			keyHeader:  "X-API-Key",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "valid key via X-API-Key",
			apiKey:     "test-key-123",
			keyHeader:  "X-API-Key",
			wantStatus: http.StatusOK,
		},
		{
			name:       "valid key via Bearer",
			apiKey:     "another-key",
			keyHeader:  "Authorization",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.apiKey != "" {
				if tt.keyHeader == "Authorization" {
					req.Header.Set("Authorization", "Bearer "+tt.apiKey)
				} else {
					req.Header.Set(tt.keyHeader, tt.apiKey)
				}
			}

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestAuthMiddlewareQueryParam(t *testing.T) {
	server, _ := newTestServer(t, Config{
		Port:        8081,
		AuthEnabled: true,
		APIKeys:     []string{"query-key"},
	})
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/health?api_key=query-key", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

func TestTunerEndpoints(t *testing.T) {
	server, tracker := newTestServer(t, Config{Port: 8081})
	seedTuner(t, tracker)
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/tuners", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var list []TunerResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 tuner, got %d", len(list))
	}
	if list[0].Key != "1058A2C4/0" {
		t.Errorf("expected key '1058A2C4/0', got %q", list[0].Key)
	}

	// Single tuner lookup falls back to a case-insensitive match.
	req = httptest.NewRequest(http.MethodGet, "/tuners/1058a2c4/0", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var single TunerResponse
	if err := json.NewDecoder(rec.Body).Decode(&single); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if single.Frequency != 605000000 {
		t.Errorf("expected frequency 605000000, got %d", single.Frequency)
	}
	if single.SNRdB != 23 {
		t.Errorf("expected snr 23, got %d", single.SNRdB)
	}

	// Unknown tuner.
	req = httptest.NewRequest(http.MethodGet, "/tuners/1058A2C4/3", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}

	// Bad index.
	req = httptest.NewRequest(http.MethodGet, "/tuners/1058A2C4/x", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestTunerResponseFormat(t *testing.T) {
	st := &state.TunerState{
		Key:      "1058A2C4/0",
		DeviceID: "1058A2C4",
		Channel:  "atsc3:605000000",
		Lock:     "atsc3",
		HasDB:    true,
		SNRdB:    23,
		PLPs:     []string{"0:qam256:11/15", "1:qam16:14/15", "garbage"},
	}

	resp := tunerToResponse(st)

	if len(resp.PLPStatus) != 2 {
		t.Fatalf("expected 2 plp status entries, got %d", len(resp.PLPStatus))
	}

	first := resp.PLPStatus[0]
	if first.PLP != 0 || first.Modulation != "qam256" || first.CodeRate != "11/15" {
		t.Errorf("unexpected first plp status: %+v", first)
	}
	if first.MinSNRdB == nil || *first.MinSNRdB != 15.35 {
		t.Errorf("expected min snr 15.35, got %v", first.MinSNRdB)
	}
	if first.MarginDB == nil || *first.MarginDB != 23-15.35 {
		t.Errorf("expected margin %.2f, got %v", 23-15.35, first.MarginDB)
	}

	// 14/15 has no table row: the pair is reported without thresholds.
	second := resp.PLPStatus[1]
	if second.PLP != 1 || second.CodeRate != "14/15" {
		t.Errorf("unexpected second plp status: %+v", second)
	}
	if second.MinSNRdB != nil || second.MarginDB != nil {
		t.Errorf("expected nil thresholds for 14/15, got %+v", second)
	}
}

func TestTunerResponseNoMeasurement(t *testing.T) {
	st := &state.TunerState{
		Key:  "1058A2C4/0",
		PLPs: []string{"0:qam256:11/15"},
	}

	resp := tunerToResponse(st)

	if len(resp.PLPStatus) != 1 {
		t.Fatalf("expected 1 plp status entry, got %d", len(resp.PLPStatus))
	}
	if resp.PLPStatus[0].MinSNRdB == nil {
		t.Error("expected threshold even without a measurement")
	}
	if resp.PLPStatus[0].MarginDB != nil {
		t.Errorf("expected nil margin without a measurement, got %v", *resp.PLPStatus[0].MarginDB)
	}
}

func TestDeviceEndpoints(t *testing.T) {
	server, tracker := newTestServer(t, Config{Port: 8081})
	seedTuner(t, tracker)
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/devices", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var devices []state.Device
	if err := json.NewDecoder(rec.Body).Decode(&devices); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "1058A2C4" {
		t.Fatalf("unexpected device list: %+v", devices)
	}
	if devices[0].Model != "HDHR5-4K" {
		t.Errorf("expected model 'HDHR5-4K', got %q", devices[0].Model)
	}

	req = httptest.NewRequest(http.MethodGet, "/devices/1058a2c4", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var device DeviceResponse
	if err := json.NewDecoder(rec.Body).Decode(&device); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(device.TunerStates) != 1 {
		t.Errorf("expected 1 tuner state, got %d", len(device.TunerStates))
	}

	req = httptest.NewRequest(http.MethodGet, "/devices/FFFFFFFF", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestChannelEndpoints(t *testing.T) {
	server, tracker := newTestServer(t, Config{Port: 8081})
	seedTuner(t, tracker)
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/channels/605000000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var channel ChannelResponse
	if err := json.NewDecoder(rec.Body).Decode(&channel); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if channel.RF != 36 {
		t.Errorf("expected rf channel 36, got %d", channel.RF)
	}
	if channel.BSID != 2648 {
		t.Errorf("expected bsid 2648, got %d", channel.BSID)
	}
	if len(channel.Programs) != 1 || channel.Programs[0].Name != "KCNS-TV" {
		t.Errorf("unexpected programs: %+v", channel.Programs)
	}

	// Invalid frequency parameter.
	req = httptest.NewRequest(http.MethodGet, "/channels/not-hz", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}

	// Unknown frequency.
	req = httptest.NewRequest(http.MethodGet, "/channels/599000000", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestProgramChannelsEndpoint(t *testing.T) {
	server, tracker := newTestServer(t, Config{Port: 8081})
	seedTuner(t, tracker)
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/programs/KCNS-TV/channels", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var channels []state.Channel
	if err := json.NewDecoder(rec.Body).Decode(&channels); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(channels) != 1 || channels[0].Frequency != 605000000 {
		t.Errorf("unexpected channels: %+v", channels)
	}

	req = httptest.NewRequest(http.MethodGet, "/programs/NOSUCH/channels", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestSNREndpoint(t *testing.T) {
	server, _ := newTestServer(t, Config{Port: 8081})
	router := server.Router()

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantMin    float64
	}{
		{
			name:       "device modulation string",
			target:     "/snr?modulation=qam256&coderate=11/15",
			wantStatus: http.StatusOK,
			wantMin:    15.35,
		},
		{
			name:       "table modulation string",
			target:     "/snr?modulation=256QAM&coderate=8/15",
			wantStatus: http.StatusOK,
			wantMin:    12.05,
		},
		{
			name:       "undefined code rate",
			target:     "/snr?modulation=qam256&coderate=14/15",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing parameters",
			target:     "/snr?modulation=qam256",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp SNRResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.MinSNRdB != tt.wantMin {
				t.Errorf("expected min snr %.2f, got %.2f", tt.wantMin, resp.MinSNRdB)
			}
		})
	}
}

func TestL1Endpoint(t *testing.T) {
	server, tracker := newTestServer(t, Config{Port: 8081})
	router := server.Router()

	tracker.UpdateL1(&state.L1Capture{
		Frequency: 605000000,
		DeviceID:  "1058A2C4",
		Tuner:     0,
		Capture:   "not-decodable",
		Summary: l1.Summary{
			BasicVersion: 1,
			NumSubframes: 1,
			NumRF:        1,
			HasBSID:      true,
			BSID:         2648,
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/channels/605000000/l1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp L1Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Frequency != 605000000 {
		t.Errorf("expected frequency 605000000, got %d", resp.Frequency)
	}
	if !resp.Summary.HasBSID || resp.Summary.BSID != 2648 {
		t.Errorf("unexpected summary: %+v", resp.Summary)
	}
	// The capture is not valid base64, so no display lines decode.
	if len(resp.Lines) != 0 {
		t.Errorf("expected no decoded lines, got %d", len(resp.Lines))
	}

	req = httptest.NewRequest(http.MethodGet, "/channels/599000000/l1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	server, tracker := newTestServer(t, Config{Port: 8081})
	seedTuner(t, tracker)
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp StatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ActiveTuners != 1 {
		t.Errorf("expected 1 active tuner, got %d", resp.ActiveTuners)
	}
	if resp.TotalDevices != 1 {
		t.Errorf("expected 1 device, got %d", resp.TotalDevices)
	}
	if resp.TotalChannels != 1 {
		t.Errorf("expected 1 channel, got %d", resp.TotalChannels)
	}
}

func TestActiveTunersWindow(t *testing.T) {
	server, tracker := newTestServer(t, Config{Port: 8081})
	seedTuner(t, tracker)
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/tuners?active=5m", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var list []TunerResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 active tuner, got %d", len(list))
	}

	req = httptest.NewRequest(http.MethodGet, "/tuners?active=soon", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestHistoryEndpointsWithoutStorage(t *testing.T) {
	server, _ := newTestServer(t, Config{Port: 8081})
	router := server.Router()

	targets := []string{
		"/history/samples",
		"/history/l1/605000000",
		"/history/stats",
	}

	for _, target := range targets {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected status 503, got %d", target, rec.Code)
		}
	}
}

func TestCORSHeaders(t *testing.T) {
	// Build a router with CORS middleware the way Run does.
	r := chi.NewRouter()
	r.Use(corsMiddleware)
	r.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Test OPTIONS request.
	req := httptest.NewRequest(http.MethodOptions, "/test", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200 for OPTIONS, got %d", rec.Code)
	}

	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS Allow-Origin header")
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("expected CORS Allow-Methods header")
	}
}
