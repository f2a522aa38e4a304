package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the feed daemon. All record
// methods are safe to call on a nil receiver so the feed can run without
// metrics (tests, replay runs).
type Metrics struct {
	readingsTotal *prometheus.CounterVec // Readings consumed, by variable name.
	resultsTotal  *prometheus.CounterVec // Parse results produced, by type.
	decodeErrors  prometheus.Counter     // Messages that failed to decode.
	samplesTotal  prometheus.Counter     // Signal samples queued for ClickHouse.
	storageErrors prometheus.Counter     // Failed storage writes.
	syncRuns      prometheus.Counter     // Completed PostgreSQL sync passes.
	syncErrors    prometheus.Counter     // Failed PostgreSQL sync passes.
	l1Changes     prometheus.Counter     // Layer-1 capture changes observed.
	devicesNew    prometheus.Counter     // Devices seen for the first time.
	channelsNew   prometheus.Counter     // Channels seen for the first time.
	activeTuners  prometheus.Gauge       // Tuners reporting within the active window.
}

// NewMetrics creates and registers the feed collectors with the default
// Prometheus registry. Call at most once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		readingsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_feed_readings_total",
				Help: "Total readings consumed from the feed by variable name",
			},
			[]string{"var"},
		),
		resultsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_feed_results_total",
				Help: "Total parse results produced by result type",
			},
			[]string{"type"},
		),
		decodeErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "signal_feed_decode_errors_total",
				Help: "Total feed messages that failed to decode",
			},
		),
		samplesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "signal_feed_samples_total",
				Help: "Total signal samples queued for ClickHouse",
			},
		),
		storageErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "signal_feed_storage_errors_total",
				Help: "Total failed storage writes",
			},
		),
		syncRuns: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "signal_feed_sync_runs_total",
				Help: "Total completed PostgreSQL sync passes",
			},
		),
		syncErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "signal_feed_sync_errors_total",
				Help: "Total failed PostgreSQL sync passes",
			},
		),
		l1Changes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "signal_feed_l1_changes_total",
				Help: "Total Layer-1 capture changes observed",
			},
		),
		devicesNew: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "signal_feed_devices_new_total",
				Help: "Total devices seen for the first time",
			},
		),
		channelsNew: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "signal_feed_channels_new_total",
				Help: "Total channels seen for the first time",
			},
		),
		activeTuners: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "signal_feed_active_tuners",
				Help: "Tuners that reported within the active window",
			},
		),
	}
}

func (m *Metrics) RecordReading(varName string) {
	if m == nil {
		return
	}
	m.readingsTotal.WithLabelValues(varName).Inc()
}

func (m *Metrics) RecordResult(resultType string) {
	if m == nil {
		return
	}
	m.resultsTotal.WithLabelValues(resultType).Inc()
}

func (m *Metrics) RecordDecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

func (m *Metrics) RecordSample() {
	if m == nil {
		return
	}
	m.samplesTotal.Inc()
}

func (m *Metrics) RecordStorageError() {
	if m == nil {
		return
	}
	m.storageErrors.Inc()
}

func (m *Metrics) RecordSyncRun() {
	if m == nil {
		return
	}
	m.syncRuns.Inc()
}

func (m *Metrics) RecordSyncError() {
	if m == nil {
		return
	}
	m.syncErrors.Inc()
}

func (m *Metrics) RecordL1Change() {
	if m == nil {
		return
	}
	m.l1Changes.Inc()
}

func (m *Metrics) RecordDeviceNew() {
	if m == nil {
		return
	}
	m.devicesNew.Inc()
}

func (m *Metrics) RecordChannelNew() {
	if m == nil {
		return
	}
	m.channelsNew.Inc()
}

func (m *Metrics) SetActiveTuners(n int) {
	if m == nil {
		return
	}
	m.activeTuners.Set(float64(n))
}
