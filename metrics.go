package ecojuicer

import (
	"time"

	"github.com/jd3nn1s/ecojuicer/obd"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports polling health and trip totals. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	samples        prometheus.Counter
	cycleErrors    *prometheus.CounterVec
	decodeFailures *prometheus.CounterVec
	queryLatency   *prometheus.HistogramVec
	distance       prometheus.Gauge
	fuelUsed       prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecojuicer_samples_total",
			Help: "Polling cycles that produced a telemetry snapshot.",
		}),
		cycleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecojuicer_cycle_errors_total",
			Help: "Polling cycles that ended in an error snapshot.",
		}, []string{"kind"}),
		decodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecojuicer_decode_failures_total",
			Help: "Adapter responses that did not decode to a value.",
		}, []string{"command", "kind"}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ecojuicer_query_duration_seconds",
			Help:    "Round trip time of a single adapter request.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"command"}),
		distance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ecojuicer_trip_distance_km",
			Help: "Distance travelled in the current trip.",
		}),
		fuelUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ecojuicer_trip_fuel_used_litres",
			Help: "Fuel used in the current trip.",
		}),
	}
	reg.MustRegister(m.samples, m.cycleErrors, m.decodeFailures, m.queryLatency, m.distance, m.fuelUsed)
	return m
}

func (m *Metrics) observeQuery(cmd obd.Command, d time.Duration) {
	if m == nil {
		return
	}
	m.queryLatency.WithLabelValues(cmd.String()).Observe(d.Seconds())
}

func (m *Metrics) observeReading(cmd obd.Command, r Reading) {
	if m == nil || r.Err == nil {
		return
	}
	m.decodeFailures.WithLabelValues(cmd.String(), obd.KindOf(r.Err).String()).Inc()
}

func (m *Metrics) observeSnapshot(s Snapshot) {
	if m == nil {
		return
	}
	if s.Err != nil {
		m.cycleErrors.WithLabelValues(errorKind(s.Err)).Inc()
		return
	}
	m.samples.Inc()
	m.distance.Set(s.DistanceKm)
	m.fuelUsed.Set(s.FuelUsedL)
}

func errorKind(err error) string {
	switch errors.Cause(err) {
	case obd.ErrReadTimeout, obd.ErrWriteTimeout:
		return "io_timeout"
	case obd.ErrLinkClosed:
		return "io_error"
	}
	if kind := obd.KindOf(err); kind != 0 {
		return kind.String()
	}
	return "other"
}
