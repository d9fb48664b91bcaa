package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine exposes counters for the sync core. Each instance carries its own
// registry so tests can construct engines freely.
type Engine struct {
	registry *prometheus.Registry

	eventsIngested  prometheus.Counter
	duplicates      prometheus.Counter
	anomalies       *prometheus.CounterVec
	reconnects      prometheus.Counter
	rollbacks       prometheus.Counter
	baselineLoads   prometheus.Counter
	connected       prometheus.Gauge
	activeIncidents prometheus.Gauge
	activeAlerts    prometheus.Gauge
}

func NewEngine() *Engine {
	reg := prometheus.NewRegistry()
	e := &Engine{registry: reg}

	e.eventsIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "console_push_events_ingested_total",
		Help: "New-incident events applied to the store",
	})
	e.duplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "console_push_duplicates_suppressed_total",
		Help: "Redelivered events dropped by duplicate suppression",
	})
	e.anomalies = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_anomalies_total",
		Help: "Rejected inputs by kind (decode, validation, ignored_type, conflict)",
	}, []string{"kind"})
	e.reconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "console_push_reconnects_total",
		Help: "Push channel reconnect attempts",
	})
	e.rollbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "console_optimistic_rollbacks_total",
		Help: "Optimistic mutations reverted after remote rejection",
	})
	e.baselineLoads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "console_baseline_loads_total",
		Help: "Baseline snapshots merged into the store",
	})
	e.connected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "console_push_connected",
		Help: "Push channel liveness (1=connected)",
	})
	e.activeIncidents = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "console_active_incidents",
		Help: "Incidents currently in active status",
	})
	e.activeAlerts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "console_alerts",
		Help: "Alerts currently held for the UI",
	})

	reg.MustRegister(e.eventsIngested, e.duplicates, e.anomalies, e.reconnects,
		e.rollbacks, e.baselineLoads, e.connected, e.activeIncidents, e.activeAlerts)
	return e
}

func (e *Engine) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

func (e *Engine) EventIngested()      { e.eventsIngested.Inc() }
func (e *Engine) DuplicateDropped()   { e.duplicates.Inc() }
func (e *Engine) Anomaly(kind string) { e.anomalies.WithLabelValues(kind).Inc() }
func (e *Engine) Reconnect()          { e.reconnects.Inc() }
func (e *Engine) Rollback()           { e.rollbacks.Inc() }
func (e *Engine) BaselineLoaded()     { e.baselineLoads.Inc() }

func (e *Engine) SetConnected(up bool) {
	if up {
		e.connected.Set(1)
	} else {
		e.connected.Set(0)
	}
}

func (e *Engine) SetActiveIncidents(n int) { e.activeIncidents.Set(float64(n)) }
func (e *Engine) SetAlerts(n int)          { e.activeAlerts.Set(float64(n)) }
