package metrics

import (
	"net/http"
	"time"

	"route-navigator/internal/logging"
	"route-navigator/internal/nav"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveSessions  prometheus.Gauge
	SessionsStarted prometheus.Counter
	SessionsEnded   prometheus.Counter

	FixesAccepted prometheus.Counter
	FixesRejected *prometheus.CounterVec // reason label: too_close|no_position|invalid
	FixesDropped  prometheus.Counter

	StateTransitions *prometheus.CounterVec // state label: target state
	ReRoutes         *prometheus.CounterVec // result label: ok|failed|discarded
	ReRouteDuration  prometheus.Histogram

	RouteLookups *prometheus.CounterVec // result label: hit|miss|error

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	PublishInterval   prometheus.Gauge // seconds
	DistanceTolerance prometheus.Gauge // meters
	TimeTolerance     prometheus.Gauge // seconds
}

func NewCollector(publishInterval time.Duration, distanceTolerance float64, timeTolerance time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "navigator_active_sessions",
			Help: "Number of vehicles with a running navigation engine.",
		}),
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "navigator_sessions_started_total",
			Help: "Total navigation sessions started.",
		}),
		SessionsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "navigator_sessions_ended_total",
			Help: "Total navigation sessions ended.",
		}),
		FixesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "navigator_fixes_accepted_total",
			Help: "Total position fixes processed.",
		}),
		FixesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "navigator_fixes_rejected_total",
			Help: "Total position fixes ignored, by reason.",
		}, []string{"reason"}),
		FixesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "navigator_fixes_dropped_total",
			Help: "Fixes dropped because a vehicle's queue was full.",
		}),
		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "navigator_state_transitions_total",
			Help: "Navigation state changes, by new state.",
		}, []string{"state"}),
		ReRoutes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "navigator_reroutes_total",
			Help: "Route recalculations, by result.",
		}, []string{"result"}),
		ReRouteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "navigator_reroute_duration_seconds",
			Help:    "Time taken by the router to compute a new route.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		RouteLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "navigator_route_lookups_total",
			Help: "Stored route lookups, by result.",
		}, []string{"result"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "navigator_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "navigator_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "navigator_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "navigator_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		PublishInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "navigator_publish_interval_seconds",
			Help: "Snapshot publish interval in seconds.",
		}),
		DistanceTolerance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "navigator_distance_tolerance_meters",
			Help: "Distance from the route at which a vehicle counts as off route.",
		}),
		TimeTolerance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "navigator_time_tolerance_seconds",
			Help: "Time off route before a new route is needed.",
		}),
	}

	reg.MustRegister(
		c.ActiveSessions, c.SessionsStarted, c.SessionsEnded,
		c.FixesAccepted, c.FixesRejected, c.FixesDropped,
		c.StateTransitions, c.ReRoutes, c.ReRouteDuration, c.RouteLookups,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.PublishInterval, c.DistanceTolerance, c.TimeTolerance,
	)

	c.PublishInterval.Set(publishInterval.Seconds())
	c.DistanceTolerance.Set(distanceTolerance)
	c.TimeTolerance.Set(timeTolerance.Seconds())

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, log *logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "error", err)
		}
	}()
	log.Info("metrics listening", "addr", addr)
	return srv
}

// Navigator adapts the collector to the engine's Metrics interface. A nil
// collector yields a no-op implementation.
func (c *Collector) Navigator() nav.Metrics {
	if c == nil {
		return nopNav{}
	}
	return navMetrics{c}
}

type navMetrics struct{ c *Collector }

func (m navMetrics) FixAccepted()              { m.c.FixesAccepted.Inc() }
func (m navMetrics) FixRejected(reason string) { m.c.FixesRejected.WithLabelValues(reason).Inc() }
func (m navMetrics) StateChanged(_, to nav.State) {
	m.c.StateTransitions.WithLabelValues(to.String()).Inc()
}
func (m navMetrics) ReRouted(result string, elapsed time.Duration) {
	m.c.ReRoutes.WithLabelValues(result).Inc()
	if result != "discarded" {
		m.c.ReRouteDuration.Observe(elapsed.Seconds())
	}
}

type nopNav struct{}

func (nopNav) FixAccepted()                      {}
func (nopNav) FixRejected(string)                {}
func (nopNav) StateChanged(nav.State, nav.State) {}
func (nopNav) ReRouted(string, time.Duration)    {}

// RouteLookup records a stored route lookup.
func (c *Collector) RouteLookup(result string) { c.RouteLookups.WithLabelValues(result).Inc() }
