package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Collector struct {
	reg *prometheus.Registry

	Onboard   prometheus.Gauge
	StopIndex prometheus.Gauge
	Halted    prometheus.Gauge

	TicketsIssued     prometheus.Counter
	TicketsRejected   *prometheus.CounterVec // reason label: invalid_range|capacity_exceeded|...
	TicketsRemoved    prometheus.Counter
	TicketsReconciled prometheus.Counter
	Arrivals          prometheus.Counter

	Forecasts        *prometheus.CounterVec // source label: model|fallback
	ForecastDuration prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	JournalErrs prometheus.Counter
	SinkDropped prometheus.Counter

	TickDuration    prometheus.Histogram
	PublishDuration prometheus.Histogram

	Capacity        prometheus.Gauge
	SpeedMultiplier prometheus.Gauge
	TickInterval    prometheus.Gauge // seconds
}

func NewCollector(capacity int, speedMultiplier float64, tickInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Onboard: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swiftroute_onboard_passengers",
			Help: "Passengers currently onboard.",
		}),
		StopIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swiftroute_stop_index",
			Help: "Index of the stop the bus last departed from.",
		}),
		Halted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swiftroute_halted",
			Help: "1 while the bus dwells at a stop, 0 in transit.",
		}),
		TicketsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swiftroute_tickets_issued_total",
			Help: "Total tickets issued.",
		}),
		TicketsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swiftroute_tickets_rejected_total",
			Help: "Ticket issuances rejected, by reason.",
		}, []string{"reason"}),
		TicketsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swiftroute_tickets_removed_total",
			Help: "Tickets removed by a conductor.",
		}),
		TicketsReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swiftroute_tickets_reconciled_total",
			Help: "Tickets dropped on arrival past their destination.",
		}),
		Arrivals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swiftroute_arrivals_total",
			Help: "Stop index changes.",
		}),
		Forecasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swiftroute_forecasts_total",
			Help: "Occupancy forecasts served, by source.",
		}, []string{"source"}),
		ForecastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "swiftroute_forecast_duration_seconds",
			Help:    "Duration of occupancy forecasts including fallback.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swiftroute_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swiftroute_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swiftroute_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		JournalErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swiftroute_journal_errors_total",
			Help: "Manifest journal writes that failed.",
		}),
		SinkDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swiftroute_sink_events_dropped_total",
			Help: "Bus events dropped because the sink queue was full.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "swiftroute_tick_duration_seconds",
			Help:    "Duration of simulation tick computations.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "swiftroute_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		Capacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swiftroute_capacity_passengers",
			Help: "Maximum onboard passengers.",
		}),
		SpeedMultiplier: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swiftroute_speed_multiplier",
			Help: "Current speed multiplier.",
		}),
		TickInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swiftroute_tick_interval_seconds",
			Help: "Simulation tick interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.Onboard, c.StopIndex, c.Halted,
		c.TicketsIssued, c.TicketsRejected, c.TicketsRemoved, c.TicketsReconciled, c.Arrivals,
		c.Forecasts, c.ForecastDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.JournalErrs, c.SinkDropped, c.TickDuration, c.PublishDuration,
		c.Capacity, c.SpeedMultiplier, c.TickInterval,
	)

	c.Capacity.Set(float64(capacity))
	c.SpeedMultiplier.Set(speedMultiplier)
	c.TickInterval.Set(tickInterval.Seconds())

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()
	log.Info().Str("addr", addr).Msg("metrics listening")
	return srv
}

// NATSPublishedInc and friends let the collector serve as publisher.Metrics.
func (c *Collector) NATSPublishedInc()              { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()             { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }
func (c *Collector) NATSSetConnected(b bool) {
	if b {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) ForecastServed(source string, d time.Duration) {
	c.Forecasts.WithLabelValues(source).Inc()
	c.ForecastDuration.Observe(d.Seconds())
}
