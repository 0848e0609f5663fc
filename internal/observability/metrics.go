package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineCollector bundles the Prometheus metrics recorded by the motion
// engine on every tick.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	Ticks             prometheus.Counter
	TickDuration      prometheus.Histogram
	Tracks            prometheus.Gauge
	Groups            prometheus.Gauge
	PositionsWritten  *prometheus.CounterVec
	PositionsRejected prometheus.Counter
}

// NewEngineCollector registers engine metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
// Registering twice against the same registry reuses the existing
// collectors.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "animator_ticks_total",
		Help: "Total number of engine ticks processed.",
	}), "animator_ticks_total")
	if err != nil {
		return nil, err
	}

	// Control-rate ticks are expected in the low milliseconds.
	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "animator_tick_duration_seconds",
		Help:    "Wall-clock time spent computing one engine tick.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	}), "animator_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	tracks, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "animator_tracks",
		Help: "Current number of tracks in the registry.",
	}), "animator_tracks")
	if err != nil {
		return nil, err
	}

	groups, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "animator_groups",
		Help: "Current number of groups in the engine.",
	}), "animator_groups")
	if err != nil {
		return nil, err
	}

	written, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "animator_group_positions_written_total",
		Help: "Positions written by group updates, labeled by group.",
	}, []string{"group"}), "animator_group_positions_written_total")
	if err != nil {
		return nil, err
	}

	rejected, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "animator_positions_rejected_total",
		Help: "Position writes skipped because a component was NaN or infinite.",
	}), "animator_positions_rejected_total")
	if err != nil {
		return nil, err
	}

	return &EngineCollector{
		gatherer:          gatherer,
		Ticks:             ticks,
		TickDuration:      duration,
		Tracks:            tracks,
		Groups:            groups,
		PositionsWritten:  written,
		PositionsRejected: rejected,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *EngineCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveTick records one completed tick and the registry size after it.
func (c *EngineCollector) ObserveTick(d time.Duration, tracks, groups int) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.TickDuration.Observe(d.Seconds())
	c.Tracks.Set(float64(tracks))
	c.Groups.Set(float64(groups))
}

// AddGroupWrites counts positions written by one group update.
func (c *EngineCollector) AddGroupWrites(group string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.PositionsWritten.WithLabelValues(group).Add(float64(n))
}

// IncRejected counts one skipped non-finite position write.
func (c *EngineCollector) IncRejected() {
	if c == nil {
		return
	}
	c.PositionsRejected.Inc()
}

// ForgetGroup drops the per-group series of a removed group.
func (c *EngineCollector) ForgetGroup(group string) {
	if c == nil {
		return
	}
	c.PositionsWritten.DeleteLabelValues(group)
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C, name string) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			var zero C
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero C
		return zero, err
	}
	return c, nil
}
