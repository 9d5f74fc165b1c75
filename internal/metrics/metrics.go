// Package metrics exports traversal activity to Prometheus.
package metrics

import (
	"errors"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/softtagz-sys/medikits-flowchart/internal/traversal"
)

const namespace = "flowchart"

// TransitionMetrics is a traversal.TransitionObserver.
type TransitionMetrics struct {
	transitions *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	trailLength prometheus.Histogram
}

// New registers the collectors on reg. Collectors that are already
// registered are reused.
func New(reg prometheus.Registerer) (*TransitionMetrics, error) {
	m := &TransitionMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "traversal",
			Name:      "transitions_total",
			Help:      "Accepted traversal transitions by action and node kind.",
		}, []string{"graph", "action", "kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "traversal",
			Name:      "rejected_total",
			Help:      "Traversal actions refused by the engine.",
		}, []string{"graph", "action"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "traversal",
			Name:      "outcomes_total",
			Help:      "Sessions that reached an end state, by reason.",
		}, []string{"graph", "reason"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "traversal",
			Name:      "transition_seconds",
			Help:      "Time spent applying one traversal action.",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}, []string{"action"}),
		trailLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "traversal",
			Name:      "trail_length",
			Help:      "Trail length when a session ends.",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		}),
	}

	var err error
	if m.transitions, err = register(reg, m.transitions); err != nil {
		return nil, err
	}
	if m.rejected, err = register(reg, m.rejected); err != nil {
		return nil, err
	}
	if m.outcomes, err = register(reg, m.outcomes); err != nil {
		return nil, err
	}
	if m.latency, err = register(reg, m.latency); err != nil {
		return nil, err
	}
	if m.trailLength, err = register(reg, m.trailLength); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if reg == nil {
		return c, nil
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *TransitionMetrics) ObserveTransition(ev traversal.TransitionEvent) {
	if m == nil {
		return
	}
	action := string(ev.Action)
	m.latency.WithLabelValues(action).Observe(ev.Duration.Seconds())
	if ev.Err != nil {
		m.rejected.WithLabelValues(ev.GraphID, action).Inc()
		return
	}
	m.transitions.WithLabelValues(ev.GraphID, action, string(ev.Kind)).Inc()
	// Only the transition that ends a session counts toward outcomes.
	if ev.Status == traversal.StatusEnded && ev.PrevStatus != traversal.StatusEnded {
		m.outcomes.WithLabelValues(ev.GraphID, string(ev.Reason)).Inc()
		m.trailLength.Observe(float64(ev.TrailLen))
	}
}

// WriteText dumps everything g gathers in the Prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
