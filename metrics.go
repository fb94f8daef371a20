package tapestry

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// MetricsRegistry collects the application's metrics. It is served at the
// configured metrics path.
type MetricsRegistry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

func newMetricsRegistry() (MetricsRegistry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	return reg, nil
}

// FormMetrics counts form submissions by outcome.
type FormMetrics interface {
	ObserveSubmission(form string, outcome Outcome)
}

type formMetrics struct {
	submissions *prometheus.CounterVec
}

func newFormMetrics(reg MetricsRegistry) (FormMetrics, error) {
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tapestry_form_submissions_total",
		Help: "Form submissions by form id and outcome.",
	}, []string{"form", "outcome"})
	c, err := register(reg, submissions)
	if err != nil {
		return nil, err
	}
	return &formMetrics{submissions: c}, nil
}

func (m *formMetrics) ObserveSubmission(form string, outcome Outcome) {
	m.submissions.WithLabelValues(form, outcome.String()).Inc()
}

// timedEncoder observes how long encoding t:formdata takes.
type timedEncoder struct {
	ClientDataEncoder
	seconds prometheus.Histogram
}

func newTimedEncoder(delegate ClientDataEncoder, reg MetricsRegistry) (ClientDataEncoder, error) {
	h, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tapestry_formdata_encode_seconds",
		Help:    "Time spent encoding client data.",
		Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
	}))
	if err != nil {
		return nil, err
	}
	return &timedEncoder{ClientDataEncoder: delegate, seconds: h}, nil
}

func (e *timedEncoder) Encode(v any) (string, error) {
	start := time.Now()
	defer func() { e.seconds.Observe(time.Since(start).Seconds()) }()
	return e.ClientDataEncoder.Encode(v)
}

// register registers c, or returns the collector already registered under
// the same descriptor.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}
