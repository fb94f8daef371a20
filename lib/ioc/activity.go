package ioc

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

// Status is a service's realization state.
type Status int32

const (
	// StatusDefined services have not been looked up.
	StatusDefined Status = iota
	// StatusVirtual services have a proxy but no realized implementation.
	StatusVirtual
	// StatusReal services have been realized.
	StatusReal
)

func (s Status) String() string {
	switch s {
	case StatusDefined:
		return "defined"
	case StatusVirtual:
		return "virtual"
	case StatusReal:
		return "real"
	}
	return "unknown"
}

// ServiceActivity describes one service for diagnostics.
type ServiceActivity struct {
	ServiceID string
	Interface string
	Scope     string
	Markers   []string
	Status    Status
}

// ServiceActivity returns the scoreboard of every service, sorted by id.
func (r *Registry) ServiceActivity() []ServiceActivity {
	out := make([]ServiceActivity, 0, len(r.order))
	for _, e := range r.order {
		out = append(out, ServiceActivity{
			ServiceID: e.def.ID,
			Interface: e.def.Interface.String(),
			Scope:     e.def.Scope,
			Markers:   e.def.Markers,
			Status:    Status(e.status.Load()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceID < out[j].ServiceID })
	return out
}

// ActivityCollector exports service counts per status as the
// tapestry_ioc_services gauge.
type ActivityCollector struct {
	registry *Registry
	desc     *prometheus.Desc
}

var _ prometheus.Collector = (*ActivityCollector)(nil)

// NewActivityCollector returns a collector over r's scoreboard.
func NewActivityCollector(r *Registry) *ActivityCollector {
	return &ActivityCollector{
		registry: r,
		desc: prometheus.NewDesc(
			"tapestry_ioc_services",
			"Number of IoC services by realization status.",
			[]string{"status"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *ActivityCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *ActivityCollector) Collect(ch chan<- prometheus.Metric) {
	counts := map[Status]int{StatusDefined: 0, StatusVirtual: 0, StatusReal: 0}
	for _, a := range c.registry.ServiceActivity() {
		counts[a.Status]++
	}
	for _, s := range []Status{StatusDefined, StatusVirtual, StatusReal} {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(counts[s]), s.String())
	}
}
