// Package metrics exposes PBX registry state as Prometheus metrics,
// gathered at scrape time the way the teacher repo's metrics.Collector
// does — a pull-based collector over injected provider interfaces rather
// than metrics pushed as transitions happen.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coreswitch/pbx/internal/pbx"
)

// RegistryStats is the subset of *pbx.Registry the collector needs.
// Expressed as an interface so tests can supply a fake directory.
type RegistryStats interface {
	Count() int
	Capacity() int
	StateCounts() map[pbx.State]int
	NotificationsEmitted() uint64
	CallsConnected() uint64
}

// Collector is a prometheus.Collector gathering registry occupancy and
// per-state TU counts at scrape time.
type Collector struct {
	registry  RegistryStats
	startTime time.Time

	registeredDesc     *prometheus.Desc
	capacityDesc       *prometheus.Desc
	stateDesc          *prometheus.Desc
	uptimeDesc         *prometheus.Desc
	notificationsDesc  *prometheus.Desc
	callsConnectedDesc *prometheus.Desc
}

// NewCollector builds a collector reading from registry.
func NewCollector(registry RegistryStats, startTime time.Time) *Collector {
	return &Collector{
		registry:  registry,
		startTime: startTime,
		registeredDesc: prometheus.NewDesc(
			"pbx_registered_extensions",
			"Number of currently registered extensions",
			nil, nil,
		),
		capacityDesc: prometheus.NewDesc(
			"pbx_extension_capacity",
			"Maximum number of extensions the registry can hold",
			nil, nil,
		),
		stateDesc: prometheus.NewDesc(
			"pbx_tu_state",
			"Number of registered TUs currently in a given state",
			[]string{"state"}, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"pbx_uptime_seconds",
			"Seconds since the switch process started",
			nil, nil,
		),
		notificationsDesc: prometheus.NewDesc(
			"pbx_notifications_emitted_total",
			"Total number of state notifications written to any TU's sink",
			nil, nil,
		),
		callsConnectedDesc: prometheus.NewDesc(
			"pbx_calls_connected_total",
			"Total number of pickups that completed a ringing/ring-back pair into CONNECTED",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.registeredDesc
	ch <- c.capacityDesc
	ch <- c.stateDesc
	ch <- c.uptimeDesc
	ch <- c.notificationsDesc
	ch <- c.callsConnectedDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.registeredDesc, prometheus.GaugeValue, float64(c.registry.Count()))
	ch <- prometheus.MustNewConstMetric(c.capacityDesc, prometheus.GaugeValue, float64(c.registry.Capacity()))

	counts := c.registry.StateCounts()
	for _, st := range []pbx.State{
		pbx.StateOnHook, pbx.StateRinging, pbx.StateDialTone,
		pbx.StateRingBack, pbx.StateBusySignal, pbx.StateConnected, pbx.StateError,
	} {
		ch <- prometheus.MustNewConstMetric(
			c.stateDesc, prometheus.GaugeValue,
			float64(counts[st]), st.String(),
		)
	}

	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)

	ch <- prometheus.MustNewConstMetric(
		c.notificationsDesc, prometheus.CounterValue,
		float64(c.registry.NotificationsEmitted()),
	)
	ch <- prometheus.MustNewConstMetric(
		c.callsConnectedDesc, prometheus.CounterValue,
		float64(c.registry.CallsConnected()),
	)
}
