// Package metrics exports xeno session counters to Prometheus.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robotalks/xeno.go/pkg/l0/xeno"
)

// StatsSource is anything reporting session-shaped counters: a Link, a
// Session or a Scanner behind a lock.
type StatsSource interface {
	Stats() xeno.Stats
}

// CountsSource reports dispatched events by type name.
type CountsSource interface {
	Counts() map[string]int
}

// StateSource reports the current session state.
type StateSource interface {
	State() xeno.SessionState
}

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "xeno"

type counterDesc struct {
	desc  *prometheus.Desc
	value func(*xeno.Stats) int
	gauge bool
}

// Collector implements prometheus.Collector over named sources. Sources
// are read at scrape time.
type Collector struct {
	counters []counterDesc
	events   *prometheus.Desc
	dialog   *prometheus.Desc
	sync     *prometheus.Desc

	lock    sync.RWMutex
	sources map[string]interface{}
}

// NewCollector creates a Collector. An empty namespace means
// DefaultNamespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	c := &Collector{sources: make(map[string]interface{})}
	labels := []string{"link"}
	counter := func(name, help string, fn func(*xeno.Stats) int) {
		c.counters = append(c.counters, counterDesc{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil),
			value: fn,
		})
	}
	gauge := func(name, help string, fn func(*xeno.Stats) int) {
		c.counters = append(c.counters, counterDesc{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil),
			value: fn,
			gauge: true,
		})
	}
	counter("frames_decoded_total", "Frames decoded from the link.", func(s *xeno.Stats) int { return s.FramesDecoded })
	counter("frames_sent_total", "Frames written to the link.", func(s *xeno.Stats) int { return s.FramesSent })
	counter("framing_errors_total", "Frames dropped for bad length or checksum.", func(s *xeno.Stats) int { return s.FramingErrors })
	counter("unknown_types_total", "Frames with an unregistered type.", func(s *xeno.Stats) int { return s.UnknownTypes })
	counter("arg_decode_errors_total", "Frames whose arguments failed to decode.", func(s *xeno.Stats) int { return s.ArgDecodeErrors })
	counter("dispatched_total", "Events delivered to the dispatcher.", func(s *xeno.Stats) int { return s.Dispatched })
	counter("sync_markers_received_total", "Sync markers received.", func(s *xeno.Stats) int { return s.SyncPacketsReceived })
	counter("sync_markers_sent_total", "Sync markers sent.", func(s *xeno.Stats) int { return s.SyncPacketsSent })
	counter("desyncs_total", "Times the session left Synced.", func(s *xeno.Stats) int { return s.Desyncs })
	counter("retries_total", "Acked messages sent again.", func(s *xeno.Stats) int { return s.Retries })
	counter("acked_total", "Acked messages confirmed by the peer.", func(s *xeno.Stats) int { return s.Acked })
	counter("ack_timeouts_total", "Acked messages given up on.", func(s *xeno.Stats) int { return s.AckTimeouts })
	gauge("inbound_queue", "Messages waiting in the inbound queue.", func(s *xeno.Stats) int { return s.Inbound })
	gauge("outbound_queue", "Messages waiting in the outbound queue.", func(s *xeno.Stats) int { return s.Outbound })
	gauge("pool_live", "Messages in use.", func(s *xeno.Stats) int { return s.Pool.Live })
	counter("pool_starved_total", "Fetches served from the heap.", func(s *xeno.Stats) int { return s.Pool.Starved })

	c.events = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "events_total"),
		"Events dispatched by type.", []string{"link", "type"}, nil)
	c.dialog = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "dialog_phase"),
		"Current dialog phase, 1 for the active one.", []string{"link", "phase"}, nil)
	c.sync = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "sync_phase"),
		"Current sync phase, 1 for the active one.", []string{"link", "phase"}, nil)
	return c
}

// Add registers a source under a link name. The source may implement any
// of StatsSource, CountsSource and StateSource.
func (c *Collector) Add(name string, source interface{}) *Collector {
	c.lock.Lock()
	c.sources[name] = source
	c.lock.Unlock()
	return c
}

// Remove drops a source.
func (c *Collector) Remove(name string) {
	c.lock.Lock()
	delete(c.sources, name)
	c.lock.Unlock()
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, cd := range c.counters {
		ch <- cd.desc
	}
	ch <- c.events
	ch <- c.dialog
	ch <- c.sync
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	for name, source := range c.sources {
		if src, ok := source.(StatsSource); ok {
			st := src.Stats()
			for _, cd := range c.counters {
				vt := prometheus.CounterValue
				if cd.gauge {
					vt = prometheus.GaugeValue
				}
				ch <- prometheus.MustNewConstMetric(cd.desc, vt, float64(cd.value(&st)), name)
			}
		}
		if src, ok := source.(CountsSource); ok {
			for typ, n := range src.Counts() {
				ch <- prometheus.MustNewConstMetric(c.events, prometheus.CounterValue, float64(n), name, typ)
			}
		}
		if src, ok := source.(StateSource); ok {
			state := src.State()
			ch <- prometheus.MustNewConstMetric(c.dialog, prometheus.GaugeValue, 1, name, state.Dialog.String())
			ch <- prometheus.MustNewConstMetric(c.sync, prometheus.GaugeValue, 1, name, state.Sync.String())
		}
	}
}

// Handler creates an http.Handler serving a registry holding c and the
// process collectors.
func Handler(c *Collector) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	if err := reg.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	if err := reg.Register(prometheus.NewGoCollector()); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
