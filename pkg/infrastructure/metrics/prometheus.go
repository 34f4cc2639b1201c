package metrics

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector implements Collector backed by a dedicated Prometheus
// registry. Metric vectors are created on first use; label names must stay
// consistent per metric name.
type PrometheusCollector struct {
	registry  *prometheus.Registry
	namespace string

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusCollector creates a collector with its own registry,
// including Go runtime and process collectors.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &PrometheusCollector{
		registry:   registry,
		namespace:  namespace,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Handler returns the HTTP handler exposing this collector's registry.
func (p *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func splitLabels(labels []string) (names []string, values prometheus.Labels) {
	values = make(prometheus.Labels, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		values[labels[i]] = labels[i+1]
	}
	names = make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, values
}

func (p *PrometheusCollector) counter(name string, labelNames []string) *prometheus.CounterVec {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: p.namespace,
		Name:      name,
	}, labelNames)
	p.registry.MustRegister(c)
	p.counters[name] = c
	return c
}

func (p *PrometheusCollector) gauge(name string, labelNames []string) *prometheus.GaugeVec {
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.gauges[name]; ok {
		return g
	}
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: p.namespace,
		Name:      name,
	}, labelNames)
	p.registry.MustRegister(g)
	p.gauges[name] = g
	return g
}

func (p *PrometheusCollector) histogram(name string, labelNames []string) *prometheus.HistogramVec {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: p.namespace,
		Name:      name,
		Buckets:   prometheus.DefBuckets,
	}, labelNames)
	p.registry.MustRegister(h)
	p.histograms[name] = h
	return h
}

// IncCounter increments a counter by one.
func (p *PrometheusCollector) IncCounter(name string, labels ...string) {
	p.AddCounter(name, 1, labels...)
}

// AddCounter adds value to a counter.
func (p *PrometheusCollector) AddCounter(name string, value float64, labels ...string) {
	names, values := splitLabels(labels)
	p.counter(name, names).With(values).Add(value)
}

// SetGauge sets a gauge to value.
func (p *PrometheusCollector) SetGauge(name string, value float64, labels ...string) {
	names, values := splitLabels(labels)
	p.gauge(name, names).With(values).Set(value)
}

// ObserveHistogram records one observation.
func (p *PrometheusCollector) ObserveHistogram(name string, value float64, labels ...string) {
	names, values := splitLabels(labels)
	p.histogram(name, names).With(values).Observe(value)
}

// StartTimer starts a timer that records into a histogram, in seconds.
func (p *PrometheusCollector) StartTimer(name string, labels ...string) Timer {
	return &prometheusTimer{collector: p, name: name, labels: labels, start: time.Now()}
}

type prometheusTimer struct {
	collector *PrometheusCollector
	name      string
	labels    []string
	start     time.Time
}

func (t *prometheusTimer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	t.collector.ObserveHistogram(t.name, elapsed.Seconds(), t.labels...)
	return elapsed
}
