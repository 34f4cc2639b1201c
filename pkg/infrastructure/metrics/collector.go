// Package metrics provides metrics collection interfaces and implementations.
package metrics

import "time"

// Collector records operational metrics. Labels are passed as alternating
// name/value pairs.
type Collector interface {
	IncCounter(name string, labels ...string)
	AddCounter(name string, value float64, labels ...string)
	SetGauge(name string, value float64, labels ...string)
	ObserveHistogram(name string, value float64, labels ...string)
	StartTimer(name string, labels ...string) Timer
}

// Timer measures the duration of a single operation.
type Timer interface {
	// Stop records the elapsed time and returns it.
	Stop() time.Duration
}

// NoOpCollector discards all metrics. Used in tests and when metrics are
// disabled.
type NoOpCollector struct{}

// NewNoOpCollector creates a collector that does nothing.
func NewNoOpCollector() *NoOpCollector { return &NoOpCollector{} }

func (n *NoOpCollector) IncCounter(string, ...string)                {}
func (n *NoOpCollector) AddCounter(string, float64, ...string)       {}
func (n *NoOpCollector) SetGauge(string, float64, ...string)         {}
func (n *NoOpCollector) ObserveHistogram(string, float64, ...string) {}

func (n *NoOpCollector) StartTimer(string, ...string) Timer { return noOpTimer{start: time.Now()} }

type noOpTimer struct{ start time.Time }

func (t noOpTimer) Stop() time.Duration { return time.Since(t.start) }
