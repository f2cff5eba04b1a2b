// Package metrics2 provides a client and interfaces for recording metrics.
// Metrics are identified by a measurement name and a set of key/value tags.
// The only implementation is backed by Prometheus.
package metrics2

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.pollpulse.org/infra/go/sklog"
)

// Int64Metric is a metric which reports an int64 value.
type Int64Metric interface {
	// Get returns the current value of the metric.
	Get() int64

	// Update sets the current value of the metric.
	Update(v int64)
}

// Float64Metric is a metric which reports a float64 value.
type Float64Metric interface {
	// Get returns the current value of the metric.
	Get() float64

	// Update sets the current value of the metric.
	Update(v float64)
}

// Float64SummaryMetric is a metric which reports a summary of many float64 values.
type Float64SummaryMetric interface {
	// Observe adds a single observation to the summary.
	Observe(v float64)
}

// Counter is a metric which reports a value that can be incremented,
// decremented and reset.
type Counter interface {
	Get() int64
	Inc(i int64)
	Dec(i int64)
	Reset()
}

// Timer measures elapsed time. Unlike the other metrics, a Timer only reports
// a data point when Stop() is called.
type Timer interface {
	// Start, or restart, the timer.
	Start()

	// Stop the timer and report the elapsed time.
	Stop() time.Duration
}

// Liveness keeps a time-since-last-successful-update metric, in seconds. It
// is used to track that periodic processes are still running; call Reset()
// after each successful cycle.
type Liveness interface {
	// Get returns the number of seconds since the last successful update.
	Get() int64

	// Reset should be called when a cycle of work completes successfully.
	Reset()
}

// Client represents a set of metrics.
type Client interface {
	GetInt64Metric(measurement string, tags ...map[string]string) Int64Metric
	GetFloat64Metric(measurement string, tags ...map[string]string) Float64Metric
	GetFloat64SummaryMetric(measurement string, tags ...map[string]string) Float64SummaryMetric
	GetCounter(name string, tags ...map[string]string) Counter
	NewTimer(name string, tags ...map[string]string) Timer
	NewLiveness(name string, tags ...map[string]string) Liveness
}

// defaultClient is the metrics client used by the package level functions.
var defaultClient Client = newPromClient()

// GetDefaultClient returns the default Client.
func GetDefaultClient() Client {
	return defaultClient
}

// GetInt64Metric returns an Int64Metric from the default client.
func GetInt64Metric(measurement string, tags ...map[string]string) Int64Metric {
	return defaultClient.GetInt64Metric(measurement, tags...)
}

// GetFloat64Metric returns a Float64Metric from the default client.
func GetFloat64Metric(measurement string, tags ...map[string]string) Float64Metric {
	return defaultClient.GetFloat64Metric(measurement, tags...)
}

// GetFloat64SummaryMetric returns a Float64SummaryMetric from the default client.
func GetFloat64SummaryMetric(measurement string, tags ...map[string]string) Float64SummaryMetric {
	return defaultClient.GetFloat64SummaryMetric(measurement, tags...)
}

// GetCounter returns a Counter from the default client.
func GetCounter(name string, tags ...map[string]string) Counter {
	return defaultClient.GetCounter(name, tags...)
}

// NewTimer returns a started Timer from the default client.
func NewTimer(name string, tags ...map[string]string) Timer {
	return defaultClient.NewTimer(name, tags...)
}

// NewLiveness returns a Liveness from the default client.
func NewLiveness(name string, tags ...map[string]string) Liveness {
	return defaultClient.NewLiveness(name, tags...)
}

// InitPrometheus initializes the metrics client and starts serving the
// /metrics endpoint on the given port, e.g. ":20000".
func InitPrometheus(port string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		sklog.Fatal(http.ListenAndServe(port, nil))
	}()
}
