// Package metrics is the backend-agnostic metrics facade. Pipeline code
// records through the package functions; the CLI installs a backend with
// SetBackend. Until then every call is a no-op.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Metric names understood by backends.
const (
	DatasetsTotal              = "etl_datasets_total"
	RowsTotal                  = "etl_rows_total"
	StepTotal                  = "etl_step_total"
	StepDurationSeconds        = "etl_step_duration_seconds"
	HTTPRequestsTotal          = "etl_http_requests_total"
	HTTPErrorsTotal            = "etl_http_errors_total"
	HTTPRequestDurationSeconds = "etl_http_request_duration_seconds"
)

// Labels are metric dimensions, e.g. {"step": "read", "status": "ok"}.
type Labels map[string]string

// Backend receives metric observations. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer.
type Flusher interface {
	Flush() error
}

type nop struct{}

func (nop) IncCounter(string, float64, Labels)       {}
func (nop) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nop{}
)

// SetBackend installs b as the process-wide backend. Nil restores the no-op.
func SetBackend(b Backend) {
	if b == nil {
		b = nop{}
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush flushes the backend if it buffers.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordStep counts one pipeline step and observes its duration since start.
func RecordStep(step string, start time.Time, err error) {
	l := Labels{"step": step, "status": status(err)}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDurationSeconds, time.Since(start).Seconds(), l)
}

// RecordDataset counts one finished dataset.
func RecordDataset(err error) {
	IncCounter(DatasetsTotal, 1, Labels{"status": status(err)})
}

// RecordRows counts rows of the given kind (read, kept, dropped, incomplete).
func RecordRows(kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(RowsTotal, float64(n), Labels{"kind": kind})
}

// RecordHTTP records one HTTP fetch. statusCode is 0 when no response
// arrived.
func RecordHTTP(statusCode int, d time.Duration, err error) {
	code := "none"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	l := Labels{"status": code}
	IncCounter(HTTPRequestsTotal, 1, l)
	ObserveHistogram(HTTPRequestDurationSeconds, d.Seconds(), l)
	if err != nil || statusCode >= 400 {
		IncCounter(HTTPErrorsTotal, 1, l)
	}
}
