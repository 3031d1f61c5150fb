// Package datadog implements a Datadog backend for the internal/metrics
// package.
//
// Observations are buffered in memory and submitted on Flush. A background
// loop flushes every FlushEvery so watch-mode runs produce a time series;
// Close stops the loop and flushes once more.
package datadog

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
	"hermannm.dev/wrap"

	"observatory/internal/metrics"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to
	// "observatory".
	JobName string

	// Tags are extra Datadog tags, e.g. "service:observatory".
	Tags []string

	// FlushEvery defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the part of *datadogV2.MetricsApi the backend uses.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// series describes how a facade metric maps to a Datadog series.
type series struct {
	name   string
	labels []string
	// required labels drop the observation when missing; others default to
	// "unknown".
	required bool
}

var counterSeries = map[string]series{
	metrics.DatasetsTotal:     {name: "etl.datasets.total", labels: []string{"status"}},
	metrics.RowsTotal:         {name: "etl.rows.total", labels: []string{"kind"}, required: true},
	metrics.StepTotal:         {name: "etl.step.total", labels: []string{"step", "status"}},
	metrics.HTTPRequestsTotal: {name: "etl.http.requests.total", labels: []string{"status"}},
	metrics.HTTPErrorsTotal:   {name: "etl.http.errors.total", labels: []string{"status"}},
}

var histogramSeries = map[string]series{
	metrics.StepDurationSeconds:        {name: "etl.step.duration_seconds", labels: []string{"step", "status"}},
	metrics.HTTPRequestDurationSeconds: {name: "etl.http.request_duration_seconds", labels: []string{"status"}},
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
	closeOnce  sync.Once

	baseTags  []string
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu      sync.Mutex
	counts  map[string]float64
	samples map[string][]float64
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client and
// starts its flush loop. Credentials come from DD_API_KEY / DD_SITE as read
// by the client; network errors surface from Flush.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	if parent == nil {
		return nil, wrapInitErr(errors.New("nil parent context"))
	}

	job := opts.JobName
	if job == "" {
		job = "observatory"
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	now := opts.now
	if now == nil {
		now = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}
	submitter := opts.submitter
	if submitter == nil {
		submitter = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        now,
		newTicker:  newTicker,
		counts:     make(map[string]float64),
		samples:    make(map[string][]float64),
	}
	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and performs a final Flush. Later calls only
// flush.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		close(b.stopCh)
		<-b.doneCh
	})
	return b.Flush()
}

// IncCounter implements metrics.Backend. Unknown names and non-positive
// deltas are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	s, ok := counterSeries[name]
	if !ok || delta <= 0 {
		return
	}
	key, ok := seriesKey(s, labels)
	if !ok {
		return
	}

	b.mu.Lock()
	b.counts[key] += delta
	b.mu.Unlock()
}

// ObserveHistogram implements metrics.Backend. Unknown names and negative
// values are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	s, ok := histogramSeries[name]
	if !ok || value < 0 {
		return
	}
	key, ok := seriesKey(s, labels)
	if !ok {
		return
	}

	b.mu.Lock()
	b.samples[key] = append(b.samples[key], value)
	b.mu.Unlock()
}

// seriesKey encodes the series name and its tags as one map key.
func seriesKey(s series, labels metrics.Labels) (string, bool) {
	parts := make([]string, 0, 1+len(s.labels))
	parts = append(parts, s.name)
	for _, l := range s.labels {
		v := labels[l]
		if v == "" {
			if s.required {
				return "", false
			}
			v = "unknown"
		}
		parts = append(parts, l+":"+v)
	}
	return strings.Join(parts, "\x00"), true
}

func splitSeriesKey(k string) (name string, tags []string) {
	parts := strings.Split(k, "\x00")
	return parts[0], parts[1:]
}

// Flush submits buffered metrics and resets the buffers, also when the
// submission fails. It is a no-op when nothing was recorded.
func (b *Backend) Flush() error {
	b.mu.Lock()
	counts, samples := b.counts, b.samples
	b.counts = make(map[string]float64)
	b.samples = make(map[string][]float64)
	b.mu.Unlock()

	if len(counts) == 0 && len(samples) == 0 {
		return nil
	}

	payload := datadogV2.MetricPayload{Series: b.buildSeries(counts, samples, b.now().Unix())}
	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	if err != nil {
		return wrap.Error(err, "submit datadog metrics")
	}
	return nil
}

// buildSeries is pure; the output is sorted by key for stable payloads.
func (b *Backend) buildSeries(counts map[string]float64, samples map[string][]float64, nowUnix int64) []datadogV2.MetricSeries {
	out := make([]datadogV2.MetricSeries, 0, len(counts)+6*len(samples))

	for _, k := range sortedKeys(counts) {
		name, tags := splitSeriesKey(k)
		out = append(out, countSeries(name, counts[k], withTags(b.baseTags, tags...), nowUnix))
	}
	for _, k := range sortedKeys(samples) {
		name, tags := splitSeriesKey(k)
		addPercentiles(&out, withTags(b.baseTags, tags...), name, samples[k], nowUnix)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// addPercentiles appends p50/p90/p95/p99/max/samples gauges. It sorts a copy
// of samples.
func addPercentiles(out *[]datadogV2.MetricSeries, tags []string, prefix string, samples []float64, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*out = append(*out,
		gaugeSeries(prefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix),
		gaugeSeries(prefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix),
		gaugeSeries(prefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix),
		gaugeSeries(prefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix),
		gaugeSeries(prefix+".max", cp[len(cp)-1], tags, nowUnix),
		gaugeSeries(prefix+".samples", float64(len(cp)), tags, nowUnix),
	)
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return point(metric, datadogV2.METRICINTAKETYPE_COUNT, value, tags, nowUnix)
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return point(metric, datadogV2.METRICINTAKETYPE_GAUGE, value, tags, nowUnix)
}

func point(metric string, typ datadogV2.MetricIntakeType, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	return append(out, extras...)
}

// percentileNearestRank expects s sorted ascending.
func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)
var _ metrics.Flusher = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,service:observatory".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func wrapInitErr(err error) error {
	if err == nil {
		return nil
	}
	return wrap.Error(err, "datadog metrics init")
}
