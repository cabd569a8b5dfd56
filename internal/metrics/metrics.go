// Package metrics wires optional Prometheus instrumentation into the BVH
// and kd-tree query paths without coupling those packages to a specific
// metrics backend.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder observes query activity. Implementations must be safe for
// concurrent use, since queries themselves are safe to run concurrently.
type Recorder interface {
	// StartBVHQuery records the start of a BVH overlap query and returns a
	// function to call when it completes.
	StartBVHQuery() func()
	// StartKDTreeQuery records the start of a kd-tree nearest-neighbor
	// query and returns a function to call when it completes.
	StartKDTreeQuery() func()
}

// NoopRecorder discards all observations. It is the zero-value default so
// that instrumentation is opt-in.
type NoopRecorder struct{}

// StartBVHQuery returns a no-op completion function.
func (NoopRecorder) StartBVHQuery() func() { return func() {} }

// StartKDTreeQuery returns a no-op completion function.
func (NoopRecorder) StartKDTreeQuery() func() { return func() {} }

// PrometheusRecorder records query counts and latencies to the given
// Prometheus registerer.
type PrometheusRecorder struct {
	bvhQueries     prometheus.Counter
	bvhDuration    prometheus.Histogram
	kdtreeQueries  prometheus.Counter
	kdtreeDuration prometheus.Histogram
}

// NewPrometheusRecorder registers the recorder's metrics with reg and
// returns it. Passing prometheus.DefaultRegisterer is the common case.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		bvhQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geoidx_bvh_queries_total",
			Help: "Total number of BVH AABB-overlap queries.",
		}),
		bvhDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "geoidx_bvh_query_duration_seconds",
			Help: "Latency of BVH AABB-overlap queries.",
		}),
		kdtreeQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geoidx_kdtree_queries_total",
			Help: "Total number of kd-tree nearest-neighbor queries.",
		}),
		kdtreeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "geoidx_kdtree_query_duration_seconds",
			Help: "Latency of kd-tree nearest-neighbor queries.",
		}),
	}

	reg.MustRegister(r.bvhQueries, r.bvhDuration, r.kdtreeQueries, r.kdtreeDuration)
	return r
}

// StartBVHQuery implements Recorder.
func (r *PrometheusRecorder) StartBVHQuery() func() {
	start := time.Now()
	r.bvhQueries.Inc()
	return func() { r.bvhDuration.Observe(time.Since(start).Seconds()) }
}

// StartKDTreeQuery implements Recorder.
func (r *PrometheusRecorder) StartKDTreeQuery() func() {
	start := time.Now()
	r.kdtreeQueries.Inc()
	return func() { r.kdtreeDuration.Observe(time.Since(start).Seconds()) }
}
