// Package metrics records per-facade counters and operation latencies.
//
// Counters (cache hits/misses, operations, backend errors) are kept in a VictoriaMetrics
// metrics.Set, latencies in a go-metrics registry of timers. Both are rendered in the
// Prometheus text format by WritePrometheus.
package metrics

import (
	"fmt"
	"github.com/ValentinKolb/dFacade/lib/database"
	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
	"io"
	"sort"
	"time"
)

// Recorder collects the metrics of one facade instance
type Recorder struct {
	facade   string
	set      *metrics.Set
	registry gometrics.Registry
}

// TimerSnapshot is a point-in-time view of an operation timer
type TimerSnapshot struct {
	Count int64
	Mean  time.Duration
	P99   time.Duration
	Max   time.Duration
}

// NewRecorder creates a recorder whose metrics carry the label facade="<facade>"
func NewRecorder(facade string) *Recorder {
	return &Recorder{
		facade:   facade,
		set:      metrics.NewSet(),
		registry: gometrics.NewRegistry(),
	}
}

// --------------------------------------------------------------------------
// Recording
// --------------------------------------------------------------------------

func (r *Recorder) counter(name string, labels ...string) *metrics.Counter {
	l := fmt.Sprintf(`facade=%q`, r.facade)
	for i := 0; i+1 < len(labels); i += 2 {
		l += fmt.Sprintf(`,%s=%q`, labels[i], labels[i+1])
	}
	return r.set.GetOrCreateCounter(name + "{" + l + "}")
}

// CacheHit counts a read served from the cache
func (r *Recorder) CacheHit() {
	r.counter("dfacade_cache_hits_total").Inc()
}

// CacheMiss counts a read that had to go to the backend
func (r *Recorder) CacheMiss() {
	r.counter("dfacade_cache_misses_total").Inc()
}

// Observe counts a finished operation, its latency and (if *err is a BackendError) a backend error.
// Other error kinds (not found, schema, ...) describe the request, not the backend, and are not counted.
// Typically used as: defer r.Observe("get", time.Now(), &err)
func (r *Recorder) Observe(op string, start time.Time, err *error) {
	r.counter("dfacade_operations_total", "op", op).Inc()
	gometrics.GetOrRegisterTimer(op, r.registry).UpdateSince(start)
	if err != nil && database.CodeOf(*err) == database.CodeBackend {
		r.counter("dfacade_errors_total", "op", op).Inc()
	}
}

// --------------------------------------------------------------------------
// Reading
// --------------------------------------------------------------------------

// CacheHits returns the number of cache hits
func (r *Recorder) CacheHits() uint64 {
	return r.counter("dfacade_cache_hits_total").Get()
}

// CacheMisses returns the number of cache misses
func (r *Recorder) CacheMisses() uint64 {
	return r.counter("dfacade_cache_misses_total").Get()
}

// Operations returns the number of finished operations of the given kind
func (r *Recorder) Operations(op string) uint64 {
	return r.counter("dfacade_operations_total", "op", op).Get()
}

// Errors returns the number of operations of the given kind that failed with a backend error
func (r *Recorder) Errors(op string) uint64 {
	return r.counter("dfacade_errors_total", "op", op).Get()
}

// Timers returns a snapshot of every operation timer, keyed by operation
func (r *Recorder) Timers() map[string]TimerSnapshot {
	out := make(map[string]TimerSnapshot)
	r.registry.Each(func(name string, i interface{}) {
		timer, ok := i.(gometrics.Timer)
		if !ok {
			return
		}
		s := timer.Snapshot()
		out[name] = TimerSnapshot{
			Count: s.Count(),
			Mean:  time.Duration(s.Mean()),
			P99:   time.Duration(s.Percentile(0.99)),
			Max:   time.Duration(s.Max()),
		}
	})
	return out
}

// WritePrometheus writes all counters and timers in the Prometheus text format
func (r *Recorder) WritePrometheus(w io.Writer) {
	r.set.WritePrometheus(w)

	timers := r.Timers()
	ops := make([]string, 0, len(timers))
	for op := range timers {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	for _, op := range ops {
		s := timers[op]
		labels := fmt.Sprintf(`facade=%q,op=%q`, r.facade, op)
		fmt.Fprintf(w, "dfacade_operation_duration_seconds_count{%s} %d\n", labels, s.Count)
		fmt.Fprintf(w, "dfacade_operation_duration_seconds{%s,quantile=\"0.99\"} %g\n", labels, s.P99.Seconds())
		fmt.Fprintf(w, "dfacade_operation_duration_seconds_mean{%s} %g\n", labels, s.Mean.Seconds())
	}
}
