package relational

import (
	"github.com/ValentinKolb/dFacade/lib/async"
	"github.com/ValentinKolb/dFacade/lib/metrics"
)

// DefaultKeyColumn is the key column of tables without a registered primary key
const DefaultKeyColumn = "id"

// Option configures a Store
type Option func(*options)

type options struct {
	keyColumn string
	workers   int
	recorder  *metrics.Recorder
}

func defaultOptions() options {
	return options{
		keyColumn: DefaultKeyColumn,
		workers:   async.DefaultWorkers,
	}
}

// WithKeyColumn sets the column Update, GetResult and Delete match the key against
// for tables that were neither created nor registered through the store.
func WithKeyColumn(column string) Option {
	return func(o *options) { o.keyColumn = column }
}

// WithWorkers sets the number of asynchronous operations that run concurrently
func WithWorkers(workers int) Option {
	return func(o *options) { o.workers = workers }
}

// WithMetrics records metrics into r instead of a private recorder
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *options) { o.recorder = r }
}
