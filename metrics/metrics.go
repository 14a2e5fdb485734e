package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spirit-labs/blockjoin/errors"
)

type (
	Labels      = prometheus.Labels
	Counter     = prometheus.Counter
	CounterOpts = prometheus.CounterOpts
	Registerer  = prometheus.Registerer
	Gatherer    = prometheus.Gatherer
	Registry    = prometheus.Registry
)

const OutputRowsMetricName = "blockjoin_output_rows_total"

// NewRegistry creates a registry private to the caller, so that counters of separate joins never meet in the default
// registry.
func NewRegistry() *Registry {
	return prometheus.NewRegistry()
}

// RowCounter accumulates row counts. A prometheus Counter satisfies it.
type RowCounter interface {
	Add(float64)
}

// NewOutputRowsCounter creates a counter of joined output rows, labelled with the join name, and registers it with
// registerer.
func NewOutputRowsCounter(registerer Registerer, joinName string) (Counter, error) {
	counter := prometheus.NewCounter(CounterOpts{
		Name:        OutputRowsMetricName,
		Help:        "Number of rows emitted by a hash join",
		ConstLabels: Labels{"join": joinName},
	})
	if err := registerer.Register(counter); err != nil {
		return nil, errors.WithStack(err)
	}
	return counter, nil
}

// BatchingCounter buffers increments and forwards them to the underlying counter once batchSize of them have
// accumulated, or when Flush is called.
type BatchingCounter struct {
	counter   RowCounter
	batchSize int
	pending   int
}

func NewBatchingCounter(counter RowCounter, batchSize int) *BatchingCounter {
	if batchSize < 1 {
		batchSize = 1
	}
	return &BatchingCounter{counter: counter, batchSize: batchSize}
}

func (b *BatchingCounter) Inc() {
	b.pending++
	if b.pending >= b.batchSize {
		b.Flush()
	}
}

func (b *BatchingCounter) Flush() {
	if b.pending == 0 {
		return
	}
	b.counter.Add(float64(b.pending))
	b.pending = 0
}

// Pending returns the number of increments not yet forwarded.
func (b *BatchingCounter) Pending() int {
	return b.pending
}

// WriteTextFile writes the metrics gathered from gatherer to path in the prometheus text format.
func WriteTextFile(path string, gatherer Gatherer) error {
	return errors.WithStack(prometheus.WriteToTextfile(path, gatherer))
}
