package block

import (
	"context"

	"github.com/spirit-labs/blockjoin/evbatch"
	"github.com/spirit-labs/blockjoin/iteration"
	"github.com/spirit-labs/blockjoin/tuple"
)

// NewBatchBlock creates a block which returns the rows of each batch in turn.
func NewBatchBlock(name string, meta *Metadata, batches ...*evbatch.Batch) Block {
	switch len(batches) {
	case 0:
		return New(name, meta, iteration.EmptyIterator{})
	case 1:
		return New(name, meta, NewBatchIterator(batches[0]))
	}
	iters := make([]iteration.RowIterator, len(batches))
	for i, batch := range batches {
		iters[i] = NewBatchIterator(batch)
	}
	return New(name, meta, iteration.NewChainingIterator(iters))
}

// BatchIterator materializes the rows of a batch one at a time.
type BatchIterator struct {
	batch *evbatch.Batch
	pos   int
}

func NewBatchIterator(batch *evbatch.Batch) *BatchIterator {
	return &BatchIterator{batch: batch}
}

func (b *BatchIterator) Next(context.Context) (bool, tuple.Row, error) {
	if b.pos >= b.batch.RowCount {
		return false, nil, nil
	}
	row := b.batch.Row(b.pos)
	b.pos++
	return true, row, nil
}

// Close does not release the batch, it remains owned by the caller.
func (b *BatchIterator) Close() {
}
