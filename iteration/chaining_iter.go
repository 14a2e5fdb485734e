package iteration

import (
	"context"

	"github.com/spirit-labs/blockjoin/tuple"
)

// ChainingIterator returns all rows of each of its iterators in turn.
type ChainingIterator struct {
	iterators []RowIterator
	pos       int
}

func NewChainingIterator(its []RowIterator) *ChainingIterator {
	return &ChainingIterator{iterators: its}
}

func (c *ChainingIterator) Next(ctx context.Context) (bool, tuple.Row, error) {
	for c.pos < len(c.iterators) {
		ok, row, err := c.iterators[c.pos].Next(ctx)
		if err != nil {
			return false, nil, err
		}
		if ok {
			return true, row, nil
		}
		c.pos++
	}
	return false, nil, nil
}

func (c *ChainingIterator) Close() {
	for _, iter := range c.iterators {
		iter.Close()
	}
}
