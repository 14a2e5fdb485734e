package iteration

import (
	"context"

	"github.com/spirit-labs/blockjoin/tuple"
)

type EmptyIterator struct {
}

func (e EmptyIterator) Next(context.Context) (bool, tuple.Row, error) {
	return false, nil, nil
}

func (e EmptyIterator) Close() {
}
