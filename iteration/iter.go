package iteration

import (
	"context"

	"github.com/spirit-labs/blockjoin/tuple"
)

// RowIterator is a pull based sequence of rows. Next returns false once the sequence is exhausted, after which it
// keeps returning false. Implementations that block on I/O should honour ctx.
type RowIterator interface {
	Next(ctx context.Context) (bool, tuple.Row, error)
	Close()
}
