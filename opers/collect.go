package opers

import (
	"context"

	"github.com/spirit-labs/blockjoin/evbatch"
	"github.com/spirit-labs/blockjoin/tuple"
)

// RowPuller is anything returning rows one at a time, such as a block or a HashJoinOperator.
type RowPuller interface {
	Next(ctx context.Context) (tuple.Row, bool, error)
}

// CollectRows pulls every remaining row from src. Each row is copied, so sources which reuse their output row are
// safe to collect.
func CollectRows(ctx context.Context, src RowPuller) ([]tuple.Row, error) {
	var rows []tuple.Row
	for {
		row, ok, err := src.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return rows, nil
		}
		rows = append(rows, row.Copy())
	}
}

// CollectBatch pulls every remaining row from src into a single batch with the given schema. The caller must release
// the batch.
func CollectBatch(ctx context.Context, src RowPuller, schema *evbatch.EventSchema) (*evbatch.Batch, error) {
	builders := evbatch.CreateColBuilders(schema.ColumnTypes())
	for {
		row, ok, err := src.Next(ctx)
		if err != nil {
			evbatch.NewBatchFromBuilders(schema, builders...).Release()
			return nil, err
		}
		if !ok {
			break
		}
		evbatch.AppendRow(builders, schema.ColumnTypes(), row)
	}
	return evbatch.NewBatchFromBuilders(schema, builders...), nil
}
