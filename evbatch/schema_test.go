package evbatch

import (
	"github.com/spirit-labs/blockjoin/types"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestSchema(t *testing.T) {
	schema := NewEventSchema([]string{"id", "name", "price"},
		[]types.ColumnType{types.ColumnTypeInt, types.ColumnTypeString, &types.DecimalType{Precision: 10, Scale: 2}})
	require.Equal(t, 3, schema.NumColumns())
	require.Equal(t, 1, schema.ColumnIndex("name"))
	require.Equal(t, -1, schema.ColumnIndex("missing"))
	require.Equal(t, "id: int, name: string, price: decimal(10,2)", schema.String())
}

func TestSchemaMismatchedLengthsPanics(t *testing.T) {
	require.Panics(t, func() {
		NewEventSchema([]string{"id"}, nil)
	})
}
