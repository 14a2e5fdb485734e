package block

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/spirit-labs/blockjoin/evbatch"
	"github.com/spirit-labs/blockjoin/tuple"
	"github.com/spirit-labs/blockjoin/types"
	"github.com/stretchr/testify/require"
)

func testMeta() *Metadata {
	return &Metadata{
		Schema: evbatch.NewEventSchema([]string{"id", "name"},
			[]types.ColumnType{types.ColumnTypeInt, types.ColumnTypeString}),
		SortKeys: []string{"id"},
	}
}

func drain(t *testing.T, b Block) []tuple.Row {
	t.Helper()
	var rows []tuple.Row
	for {
		row, ok, err := b.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			return rows
		}
		rows = append(rows, row)
	}
}

func TestSliceBlock(t *testing.T) {
	rows := []tuple.Row{{int64(1), "a"}, {int64(2), "b"}}
	b := NewSliceBlock("L", testMeta(), rows)
	require.Equal(t, "L", b.Name())
	require.Equal(t, []string{"id"}, b.Metadata().SortKeys)
	require.Equal(t, rows, drain(t, b))
	b.Close()
}

func TestBatchBlock(t *testing.T) {
	meta := testMeta()
	b1 := evbatch.NewBatchFromRows(meta.Schema, []tuple.Row{{int64(1), "a"}, {int64(2), nil}})
	b2 := evbatch.CreateEmptyBatch(meta.Schema)
	b3 := evbatch.NewBatchFromRows(meta.Schema, []tuple.Row{{int64(3), "c"}})
	b := NewBatchBlock("R", meta, b1, b2, b3)
	require.Equal(t, []tuple.Row{{int64(1), "a"}, {int64(2), nil}, {int64(3), "c"}}, drain(t, b))
}

func TestBatchBlockNoBatches(t *testing.T) {
	require.Empty(t, drain(t, NewBatchBlock("R", testMeta())))
	meta := testMeta()
	b := NewBatchBlock("R", meta, evbatch.NewBatchFromRows(meta.Schema, []tuple.Row{{int64(9), "z"}}))
	require.Equal(t, []tuple.Row{{int64(9), "z"}}, drain(t, b))
}

func TestMetadataString(t *testing.T) {
	meta := testMeta()
	require.Equal(t, "schema={id: int, name: string} sortKeys=[id]", meta.String())
	meta.PartitionKeys = []string{"id"}
	require.Equal(t, "schema={id: int, name: string} sortKeys=[id] partitionKeys=[id]", meta.String())
}

func TestJSONLinesBlock(t *testing.T) {
	decType := &types.DecimalType{Precision: 10, Scale: 2}
	meta := &Metadata{
		Schema: evbatch.NewEventSchema([]string{"id", "name", "price", "ok", "at", "raw", "ratio"},
			[]types.ColumnType{types.ColumnTypeInt, types.ColumnTypeString, decType, types.ColumnTypeBool,
				types.ColumnTypeTimestamp, types.ColumnTypeBytes, types.ColumnTypeFloat}),
	}
	input := `{"id": 1, "name": "a", "price": 12.50, "ok": true, "at": 1000, "raw": "aGk=", "ratio": 0.5}

{"id": 2, "name": null, "price": "3.10", "extra": [1, 2]}
`
	b := NewJSONLinesBlock("L", meta, io.NopCloser(strings.NewReader(input)))
	rows := drain(t, b)
	require.Equal(t, 2, len(rows))

	price1, err := types.NewDecimalFromString("12.50", 10, 2)
	require.NoError(t, err)
	expected1 := tuple.Row{int64(1), "a", price1, true, types.NewTimestamp(1000), []byte("hi"), 0.5}
	require.True(t, expected1.Equal(rows[0]), "%s != %s", expected1, rows[0])

	price2, err := types.NewDecimalFromString("3.10", 10, 2)
	require.NoError(t, err)
	expected2 := tuple.Row{int64(2), nil, price2, nil, nil, nil, nil}
	require.True(t, expected2.Equal(rows[1]), "%s != %s", expected2, rows[1])
}

func TestJSONLinesBlockTypeMismatch(t *testing.T) {
	b := NewJSONLinesBlock("L", testMeta(), io.NopCloser(strings.NewReader(`{"id": "one", "name": "a"}`)))
	_, _, err := b.Next(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 1")
	require.Contains(t, err.Error(), "'id'")

	for _, raw := range []string{"1.5", "1e30", "9223372036854775808"} {
		b = NewJSONLinesBlock("L", testMeta(), io.NopCloser(strings.NewReader(`{"id": `+raw+`, "name": "a"}`)))
		_, ok, err := b.Next(context.Background())
		require.Error(t, err, raw)
		require.False(t, ok)
		require.Contains(t, err.Error(), "expected an integer but found "+raw)
	}
}

func TestJSONLinesBlockInvalidJSON(t *testing.T) {
	b := NewJSONLinesBlock("L", testMeta(), io.NopCloser(strings.NewReader("{\"id\": 1}\n{not json")))
	_, ok, err := b.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	_, _, err = b.Next(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 2")

	b = NewJSONLinesBlock("L", testMeta(), io.NopCloser(strings.NewReader("[1, 2]")))
	_, _, err = b.Next(context.Background())
	require.Error(t, err)
}

func TestJSONLinesBlockCancelled(t *testing.T) {
	b := NewJSONLinesBlock("L", testMeta(), io.NopCloser(strings.NewReader(`{"id": 1}`)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, err := b.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, ok)
}
