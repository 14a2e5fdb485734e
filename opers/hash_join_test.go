package opers

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spirit-labs/blockjoin/block"
	"github.com/spirit-labs/blockjoin/conf"
	"github.com/spirit-labs/blockjoin/errors"
	"github.com/spirit-labs/blockjoin/evbatch"
	"github.com/spirit-labs/blockjoin/iteration"
	"github.com/spirit-labs/blockjoin/tuple"
	"github.com/spirit-labs/blockjoin/types"
	"github.com/stretchr/testify/require"
)

func leftMeta() *block.Metadata {
	return &block.Metadata{
		Schema:   evbatch.NewEventSchema([]string{"id", "v"}, []types.ColumnType{types.ColumnTypeInt, types.ColumnTypeString}),
		SortKeys: []string{"id"},
	}
}

func rightMeta() *block.Metadata {
	return &block.Metadata{
		Schema: evbatch.NewEventSchema([]string{"id", "w"}, []types.ColumnType{types.ColumnTypeInt, types.ColumnTypeString}),
	}
}

func scenarioLeftRows() []tuple.Row {
	return []tuple.Row{{int64(1), "a"}, {int64(2), "b"}}
}

func scenarioRightRows() []tuple.Row {
	return []tuple.Row{{int64(1), "x"}, {int64(1), "y"}, {int64(3), "z"}}
}

func joinConf(joinType string) *conf.JoinConfig {
	cfg := &conf.JoinConfig{
		Input:    []string{"L", "R"},
		JoinKeys: []string{"id"},
		JoinType: joinType,
	}
	cfg.ApplyDefaults()
	return cfg
}

func runJoin(t *testing.T, cfg *conf.JoinConfig, leftRows []tuple.Row, rightRows []tuple.Row, opts ...Option) []tuple.Row {
	t.Helper()
	left := block.NewSliceBlock("L", leftMeta(), leftRows)
	right := block.NewSliceBlock("R", rightMeta(), rightRows)
	op, err := NewHashJoinOperator(context.Background(), cfg, left, right, opts...)
	require.NoError(t, err)
	defer op.Close()
	rows, err := CollectRows(context.Background(), op)
	require.NoError(t, err)
	return rows
}

func requireRows(t *testing.T, expected []tuple.Row, actual []tuple.Row) {
	t.Helper()
	if diff := cmp.Diff(expected, actual); diff != "" {
		t.Fatalf("unexpected rows (-want +got):\n%s", diff)
	}
}

func TestInnerJoin(t *testing.T) {
	rows := runJoin(t, joinConf("INNER"), scenarioLeftRows(), scenarioRightRows())
	requireRows(t, []tuple.Row{
		{int64(1), "a", int64(1), "x"},
		{int64(1), "a", int64(1), "y"},
	}, rows)
}

func TestDefaultJoinTypeIsInner(t *testing.T) {
	rows := runJoin(t, joinConf(""), scenarioLeftRows(), scenarioRightRows())
	require.Equal(t, 2, len(rows))
}

func TestLeftOuterJoin(t *testing.T) {
	rows := runJoin(t, joinConf("LEFT OUTER"), scenarioLeftRows(), scenarioRightRows())
	requireRows(t, []tuple.Row{
		{int64(1), "a", int64(1), "x"},
		{int64(1), "a", int64(1), "y"},
		{int64(2), "b", nil, nil},
	}, rows)
}

func TestRightOuterJoin(t *testing.T) {
	rows := runJoin(t, joinConf("RIGHT OUTER"), scenarioLeftRows(), scenarioRightRows())
	requireRows(t, []tuple.Row{
		{int64(1), "a", int64(1), "x"},
		{int64(1), "a", int64(1), "y"},
		{nil, nil, int64(3), "z"},
	}, rows)
}

func TestEmptyRight(t *testing.T) {
	rows := runJoin(t, joinConf("LEFT OUTER"), scenarioLeftRows(), nil)
	requireRows(t, []tuple.Row{
		{int64(1), "a", nil, nil},
		{int64(2), "b", nil, nil},
	}, rows)

	rows = runJoin(t, joinConf("INNER"), scenarioLeftRows(), nil)
	require.Empty(t, rows)

	rows = runJoin(t, joinConf("RIGHT OUTER"), scenarioLeftRows(), nil)
	require.Empty(t, rows)
}

func TestEmptyLeftRightOuter(t *testing.T) {
	rows := runJoin(t, joinConf("RIGHT OUTER"), nil, scenarioRightRows())
	requireRows(t, []tuple.Row{
		{nil, nil, int64(1), "x"},
		{nil, nil, int64(1), "y"},
		{nil, nil, int64(3), "z"},
	}, rows)

	rows = runJoin(t, joinConf("LEFT OUTER"), nil, scenarioRightRows())
	require.Empty(t, rows)
}

func TestRightOuterUnmatchedGroupedByFirstOccurrence(t *testing.T) {
	right := []tuple.Row{
		{int64(5), "p"}, {int64(1), "q"}, {int64(4), "r"}, {int64(5), "s"}, {int64(4), "t"}, {int64(1), "u"},
	}
	left := []tuple.Row{{int64(1), "a"}, {int64(1), "b"}}
	rows := runJoin(t, joinConf("RIGHT OUTER"), left, right)
	requireRows(t, []tuple.Row{
		{int64(1), "a", int64(1), "q"},
		{int64(1), "a", int64(1), "u"},
		{int64(1), "b", int64(1), "q"},
		{int64(1), "b", int64(1), "u"},
		{nil, nil, int64(5), "p"},
		{nil, nil, int64(5), "s"},
		{nil, nil, int64(4), "r"},
		{nil, nil, int64(4), "t"},
	}, rows)
}

func TestNullKeysMatchEachOther(t *testing.T) {
	left := []tuple.Row{{nil, "a"}, {int64(1), "b"}}
	right := []tuple.Row{{nil, "x"}, {int64(1), "y"}, {nil, "z"}}
	rows := runJoin(t, joinConf("INNER"), left, right)
	requireRows(t, []tuple.Row{
		{nil, "a", nil, "x"},
		{nil, "a", nil, "z"},
		{int64(1), "b", int64(1), "y"},
	}, rows)

	rows = runJoin(t, joinConf("RIGHT OUTER"), left, right)
	require.Equal(t, 3, len(rows))
}

func TestFloatKeysJoinAsRowsCompare(t *testing.T) {
	meta := func() *block.Metadata {
		return &block.Metadata{
			Schema: evbatch.NewEventSchema([]string{"id", "v"}, []types.ColumnType{types.ColumnTypeFloat, types.ColumnTypeString}),
		}
	}
	left := []tuple.Row{{math.NaN(), "a"}, {math.Copysign(0, -1), "b"}}
	right := []tuple.Row{{math.Copysign(math.NaN(), -1), "x"}, {0.0, "y"}}
	op, err := NewHashJoinOperator(context.Background(), joinConf("INNER"),
		block.NewSliceBlock("L", meta(), left), block.NewSliceBlock("R", meta(), right))
	require.NoError(t, err)
	defer op.Close()
	rows, err := CollectRows(context.Background(), op)
	require.NoError(t, err)
	require.Equal(t, 2, len(rows))
	for i, row := range rows {
		require.True(t, row[:1].Equal(row[2:3]), "row %d: %s", i, row.String())
	}
	require.Equal(t, "a", rows[0][1])
	require.Equal(t, "b", rows[1][1])
}

func TestLeftBlockNameIgnoresCase(t *testing.T) {
	cfg := &conf.JoinConfig{Input: []string{"L", "R"}, LeftBlock: "l", JoinKeys: []string{"id"}}
	cfg.ApplyDefaults()
	require.Equal(t, "L", cfg.LeftBlock)
	rows := runJoin(t, cfg, scenarioLeftRows(), scenarioRightRows())
	requireRows(t, []tuple.Row{{int64(1), "a", int64(1), "x"}, {int64(1), "a", int64(1), "y"}}, rows)

	left := block.NewSliceBlock("l", leftMeta(), scenarioLeftRows())
	right := block.NewSliceBlock("r", rightMeta(), scenarioRightRows())
	op, err := NewHashJoinOperator(context.Background(), joinConf("INNER"), left, right)
	require.NoError(t, err)
	op.Close()
}

func TestLeftRowsAreNotMutated(t *testing.T) {
	left := scenarioLeftRows()
	right := scenarioRightRows()
	runJoin(t, joinConf("RIGHT OUTER"), left, right, WithReusedOutputRow())
	requireRows(t, scenarioLeftRows(), left)
	requireRows(t, scenarioRightRows(), right)
}

func TestFreshOutputRowsByDefault(t *testing.T) {
	op := newScenarioOperator(t, joinConf("INNER"))
	defer op.Close()
	row1, ok, err := op.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	row2, ok, err := op.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	requireRows(t, []tuple.Row{{int64(1), "a", int64(1), "x"}, {int64(1), "a", int64(1), "y"}},
		[]tuple.Row{row1, row2})
}

func TestReusedOutputRow(t *testing.T) {
	for _, cfgReuse := range []bool{false, true} {
		t.Run(fmt.Sprintf("config=%t", cfgReuse), func(t *testing.T) {
			cfg := joinConf("INNER")
			var opts []Option
			if cfgReuse {
				cfg.ReuseOutputRow = true
			} else {
				opts = append(opts, WithReusedOutputRow())
			}
			op := newScenarioOperator(t, cfg, opts...)
			defer op.Close()
			row1, ok, err := op.Next(context.Background())
			require.NoError(t, err)
			require.True(t, ok)
			requireRows(t, []tuple.Row{{int64(1), "a", int64(1), "x"}}, []tuple.Row{row1})
			row2, ok, err := op.Next(context.Background())
			require.NoError(t, err)
			require.True(t, ok)
			// the first row has been overwritten by the second
			require.Same(t, &row1[0], &row2[0])
			requireRows(t, []tuple.Row{{int64(1), "a", int64(1), "y"}}, []tuple.Row{row1})
		})
	}
}

type recordingCounter struct {
	adds []float64
}

func (r *recordingCounter) Add(v float64) {
	r.adds = append(r.adds, v)
}

func TestOutputCounterBatching(t *testing.T) {
	cfg := joinConf("RIGHT OUTER")
	cfg.CounterBatchSize = 2
	counter := &recordingCounter{}
	left := []tuple.Row{{int64(1), "a"}, {int64(1), "b"}, {int64(2), "c"}}
	op, err := NewHashJoinOperator(context.Background(), cfg, block.NewSliceBlock("L", leftMeta(), left),
		block.NewSliceBlock("R", rightMeta(), scenarioRightRows()), WithOutputCounter(counter))
	require.NoError(t, err)
	defer op.Close()
	rows, err := CollectRows(context.Background(), op)
	require.NoError(t, err)
	require.Equal(t, 5, len(rows))
	require.Equal(t, []float64{2, 2, 1}, counter.adds)
	require.Equal(t, int64(5), op.OutputRowCount())

	// further calls after the end report nothing more
	_, ok, err := op.Next(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, []float64{2, 2, 1}, counter.adds)
}

func TestDefaultCounterBatchSize(t *testing.T) {
	var left, right []tuple.Row
	for i := 0; i < 2500; i++ {
		left = append(left, tuple.Row{int64(i), "l"})
		right = append(right, tuple.Row{int64(i), "r"})
	}
	counter := &recordingCounter{}
	rows := runJoin(t, joinConf("INNER"), left, right, WithOutputCounter(counter))
	require.Equal(t, 2500, len(rows))
	require.Equal(t, []float64{1000, 1000, 500}, counter.adds)
}

func TestLeftUpstreamError(t *testing.T) {
	srcErr := errors.New("disk on fire")
	leftIter := iteration.NewStaticIterator(scenarioLeftRows())
	leftIter.SetError(1, srcErr)
	op, err := NewHashJoinOperator(context.Background(), joinConf("LEFT OUTER"), block.New("L", leftMeta(), leftIter),
		block.NewSliceBlock("R", rightMeta(), scenarioRightRows()))
	require.NoError(t, err)
	defer op.Close()

	for i := 0; i < 2; i++ {
		_, ok, err := op.Next(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
	}
	row, ok, err := op.Next(context.Background())
	require.Error(t, err)
	require.Nil(t, row)
	require.False(t, ok)
	require.True(t, errors.IsJoinErrorWithCode(err, errors.UpstreamError))
	require.True(t, errors.Is(err, srcErr))
	require.Contains(t, err.Error(), "'L'")

	// the operator is terminal
	row, ok, err = op.Next(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, row)
}

func TestRightUpstreamErrorAbortsBuild(t *testing.T) {
	srcErr := errors.New("connection reset")
	rightIter := iteration.NewStaticIterator(scenarioRightRows())
	rightIter.SetError(2, srcErr)
	_, err := NewHashJoinOperator(context.Background(), joinConf("INNER"),
		block.NewSliceBlock("L", leftMeta(), scenarioLeftRows()), block.New("R", rightMeta(), rightIter))
	require.True(t, errors.IsJoinErrorWithCode(err, errors.UpstreamError))
	require.True(t, errors.Is(err, srcErr))
	require.Equal(t, 2, rightIter.Pulled())
}

func TestCancelledBuild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashJoinOperator(ctx, joinConf("INNER"),
		block.NewSliceBlock("L", leftMeta(), scenarioLeftRows()), block.NewSliceBlock("R", rightMeta(), scenarioRightRows()))
	require.True(t, errors.IsJoinErrorWithCode(err, errors.Interrupted))
	require.True(t, errors.Is(err, context.Canceled))
}

func TestCancelledProbeDeliversNoPartialRow(t *testing.T) {
	op := newScenarioOperator(t, joinConf("RIGHT OUTER"))
	defer op.Close()
	ctx, cancel := context.WithCancel(context.Background())
	row, ok, err := op.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	requireRows(t, []tuple.Row{{int64(1), "a", int64(1), "x"}}, []tuple.Row{row})

	cancel()
	row, ok, err = op.Next(ctx)
	require.True(t, errors.IsJoinErrorWithCode(err, errors.Interrupted))
	require.False(t, ok)
	require.Nil(t, row)

	row, ok, err = op.Next(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, row)
	require.Equal(t, int64(1), op.OutputRowCount())
}

func TestCloseClosesBlocks(t *testing.T) {
	leftIter := iteration.NewStaticIterator(scenarioLeftRows())
	rightIter := iteration.NewStaticIterator(scenarioRightRows())
	op, err := NewHashJoinOperator(context.Background(), joinConf("INNER"), block.New("L", leftMeta(), leftIter),
		block.New("R", rightMeta(), rightIter))
	require.NoError(t, err)
	require.Equal(t, 3, op.MatchTable().RowCount())
	require.False(t, leftIter.Closed())
	require.False(t, rightIter.Closed())
	op.Close()
	require.True(t, leftIter.Closed())
	require.True(t, rightIter.Closed())
	op.Close()

	_, ok, err := op.Next(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOperatorConfigErrors(t *testing.T) {
	left := block.NewSliceBlock("L", leftMeta(), nil)
	right := block.NewSliceBlock("R", rightMeta(), nil)

	_, err := NewHashJoinOperator(context.Background(), joinConf("INNER"), right, left)
	require.True(t, errors.IsJoinErrorWithCode(err, errors.InvalidConfiguration))

	cfg := joinConf("INNER")
	cfg.JoinKeys = []string{"nope"}
	_, err = NewHashJoinOperator(context.Background(), cfg, left, right)
	require.True(t, errors.IsJoinErrorWithCode(err, errors.InvalidConfiguration))

	cfg = joinConf("SIDEWAYS")
	_, err = NewHashJoinOperator(context.Background(), cfg, left, right)
	require.True(t, errors.IsJoinErrorWithCode(err, errors.InvalidConfiguration))
}

func TestLeftBlockIsSecondInput(t *testing.T) {
	cfg := joinConf("INNER")
	cfg.Input = []string{"R", "L"}
	cfg.LeftBlock = "L"
	rows := runJoin(t, cfg, scenarioLeftRows(), scenarioRightRows())
	require.Equal(t, 2, len(rows))
}

func TestMultiColumnKeys(t *testing.T) {
	decType := &types.DecimalType{Precision: 10, Scale: 2}
	lMeta := &block.Metadata{Schema: evbatch.NewEventSchema(
		[]string{"amount", "at", "tag", "name"},
		[]types.ColumnType{decType, types.ColumnTypeTimestamp, types.ColumnTypeBytes, types.ColumnTypeString})}
	rMeta := &block.Metadata{Schema: evbatch.NewEventSchema(
		[]string{"r_tag", "r_amount", "r_at"},
		[]types.ColumnType{types.ColumnTypeBytes, decType, types.ColumnTypeTimestamp})}
	dec := func(s string) types.Decimal {
		d, err := types.NewDecimalFromString(s, 10, 2)
		require.NoError(t, err)
		return d
	}
	left := []tuple.Row{
		{dec("1.50"), types.NewTimestamp(1000), []byte("t1"), "first"},
		{dec("1.50"), types.NewTimestamp(1000), []byte("t2"), "second"},
		{dec("2.00"), nil, []byte("t1"), "third"},
	}
	right := []tuple.Row{
		{[]byte("t1"), dec("1.50"), types.NewTimestamp(1000)},
		{[]byte("t1"), dec("2.00"), nil},
		{[]byte("t1"), dec("1.50"), types.NewTimestamp(1001)},
	}
	cfg := &conf.JoinConfig{
		Input:         []string{"A", "B"},
		LeftJoinKeys:  []string{"amount", "at", "tag"},
		RightJoinKeys: []string{"r_amount", "r_at", "r_tag"},
		JoinType:      "left outer",
	}
	cfg.ApplyDefaults()
	op, err := NewHashJoinOperator(context.Background(), cfg, block.NewSliceBlock("A", lMeta, left),
		block.NewSliceBlock("B", rMeta, right))
	require.NoError(t, err)
	defer op.Close()
	require.Equal(t, 3, op.MatchTable().KeyCount())
	rows, err := CollectRows(context.Background(), op)
	require.NoError(t, err)
	expected := []tuple.Row{
		tuple.Concat(left[0], right[0]),
		tuple.Concat(left[1], tuple.NewNullRow(3)),
		tuple.Concat(left[2], right[1]),
	}
	require.Equal(t, len(expected), len(rows))
	for i, row := range rows {
		require.True(t, expected[i].Equal(row), "row %d: expected %s got %s", i, expected[i], row)
	}
}

// nestedLoopJoin is a reference implementation used to check the operator on random input.
func nestedLoopJoin(left []tuple.Row, right []tuple.Row, joinType conf.JoinType) []tuple.Row {
	keysEqual := func(l tuple.Row, r tuple.Row) bool {
		return tuple.Row{l[0]}.Equal(tuple.Row{r[0]})
	}
	var out []tuple.Row
	matchedRight := make([]bool, len(right))
	for _, l := range left {
		found := false
		for j, r := range right {
			if keysEqual(l, r) {
				out = append(out, tuple.Concat(l, r))
				matchedRight[j] = true
				found = true
			}
		}
		if !found && joinType == conf.JoinTypeLeftOuter {
			out = append(out, tuple.Concat(l, tuple.NewNullRow(len(right[0]))))
		}
	}
	if joinType == conf.JoinTypeRightOuter {
		var keyOrder []tuple.Row
		for j, r := range right {
			if matchedRight[j] {
				continue
			}
			seen := false
			for _, k := range keyOrder {
				if keysEqual(k, r) {
					seen = true
					break
				}
			}
			if !seen {
				keyOrder = append(keyOrder, r)
			}
		}
		for _, k := range keyOrder {
			for _, r := range right {
				if keysEqual(k, r) {
					out = append(out, tuple.Concat(tuple.NewNullRow(2), r))
				}
			}
		}
	}
	return out
}

func randomRows(rnd *rand.Rand, n int, prefix string) []tuple.Row {
	rows := make([]tuple.Row, n)
	for i := range rows {
		var key any
		if rnd.Intn(10) != 0 {
			key = int64(rnd.Intn(20))
		}
		rows[i] = tuple.Row{key, fmt.Sprintf("%s%d", prefix, i)}
	}
	return rows
}

func TestJoinMatchesNestedLoopReference(t *testing.T) {
	rnd := rand.New(rand.NewSource(12345))
	for iter := 0; iter < 20; iter++ {
		left := randomRows(rnd, 1+rnd.Intn(60), "l")
		right := randomRows(rnd, 1+rnd.Intn(60), "r")
		for _, jt := range []conf.JoinType{conf.JoinTypeInner, conf.JoinTypeLeftOuter, conf.JoinTypeRightOuter} {
			rows := runJoin(t, joinConf(jt.String()), left, right)
			requireRows(t, nestedLoopJoin(left, right, jt), rows)
			for _, row := range rows {
				require.Equal(t, 4, len(row))
			}
		}
	}
}

func newScenarioOperator(t *testing.T, cfg *conf.JoinConfig, opts ...Option) *HashJoinOperator {
	t.Helper()
	op, err := NewHashJoinOperator(context.Background(), cfg, block.NewSliceBlock("L", leftMeta(), scenarioLeftRows()),
		block.NewSliceBlock("R", rightMeta(), scenarioRightRows()), opts...)
	require.NoError(t, err)
	return op
}
