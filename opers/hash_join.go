package opers

import (
	"context"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/spirit-labs/blockjoin/block"
	"github.com/spirit-labs/blockjoin/conf"
	"github.com/spirit-labs/blockjoin/errors"
	log "github.com/spirit-labs/blockjoin/logger"
	"github.com/spirit-labs/blockjoin/metrics"
	"github.com/spirit-labs/blockjoin/tuple"
	"go.uber.org/zap"
)

type joinState int

const (
	stateScanningLeft joinState = iota
	stateEmittingMatches
	stateLeftExhausted
	stateFlushingRightOuter
	stateTerminal
)

// HashJoinOperator joins a left block against a right block on equality of their join keys. The right block is read
// fully into a MatchTable when the operator is created, after which Next streams the left block and returns one
// joined row per call.
//
// Output rows hold the left columns followed by the right columns. For an inner or left outer join they are
// returned in left row order, and the rows matching a single left row in right row order. For a right outer join
// the right rows that no left row matched follow, paired with an all null left row, grouped by key in order of
// first occurrence in the right block.
//
// Null join key fields are equal to each other, so rows with null keys join with each other.
//
// A HashJoinOperator must only be used from a single goroutine.
type HashJoinOperator struct {
	left        block.Block
	right       block.Block
	joinType    conf.JoinType
	projector   *KeyProjector
	table       *MatchTable
	matched     *bitset.BitSet
	state       joinState
	leftRow     tuple.Row
	group       *MatchGroup
	matchGroup  *MatchGroup
	nullGroup   *MatchGroup
	noMatches   *MatchGroup
	nullLeftRow tuple.Row
	flushOrd    int
	reuseOutput bool
	outRow      tuple.Row
	counter     *metrics.BatchingCounter
	outputRows  int64
	closed      bool
	logger      *zap.SugaredLogger
}

type Option func(*operatorOptions)

type operatorOptions struct {
	counter     metrics.RowCounter
	reuseOutput bool
}

// WithOutputCounter makes the operator report its output rows to counter, in batches of the configured
// counterBatchSize and once more when the output ends.
func WithOutputCounter(counter metrics.RowCounter) Option {
	return func(o *operatorOptions) {
		o.counter = counter
	}
}

// WithReusedOutputRow makes Next return the same row on every call, overwritten each time. A returned row is then
// only valid until the next call of Next. The default is to return a new row on every call.
func WithReusedOutputRow() Option {
	return func(o *operatorOptions) {
		o.reuseOutput = true
	}
}

// NewHashJoinOperator validates cfg against the two blocks and builds the match table from the right block. ctx
// governs the build. The operator takes ownership of both blocks and closes them in Close. If an error is returned
// the blocks remain owned by the caller.
func NewHashJoinOperator(ctx context.Context, cfg *conf.JoinConfig, left block.Block, right block.Block,
	opts ...Option) (*HashJoinOperator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !strings.EqualFold(left.Name(), cfg.LeftBlock) {
		return nil, errors.NewInvalidConfigurationErrorf("left block is '%s' but leftBlock is '%s'", left.Name(),
			cfg.LeftBlock)
	}
	if !strings.EqualFold(right.Name(), cfg.RightBlock()) {
		return nil, errors.NewInvalidConfigurationErrorf("right block is '%s' but expected '%s'", right.Name(),
			cfg.RightBlock())
	}
	cols, err := ResolveJoinColumns(left.Metadata(), right.Metadata(), cfg)
	if err != nil {
		return nil, err
	}
	options := operatorOptions{reuseOutput: cfg.ReuseOutputRow}
	for _, opt := range opts {
		opt(&options)
	}
	leftTypes := left.Metadata().Schema.ColumnTypes()
	rightTypes := right.Metadata().Schema.ColumnTypes()
	table, err := BuildMatchTable(ctx, right, NewKeyProjector(cols.RightKeyCols, rightTypes))
	if err != nil {
		return nil, err
	}
	h := &HashJoinOperator{
		left:        left,
		right:       right,
		joinType:    cfg.Type(),
		projector:   NewKeyProjector(cols.LeftKeyCols, leftTypes),
		table:       table,
		matchGroup:  emptyGroup(),
		nullGroup:   singleNullGroup(len(rightTypes)),
		noMatches:   emptyGroup(),
		nullLeftRow: tuple.NewNullRow(len(leftTypes)),
		reuseOutput: options.reuseOutput,
		logger:      log.Named("hashjoin"),
	}
	h.group = h.noMatches
	if h.joinType == conf.JoinTypeRightOuter {
		h.matched = bitset.New(uint(table.KeyCount()))
	}
	if h.reuseOutput {
		h.outRow = tuple.NewNullRow(len(leftTypes) + len(rightTypes))
	}
	if options.counter != nil {
		h.counter = metrics.NewBatchingCounter(options.counter, cfg.CounterBatchSize)
	}
	return h, nil
}

// Next returns the next joined row, or false once the output has ended. An error from either block, or ctx being
// done, ends the output; the error is returned and later calls return end of output.
func (h *HashJoinOperator) Next(ctx context.Context) (tuple.Row, bool, error) {
	if err := ctx.Err(); err != nil && h.state != stateTerminal {
		h.finish()
		return nil, false, errors.NewInterruptedError(h.left.Name(), err)
	}
	for {
		switch h.state {
		case stateScanningLeft, stateEmittingMatches:
			if h.group.IsExhausted() {
				if err := h.advanceLeft(ctx); err != nil {
					h.finish()
					return nil, false, err
				}
				continue
			}
			return h.output(h.leftRow, h.group.NextTuple()), true, nil
		case stateLeftExhausted:
			if h.joinType != conf.JoinTypeRightOuter {
				h.finish()
				return nil, false, nil
			}
			h.group = h.noMatches
			h.flushOrd = 0
			h.state = stateFlushingRightOuter
		case stateFlushingRightOuter:
			if h.group.IsExhausted() {
				ord := h.nextUnmatched()
				if ord == -1 {
					h.finish()
					return nil, false, nil
				}
				h.attach(h.table.rows(ord))
				continue
			}
			return h.output(h.nullLeftRow, h.group.NextTuple()), true, nil
		case stateTerminal:
			return nil, false, nil
		default:
			panic("unknown join state")
		}
	}
}

func (h *HashJoinOperator) advanceLeft(ctx context.Context) error {
	h.state = stateScanningLeft
	row, ok, err := pull(ctx, h.left)
	if err != nil {
		return err
	}
	if !ok {
		h.leftRow = nil
		h.state = stateLeftExhausted
		return nil
	}
	h.leftRow = row
	ord := h.table.lookup(h.projector.ProjectReuse(row))
	switch {
	case ord != -1:
		if h.matched != nil {
			h.matched.Set(uint(ord))
		}
		h.attach(h.table.rows(ord))
	case h.joinType == conf.JoinTypeLeftOuter:
		h.group = h.nullGroup
	default:
		h.group = h.noMatches
	}
	h.group.Rewind()
	h.state = stateEmittingMatches
	return nil
}

func (h *HashJoinOperator) attach(rows []tuple.Row) {
	h.matchGroup.reset(rows)
	h.group = h.matchGroup
}

// nextUnmatched returns the ordinal of the next key not matched by any left row, or -1.
func (h *HashJoinOperator) nextUnmatched() int {
	for h.flushOrd < h.table.KeyCount() {
		ord := h.flushOrd
		h.flushOrd++
		if !h.matched.Test(uint(ord)) {
			return ord
		}
	}
	return -1
}

func (h *HashJoinOperator) output(left tuple.Row, right tuple.Row) tuple.Row {
	h.outputRows++
	if h.counter != nil {
		h.counter.Inc()
	}
	if h.reuseOutput {
		return tuple.ConcatInto(h.outRow, left, right)
	}
	return tuple.Concat(left, right)
}

func (h *HashJoinOperator) finish() {
	if h.state == stateTerminal {
		return
	}
	h.state = stateTerminal
	h.leftRow = nil
	h.group = h.noMatches
	if h.counter != nil {
		h.counter.Flush()
	}
	if log.DebugEnabled {
		h.logger.Debugf("join of %s and %s finished after %d output rows", h.left.Name(), h.right.Name(),
			h.outputRows)
	}
}

// OutputRowCount returns the number of rows returned by Next so far.
func (h *HashJoinOperator) OutputRowCount() int64 {
	return h.outputRows
}

func (h *HashJoinOperator) MatchTable() *MatchTable {
	return h.table
}

// Close releases the match table and closes both blocks. Next returns end of output after Close.
func (h *HashJoinOperator) Close() {
	if h.closed {
		return
	}
	h.closed = true
	h.finish()
	h.table = nil
	h.matched = nil
	h.left.Close()
	h.right.Close()
}

// pull reads the next row of b, reporting a done ctx as an interruption and any other failure as an upstream error.
func pull(ctx context.Context, b block.Block) (tuple.Row, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, errors.NewInterruptedError(b.Name(), err)
	}
	row, ok, err := b.Next(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, false, errors.NewInterruptedError(b.Name(), err)
		}
		return nil, false, errors.NewUpstreamError(b.Name(), err)
	}
	return row, ok, nil
}
