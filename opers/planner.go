package opers

import (
	"github.com/spirit-labs/blockjoin/block"
	"github.com/spirit-labs/blockjoin/conf"
	"github.com/spirit-labs/blockjoin/errors"
	"github.com/spirit-labs/blockjoin/evbatch"
	"github.com/spirit-labs/blockjoin/types"
)

// ColumnNameSeparator joins a block name to a column name in the output schema of a join.
const ColumnNameSeparator = "___"

func OutputColumnName(blockName string, columnName string) string {
	return blockName + ColumnNameSeparator + columnName
}

// JoinColumns holds the positions of the join key columns in the left and right schemas.
type JoinColumns struct {
	LeftKeyCols  []int
	RightKeyCols []int
}

// PlanJoin computes the metadata of the output of a join from the metadata of its two inputs, keyed by block name.
// The output schema has the left columns then the right columns, each renamed to <block>___<column>. The output is
// sorted by the left sort keys and partitioned by the left partition keys, renamed the same way.
func PlanJoin(inputs map[string]*block.Metadata, cfg *conf.JoinConfig) (*block.Metadata, error) {
	if len(inputs) != 2 {
		return nil, errors.NewInvalidConfigurationErrorf("join requires exactly two input blocks but %d were provided",
			len(inputs))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	leftName, rightName := cfg.LeftBlock, cfg.RightBlock()
	leftMeta, ok := inputs[leftName]
	if !ok {
		return nil, errors.NewInvalidConfigurationErrorf("no input block named '%s'", leftName)
	}
	rightMeta, ok := inputs[rightName]
	if !ok {
		return nil, errors.NewInvalidConfigurationErrorf("no input block named '%s'", rightName)
	}
	if _, err := ResolveJoinColumns(leftMeta, rightMeta, cfg); err != nil {
		return nil, err
	}
	numCols := leftMeta.Schema.NumColumns() + rightMeta.Schema.NumColumns()
	names := make([]string, 0, numCols)
	colTypes := make([]types.ColumnType, 0, numCols)
	for _, side := range []struct {
		name string
		meta *block.Metadata
	}{{leftName, leftMeta}, {rightName, rightMeta}} {
		for i, colName := range side.meta.Schema.ColumnNames() {
			names = append(names, OutputColumnName(side.name, colName))
			colTypes = append(colTypes, side.meta.Schema.ColumnTypes()[i])
		}
	}
	sortKeys := make([]string, len(leftMeta.SortKeys))
	for i, key := range leftMeta.SortKeys {
		sortKeys[i] = OutputColumnName(leftName, key)
	}
	var partitionKeys []string
	if leftMeta.PartitionKeys != nil {
		partitionKeys = make([]string, len(leftMeta.PartitionKeys))
		for i, key := range leftMeta.PartitionKeys {
			partitionKeys[i] = OutputColumnName(leftName, key)
		}
	}
	return &block.Metadata{
		Schema:        evbatch.NewEventSchema(names, colTypes),
		SortKeys:      sortKeys,
		PartitionKeys: partitionKeys,
	}, nil
}

// ResolveJoinColumns finds the join key columns named by cfg in the two schemas, checking that each pair of columns
// has the same type.
func ResolveJoinColumns(left *block.Metadata, right *block.Metadata, cfg *conf.JoinConfig) (*JoinColumns, error) {
	leftKeys, rightKeys := cfg.LeftKeys(), cfg.RightKeys()
	if len(leftKeys) != len(rightKeys) {
		return nil, errors.NewInvalidConfigurationErrorf(
			"leftJoinKeys and rightJoinKeys must have the same number of columns but have %d and %d",
			len(leftKeys), len(rightKeys))
	}
	cols := &JoinColumns{
		LeftKeyCols:  make([]int, len(leftKeys)),
		RightKeyCols: make([]int, len(rightKeys)),
	}
	for i := range leftKeys {
		leftCol := left.Schema.ColumnIndex(leftKeys[i])
		if leftCol == -1 {
			return nil, errors.NewInvalidConfigurationErrorf("join key '%s' is not a column of block '%s'",
				leftKeys[i], cfg.LeftBlock)
		}
		rightCol := right.Schema.ColumnIndex(rightKeys[i])
		if rightCol == -1 {
			return nil, errors.NewInvalidConfigurationErrorf("join key '%s' is not a column of block '%s'",
				rightKeys[i], cfg.RightBlock())
		}
		leftType := left.Schema.ColumnTypes()[leftCol]
		rightType := right.Schema.ColumnTypes()[rightCol]
		if !types.ColumnTypesEqual(leftType, rightType) {
			return nil, errors.NewInvalidConfigurationErrorf(
				"join key '%s' of type %s cannot be joined with join key '%s' of type %s",
				leftKeys[i], leftType.String(), rightKeys[i], rightType.String())
		}
		cols.LeftKeyCols[i] = leftCol
		cols.RightKeyCols[i] = rightCol
	}
	return cols, nil
}
