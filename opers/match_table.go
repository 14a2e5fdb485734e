// Copyright 2024 The Tektite Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package opers

import (
	"context"

	"github.com/dolthub/swiss"
	"github.com/spirit-labs/blockjoin/block"
	"github.com/spirit-labs/blockjoin/common"
	log "github.com/spirit-labs/blockjoin/logger"
	"github.com/spirit-labs/blockjoin/tuple"
	"github.com/spirit-labs/blockjoin/types"
)

const matchTableInitialSize = 64

// MatchTable maps each distinct join key of the build side to the rows having that key, in the order the rows were
// read. Keys are numbered by first occurrence and that numbering is the table's key iteration order.
// A MatchTable is immutable once built.
type MatchTable struct {
	index    *swiss.Map[JoinKey, int]
	keys     []JoinKey
	groups   [][]tuple.Row
	rowCount int
}

func newMatchTable() *MatchTable {
	return &MatchTable{index: swiss.NewMap[JoinKey, int](matchTableInitialSize)}
}

// BuildMatchTable drains block, adding every row under the key given by projector.
func BuildMatchTable(ctx context.Context, b block.Block, projector *KeyProjector) (*MatchTable, error) {
	table := newMatchTable()
	for {
		row, ok, err := pull(ctx, b)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		table.add(projector.Project(row), row)
	}
	if log.DebugEnabled {
		log.Debugf("built match table from block %s with %d rows and %d keys of type (%s)", b.Name(),
			table.rowCount, len(table.keys), types.ColumnTypesToString(projector.KeyTypes()))
	}
	return table, nil
}

func (m *MatchTable) add(key JoinKey, row tuple.Row) {
	ord, ok := m.index.Get(key)
	if !ok {
		ord = len(m.keys)
		m.index.Put(key, ord)
		m.keys = append(m.keys, key)
		m.groups = append(m.groups, nil)
	}
	m.groups[ord] = append(m.groups[ord], row)
	m.rowCount++
}

// lookup returns the ordinal of the key with encoding key, or -1. key is not retained.
func (m *MatchTable) lookup(key []byte) int {
	ord, ok := m.index.Get(JoinKey(common.ByteSliceToStringZeroCopy(key)))
	if !ok {
		return -1
	}
	return ord
}

// Keys returns the distinct keys in iteration order.
func (m *MatchTable) Keys() []JoinKey {
	return m.keys
}

func (m *MatchTable) rows(ord int) []tuple.Row {
	return m.groups[ord]
}

func (m *MatchTable) RowCount() int {
	return m.rowCount
}

func (m *MatchTable) KeyCount() int {
	return len(m.keys)
}
