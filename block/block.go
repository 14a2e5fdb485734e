// Package block defines the named, schema carrying row streams consumed by operators.
package block

import (
	"context"
	"fmt"
	"strings"

	"github.com/spirit-labs/blockjoin/evbatch"
	"github.com/spirit-labs/blockjoin/iteration"
	"github.com/spirit-labs/blockjoin/tuple"
)

// Metadata describes the rows of a block: their schema and any ordering and partitioning the producer guarantees.
// SortKeys and PartitionKeys are column names. A nil PartitionKeys means the block declares no partitioning.
type Metadata struct {
	Schema        *evbatch.EventSchema
	SortKeys      []string
	PartitionKeys []string
}

func (m *Metadata) String() string {
	var sb strings.Builder
	sb.WriteString("schema={")
	sb.WriteString(m.Schema.String())
	sb.WriteString("}")
	sb.WriteString(fmt.Sprintf(" sortKeys=%v", m.SortKeys))
	if m.PartitionKeys != nil {
		sb.WriteString(fmt.Sprintf(" partitionKeys=%v", m.PartitionKeys))
	}
	return sb.String()
}

type Block interface {
	Name() string
	Metadata() *Metadata
	// Next pulls the next row. It returns false at end of stream. The caller may retain the returned row and must not
	// modify it.
	Next(ctx context.Context) (tuple.Row, bool, error)
	Close()
}

// New creates a block which reads its rows from iter.
func New(name string, meta *Metadata, iter iteration.RowIterator) Block {
	return &iterBlock{name: name, meta: meta, iter: iter}
}

// NewSliceBlock creates a block over in-memory rows.
func NewSliceBlock(name string, meta *Metadata, rows []tuple.Row) Block {
	return New(name, meta, iteration.NewStaticIterator(rows))
}

type iterBlock struct {
	name string
	meta *Metadata
	iter iteration.RowIterator
}

func (b *iterBlock) Name() string {
	return b.name
}

func (b *iterBlock) Metadata() *Metadata {
	return b.meta
}

func (b *iterBlock) Next(ctx context.Context) (tuple.Row, bool, error) {
	ok, row, err := b.iter.Next(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	return row, true, nil
}

func (b *iterBlock) Close() {
	b.iter.Close()
}
