package evbatch

import (
	"github.com/spirit-labs/blockjoin/types"
	"strings"
)

type EventSchema struct {
	columnNames []string
	columnTypes []types.ColumnType
	nameIndex   map[string]int
}

func NewEventSchema(columnNames []string, columnTypes []types.ColumnType) *EventSchema {
	if len(columnNames) != len(columnTypes) {
		panic("columnNames and columnTypes must be same length")
	}
	nameIndex := make(map[string]int, len(columnNames))
	for i, name := range columnNames {
		nameIndex[name] = i
	}
	return &EventSchema{
		columnNames: columnNames,
		columnTypes: columnTypes,
		nameIndex:   nameIndex,
	}
}

func (s *EventSchema) ColumnNames() []string {
	return s.columnNames
}

func (s *EventSchema) ColumnTypes() []types.ColumnType {
	return s.columnTypes
}

func (s *EventSchema) NumColumns() int {
	return len(s.columnNames)
}

// ColumnIndex returns the position of the named column, or -1 if the schema has no such column.
func (s *EventSchema) ColumnIndex(name string) int {
	idx, ok := s.nameIndex[name]
	if !ok {
		return -1
	}
	return idx
}

func (s *EventSchema) String() string {
	sb := strings.Builder{}
	for i, colName := range s.columnNames {
		colType := s.columnTypes[i]
		sb.WriteString(colName)
		sb.WriteString(": ")
		sb.WriteString(colType.String())
		if i != len(s.columnNames)-1 {
			sb.WriteString(", ")
		}
	}
	return sb.String()
}
