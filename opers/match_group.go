package opers

import "github.com/spirit-labs/blockjoin/tuple"

// MatchGroup is a cursor over the right rows paired with the current left row. The rows are never modified.
type MatchGroup struct {
	rows []tuple.Row
	pos  int
}

func newMatchGroup(rows []tuple.Row) *MatchGroup {
	return &MatchGroup{rows: rows}
}

// singleNullGroup holds a single all null row of the given width.
func singleNullGroup(width int) *MatchGroup {
	return newMatchGroup([]tuple.Row{tuple.NewNullRow(width)})
}

func emptyGroup() *MatchGroup {
	return &MatchGroup{}
}

func (m *MatchGroup) Rewind() {
	m.pos = 0
}

func (m *MatchGroup) IsExhausted() bool {
	return m.pos >= len(m.rows)
}

// NextTuple returns the row at the cursor and advances it. Callers must check IsExhausted first.
func (m *MatchGroup) NextTuple() tuple.Row {
	if m.IsExhausted() {
		panic("match group is exhausted")
	}
	row := m.rows[m.pos]
	m.pos++
	return row
}

func (m *MatchGroup) Len() int {
	return len(m.rows)
}

func (m *MatchGroup) reset(rows []tuple.Row) {
	m.rows = rows
	m.pos = 0
}
