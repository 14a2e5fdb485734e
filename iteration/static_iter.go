package iteration

import (
	"context"

	"github.com/spirit-labs/blockjoin/tuple"
)

func NewStaticIterator(rows []tuple.Row) *StaticIterator {
	return &StaticIterator{rows: rows, failAt: -1}
}

// StaticIterator iterates over an in-memory slice of rows. It can be told to fail at a given position, which is used
// to exercise error paths of its consumers.
type StaticIterator struct {
	rows    []tuple.Row
	pos     int
	failAt  int
	failErr error
	closed  bool
}

func (s *StaticIterator) AddRow(row tuple.Row) {
	s.rows = append(s.rows, row)
}

// SetError makes the iterator return err when asked for the row at position pos.
func (s *StaticIterator) SetError(pos int, err error) {
	s.failAt = pos
	s.failErr = err
}

func (s *StaticIterator) Next(context.Context) (bool, tuple.Row, error) {
	if s.pos == s.failAt {
		return false, nil, s.failErr
	}
	if s.pos >= len(s.rows) {
		return false, nil, nil
	}
	row := s.rows[s.pos]
	s.pos++
	return true, row, nil
}

// Pulled returns how many rows have been returned so far.
func (s *StaticIterator) Pulled() int {
	return s.pos
}

func (s *StaticIterator) Closed() bool {
	return s.closed
}

func (s *StaticIterator) Close() {
	s.closed = true
}
