// Package tuple holds the row representation that flows between blocks and operators.
package tuple

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/spirit-labs/blockjoin/errors"
	"github.com/spirit-labs/blockjoin/types"
)

// Row is an ordered sequence of field values. A nil entry is a null. Non null values must be one of int64, float64,
// bool, string, []byte, types.Decimal or types.Timestamp, matching the column type at that position.
type Row []any

func NewNullRow(width int) Row {
	return make(Row, width)
}

// Concat returns a newly allocated row holding the fields of left followed by the fields of right.
func Concat(left Row, right Row) Row {
	out := make(Row, 0, len(left)+len(right))
	out = append(out, left...)
	return append(out, right...)
}

// ConcatInto overwrites out with the fields of left followed by the fields of right. out must have exactly
// len(left)+len(right) fields.
func ConcatInto(out Row, left Row, right Row) Row {
	copy(out, left)
	copy(out[len(left):], right)
	return out
}

func (r Row) Copy() Row {
	c := make(Row, len(r))
	copy(c, r)
	return c
}

func (r Row) IsNull(col int) bool {
	return r[col] == nil
}

// Equal compares two rows field by field. Two nulls are equal.
func (r Row) Equal(other Row) bool {
	if len(r) != len(other) {
		return false
	}
	for i, v := range r {
		if !valuesEqual(v, other[i]) {
			return false
		}
	}
	return true
}

func valuesEqual(v1 any, v2 any) bool {
	if v1 == nil || v2 == nil {
		return v1 == nil && v2 == nil
	}
	switch t1 := v1.(type) {
	case []byte:
		t2, ok := v2.([]byte)
		return ok && bytes.Equal(t1, t2)
	case types.Decimal:
		t2, ok := v2.(types.Decimal)
		return ok && t1.Equals(&t2)
	case float64:
		// NaN equals NaN, matching the key encoding.
		t2, ok := v2.(float64)
		return ok && (t1 == t2 || (math.IsNaN(t1) && math.IsNaN(t2)))
	default:
		return v1 == v2
	}
}

func (r Row) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	for i, v := range r {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(FormatValue(v))
	}
	sb.WriteString(")")
	return sb.String()
}

func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", t)
	case []byte:
		return fmt.Sprintf("%x", t)
	case types.Decimal:
		return t.String()
	case types.Timestamp:
		return fmt.Sprintf("ts(%d)", t.Val)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// CheckRow verifies that the row has one field per column and that each non null field has the Go type used for
// its column type.
func CheckRow(row Row, columnTypes []types.ColumnType) error {
	if len(row) != len(columnTypes) {
		return errors.Errorf("row has %d fields but schema has %d columns", len(row), len(columnTypes))
	}
	for i, ct := range columnTypes {
		if !valueMatchesType(row[i], ct) {
			return errors.Errorf("field %d value %v (%T) is not valid for column type %s", i, row[i], row[i], ct.String())
		}
	}
	return nil
}

func valueMatchesType(v any, ct types.ColumnType) bool {
	if v == nil {
		return true
	}
	var ok bool
	switch ct.ID() {
	case types.ColumnTypeIDInt:
		_, ok = v.(int64)
	case types.ColumnTypeIDFloat:
		_, ok = v.(float64)
	case types.ColumnTypeIDBool:
		_, ok = v.(bool)
	case types.ColumnTypeIDDecimal:
		_, ok = v.(types.Decimal)
	case types.ColumnTypeIDString:
		_, ok = v.(string)
	case types.ColumnTypeIDBytes:
		_, ok = v.([]byte)
	case types.ColumnTypeIDTimestamp:
		_, ok = v.(types.Timestamp)
	}
	return ok
}
