package main

import (
	"bufio"
	"encoding/json"
	"io"
	"math"
	"strconv"

	"github.com/spirit-labs/blockjoin/errors"
	"github.com/spirit-labs/blockjoin/evbatch"
	"github.com/spirit-labs/blockjoin/tuple"
	"github.com/spirit-labs/blockjoin/types"
)

// rowWriter writes rows as JSON objects, one per line, with members in column order. The encoding is the one read
// by block.NewJSONLinesBlock: bytes are base64, timestamps are epoch millis and decimals are strings.
type rowWriter struct {
	out   *bufio.Writer
	names [][]byte
	buff  []byte
}

func newRowWriter(w io.Writer, schema *evbatch.EventSchema) *rowWriter {
	names := make([][]byte, schema.NumColumns())
	for i, name := range schema.ColumnNames() {
		quoted, _ := json.Marshal(name)
		names[i] = append(quoted, ':')
	}
	return &rowWriter{out: bufio.NewWriter(w), names: names}
}

func (r *rowWriter) write(row tuple.Row) error {
	buff := append(r.buff[:0], '{')
	var err error
	for i, v := range row {
		if i > 0 {
			buff = append(buff, ',')
		}
		buff = append(buff, r.names[i]...)
		buff, err = appendJSONValue(buff, v)
		if err != nil {
			return err
		}
	}
	buff = append(buff, '}', '\n')
	r.buff = buff
	_, err = r.out.Write(buff)
	return errors.WithStack(err)
}

func (r *rowWriter) flush() error {
	return errors.WithStack(r.out.Flush())
}

func appendJSONValue(buff []byte, v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return append(buff, "null"...), nil
	case int64:
		return strconv.AppendInt(buff, val, 10), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return append(buff, "null"...), nil
		}
		return strconv.AppendFloat(buff, val, 'g', -1, 64), nil
	case bool:
		return strconv.AppendBool(buff, val), nil
	case string:
		return appendMarshalled(buff, val)
	case []byte:
		return appendMarshalled(buff, val)
	case types.Decimal:
		return appendMarshalled(buff, val.String())
	case types.Timestamp:
		return strconv.AppendInt(buff, val.Val, 10), nil
	default:
		return nil, errors.Errorf("cannot write value of type %T", v)
	}
}

func appendMarshalled(buff []byte, v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return append(buff, b...), nil
}
