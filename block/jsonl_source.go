package block

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"strconv"

	"github.com/spirit-labs/blockjoin/errors"
	"github.com/spirit-labs/blockjoin/evbatch"
	log "github.com/spirit-labs/blockjoin/logger"
	"github.com/spirit-labs/blockjoin/tuple"
	"github.com/spirit-labs/blockjoin/types"
	"github.com/tidwall/gjson"
)

const maxJSONLineSize = 16 * 1024 * 1024

// NewJSONLinesBlock creates a block reading one JSON object per line from r. Object members are matched to columns by
// name; absent members and JSON nulls become null fields and members with no matching column are ignored. Blank lines
// are skipped.
func NewJSONLinesBlock(name string, meta *Metadata, r io.ReadCloser) Block {
	return New(name, meta, NewJSONLinesIterator(name, meta.Schema, r))
}

type JSONLinesIterator struct {
	name    string
	schema  *evbatch.EventSchema
	reader  io.ReadCloser
	scanner *bufio.Scanner
	lineNum int
}

func NewJSONLinesIterator(name string, schema *evbatch.EventSchema, r io.ReadCloser) *JSONLinesIterator {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxJSONLineSize)
	return &JSONLinesIterator{
		name:    name,
		schema:  schema,
		reader:  r,
		scanner: scanner,
	}
}

func (j *JSONLinesIterator) Next(ctx context.Context) (bool, tuple.Row, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, nil, err
		}
		if !j.scanner.Scan() {
			if err := j.scanner.Err(); err != nil {
				return false, nil, errors.WithStack(err)
			}
			return false, nil, nil
		}
		j.lineNum++
		line := j.scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		row, err := j.decodeLine(line)
		if err != nil {
			return false, nil, err
		}
		return true, row, nil
	}
}

func (j *JSONLinesIterator) decodeLine(line []byte) (tuple.Row, error) {
	if !gjson.ValidBytes(line) {
		return nil, errors.Errorf("%s line %d: invalid JSON", j.name, j.lineNum)
	}
	obj := gjson.ParseBytes(line)
	if !obj.IsObject() {
		return nil, errors.Errorf("%s line %d: expected a JSON object", j.name, j.lineNum)
	}
	row := tuple.NewNullRow(j.schema.NumColumns())
	var err error
	obj.ForEach(func(key, value gjson.Result) bool {
		colIndex := j.schema.ColumnIndex(key.String())
		if colIndex == -1 {
			return true
		}
		row[colIndex], err = convertJSONValue(value, j.schema.ColumnTypes()[colIndex])
		if err != nil {
			err = errors.Wrapf(err, "%s line %d column '%s'", j.name, j.lineNum, key.String())
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func convertJSONValue(value gjson.Result, colType types.ColumnType) (any, error) {
	if value.Type == gjson.Null {
		return nil, nil
	}
	switch colType.ID() {
	case types.ColumnTypeIDInt:
		i, err := jsonInt(value, "an integer")
		if err != nil {
			return nil, err
		}
		return i, nil
	case types.ColumnTypeIDFloat:
		if value.Type != gjson.Number {
			return nil, errors.Errorf("expected a number but found %s", value.Raw)
		}
		return value.Float(), nil
	case types.ColumnTypeIDBool:
		if value.Type != gjson.True && value.Type != gjson.False {
			return nil, errors.Errorf("expected a boolean but found %s", value.Raw)
		}
		return value.Bool(), nil
	case types.ColumnTypeIDDecimal:
		if value.Type != gjson.Number && value.Type != gjson.String {
			return nil, errors.Errorf("expected a decimal but found %s", value.Raw)
		}
		decType := colType.(*types.DecimalType)
		s := value.String()
		if value.Type == gjson.Number {
			s = value.Raw
		}
		return types.NewDecimalFromString(s, decType.Precision, decType.Scale)
	case types.ColumnTypeIDString:
		if value.Type != gjson.String {
			return nil, errors.Errorf("expected a string but found %s", value.Raw)
		}
		return value.String(), nil
	case types.ColumnTypeIDBytes:
		if value.Type != gjson.String {
			return nil, errors.Errorf("expected a base64 string but found %s", value.Raw)
		}
		b, err := base64.StdEncoding.DecodeString(value.String())
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return b, nil
	case types.ColumnTypeIDTimestamp:
		millis, err := jsonInt(value, "epoch millis")
		if err != nil {
			return nil, err
		}
		return types.NewTimestamp(millis), nil
	default:
		return nil, errors.Errorf("unexpected column type %s", colType.String())
	}
}

// jsonInt rejects fractions and values outside int64 rather than truncating them.
func jsonInt(value gjson.Result, expected string) (int64, error) {
	if value.Type != gjson.Number {
		return 0, errors.Errorf("expected %s but found %s", expected, value.Raw)
	}
	i, err := strconv.ParseInt(value.Raw, 10, 64)
	if err != nil {
		return 0, errors.Errorf("expected %s but found %s", expected, value.Raw)
	}
	return i, nil
}

func (j *JSONLinesIterator) Close() {
	if err := j.reader.Close(); err != nil {
		log.Warnf("failed to close input for block %s: %v", j.name, err)
	}
}
