package evbatch

import (
	"fmt"
	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"
	"github.com/apache/arrow/go/v11/arrow/memory"
	"github.com/spirit-labs/blockjoin/tuple"
	"github.com/spirit-labs/blockjoin/types"
	"strings"
)

// Batch is a columnar set of rows backed by arrow arrays.
type Batch struct {
	Schema   *EventSchema
	Columns  []Column
	RowCount int
}

func NewBatchFromBuilders(schema *EventSchema, builders ...ColumnBuilder) *Batch {
	cols := make([]Column, len(builders))
	for i, colBuilder := range builders {
		cols[i] = colBuilder.Build()
	}
	return NewBatch(schema, cols...)
}

func NewBatch(schema *EventSchema, columns ...Column) *Batch {
	rc := -1
	for i, col := range columns {
		cl := col.Len()
		if rc != -1 && cl != rc {
			panic(fmt.Sprintf("column %s not same length (%d) as others (%d) col_names: %v col_types:%v",
				schema.ColumnNames()[i], cl, rc, schema.ColumnNames(), schema.ColumnTypes()))
		}
		rc = cl
	}
	if rc == -1 {
		rc = 0
	}
	return &Batch{
		Schema:   schema,
		Columns:  columns,
		RowCount: rc,
	}
}

// NewBatchFromRows builds a batch from rows which must conform to the schema.
func NewBatchFromRows(schema *EventSchema, rows []tuple.Row) *Batch {
	builders := CreateColBuilders(schema.ColumnTypes())
	for _, row := range rows {
		AppendRow(builders, schema.ColumnTypes(), row)
	}
	return NewBatchFromBuilders(schema, builders...)
}

func CreateEmptyBatch(schema *EventSchema) *Batch {
	colBuilders := CreateColBuilders(schema.columnTypes)
	return NewBatchFromBuilders(schema, colBuilders...)
}

func (b *Batch) Release() {
	for _, col := range b.Columns {
		col.Release()
	}
}

// Row materializes the row at rowIndex. The returned row does not share memory with the batch other than for
// bytes values.
func (b *Batch) Row(rowIndex int) tuple.Row {
	row := make(tuple.Row, len(b.Columns))
	for colIndex, ct := range b.Schema.columnTypes {
		row[colIndex] = b.Value(colIndex, rowIndex, ct)
	}
	return row
}

func (b *Batch) Value(colIndex int, rowIndex int, ct types.ColumnType) any {
	col := b.Columns[colIndex]
	if col.IsNull(rowIndex) {
		return nil
	}
	switch ct.ID() {
	case types.ColumnTypeIDInt:
		return col.(*IntColumn).Get(rowIndex)
	case types.ColumnTypeIDFloat:
		return col.(*FloatColumn).Get(rowIndex)
	case types.ColumnTypeIDBool:
		return col.(*BoolColumn).Get(rowIndex)
	case types.ColumnTypeIDDecimal:
		return col.(*DecimalColumn).Get(rowIndex)
	case types.ColumnTypeIDString:
		return col.(*StringColumn).Get(rowIndex)
	case types.ColumnTypeIDBytes:
		return col.(*BytesColumn).Get(rowIndex)
	case types.ColumnTypeIDTimestamp:
		return col.(*TimestampColumn).Get(rowIndex)
	default:
		panic(fmt.Sprintf("unexpected column type %d", ct.ID()))
	}
}

// AppendRow appends each field of row to the corresponding builder.
func AppendRow(builders []ColumnBuilder, columnTypes []types.ColumnType, row tuple.Row) {
	for i, ct := range columnTypes {
		v := row[i]
		if v == nil {
			builders[i].AppendNull()
			continue
		}
		switch ct.ID() {
		case types.ColumnTypeIDInt:
			builders[i].(*IntColBuilder).Append(v.(int64))
		case types.ColumnTypeIDFloat:
			builders[i].(*FloatColBuilder).Append(v.(float64))
		case types.ColumnTypeIDBool:
			builders[i].(*BoolColBuilder).Append(v.(bool))
		case types.ColumnTypeIDDecimal:
			builders[i].(*DecimalColBuilder).Append(v.(types.Decimal))
		case types.ColumnTypeIDString:
			builders[i].(*StringColBuilder).Append(v.(string))
		case types.ColumnTypeIDBytes:
			builders[i].(*BytesColBuilder).Append(v.([]byte))
		case types.ColumnTypeIDTimestamp:
			builders[i].(*TimestampColBuilder).Append(v.(types.Timestamp))
		default:
			panic(fmt.Sprintf("unknown column type %d", ct.ID()))
		}
	}
}

func (b *Batch) GetIntColumn(colIndex int) *IntColumn {
	return b.Columns[colIndex].(*IntColumn)
}

func (b *Batch) GetFloatColumn(colIndex int) *FloatColumn {
	return b.Columns[colIndex].(*FloatColumn)
}

func (b *Batch) GetDecimalColumn(colIndex int) *DecimalColumn {
	return b.Columns[colIndex].(*DecimalColumn)
}

func (b *Batch) GetBoolColumn(colIndex int) *BoolColumn {
	return b.Columns[colIndex].(*BoolColumn)
}

func (b *Batch) GetStringColumn(colIndex int) *StringColumn {
	return b.Columns[colIndex].(*StringColumn)
}

func (b *Batch) GetBytesColumn(colIndex int) *BytesColumn {
	return b.Columns[colIndex].(*BytesColumn)
}

func (b *Batch) GetTimestampColumn(colIndex int) *TimestampColumn {
	return b.Columns[colIndex].(*TimestampColumn)
}

type Column interface {
	IsNull(row int) bool
	Len() int
	Retain()
	Release()
}

type ColumnBuilder interface {
	AppendNull()
	Build() Column
}

func NewIntColBuilder() *IntColBuilder {
	return &IntColBuilder{builder: array.NewInt64Builder(memory.NewGoAllocator())}
}

type IntColBuilder struct {
	builder *array.Int64Builder
}

func (ib *IntColBuilder) AppendNull() {
	ib.builder.AppendNull()
}

func (ib *IntColBuilder) Append(val int64) {
	ib.builder.Append(val)
}

func (ib *IntColBuilder) Build() Column {
	return &IntColumn{array: ib.builder.NewInt64Array()}
}

type IntColumn struct {
	array *array.Int64
}

func (ic *IntColumn) Retain() {
	ic.array.Retain()
}

func (ic *IntColumn) Release() {
	ic.array.Release()
}

func (ic *IntColumn) Get(row int) int64 {
	return ic.array.Value(row)
}

func (ic *IntColumn) IsNull(row int) bool {
	return ic.array.IsNull(row)
}

func (ic *IntColumn) Len() int {
	return ic.array.Len()
}

func NewFloatColBuilder() *FloatColBuilder {
	return &FloatColBuilder{builder: array.NewFloat64Builder(memory.NewGoAllocator())}
}

type FloatColBuilder struct {
	builder *array.Float64Builder
}

func (ib *FloatColBuilder) AppendNull() {
	ib.builder.AppendNull()
}

func (ib *FloatColBuilder) Append(val float64) {
	ib.builder.Append(val)
}

func (ib *FloatColBuilder) Build() Column {
	return &FloatColumn{array: ib.builder.NewFloat64Array()}
}

type FloatColumn struct {
	array *array.Float64
}

func (ic *FloatColumn) Retain() {
	ic.array.Retain()
}

func (ic *FloatColumn) Release() {
	ic.array.Release()
}

func (ic *FloatColumn) Get(row int) float64 {
	return ic.array.Value(row)
}

func (ic *FloatColumn) IsNull(row int) bool {
	return ic.array.IsNull(row)
}

func (ic *FloatColumn) Len() int {
	return ic.array.Len()
}

func NewBoolColBuilder() *BoolColBuilder {
	return &BoolColBuilder{builder: array.NewBooleanBuilder(memory.NewGoAllocator())}
}

type BoolColBuilder struct {
	builder *array.BooleanBuilder
}

func (ib *BoolColBuilder) AppendNull() {
	ib.builder.AppendNull()
}

func (ib *BoolColBuilder) Append(val bool) {
	ib.builder.Append(val)
}

func (ib *BoolColBuilder) Build() Column {
	return &BoolColumn{array: ib.builder.NewBooleanArray()}
}

type BoolColumn struct {
	array *array.Boolean
}

func (ic *BoolColumn) Retain() {
	ic.array.Retain()
}

func (ic *BoolColumn) Release() {
	ic.array.Release()
}

func (ic *BoolColumn) Get(row int) bool {
	return ic.array.Value(row)
}

func (ic *BoolColumn) IsNull(row int) bool {
	return ic.array.IsNull(row)
}

func (ic *BoolColumn) Len() int {
	return ic.array.Len()
}

func NewDecimalColBuilder(decimalType *types.DecimalType) *DecimalColBuilder {
	dt := &arrow.Decimal128Type{
		Precision: int32(decimalType.Precision),
		Scale:     int32(decimalType.Scale),
	}
	return &DecimalColBuilder{
		decimalType: decimalType,
		builder:     array.NewDecimal128Builder(memory.NewGoAllocator(), dt),
	}
}

type DecimalColBuilder struct {
	decimalType *types.DecimalType
	builder     *array.Decimal128Builder
}

func (ib *DecimalColBuilder) AppendNull() {
	ib.builder.AppendNull()
}

func (ib *DecimalColBuilder) Append(val types.Decimal) {
	ib.builder.Append(val.Num)
}

func (ib *DecimalColBuilder) Build() Column {
	return &DecimalColumn{
		precision: ib.decimalType.Precision,
		scale:     ib.decimalType.Scale,
		array:     ib.builder.NewDecimal128Array(),
	}
}

type DecimalColumn struct {
	precision int
	scale     int
	array     *array.Decimal128
}

func (ic *DecimalColumn) Retain() {
	ic.array.Retain()
}

func (ic *DecimalColumn) Release() {
	ic.array.Release()
}

func (ic *DecimalColumn) Get(row int) types.Decimal {
	return types.Decimal{
		Num:       ic.array.Value(row),
		Precision: ic.precision,
		Scale:     ic.scale,
	}
}

func (ic *DecimalColumn) IsNull(row int) bool {
	return ic.array.IsNull(row)
}

func (ic *DecimalColumn) Len() int {
	return ic.array.Len()
}

func NewStringColBuilder() *StringColBuilder {
	return &StringColBuilder{builder: array.NewStringBuilder(memory.NewGoAllocator())}
}

type StringColBuilder struct {
	builder *array.StringBuilder
}

func (ib *StringColBuilder) AppendNull() {
	ib.builder.AppendNull()
}

func (ib *StringColBuilder) Append(val string) {
	ib.builder.Append(val)
}

func (ib *StringColBuilder) Build() Column {
	return &StringColumn{array: ib.builder.NewStringArray()}
}

type StringColumn struct {
	array *array.String
}

func (ic *StringColumn) Retain() {
	ic.array.Retain()
}

func (ic *StringColumn) Release() {
	ic.array.Release()
}

func (ic *StringColumn) Get(row int) string {
	return ic.array.Value(row)
}

func (ic *StringColumn) IsNull(row int) bool {
	return ic.array.IsNull(row)
}

func (ic *StringColumn) Len() int {
	return ic.array.Len()
}

func NewBytesColBuilder() *BytesColBuilder {
	return &BytesColBuilder{builder: array.NewBinaryBuilder(memory.NewGoAllocator(), arrow.BinaryTypes.Binary)}
}

type BytesColBuilder struct {
	builder *array.BinaryBuilder
}

func (ib *BytesColBuilder) AppendNull() {
	ib.builder.AppendNull()
}

func (ib *BytesColBuilder) Append(val []byte) {
	ib.builder.Append(val)
}

func (ib *BytesColBuilder) Build() Column {
	return &BytesColumn{array: ib.builder.NewBinaryArray()}
}

type BytesColumn struct {
	array *array.Binary
}

func (ic *BytesColumn) Retain() {
	ic.array.Retain()
}

func (ic *BytesColumn) Release() {
	ic.array.Release()
}

func (ic *BytesColumn) Get(row int) []byte {
	return ic.array.Value(row)
}

func (ic *BytesColumn) IsNull(row int) bool {
	return ic.array.IsNull(row)
}

func (ic *BytesColumn) Len() int {
	return ic.array.Len()
}

func NewTimestampColBuilder() *TimestampColBuilder {
	dt := &arrow.TimestampType{Unit: arrow.Millisecond}
	return &TimestampColBuilder{builder: array.NewTimestampBuilder(memory.NewGoAllocator(), dt)}
}

type TimestampColBuilder struct {
	builder *array.TimestampBuilder
}

func (ib *TimestampColBuilder) AppendNull() {
	ib.builder.AppendNull()
}

func (ib *TimestampColBuilder) Append(val types.Timestamp) {
	ib.builder.Append(arrow.Timestamp(val.Val))
}

func (ib *TimestampColBuilder) Build() Column {
	return &TimestampColumn{array: ib.builder.NewTimestampArray()}
}

type TimestampColumn struct {
	array *array.Timestamp
}

func (ic *TimestampColumn) Retain() {
	ic.array.Retain()
}

func (ic *TimestampColumn) Release() {
	ic.array.Release()
}

func (ic *TimestampColumn) Get(row int) types.Timestamp {
	return types.NewTimestamp(int64(ic.array.Value(row)))
}

func (ic *TimestampColumn) IsNull(row int) bool {
	return ic.array.IsNull(row)
}

func (ic *TimestampColumn) Len() int {
	return ic.array.Len()
}

func CreateColBuilders(columnTypes []types.ColumnType) []ColumnBuilder {
	colBuilders := make([]ColumnBuilder, len(columnTypes))
	for colIndex, ft := range columnTypes {
		switch ft.ID() {
		case types.ColumnTypeIDInt:
			colBuilders[colIndex] = NewIntColBuilder()
		case types.ColumnTypeIDFloat:
			colBuilders[colIndex] = NewFloatColBuilder()
		case types.ColumnTypeIDBool:
			colBuilders[colIndex] = NewBoolColBuilder()
		case types.ColumnTypeIDDecimal:
			colBuilders[colIndex] = NewDecimalColBuilder(ft.(*types.DecimalType))
		case types.ColumnTypeIDString:
			colBuilders[colIndex] = NewStringColBuilder()
		case types.ColumnTypeIDBytes:
			colBuilders[colIndex] = NewBytesColBuilder()
		case types.ColumnTypeIDTimestamp:
			colBuilders[colIndex] = NewTimestampColBuilder()
		default:
			panic(fmt.Sprintf("unknown column type %d", ft.ID()))
		}
	}
	return colBuilders
}

func (b *Batch) String() string {
	var sb strings.Builder
	sb.WriteString(b.Schema.String())
	for i := 0; i < b.RowCount; i++ {
		sb.WriteString("\n")
		sb.WriteString(b.Row(i).String())
	}
	return sb.String()
}
