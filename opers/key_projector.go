package opers

import (
	"github.com/spirit-labs/blockjoin/common"
	"github.com/spirit-labs/blockjoin/encoding"
	"github.com/spirit-labs/blockjoin/tuple"
	"github.com/spirit-labs/blockjoin/types"
)

const keyInitialBufferSize = 48

// JoinKey is the key encoding of the join columns of a row. Two keys are equal iff the projected fields are equal
// pairwise, a null field being equal to another null field.
type JoinKey string

// Values decodes the key back into its field values. keyTypes are the types of the join columns.
func (k JoinKey) Values(keyTypes []types.ColumnType) ([]any, error) {
	vals, _, err := encoding.DecodeKeyToSlice(common.StringToByteSliceZeroCopy(string(k)), 0, keyTypes)
	return vals, err
}

// KeyProjector extracts the join key of a row. The column indexes are validated when the join is planned so
// projection never fails.
type KeyProjector struct {
	keyCols  []int
	keyTypes []types.ColumnType
	buff     []byte
}

// NewKeyProjector creates a projector for the columns keyCols of rows with column types colTypes.
func NewKeyProjector(keyCols []int, colTypes []types.ColumnType) *KeyProjector {
	keyTypes := make([]types.ColumnType, len(keyCols))
	for i, col := range keyCols {
		keyTypes[i] = colTypes[col]
	}
	return &KeyProjector{
		keyCols:  keyCols,
		keyTypes: keyTypes,
	}
}

func (k *KeyProjector) KeyTypes() []types.ColumnType {
	return k.keyTypes
}

// Project returns a newly allocated key which may be retained.
func (k *KeyProjector) Project(row tuple.Row) JoinKey {
	buff := k.encode(make([]byte, 0, keyInitialBufferSize), row)
	return JoinKey(common.ByteSliceToStringZeroCopy(buff))
}

// ProjectReuse encodes the key into the projector's own buffer. The result is only valid until the next call.
func (k *KeyProjector) ProjectReuse(row tuple.Row) []byte {
	k.buff = k.encode(k.buff[:0], row)
	return k.buff
}

func (k *KeyProjector) encode(buff []byte, row tuple.Row) []byte {
	for i, col := range k.keyCols {
		buff = encoding.KeyEncodeValue(buff, k.keyTypes[i], row[col])
	}
	return buff
}
