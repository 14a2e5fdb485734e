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

package encoding

import (
	"fmt"
	"github.com/apache/arrow/go/v11/arrow/decimal128"
	"github.com/spirit-labs/blockjoin/common"
	"github.com/spirit-labs/blockjoin/errors"
	"github.com/spirit-labs/blockjoin/types"
	"math"
)

const (
	SignBitMask  uint64 = 1 << 63
	encGroupSize        = 8
	encMarker    byte   = 255
	encPad       byte   = 0

	nullMarker    byte = 0
	notNullMarker byte = 1
)

var stringKeyEncodingPads = make([]byte, encGroupSize)

// KeyEncodeValue appends the key encoding of a single field value to buffer. Every value is preceded by a marker byte
// which is 0 for null, so two null values always produce the same encoding. The encoding is self-delimiting, so the
// concatenation of the encodings of several values is equal for two value sequences iff the sequences are equal.
func KeyEncodeValue(buffer []byte, colType types.ColumnType, val any) []byte {
	if val == nil {
		return append(buffer, nullMarker)
	}
	buffer = append(buffer, notNullMarker)
	switch colType.ID() {
	case types.ColumnTypeIDInt:
		buffer = KeyEncodeInt(buffer, val.(int64))
	case types.ColumnTypeIDFloat:
		buffer = KeyEncodeFloat(buffer, val.(float64))
	case types.ColumnTypeIDBool:
		buffer = AppendBoolToBuffer(buffer, val.(bool))
	case types.ColumnTypeIDDecimal:
		buffer = KeyEncodeDecimal(buffer, val.(types.Decimal))
	case types.ColumnTypeIDString:
		buffer = KeyEncodeString(buffer, val.(string))
	case types.ColumnTypeIDBytes:
		buffer = KeyEncodeBytes(buffer, val.([]byte))
	case types.ColumnTypeIDTimestamp:
		buffer = KeyEncodeTimestamp(buffer, val.(types.Timestamp))
	default:
		panic(fmt.Sprintf("unexpected column type %d", colType.ID()))
	}
	return buffer
}

func DecodeKeyToSlice(buffer []byte, offset int, columnTypes []types.ColumnType) ([]any, int, error) {
	key := make([]any, len(columnTypes))
	for i, keyColType := range columnTypes {
		isNull := buffer[offset] == nullMarker
		offset++
		if isNull {
			continue
		}
		switch keyColType.ID() {
		case types.ColumnTypeIDInt:
			key[i], offset = KeyDecodeInt(buffer, offset)
		case types.ColumnTypeIDFloat:
			key[i], offset = KeyDecodeFloat(buffer, offset)
		case types.ColumnTypeIDBool:
			key[i], offset = DecodeBool(buffer, offset)
		case types.ColumnTypeIDDecimal:
			decType := keyColType.(*types.DecimalType)
			var dec types.Decimal
			dec, offset = KeyDecodeDecimal(buffer, offset)
			dec.Precision = decType.Precision
			dec.Scale = decType.Scale
			key[i] = dec
		case types.ColumnTypeIDString:
			var err error
			key[i], offset, err = KeyDecodeString(buffer, offset)
			if err != nil {
				return nil, 0, err
			}
		case types.ColumnTypeIDBytes:
			var err error
			key[i], offset, err = KeyDecodeBytes(buffer, offset)
			if err != nil {
				return nil, 0, err
			}
		case types.ColumnTypeIDTimestamp:
			key[i], offset = KeyDecodeTimestamp(buffer, offset)
		default:
			panic("unknown type")
		}
	}
	return key, offset, nil
}

func KeyEncodeInt(buffer []byte, val int64) []byte {
	uVal := uint64(val) ^ SignBitMask
	return AppendUint64ToBufferBE(buffer, uVal)
}

func KeyDecodeInt(buffer []byte, offset int) (int64, int) {
	u, offset := ReadUint64FromBufferBE(buffer, offset)
	return int64(u ^ SignBitMask), offset
}

// KeyEncodeFloat maps -0.0 and +0.0 to the same encoding, and every NaN to the same encoding.
func KeyEncodeFloat(buffer []byte, val float64) []byte {
	if math.IsNaN(val) {
		val = math.NaN()
	}
	uVal := math.Float64bits(val)
	if val >= 0 {
		uVal |= SignBitMask
	} else {
		uVal = ^uVal
	}
	return AppendUint64ToBufferBE(buffer, uVal)
}

func KeyDecodeFloat(buffer []byte, offset int) (float64, int) {
	u, offset := ReadUint64FromBufferBE(buffer, offset)
	if u&SignBitMask == SignBitMask {
		u &= ^SignBitMask
	} else {
		u = ^u
	}
	return math.Float64frombits(u), offset
}

func KeyEncodeDecimal(buffer []byte, val types.Decimal) []byte {
	buffer = KeyEncodeInt(buffer, val.Num.HighBits())
	return AppendUint64ToBufferBE(buffer, val.Num.LowBits())
}

func KeyDecodeDecimal(buffer []byte, offset int) (types.Decimal, int) {
	var hi int64
	hi, offset = KeyDecodeInt(buffer, offset)
	var lo uint64
	lo, offset = ReadUint64FromBufferBE(buffer, offset)
	return types.Decimal{
		Num: decimal128.New(hi, lo),
	}, offset
}

func KeyEncodeBytes(buffer []byte, val []byte) []byte {
	return KeyEncodeString(buffer, common.ByteSliceToStringZeroCopy(val))
}

func KeyDecodeBytes(buffer []byte, offset int) ([]byte, int, error) {
	s, off, err := KeyDecodeString(buffer, offset)
	if err != nil {
		return nil, 0, err
	}
	if len(s) == 0 {
		return []byte{}, off, nil
	}
	return []byte(s), off, nil
}

func KeyEncodeTimestamp(buffer []byte, val types.Timestamp) []byte {
	return KeyEncodeInt(buffer, val.Val)
}

func KeyDecodeTimestamp(buffer []byte, offset int) (types.Timestamp, int) {
	v, off := KeyDecodeInt(buffer, offset)
	return types.NewTimestamp(v), off
}

/*
KeyEncodeString
A string is split into chunks of 8 bytes. After each chunk we append a marker byte of 255 minus the number of pad
bytes in that chunk. The final chunk is right padded with zeros, so an 8 byte multiple gets an extra all-pad chunk.
This makes the encoding self-delimiting: a string can never be confused with a prefix of a longer one.
*/
func KeyEncodeString(buff []byte, val string) []byte {
	data := common.StringToByteSliceZeroCopy(val)
	dLen := len(data)

	for idx := 0; idx <= dLen; idx += encGroupSize {
		remain := dLen - idx
		padCount := 0
		if remain >= encGroupSize {
			buff = append(buff, data[idx:idx+encGroupSize]...)
		} else {
			padCount = encGroupSize - remain
			buff = append(buff, data[idx:]...)
			buff = append(buff, stringKeyEncodingPads[:padCount]...)
		}

		marker := encMarker - byte(padCount)
		buff = append(buff, marker)
	}
	return buff
}

func KeyDecodeString(buffer []byte, offset int) (string, int, error) {
	res := make([]byte, 0, len(buffer)-offset)

	if offset != 0 {
		buffer = buffer[offset:]
	}

	for {
		if len(buffer) < encGroupSize+1 {
			return "", 0, errors.New("insufficient bytes to decode value")
		}

		groupBytes := buffer[:encGroupSize+1]

		group := groupBytes[:encGroupSize]
		marker := groupBytes[encGroupSize]

		padCount := encMarker - marker

		if padCount > encGroupSize {
			return "", 0, errors.Errorf("invalid marker byte, group bytes %q", groupBytes)
		}

		realGroupSize := encGroupSize - padCount
		res = append(res, group[:realGroupSize]...)
		buffer = buffer[encGroupSize+1:]
		offset += encGroupSize + 1

		if padCount != 0 {
			for _, v := range group[realGroupSize:] {
				if v != encPad {
					return "", 0, errors.Errorf("invalid padding byte, group bytes %q", groupBytes)
				}
			}
			break
		}
	}
	return string(res), offset, nil
}
