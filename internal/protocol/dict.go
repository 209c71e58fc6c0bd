package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// TupleType is the value type tag of a dictionary tuple.
type TupleType uint8

const (
	TupleBytes   TupleType = 0
	TupleCString TupleType = 1
	TupleUint    TupleType = 2
	TupleInt     TupleType = 3
)

const (
	tupleHeaderSize = 7 // key u32 + type u8 + length u16
	maxTuples       = 255
)

// ErrTooManyTuples is returned when a message does not fit the one-byte tuple count.
var ErrTooManyTuples = errors.New("too many tuples")

// DecodeError describes malformed dictionary input.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("dictionary decode at offset %d: %s", e.Offset, e.Reason)
}

// DictSize returns the number of bytes MarshalDict produces for m.
func DictSize(m Message) int {
	return 1 + len(m)*(tupleHeaderSize+4)
}

// MarshalDict serializes m as an AppMessage dictionary. Every value is written
// as a little-endian int32 tuple, in ascending key order.
func MarshalDict(m Message) ([]byte, error) {
	if len(m) > maxTuples {
		return nil, fmt.Errorf("%w: %d", ErrTooManyTuples, len(m))
	}

	buf := make([]byte, 1, DictSize(m))
	buf[0] = byte(len(m))
	for _, k := range m.Keys() {
		var tuple [tupleHeaderSize + 4]byte
		binary.LittleEndian.PutUint32(tuple[0:4], uint32(k))
		tuple[4] = byte(TupleInt)
		binary.LittleEndian.PutUint16(tuple[5:7], 4)
		binary.LittleEndian.PutUint32(tuple[7:11], uint32(m[k]))
		buf = append(buf, tuple[:]...)
	}
	return buf, nil
}

// UnmarshalDict parses an AppMessage dictionary. Integer tuples of width 1, 2
// or 4 are kept; byte array and string tuples are skipped since the schema has
// no use for them.
func UnmarshalDict(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Offset: 0, Reason: "empty dictionary"}
	}

	count := int(data[0])
	msg := make(Message, count)
	off := 1
	for i := 0; i < count; i++ {
		if len(data)-off < tupleHeaderSize {
			return nil, &DecodeError{Offset: off, Reason: "truncated tuple header"}
		}
		key := Key(binary.LittleEndian.Uint32(data[off : off+4]))
		typ := TupleType(data[off+4])
		length := int(binary.LittleEndian.Uint16(data[off+5 : off+7]))
		off += tupleHeaderSize

		if len(data)-off < length {
			return nil, &DecodeError{Offset: off, Reason: fmt.Sprintf("tuple %d value truncated", key)}
		}
		value := data[off : off+length]
		off += length

		switch typ {
		case TupleBytes, TupleCString:
			continue
		case TupleUint, TupleInt:
			v, err := decodeInt(value, typ == TupleInt)
			if err != nil {
				return nil, &DecodeError{Offset: off - length, Reason: err.Error()}
			}
			msg[key] = v
		default:
			return nil, &DecodeError{Offset: off - length - tupleHeaderSize, Reason: fmt.Sprintf("unknown tuple type %d", typ)}
		}
	}
	return msg, nil
}

func decodeInt(b []byte, signed bool) (int32, error) {
	switch len(b) {
	case 1:
		if signed {
			return int32(int8(b[0])), nil
		}
		return int32(b[0]), nil
	case 2:
		v := binary.LittleEndian.Uint16(b)
		if signed {
			return int32(int16(v)), nil
		}
		return int32(v), nil
	case 4:
		return int32(binary.LittleEndian.Uint32(b)), nil
	default:
		return 0, fmt.Errorf("unsupported integer width %d", len(b))
	}
}
