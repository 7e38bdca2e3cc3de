package nt

import (
	"bytes"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// BinaryUpdate is one decoded [id, timestamp, type, value] array (spec.md
// §4.D.3). ID == -1 is reserved for RTT frames (spec.md §4.D.5).
type BinaryUpdate struct {
	ID        int64
	Timestamp uint64
	WireType  byte
	Value     Value
}

const rttID int64 = -1

// encodeBinaryUpdate MessagePack-encodes one 4-element array. Binary
// updates are concatenated back to back in the per-client binary cache
// (spec.md §4.D.3), so this returns just the array's own bytes — no outer
// framing is added, matching MessagePack's self-delimiting arrays.
func encodeBinaryUpdate(id int64, timestampMicros uint64, v Value) ([]byte, error) {
	code, err := v.typ.WireCode()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeArrayLen(4); err != nil {
		return nil, err
	}
	if err := enc.EncodeInt64(id); err != nil {
		return nil, err
	}
	if err := enc.EncodeUint64(timestampMicros); err != nil {
		return nil, err
	}
	if err := enc.EncodeInt64(int64(code)); err != nil {
		return nil, err
	}
	if err := encodeValue(enc, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(enc *msgpack.Encoder, v Value) error {
	switch v.typ.APIType() {
	case TypeBool:
		return enc.EncodeBool(v.b)
	case TypeFloat64:
		return enc.EncodeFloat64(v.f64)
	case TypeInt:
		if v.typ == TypeUInt {
			return enc.EncodeUint64(uint64(v.i64))
		}
		return enc.EncodeInt64(v.i64)
	case TypeFloat32:
		return enc.EncodeFloat32(v.f32)
	case TypeString:
		return enc.EncodeString(v.s)
	case TypeBin:
		return enc.EncodeBytes(v.bin)
	case TypeBoolArray:
		return enc.Encode(v.bArr)
	case TypeFloat64Array:
		return enc.Encode(v.f64Arr)
	case TypeIntArray:
		return enc.Encode(v.i64Arr)
	case TypeFloat32Array:
		return enc.Encode(v.f32Arr)
	case TypeStringArray:
		return enc.Encode(v.sArr)
	default:
		return fmt.Errorf("nt: cannot encode value of type %v", v.typ)
	}
}

// decodeBinaryMessages streams every [id, timestamp, type, value] array out
// of data, which may hold several concatenated updates (the batched
// binary cache, spec.md §4.D.3).
func decodeBinaryMessages(data []byte) ([]BinaryUpdate, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	var out []BinaryUpdate
	for {
		upd, err := decodeOneBinaryMessage(dec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
		}
		out = append(out, upd)
	}
	return out, nil
}

func decodeOneBinaryMessage(dec *msgpack.Decoder) (BinaryUpdate, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return BinaryUpdate{}, err
	}
	if n != 4 {
		return BinaryUpdate{}, fmt.Errorf("nt: binary update array has %d elements, want 4", n)
	}

	id, err := dec.DecodeInt64()
	if err != nil {
		return BinaryUpdate{}, err
	}
	ts, err := dec.DecodeUint64()
	if err != nil {
		return BinaryUpdate{}, err
	}
	typeCodeRaw, err := dec.DecodeInt64()
	if err != nil {
		return BinaryUpdate{}, err
	}
	typeCode := byte(typeCodeRaw)

	wireType, ok := TypeFromWireCode(typeCode)
	if !ok {
		return BinaryUpdate{}, fmt.Errorf("nt: unknown wire type code %d", typeCode)
	}

	value, err := decodeValue(dec, wireType)
	if err != nil {
		return BinaryUpdate{}, err
	}

	return BinaryUpdate{ID: id, Timestamp: ts, WireType: typeCode, Value: value}, nil
}

// decodeValue decodes a value of the given wire type. Per spec.md §9 Open
// Question "UInt on wire": an Int-typed field whose MessagePack encoding is
// one of the unsigned formats (uint8/uint16/uint32/uint64) is accepted and
// internally tagged UInt; APIType() still reports Int for it. Fixint and
// signed formats are tagged Int.
func decodeValue(dec *msgpack.Decoder, t Type) (Value, error) {
	switch t {
	case TypeBool:
		v, err := dec.DecodeBool()
		return NewBool(v), err
	case TypeFloat64:
		v, err := dec.DecodeFloat64()
		return NewFloat64(v), err
	case TypeInt:
		// DecodeInterface returns width-specific Go types by encoded width
		// (int8/int16/int32/int64, uint8/uint16/uint32/uint64); a compliant
		// NT4 client encodes small ints compactly (e.g. 42 as a positive
		// fixint), so only DecodeInterfaceLoose's width-independent
		// int64/uint64 widening handles every wire encoding while still
		// keeping the signed/unsigned distinction UInt tagging needs.
		raw, err := dec.DecodeInterfaceLoose()
		if err != nil {
			return Value{}, err
		}
		switch n := raw.(type) {
		case int64:
			return NewInt(n), nil
		case uint64:
			return NewUint(n), nil
		default:
			return Value{}, fmt.Errorf("nt: unexpected int encoding %T", raw)
		}
	case TypeFloat32:
		v, err := dec.DecodeFloat32()
		return NewFloat32(v), err
	case TypeString:
		v, err := dec.DecodeString()
		return NewString(v), err
	case TypeBin:
		v, err := dec.DecodeBytes()
		return NewBin(v), err
	case TypeBoolArray:
		var v []bool
		err := dec.Decode(&v)
		return NewBoolArray(v), err
	case TypeFloat64Array:
		var v []float64
		err := dec.Decode(&v)
		return NewFloat64Array(v), err
	case TypeIntArray:
		var v []int64
		err := dec.Decode(&v)
		return NewIntArray(v), err
	case TypeFloat32Array:
		var v []float32
		err := dec.Decode(&v)
		return NewFloat32Array(v), err
	case TypeStringArray:
		var v []string
		err := dec.Decode(&v)
		return NewStringArray(v), err
	default:
		return Value{}, fmt.Errorf("nt: cannot decode value of type %v", t)
	}
}
