// Package nt implements the NetworkTables 4.1 broker: the topic registry,
// per-client publisher/subscriber state, subscription matching, the
// announce/unannounce/update fan-out, reflective meta-topics, text/binary
// batching and server-time offset computation described in spec.md §3–§4.D.
package nt

import "fmt"

// Type is the tagged-union discriminant for an NTDataValue (spec.md §3).
// The four internal-only surface forms (Json, Raw, Msgpack, Protobuf) are
// modeled as distinct Types so the value constructors stay precise, but
// APIType() always projects them to Str/Bin, and the wire type code table
// and TypeString never emit them directly; only SerializeDataType names
// them, for announce messages (spec.md §3, §6).
type Type int

const (
	TypeBool Type = iota
	TypeFloat64
	TypeInt
	TypeFloat32
	TypeString
	TypeBin
	// Internal-only surface forms; api_type() collapses these to Str/Bin.
	TypeJSON
	TypeRaw
	TypeMsgpack
	TypeProtobuf
	// TypeUInt has no distinct wire form; it is emitted as Int (spec.md §9 Open).
	TypeUInt
	TypeBoolArray
	TypeFloat64Array
	TypeIntArray
	TypeFloat32Array
	TypeStringArray
)

// APIType projects an internal Type to the type a consumer ever observes,
// per the spec.md §3 invariant "the API-type of a topic never changes".
func (t Type) APIType() Type {
	switch t {
	case TypeJSON:
		return TypeString
	case TypeRaw, TypeMsgpack, TypeProtobuf:
		return TypeBin
	case TypeUInt:
		return TypeInt
	default:
		return t
	}
}

// WireCode returns the numeric type code used in binary update messages
// (spec.md §6). Only API types are ever placed on the wire.
func (t Type) WireCode() (byte, error) {
	switch t.APIType() {
	case TypeBool:
		return 0, nil
	case TypeFloat64:
		return 1, nil
	case TypeInt:
		return 2, nil
	case TypeFloat32:
		return 3, nil
	case TypeString:
		return 4, nil
	case TypeBin:
		return 5, nil
	case TypeBoolArray:
		return 16, nil
	case TypeFloat64Array:
		return 17, nil
	case TypeIntArray:
		return 18, nil
	case TypeFloat32Array:
		return 19, nil
	case TypeStringArray:
		return 20, nil
	default:
		return 0, fmt.Errorf("nt: type %v has no wire code", t)
	}
}

// TypeFromWireCode inverts WireCode for decoding binary update messages.
func TypeFromWireCode(code byte) (Type, bool) {
	switch code {
	case 0:
		return TypeBool, true
	case 1:
		return TypeFloat64, true
	case 2:
		return TypeInt, true
	case 3:
		return TypeFloat32, true
	case 4:
		return TypeString, true
	case 5:
		return TypeBin, true
	case 16:
		return TypeBoolArray, true
	case 17:
		return TypeFloat64Array, true
	case 18:
		return TypeIntArray, true
	case 19:
		return TypeFloat32Array, true
	case 20:
		return TypeStringArray, true
	default:
		return 0, false
	}
}

// TypeString returns the JSON announce type string for an API type
// (spec.md §6 "Type strings").
func (t Type) TypeString() string {
	switch t.APIType() {
	case TypeBool:
		return "boolean"
	case TypeFloat64:
		return "double"
	case TypeInt:
		return "int"
	case TypeFloat32:
		return "float"
	case TypeString:
		return "string"
	case TypeBin:
		return "raw"
	case TypeBoolArray:
		return "boolean[]"
	case TypeFloat64Array:
		return "double[]"
	case TypeIntArray:
		return "int[]"
	case TypeFloat32Array:
		return "float[]"
	case TypeStringArray:
		return "string[]"
	default:
		return ""
	}
}

// SerializeDataType returns the announce type string for the topic's actual
// declared Type, distinct from TypeString's API-collapsed rendering — it is
// the Go equivalent of serializeDataType in
// _examples/original_source/src/nt/ntinstance.cpp, and is what
// deliverAnnounceLocked uses so a topic published as "json", "msgpack" or
// "protobuf" is announced under that name rather than the API type it
// collapses to (spec.md:214).
func SerializeDataType(t Type) string {
	switch t {
	case TypeBool:
		return "boolean"
	case TypeFloat64:
		return "double"
	case TypeInt, TypeUInt:
		return "int"
	case TypeFloat32:
		return "float"
	case TypeString:
		return "string"
	case TypeJSON:
		return "json"
	case TypeBin, TypeRaw:
		return "raw"
	case TypeMsgpack:
		return "msgpack"
	case TypeProtobuf:
		return "protobuf"
	case TypeBoolArray:
		return "boolean[]"
	case TypeFloat64Array:
		return "double[]"
	case TypeIntArray:
		return "int[]"
	case TypeFloat32Array:
		return "float[]"
	case TypeStringArray:
		return "string[]"
	default:
		return ""
	}
}

// TypeFromString inverts SerializeDataType for decoding publish requests. Note
// that "raw", "msgpack", "protobuf" and "json" all name distinct internal
// Types but the API type they report is always Bin or Str.
func TypeFromString(s string) (Type, bool) {
	switch s {
	case "boolean":
		return TypeBool, true
	case "double":
		return TypeFloat64, true
	case "int":
		return TypeInt, true
	case "float":
		return TypeFloat32, true
	case "string":
		return TypeString, true
	case "raw":
		return TypeBin, true
	case "msgpack":
		return TypeMsgpack, true
	case "protobuf":
		return TypeProtobuf, true
	case "json":
		return TypeJSON, true
	case "boolean[]":
		return TypeBoolArray, true
	case "double[]":
		return TypeFloat64Array, true
	case "int[]":
		return TypeIntArray, true
	case "float[]":
		return TypeFloat32Array, true
	case "string[]":
		return TypeStringArray, true
	default:
		return 0, false
	}
}

// Value is the tagged union over the NT type set (spec.md §3 NTDataValue).
// It is implemented struct-of-fields rather than an unsafe union, following
// the design note in spec.md §9 that the historical C++ source already
// fell back to this layout once it carried non-trivial string/vector
// members.
type Value struct {
	typ Type

	b  bool
	f64 float64
	i64 int64
	f32 float32
	s   string
	bin []byte

	bArr   []bool
	f64Arr []float64
	i64Arr []int64
	f32Arr []float32
	sArr   []string
}

func (v Value) Type() Type    { return v.typ }
func (v Value) APIType() Type { return v.typ.APIType() }

func (v Value) Bool() bool         { return v.b }
func (v Value) Float64() float64   { return v.f64 }
func (v Value) Int() int64         { return v.i64 }
func (v Value) Float32() float32   { return v.f32 }
func (v Value) Str() string        { return v.s }
func (v Value) Bytes() []byte      { return v.bin }
func (v Value) BoolArray() []bool  { return v.bArr }
func (v Value) Float64Array() []float64 { return v.f64Arr }
func (v Value) IntArray() []int64       { return v.i64Arr }
func (v Value) Float32Array() []float32 { return v.f32Arr }
func (v Value) StringArray() []string   { return v.sArr }

func NewBool(b bool) Value           { return Value{typ: TypeBool, b: b} }
func NewFloat64(f float64) Value     { return Value{typ: TypeFloat64, f64: f} }
func NewInt(i int64) Value           { return Value{typ: TypeInt, i64: i} }
func NewUint(u uint64) Value         { return Value{typ: TypeUInt, i64: int64(u)} }
func NewFloat32(f float32) Value     { return Value{typ: TypeFloat32, f32: f} }
func NewString(s string) Value       { return Value{typ: TypeString, s: s} }
func NewBin(b []byte) Value          { return Value{typ: TypeBin, bin: b} }
func NewJSON(s string) Value         { return Value{typ: TypeJSON, s: s} }
func NewRaw(b []byte) Value          { return Value{typ: TypeRaw, bin: b} }
func NewMsgpack(b []byte) Value      { return Value{typ: TypeMsgpack, bin: b} }
func NewProtobuf(b []byte) Value     { return Value{typ: TypeProtobuf, bin: b} }
func NewBoolArray(v []bool) Value    { return Value{typ: TypeBoolArray, bArr: v} }
func NewFloat64Array(v []float64) Value { return Value{typ: TypeFloat64Array, f64Arr: v} }
func NewIntArray(v []int64) Value    { return Value{typ: TypeIntArray, i64Arr: v} }
func NewFloat32Array(v []float32) Value { return Value{typ: TypeFloat32Array, f32Arr: v} }
func NewStringArray(v []string) Value { return Value{typ: TypeStringArray, sArr: v} }

// ZeroValue returns the default value for a freshly published topic of
// type t (spec.md §4.D.1 publish: "default value = zero/empty of type").
func ZeroValue(t Type) Value {
	switch t.APIType() {
	case TypeBool:
		return NewBool(false)
	case TypeFloat64:
		return NewFloat64(0)
	case TypeInt:
		return NewInt(0)
	case TypeFloat32:
		return NewFloat32(0)
	case TypeString:
		return NewString("")
	case TypeBin:
		return NewBin(nil)
	case TypeBoolArray:
		return NewBoolArray(nil)
	case TypeFloat64Array:
		return NewFloat64Array(nil)
	case TypeIntArray:
		return NewIntArray(nil)
	case TypeFloat32Array:
		return NewFloat32Array(nil)
	case TypeStringArray:
		return NewStringArray(nil)
	default:
		return Value{typ: t}
	}
}
