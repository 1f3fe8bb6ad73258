package mongoast

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueBoolean
	ValueInt32
	ValueInt64
	ValueDouble
	ValueDecimal128
	ValueString
	ValueBinary
	ValueDateTime
)

func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "null"
	case ValueBoolean:
		return "boolean"
	case ValueInt32:
		return "int32"
	case ValueInt64:
		return "int64"
	case ValueDouble:
		return "double"
	case ValueDecimal128:
		return "decimal128"
	case ValueString:
		return "string"
	case ValueBinary:
		return "binary"
	case ValueDateTime:
		return "datetime"
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// Value is an immutable scalar ready for document encoding.
type Value struct {
	kind ValueKind
	b    bool
	i    int64
	f    float64
	s    string
	dec  bson.Decimal128
	bin  []byte
}

func Null() Value { return Value{kind: ValueNull} }

func Bool(v bool) Value { return Value{kind: ValueBoolean, b: v} }

func Int32(v int32) Value { return Value{kind: ValueInt32, i: int64(v)} }

func Int64(v int64) Value { return Value{kind: ValueInt64, i: v} }

func Double(v float64) Value { return Value{kind: ValueDouble, f: v} }

func Decimal(v bson.Decimal128) Value { return Value{kind: ValueDecimal128, dec: v} }

func String(v string) Value { return Value{kind: ValueString, s: v} }

// Binary copies v.
func Binary(v []byte) Value {
	return Value{kind: ValueBinary, bin: append([]byte{}, v...)}
}

// DateTime keeps millisecond precision, anything finer is dropped.
func DateTime(t time.Time) Value {
	return Value{kind: ValueDateTime, i: t.UnixMilli()}
}

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsNull() bool { return v.kind == ValueNull }

// BSON returns the driver representation of v.
func (v Value) BSON() any {
	switch v.kind {
	case ValueBoolean:
		return v.b
	case ValueInt32:
		return int32(v.i)
	case ValueInt64:
		return v.i
	case ValueDouble:
		return v.f
	case ValueDecimal128:
		return v.dec
	case ValueString:
		return v.s
	case ValueBinary:
		return bson.Binary{Subtype: bson.TypeBinaryGeneric, Data: append([]byte{}, v.bin...)}
	case ValueDateTime:
		return bson.DateTime(v.i)
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case ValueNull:
		return "null"
	case ValueString:
		return fmt.Sprintf("%q", v.s)
	case ValueDecimal128:
		return "Decimal128(" + v.dec.String() + ")"
	case ValueBinary:
		return fmt.Sprintf("Binary(%x)", v.bin)
	case ValueDateTime:
		return "DateTime(" + time.UnixMilli(v.i).UTC().Format(time.RFC3339Nano) + ")"
	}
	return fmt.Sprintf("%v", v.BSON())
}
