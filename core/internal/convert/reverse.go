package convert

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v2"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/qbloq/mongobridge/core/internal/sdata"
)

// FromBSON converts a decoded document value back to the domain value of
// column c. Primitive arrays come back as typed slices, everything else
// plural as []any.
func FromBSON(v any, c *sdata.Column) (any, error) {
	if v == nil {
		return nil, nil
	}
	t := c.Type

	switch t.Shape {
	case sdata.ShapeBasic:
		return fromScalar(v, t, c.Name)

	case sdata.ShapeEmbeddable:
		return fromEmbedded(v, c.Embeddable, t, c.Name)
	}

	switch {
	case t.IsBinary():
		b, ok := v.(bson.Binary)
		if !ok {
			return nil, unsupported(c.Name, v, t, "expected binary, got %T", v)
		}
		return append([]byte{}, b.Data...), nil

	case t.IsText():
		s, ok := v.(string)
		if !ok {
			return nil, unsupported(c.Name, v, t, "expected string, got %T", v)
		}
		return []rune(s), nil
	}

	arr, ok := v.(bson.A)
	if !ok {
		return nil, unsupported(c.Name, v, t, "expected array, got %T", v)
	}
	elem := *t.Elem

	if elem.Shape == sdata.ShapeBasic && !elem.Boxed && t.Shape == sdata.ShapeArray {
		out := reflect.MakeSlice(reflect.SliceOf(primitiveType(elem.Base)), len(arr), len(arr))
		for i, ev := range arr {
			if ev == nil {
				return nil, unsupported(c.Name, v, t, "null element at %d in a primitive array", i)
			}
			x, err := fromScalar(ev, elem, fmt.Sprintf("%s[%d]", c.Name, i))
			if err != nil {
				return nil, err
			}
			out.Index(i).Set(reflect.ValueOf(x))
		}
		return out.Interface(), nil
	}

	out := make([]any, len(arr))
	for i, ev := range arr {
		if ev == nil {
			continue
		}
		path := fmt.Sprintf("%s[%d]", c.Name, i)
		var err error
		if elem.Shape == sdata.ShapeEmbeddable {
			out[i], err = fromEmbedded(ev, c.Embeddable, elem, path)
		} else {
			out[i], err = fromScalar(ev, elem, path)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func primitiveType(b sdata.BaseType) reflect.Type {
	switch b {
	case sdata.BaseBoolean:
		return reflect.TypeOf(false)
	case sdata.BaseChar:
		return reflect.TypeOf(rune(0))
	case sdata.BaseByte:
		return reflect.TypeOf(int8(0))
	case sdata.BaseShort:
		return reflect.TypeOf(int16(0))
	case sdata.BaseInteger:
		return reflect.TypeOf(int32(0))
	case sdata.BaseLong:
		return reflect.TypeOf(int64(0))
	case sdata.BaseDouble:
		return reflect.TypeOf(float64(0))
	}
	return reflect.TypeOf((*any)(nil)).Elem()
}

func fromEmbedded(v any, emb *sdata.Embeddable, t sdata.TypeDescriptor, path string) (any, error) {
	doc, ok := v.(bson.D)
	if !ok {
		return nil, unsupported(path, v, t, "expected document, got %T", v)
	}
	out := make(map[string]any, len(emb.Attributes))
	for _, a := range emb.Attributes {
		fv, found := LookupField(doc, a.Field)
		if !found {
			continue
		}
		x, err := FromBSON(fv, &sdata.Column{
			Name:       path + "." + a.Name,
			Field:      a.Field,
			Type:       a.Type,
			Embeddable: a.Embeddable,
		})
		if err != nil {
			return nil, err
		}
		store(out, a.Name, x)
	}
	return out, nil
}

// LookupField follows a dotted field path through nested documents.
func LookupField(doc bson.D, field string) (any, bool) {
	head, rest, dotted := strings.Cut(field, ".")
	for _, e := range doc {
		if e.Key != head {
			continue
		}
		if !dotted {
			return e.Value, true
		}
		sub, ok := e.Value.(bson.D)
		if !ok {
			return nil, false
		}
		return LookupField(sub, rest)
	}
	return nil, false
}

func store(m map[string]any, name string, v any) {
	head, rest, dotted := strings.Cut(name, ".")
	if !dotted {
		m[head] = v
		return
	}
	sub, ok := m[head].(map[string]any)
	if !ok {
		sub = make(map[string]any)
		m[head] = sub
	}
	store(sub, rest, v)
}

func fromScalar(v any, t sdata.TypeDescriptor, path string) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t.Base {
	case sdata.BaseBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}

	case sdata.BaseChar:
		if s, ok := v.(string); ok && len([]rune(s)) == 1 {
			return []rune(s)[0], nil
		}

	case sdata.BaseByte:
		if n, ok := integer(v, math.MinInt8, math.MaxInt8); ok {
			return int8(n), nil
		}

	case sdata.BaseShort:
		if n, ok := integer(v, math.MinInt16, math.MaxInt16); ok {
			return int16(n), nil
		}

	case sdata.BaseInteger:
		if n, ok := integer(v, math.MinInt32, math.MaxInt32); ok {
			return int32(n), nil
		}

	case sdata.BaseLong:
		if n, ok := integer(v, math.MinInt64, math.MaxInt64); ok {
			return n, nil
		}

	case sdata.BaseDouble:
		switch f := v.(type) {
		case float64:
			return f, nil
		case int32:
			return float64(f), nil
		case int64:
			return float64(f), nil
		}

	case sdata.BaseDecimal:
		if d, ok := v.(bson.Decimal128); ok {
			x, _, err := apd.NewFromString(d.String())
			if err != nil {
				return nil, unsupported(path, v, t, "%v", err)
			}
			return x, nil
		}

	case sdata.BaseString:
		if s, ok := v.(string); ok {
			return s, nil
		}

	case sdata.BaseInstant:
		if dt, ok := v.(bson.DateTime); ok {
			return dt.Time().UTC(), nil
		}
	}
	return nil, unsupported(path, v, t, "cannot read %T", v)
}

// ArrayWithBaseType is a plural domain value with the element type the
// driver's array adapter is tagged with.
type ArrayWithBaseType struct {
	Elements []any
	Base     sdata.BaseType
	// TypeName is the SQL type name of Base.
	TypeName string
}

var sqlTypeNames = map[sdata.BaseType]string{
	sdata.BaseNone:    "NULL",
	sdata.BaseBoolean: "BOOLEAN",
	sdata.BaseInteger: "INTEGER",
	sdata.BaseLong:    "BIGINT",
	sdata.BaseDouble:  "FLOAT",
	sdata.BaseDecimal: "NUMERIC",
	sdata.BaseString:  "VARCHAR",
}

// NewArrayWithBaseType flattens v into its elements. The base type comes
// from t when given, otherwise from the Go type of the first non-nil
// element.
func NewArrayWithBaseType(v any, t *sdata.TypeDescriptor) (ArrayWithBaseType, error) {
	var elems []any
	switch x := v.(type) {
	case []any:
		elems = append([]any(nil), x...)
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return ArrayWithBaseType{}, unsupported("", v, typeOrNone(t), "expected a slice, got %T", v)
		}
		elems = make([]any, rv.Len())
		for i := range elems {
			elems[i] = rv.Index(i).Interface()
		}
	}

	base := sdata.BaseNone
	if t != nil {
		if !t.Plural() || t.Elem.Shape != sdata.ShapeBasic {
			return ArrayWithBaseType{}, unsupported("", v, *t,
				"[%v] contains elements of the unsupported type [%s]", v, elemName(t))
		}
		base = t.Elem.Base
	} else {
		for _, e := range elems {
			if isNil(e) {
				continue
			}
			b, ok := BaseOf(e)
			if !ok {
				return ArrayWithBaseType{}, unsupported("", v, typeOrNone(t),
					"[%v] contains elements of the unsupported type [%T]", v, e)
			}
			if base != sdata.BaseNone && b != base {
				return ArrayWithBaseType{}, unsupported("", v, typeOrNone(t),
					"[%v] mixes elements of type [%s] and [%s]", v, base, b)
			}
			base = b
		}
	}

	name, ok := sqlTypeNames[base]
	if !ok {
		elem := base.String()
		if t != nil {
			elem = elemName(t)
		}
		return ArrayWithBaseType{}, unsupported("", v, typeOrNone(t),
			"[%v] contains elements of the unsupported type [%s]", v, elem)
	}
	return ArrayWithBaseType{Elements: elems, Base: base, TypeName: name}, nil
}

func typeOrNone(t *sdata.TypeDescriptor) sdata.TypeDescriptor {
	if t == nil {
		return sdata.TypeDescriptor{Expr: "[]any"}
	}
	return *t
}

func elemName(t *sdata.TypeDescriptor) string {
	if t.Elem == nil {
		return t.String()
	}
	return t.Elem.String()
}

// BaseOf maps a Go value to the base type it would be stored as.
func BaseOf(v any) (sdata.BaseType, bool) {
	switch v.(type) {
	case bool:
		return sdata.BaseBoolean, true
	case int8:
		return sdata.BaseByte, true
	case int16:
		return sdata.BaseShort, true
	case int32:
		return sdata.BaseInteger, true
	case int, int64:
		return sdata.BaseLong, true
	case float64:
		return sdata.BaseDouble, true
	case *apd.Decimal, apd.Decimal, bson.Decimal128:
		return sdata.BaseDecimal, true
	case string:
		return sdata.BaseString, true
	case time.Time, bson.DateTime:
		return sdata.BaseInstant, true
	}
	return sdata.BaseNone, false
}
