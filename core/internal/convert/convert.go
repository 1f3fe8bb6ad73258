// Package convert maps domain values to document values and back, using
// the declared attribute type to pick the mapping.
package convert

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/apd/v2"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/qbloq/mongobridge/core/internal/merr"
	"github.com/qbloq/mongobridge/core/internal/mongoast"
	"github.com/qbloq/mongobridge/core/internal/sdata"
)

func unsupported(path string, v any, t sdata.TypeDescriptor, format string, args ...any) error {
	return &merr.UnsupportedTypeError{
		Path:   path,
		Value:  v,
		Type:   t.String(),
		Reason: fmt.Sprintf(format, args...),
	}
}

// ToColumn converts the value of a bound column, including aggregate
// embeddables and arrays of them.
func ToColumn(v any, c *sdata.Column) (mongoast.Node, error) {
	if c.Embeddable == nil {
		return ToValue(v, c.Type, c.Name)
	}
	if isNil(v) {
		return mongoast.NewLiteral(mongoast.Null()), nil
	}
	if c.Type.Shape == sdata.ShapeEmbeddable {
		return embedded(v, c.Embeddable, c.Type, c.Name)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, unsupported(c.Name, v, c.Type, "expected a slice, got %T", v)
	}
	elems := make([]mongoast.Node, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		ev := rv.Index(i).Interface()
		if isNil(ev) {
			elems = append(elems, mongoast.NewLiteral(mongoast.Null()))
			continue
		}
		n, err := embedded(ev, c.Embeddable, *c.Type.Elem, fmt.Sprintf("%s[%d]", c.Name, i))
		if err != nil {
			return nil, err
		}
		elems = append(elems, n)
	}
	return mongoast.NewArray(elems...), nil
}

// embedded converts a map keyed by attribute name into a sub-document
// laid out in declaration order.
func embedded(v any, emb *sdata.Embeddable, t sdata.TypeDescriptor, path string) (mongoast.Node, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, unsupported(path, v, t, "expected map[string]any, got %T", v)
	}

	known := make(map[string]struct{}, len(emb.Attributes))
	elems := make([]mongoast.Element, 0, len(emb.Attributes))
	for _, a := range emb.Attributes {
		head, _, _ := strings.Cut(a.Name, ".")
		known[head] = struct{}{}

		av, _ := lookup(m, a.Name)
		n, err := ToColumn(av, &sdata.Column{
			Name:       path + "." + a.Name,
			Field:      a.Field,
			Type:       a.Type,
			Embeddable: a.Embeddable,
		})
		if err != nil {
			return nil, err
		}
		elems = append(elems, mongoast.Field(a.Field, n))
	}

	var unknown []string
	for k := range m {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) != 0 {
		sort.Strings(unknown)
		return nil, unsupported(path, v, t, "unknown attributes %v of embeddable [%s]", unknown, emb.Name)
	}
	return mongoast.NestDotted(elems...), nil
}

// lookup follows a dotted name through nested maps.
func lookup(m map[string]any, name string) (any, bool) {
	head, rest, dotted := strings.Cut(name, ".")
	v, ok := m[head]
	if !ok || !dotted {
		return v, ok
	}
	sub, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	return lookup(sub, rest)
}

// ToValue converts a basic or plural value of declared type t.
func ToValue(v any, t sdata.TypeDescriptor, path string) (mongoast.Node, error) {
	switch t.Shape {
	case sdata.ShapeBasic:
		val, err := Scalar(v, t, path)
		if err != nil {
			return nil, err
		}
		return mongoast.NewLiteral(val), nil

	case sdata.ShapeArray, sdata.ShapeCollection:
		return plural(v, t, path)
	}
	return nil, unsupported(path, v, t, "embeddable values need their bound column")
}

func plural(v any, t sdata.TypeDescriptor, path string) (mongoast.Node, error) {
	if isNil(v) {
		return mongoast.NewLiteral(mongoast.Null()), nil
	}
	elem := *t.Elem
	if elem.Shape != sdata.ShapeBasic {
		return nil, unsupported(path, v, t, "nested arrays and collections are not supported")
	}

	switch {
	case t.IsBinary():
		b, ok := v.([]byte)
		if !ok {
			return nil, unsupported(path, v, t, "expected []byte, got %T", v)
		}
		return mongoast.NewLiteral(mongoast.Binary(b)), nil

	case t.IsText():
		switch s := v.(type) {
		case []rune:
			return mongoast.NewLiteral(mongoast.String(string(s))), nil
		case string:
			return mongoast.NewLiteral(mongoast.String(s)), nil
		}
		return nil, unsupported(path, v, t, "expected []rune, got %T", v)

	case elem.Base == sdata.BaseByte:
		return nil, unsupported(path, v, t, "arrays and collections of boxed bytes are not supported")
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, unsupported(path, v, t, "expected a slice, got %T", v)
	}
	elems := make([]mongoast.Node, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		val, err := Scalar(rv.Index(i).Interface(), elem, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		elems = append(elems, mongoast.NewLiteral(val))
	}
	return mongoast.NewArray(elems...), nil
}

// Scalar converts a single value of basic type t.
func Scalar(v any, t sdata.TypeDescriptor, path string) (mongoast.Value, error) {
	if isNil(v) {
		return mongoast.Null(), nil
	}
	if p, ok := v.(*time.Time); ok {
		v = *p
	}

	switch t.Base {
	case sdata.BaseBoolean:
		if b, ok := v.(bool); ok {
			return mongoast.Bool(b), nil
		}

	case sdata.BaseChar:
		switch c := v.(type) {
		case rune:
			return mongoast.String(string(c)), nil
		case string:
			if utf8.RuneCountInString(c) == 1 {
				return mongoast.String(c), nil
			}
			return mongoast.Value{}, unsupported(path, v, t, "expected a single character")
		}

	case sdata.BaseByte:
		if n, ok := integer(v, math.MinInt8, math.MaxInt8); ok {
			return mongoast.Int32(int32(n)), nil
		}

	case sdata.BaseShort:
		if n, ok := integer(v, math.MinInt16, math.MaxInt16); ok {
			return mongoast.Int32(int32(n)), nil
		}

	case sdata.BaseInteger:
		if n, ok := integer(v, math.MinInt32, math.MaxInt32); ok {
			return mongoast.Int32(int32(n)), nil
		}

	case sdata.BaseLong:
		if n, ok := integer(v, math.MinInt64, math.MaxInt64); ok {
			return mongoast.Int64(n), nil
		}

	case sdata.BaseDouble:
		switch f := v.(type) {
		case float64:
			return mongoast.Double(f), nil
		case float32:
			return mongoast.Double(float64(f)), nil
		}
		if n, ok := integer(v, math.MinInt64, math.MaxInt64); ok {
			return mongoast.Double(float64(n)), nil
		}

	case sdata.BaseDecimal:
		return decimal(v, t, path)

	case sdata.BaseString:
		if s, ok := v.(string); ok {
			return mongoast.String(s), nil
		}

	case sdata.BaseInstant:
		if ts, ok := v.(time.Time); ok {
			return mongoast.DateTime(ts), nil
		}

	default:
		return mongoast.Value{}, unsupported(path, v, t, "type has no document mapping")
	}
	return mongoast.Value{}, unsupported(path, v, t, "cannot convert %T", v)
}

// integer accepts any Go integer kind, and integral floats, within
// [lo, hi].
func integer(v any, lo, hi int64) (int64, bool) {
	rv := reflect.ValueOf(v)
	var n int64
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n = rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		n = int64(u)
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, false
		}
		n = int64(f)
	default:
		return 0, false
	}
	return n, n >= lo && n <= hi
}

func decimal(v any, t sdata.TypeDescriptor, path string) (mongoast.Value, error) {
	var d *apd.Decimal
	switch x := v.(type) {
	case bson.Decimal128:
		return mongoast.Decimal(x), nil
	case *apd.Decimal:
		d = x
	case apd.Decimal:
		d = &x
	case string:
		var err error
		if d, _, err = apd.NewFromString(x); err != nil {
			return mongoast.Value{}, unsupported(path, v, t, "%v", err)
		}
	case float64, float32:
		var err error
		if d, _, err = apd.NewFromString(fmt.Sprint(x)); err != nil {
			return mongoast.Value{}, unsupported(path, v, t, "%v", err)
		}
	default:
		n, ok := integer(v, math.MinInt64, math.MaxInt64)
		if !ok {
			return mongoast.Value{}, unsupported(path, v, t, "cannot convert %T", v)
		}
		d = apd.New(n, 0)
	}

	if d.Form != apd.Finite {
		return mongoast.Value{}, unsupported(path, v, t, "only finite decimals are supported")
	}
	dec, err := bson.ParseDecimal128(d.String())
	if err != nil {
		return mongoast.Value{}, unsupported(path, v, t, "%v", err)
	}
	return mongoast.Decimal(dec), nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
