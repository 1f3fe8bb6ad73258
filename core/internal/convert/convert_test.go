package convert

import (
	"errors"
	"testing"
	"time"

	"github.com/cockroachdb/apd/v2"
	"github.com/qbloq/mongobridge/core/internal/merr"
	"github.com/qbloq/mongobridge/core/internal/mongoast"
	"github.com/qbloq/mongobridge/core/internal/sdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func typ(t *testing.T, expr string) sdata.TypeDescriptor {
	t.Helper()
	td, err := sdata.ParseType(expr)
	require.NoError(t, err)
	return td
}

func col(t *testing.T, expr string) *sdata.Column {
	return &sdata.Column{Name: "value", Field: "value", Type: typ(t, expr)}
}

// wire renders n as the value of a single field and returns what the
// driver would see.
func wire(t *testing.T, n mongoast.Node) any {
	t.Helper()
	d := mongoast.Render(mongoast.NewDocument(mongoast.Field("v", n)))
	require.Len(t, d, 1)
	return d[0].Value
}

func dec(t *testing.T, s string) *apd.Decimal {
	t.Helper()
	d, _, err := apd.NewFromString(s)
	require.NoError(t, err)
	return d
}

func dec128(t *testing.T, s string) bson.Decimal128 {
	t.Helper()
	d, err := bson.ParseDecimal128(s)
	require.NoError(t, err)
	return d
}

func TestToValueScalars(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 987654321, time.UTC)

	tests := []struct {
		expr string
		in   any
		want any
	}{
		{"boolean", true, true},
		{"char", 'x', "x"},
		{"Character", "y", "y"},
		{"byte", int8(-3), int32(-3)},
		{"short", 300, int32(300)},
		{"int", 5, int32(5)},
		{"Integer", int64(7), int32(7)},
		{"Integer", 2.0, int32(2)},
		{"long", 1 << 40, int64(1 << 40)},
		{"double", 1.5, 1.5},
		{"Double", 3, float64(3)},
		{"BigDecimal", dec(t, "10.1"), dec128(t, "10.1")},
		{"BigDecimal", "123.456", dec128(t, "123.456")},
		{"BigDecimal", 42, dec128(t, "42")},
		{"String", "s", "s"},
		{"Instant", ts, bson.DateTime(ts.UnixMilli())},
		{"Instant", &ts, bson.DateTime(ts.UnixMilli())},
		{"Integer", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			n, err := ToValue(tt.in, typ(t, tt.expr), "value")
			require.NoError(t, err)
			assert.Equal(t, tt.want, wire(t, n))
		})
	}
}

func TestToValueScalarErrors(t *testing.T) {
	tests := []struct {
		expr string
		in   any
	}{
		{"boolean", 1},
		{"char", "ab"},
		{"byte", 200},
		{"short", 1 << 20},
		{"int", int64(1) << 40},
		{"int", 1.5},
		{"int", "1"},
		{"long", uint64(1) << 63},
		{"BigDecimal", "abc"},
		{"BigDecimal", true},
		{"String", 1},
		{"Instant", "2024-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ToValue(tt.in, typ(t, tt.expr), "value")
			var ute *merr.UnsupportedTypeError
			require.ErrorAs(t, err, &ute)
			assert.Equal(t, "value", ute.Path)
			assert.Equal(t, tt.expr, ute.Type)
			assert.True(t, errors.Is(err, merr.ErrFeatureNotSupported))
		})
	}
}

func TestPrimitiveByteArrayIsBinary(t *testing.T) {
	n, err := ToValue([]byte{2, 3}, typ(t, "byte[]"), "bytes")
	require.NoError(t, err)
	assert.Equal(t, bson.Binary{Subtype: bson.TypeBinaryGeneric, Data: []byte{2, 3}}, wire(t, n))
}

func TestPrimitiveCharArrayIsString(t *testing.T) {
	n, err := ToValue([]rune{'s', 't', 'r'}, typ(t, "char[]"), "chars")
	require.NoError(t, err)
	assert.Equal(t, "str", wire(t, n))
}

func TestBoxedCharsAreArrays(t *testing.T) {
	want := bson.A{"s", "t", "r"}

	n, err := ToValue([]any{'s', 't', 'r'}, typ(t, "Character[]"), "boxedChars")
	require.NoError(t, err)
	assert.Equal(t, want, wire(t, n))

	n, err = ToValue([]rune{'s', 't', 'r'}, typ(t, "Collection<Character>"), "chars")
	require.NoError(t, err)
	assert.Equal(t, want, wire(t, n))
}

func TestBoxedBytesUnsupported(t *testing.T) {
	for _, expr := range []string{"Byte[]", "Collection<Byte>", "List<Byte>"} {
		t.Run(expr, func(t *testing.T) {
			_, err := ToValue([]any{int8(2)}, typ(t, expr), "boxedBytes")
			var ute *merr.UnsupportedTypeError
			require.ErrorAs(t, err, &ute)
			assert.Equal(t, "boxedBytes", ute.Path)
			assert.ErrorIs(t, err, merr.ErrFeatureNotSupported)
		})
	}
}

func TestArrays(t *testing.T) {
	tests := []struct {
		expr string
		in   any
		want bson.A
	}{
		{"int[]", []int32{5}, bson.A{int32(5)}},
		{"Integer[]", []any{1, nil}, bson.A{int32(1), nil}},
		{"long[]", []int64{1, 2}, bson.A{int64(1), int64(2)}},
		{"double[]", []float64{1.5}, bson.A{1.5}},
		{"boolean[]", []bool{true, false}, bson.A{true, false}},
		{"String[]", []string{"a", "b"}, bson.A{"a", "b"}},
		{"BigDecimal[]", []*apd.Decimal{dec(t, "10.1")}, bson.A{dec128(t, "10.1")}},
		{"Collection<String>", []any{"a", nil}, bson.A{"a", nil}},
		{"Set<Long>", [2]int64{3, 4}, bson.A{int64(3), int64(4)}},
		{"int[]", []int32{}, bson.A{}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			n, err := ToValue(tt.in, typ(t, tt.expr), "value")
			require.NoError(t, err)
			assert.Equal(t, tt.want, wire(t, n))
		})
	}

	n, err := ToValue(nil, typ(t, "int[]"), "value")
	require.NoError(t, err)
	assert.Nil(t, wire(t, n))

	_, err = ToValue([]any{"x"}, typ(t, "int[]"), "value")
	var ute *merr.UnsupportedTypeError
	require.ErrorAs(t, err, &ute)
	assert.Equal(t, "value[0]", ute.Path)

	_, err = ToValue(5, typ(t, "int[]"), "value")
	require.ErrorAs(t, err, &ute)
}

func TestEmbeddables(t *testing.T) {
	cat, err := sdata.NewCatalog(
		[]sdata.EntityDef{{
			Name: "Item",
			ID:   sdata.AttributeDef{Name: "id", Type: "int"},
			Attributes: []sdata.AttributeDef{
				{Name: "home", Type: "Address"},
				{Name: "past", Type: "Collection<Address>"},
			},
		}},
		[]sdata.EmbeddableDef{
			{Name: "Address", Aggregate: true, Attributes: []sdata.AttributeDef{
				{Name: "city", Type: "String"},
				{Name: "geo", Type: "Geo"},
			}},
			{Name: "Geo", Attributes: []sdata.AttributeDef{
				{Name: "lat", Type: "double"},
				{Name: "lng", Type: "double"},
			}},
		},
		sdata.Options{StructuredArrayElements: true},
	)
	require.NoError(t, err)
	e, _ := cat.Entity("Item")
	home, _ := e.Resolve("home")
	past, _ := e.Resolve("past")

	in := map[string]any{
		"city": "Oslo",
		"geo":  map[string]any{"lat": 1.0, "lng": 2.0},
	}
	want := bson.D{
		{Key: "city", Value: "Oslo"},
		{Key: "geo", Value: bson.D{{Key: "lat", Value: 1.0}, {Key: "lng", Value: 2.0}}},
	}

	n, err := ToColumn(in, home)
	require.NoError(t, err)
	assert.Equal(t, want, wire(t, n))

	back, err := FromBSON(wire(t, n), home)
	require.NoError(t, err)
	assert.Equal(t, in, back)

	n, err = ToColumn([]any{in, nil}, past)
	require.NoError(t, err)
	assert.Equal(t, bson.A{want, nil}, wire(t, n))

	back, err = FromBSON(wire(t, n), past)
	require.NoError(t, err)
	assert.Equal(t, []any{in, nil}, back)

	_, err = ToColumn(map[string]any{"town": "x"}, home)
	var ute *merr.UnsupportedTypeError
	require.ErrorAs(t, err, &ute)
	assert.Contains(t, ute.Reason, "town")

	_, err = ToColumn("Oslo", home)
	require.ErrorAs(t, err, &ute)
}

func TestRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 987654321, time.UTC)

	tests := []struct {
		expr string
		in   any
		want any
	}{
		{"boolean", true, true},
		{"char", 'c', 'c'},
		{"byte", int8(-1), int8(-1)},
		{"short", int16(12), int16(12)},
		{"int", int32(5), int32(5)},
		{"long", int64(1) << 50, int64(1) << 50},
		{"double", 0.25, 0.25},
		{"String", "s", "s"},
		{"Instant", ts, ts.Truncate(time.Millisecond)},
		{"byte[]", []byte{2, 3}, []byte{2, 3}},
		{"char[]", []rune("str"), []rune("str")},
		{"int[]", []int32{5, 6}, []int32{5, 6}},
		{"long[]", []int64{1}, []int64{1}},
		{"boolean[]", []bool{true}, []bool{true}},
		{"double[]", []float64{1.5}, []float64{1.5}},
		{"Integer[]", []any{int32(1), nil}, []any{int32(1), nil}},
		{"Character[]", []any{'a', 'b'}, []any{'a', 'b'}},
		{"Collection<String>", []any{"a", "b"}, []any{"a", "b"}},
		{"List<Long>", []any{int64(9)}, []any{int64(9)}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			c := col(t, tt.expr)
			n, err := ToColumn(tt.in, c)
			require.NoError(t, err)
			back, err := FromBSON(wire(t, n), c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, back)
		})
	}
}

func TestDecimalRoundTrip(t *testing.T) {
	c := col(t, "BigDecimal[]")
	in := []*apd.Decimal{dec(t, "10.1"), dec(t, "-0.000123"), dec(t, "12345678901234567890.5")}

	n, err := ToColumn(in, c)
	require.NoError(t, err)
	back, err := FromBSON(wire(t, n), c)
	require.NoError(t, err)

	got := back.([]any)
	require.Len(t, got, len(in))
	for i := range in {
		assert.Zero(t, in[i].Cmp(got[i].(*apd.Decimal)), "element %d: %s != %s", i, in[i], got[i])
	}
}

func TestNewArrayWithBaseType(t *testing.T) {
	ints := typ(t, "Collection<Integer>")
	a, err := NewArrayWithBaseType([]any{1, 2}, &ints)
	require.NoError(t, err)
	assert.Equal(t, "INTEGER", a.TypeName)
	assert.Equal(t, []any{1, 2}, a.Elements)

	tests := []struct {
		in   any
		want string
	}{
		{[]bool{true}, "BOOLEAN"},
		{[]int32{1}, "INTEGER"},
		{[]int64{1}, "BIGINT"},
		{[]float64{1}, "FLOAT"},
		{[]*apd.Decimal{dec(t, "1")}, "NUMERIC"},
		{[]string{"a"}, "VARCHAR"},
		{[]any{nil, nil}, "NULL"},
		{[]any{}, "NULL"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			a, err := NewArrayWithBaseType(tt.in, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.TypeName)
		})
	}

	for _, bad := range []any{[]int8{1}, []any{int32(1), "a"}, []time.Time{{}}, 5} {
		_, err := NewArrayWithBaseType(bad, nil)
		assert.ErrorIs(t, err, merr.ErrFeatureNotSupported)
	}

	chars := typ(t, "Character[]")
	_, err = NewArrayWithBaseType([]any{'a'}, &chars)
	var ute *merr.UnsupportedTypeError
	require.ErrorAs(t, err, &ute)
	assert.Contains(t, ute.Reason, "contains elements of the unsupported type [Character]")
}
