package mongodriver

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap/zaptest"

	"github.com/qbloq/mongobridge/core"
)

func testEngine(t *testing.T) *core.Engine {
	t.Helper()
	e, err := core.NewEngine(&core.Config{
		Entities: []core.EntityConfig{{
			Name:       "Item",
			Collection: "items",
			ID:         core.Attribute{Name: "id", Type: "int"},
			Attributes: []core.Attribute{
				{Name: "name", Type: "String"},
				{Name: "ints", Type: "int[]"},
			},
		}},
	}, core.OptionSetLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return e
}

func testConn(t *testing.T) *Conn {
	t.Helper()
	// Connect does not dial, commands are never sent in these tests.
	client, err := mongo.Connect(options.Client().ApplyURI("mongodb://127.0.0.1:1"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	c, err := NewConnector(client, "test", testEngine(t), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	conn, err := c.Connect(context.Background())
	require.NoError(t, err)
	return conn.(*Conn)
}

func TestNewConnectorErrors(t *testing.T) {
	_, err := NewConnector(nil, "test", testEngine(t))
	assert.Error(t, err)

	client, err := mongo.Connect(options.Client().ApplyURI("mongodb://127.0.0.1:1"))
	require.NoError(t, err)
	defer func() { _ = client.Disconnect(context.Background()) }()

	_, err = NewConnector(client, "test", nil)
	assert.Error(t, err)
	_, err = NewConnector(client, "", testEngine(t))
	assert.Error(t, err)

	_, err = Driver{}.Open("mongodb://localhost")
	assert.Error(t, err)
}

func TestConnRejectsMismatchedCalls(t *testing.T) {
	conn := testConn(t)
	ctx := context.Background()

	_, err := conn.ExecContext(ctx, `{type: select, table: items}`, nil)
	assert.ErrorContains(t, err, "use Query")

	_, err = conn.QueryContext(ctx, `{type: delete, table: items}`, nil)
	assert.ErrorContains(t, err, "use Exec")

	_, err = conn.PrepareContext(ctx, `{type: select}`)
	assert.ErrorContains(t, err, "mongodriver: prepare")

	_, err = conn.ExecContext(ctx, `{type: delete, table: items, where: {op: eq, column: id, value: $1}}`,
		[]driver.NamedValue{{Name: "id", Value: 1}})
	assert.ErrorContains(t, err, "named argument")

	_, err = conn.ExecContext(ctx, `{type: delete, table: items, where: {op: eq, column: id, value: $2}}`,
		[]driver.NamedValue{{Ordinal: 1, Value: 1}})
	var te *core.TranslationError
	assert.ErrorAs(t, err, &te)

	_, err = conn.BeginTx(ctx, driver.TxOptions{ReadOnly: true})
	assert.Error(t, err)
}

func TestStmt(t *testing.T) {
	conn := testConn(t)
	stmt, err := conn.Prepare(`{type: insert, table: items, columns: [id, name, ints], values: [$1, $2, $3]}`)
	require.NoError(t, err)
	assert.Equal(t, -1, stmt.NumInput())
	require.NoError(t, stmt.Close())

	_, err = stmt.(*Stmt).QueryContext(context.Background(), named([]driver.Value{1, "a", nil}))
	assert.ErrorContains(t, err, "use Exec")
}

func TestCheckNamedValue(t *testing.T) {
	conn := testConn(t)
	a, err := NewArray("integer", []any{int32(1), int32(2)})
	require.NoError(t, err)

	nv := &driver.NamedValue{Ordinal: 1, Value: a}
	require.NoError(t, conn.CheckNamedValue(nv))
	assert.Equal(t, []any{int32(1), int32(2)}, nv.Value)

	nv = &driver.NamedValue{Ordinal: 1, Value: []string{"x"}}
	require.NoError(t, conn.CheckNamedValue(nv))
	assert.Equal(t, []string{"x"}, nv.Value)
}

func TestNewArray(t *testing.T) {
	tests := []struct {
		name string
		code int
	}{
		{"INTEGER", TypeInteger},
		{"integer", TypeInteger},
		{"BigInt", TypeBigInt},
		{"varchar", TypeVarChar},
		{"NUMERIC", TypeNumeric},
		{"timestamp_with_timezone", TypeTimestampWithTimezone},
		{"NULL", TypeNull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewArray(tt.name, []any{1})
			require.NoError(t, err)
			assert.Equal(t, tt.code, a.BaseType())
		})
	}

	_, err := NewArray("uuid", nil)
	assert.ErrorContains(t, err, "unknown SQL type name [uuid]")

	elems := []any{"a"}
	a, err := NewArray("VARCHAR", elems)
	require.NoError(t, err)
	elems[0] = "b"
	assert.Equal(t, []any{"a"}, a.Elements())
	assert.Equal(t, "VARCHAR[a]", a.String())
}

func TestArrayOf(t *testing.T) {
	a, err := ArrayOf([]int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "BIGINT", a.BaseTypeName())
	assert.Equal(t, TypeBigInt, a.BaseType())

	a, err = ArrayOf([]any{nil, "x"})
	require.NoError(t, err)
	assert.Equal(t, TypeVarChar, a.BaseType())

	a, err = ArrayOf([]any{})
	require.NoError(t, err)
	assert.Equal(t, TypeNull, a.BaseType())

	_, err = ArrayOf([]int16{1, 2})
	assert.True(t, errors.Is(err, core.ErrFeatureNotSupported))
	assert.ErrorContains(t, err, "contains elements of the unsupported type")
}

func TestNewResult(t *testing.T) {
	res, err := newResult("insert", bson.D{{Key: "n", Value: int32(2)}, {Key: "ok", Value: 1.0}})
	require.NoError(t, err)
	n, _ := res.RowsAffected()
	assert.Equal(t, int64(2), n)

	res, err = newResult("update", bson.D{{Key: "n", Value: int32(3)}, {Key: "nModified", Value: int32(1)}})
	require.NoError(t, err)
	n, _ = res.RowsAffected()
	assert.Equal(t, int64(3), n)

	// unchanged values still count as matched
	res, err = newResult("update", bson.D{{Key: "n", Value: int32(1)}, {Key: "nModified", Value: int32(0)}})
	require.NoError(t, err)
	n, _ = res.RowsAffected()
	assert.Equal(t, int64(1), n)

	_, err = res.LastInsertId()
	assert.Error(t, err)

	_, err = newResult("insert", bson.D{
		{Key: "n", Value: int32(0)},
		{Key: "writeErrors", Value: bson.A{
			bson.D{{Key: "index", Value: int32(0)}, {Key: "code", Value: int32(11000)}, {Key: "errmsg", Value: "duplicate key"}},
		}},
	})
	assert.EqualError(t, err, "mongodriver: insert: (11000) duplicate key")
}

type fakeCursor struct {
	docs   []bson.D
	pos    int
	closed bool
	err    error
}

func (c *fakeCursor) Next(context.Context) bool {
	if c.pos >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *fakeCursor) Decode(v any) error {
	*(v.(*bson.D)) = c.docs[c.pos-1]
	return nil
}

func (c *fakeCursor) Err() error { return c.err }

func (c *fakeCursor) Close(context.Context) error {
	c.closed = true
	return nil
}

func TestRows(t *testing.T) {
	cmd, err := testEngine(t).TranslateQuery(`{type: select, table: items, columns: [id, ints, name]}`)
	require.NoError(t, err)

	cur := &fakeCursor{docs: []bson.D{
		{{Key: "_id", Value: int32(1)}, {Key: "ints", Value: bson.A{int32(5), int32(6)}}, {Key: "name", Value: "a"}},
		{{Key: "_id", Value: int32(2)}},
	}}
	rows := newRows(context.Background(), cur, cmd.Columns())
	assert.Equal(t, []string{"id", "ints", "name"}, rows.Columns())
	assert.Equal(t, "int[]", rows.ColumnTypeDatabaseTypeName(1))

	dest := make([]driver.Value, 3)
	require.NoError(t, rows.Next(dest))
	assert.Equal(t, []driver.Value{int32(1), []int32{5, 6}, "a"}, dest)

	require.NoError(t, rows.Next(dest))
	assert.Equal(t, []driver.Value{int32(2), nil, nil}, dest)

	assert.Equal(t, io.EOF, rows.Next(dest))
	require.NoError(t, rows.Close())
	assert.True(t, cur.closed)

	cur = &fakeCursor{err: errors.New("boom")}
	rows = newRows(context.Background(), cur, cmd.Columns())
	assert.ErrorContains(t, rows.Next(dest), "boom")
}
