package core_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cockroachdb/apd/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap/zaptest"

	"github.com/qbloq/mongobridge/core"
)

func newConfig() *core.Config {
	return &core.Config{
		Entities: []core.EntityConfig{
			{
				Name:       "ItemWithArrays",
				Collection: "items",
				ID:         core.Attribute{Name: "id", Type: "int"},
				Attributes: []core.Attribute{
					{Name: "ints", Type: "int[]"},
					{Name: "bigDecimals", Type: "BigDecimal[]"},
				},
			},
			{
				Name: "Order",
				ID:   core.Attribute{Name: "id", Type: "long"},
				Attributes: []core.Attribute{
					{Name: "total", Type: "BigDecimal"},
					{Name: "customer", Type: "Customer"},
				},
			},
		},
		Embeddables: []core.EmbeddableConfig{
			{
				Name:      "Customer",
				Aggregate: true,
				Attributes: []core.Attribute{
					{Name: "name", Type: "String"},
					{Name: "tags", Type: "Collection<String>"},
				},
			},
		},
	}
}

func newEngine(t *testing.T, conf *core.Config, opts ...core.Option) *core.Engine {
	t.Helper()
	opts = append([]core.Option{core.OptionSetLogger(zaptest.NewLogger(t))}, opts...)
	e, err := core.NewEngine(conf, opts...)
	require.NoError(t, err)
	return e
}

func TestNewEngineErrors(t *testing.T) {
	_, err := core.NewEngine(nil)
	assert.Error(t, err)

	_, err = core.NewEngine(&core.Config{})
	assert.EqualError(t, err, "no entities configured")

	conf := newConfig()
	conf.StatementCacheSize = -1
	_, err = core.NewEngine(conf)
	assert.Error(t, err)

	_, err = core.NewEngine(newConfig(), core.OptionSetLogger(nil))
	assert.Error(t, err)

	conf = newConfig()
	conf.Entities[1].Attributes = append(conf.Entities[1].Attributes, core.Attribute{Name: "placed", Type: "Calendar"})
	_, err = core.NewEngine(conf)
	var mv *core.MappingViolation
	require.ErrorAs(t, err, &mv)
	assert.True(t, errors.Is(err, core.ErrFeatureNotSupported))
	assert.Contains(t, err.Error(), "persistent attribute [placed] has type [Calendar] that is not supported")
}

func TestStructuredArraysCanBeDisabled(t *testing.T) {
	conf := newConfig()
	conf.Entities[1].Attributes = append(conf.Entities[1].Attributes, core.Attribute{Name: "history", Type: "List<Customer>"})
	newEngine(t, conf)

	conf.DisableStructuredArrays = true
	_, err := core.NewEngine(conf)
	var mv *core.MappingViolation
	assert.ErrorAs(t, err, &mv)
}

func TestTranslateQueryInsert(t *testing.T) {
	e := newEngine(t, newConfig())

	cmd, err := e.TranslateQuery(`
type: insert
table: ItemWithArrays
columns: [id, ints, bigDecimals]
values: [1, [5], [$1]]
`, "10.1")
	require.NoError(t, err)

	assert.Equal(t, "insert", cmd.Name())
	assert.Equal(t, "items", cmd.Collection())
	assert.False(t, cmd.IsQuery())
	assert.Empty(t, cmd.Columns())

	js, err := cmd.ExtJSON(true)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"insert": "items",
		"documents": [{
			"_id": {"$numberInt": "1"},
			"ints": [{"$numberInt": "5"}],
			"bigDecimals": [{"$numberDecimal": "10.1"}]
		}]
	}`, string(js))
}

func TestDocumentIsACopy(t *testing.T) {
	e := newEngine(t, newConfig())
	cmd, err := e.TranslateQuery(`{type: insert, table: items, columns: [id, ints, bigDecimals], values: [1, [5], null]}`)
	require.NoError(t, err)

	doc := cmd.Document()
	doc[0].Value = "other"
	doc[1].Value.(bson.A)[0].(bson.D)[0].Value = int32(9)

	again := cmd.Document()
	assert.Equal(t, "items", again[0].Value)
	assert.Equal(t, int32(1), again[1].Value.(bson.A)[0].(bson.D)[0].Value)
}

func TestPrepareCaches(t *testing.T) {
	e := newEngine(t, newConfig())
	q := `{type: select, table: Order, columns: [total]}`

	a, err := e.Prepare(q)
	require.NoError(t, err)
	b, err := e.Prepare(q)
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = e.Prepare(`{type: select}`)
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	a := newEngine(t, newConfig())
	b := newEngine(t, newConfig())
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	conf := newConfig()
	conf.Entities[0].Collection = "other"
	c := newEngine(t, conf)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	assert.Equal(t, []string{"ItemWithArrays", "Order"}, a.Entities())
	ent, ok := a.Entity("Order")
	require.True(t, ok)
	assert.Equal(t, "Order", ent.Collection)
}

func TestResultColumns(t *testing.T) {
	e := newEngine(t, newConfig())
	cmd, err := e.TranslateQuery(`{type: select, table: Order, columns: [id, customer.name, customer.tags, total]}`)
	require.NoError(t, err)
	require.True(t, cmd.IsQuery())

	cols := cmd.Columns()
	require.Len(t, cols, 4)
	assert.Equal(t, "customer.name", cols[1].Field)
	assert.Equal(t, "Collection<String>", cols[2].Type())

	total, err := bson.ParseDecimal128("12.50")
	require.NoError(t, err)
	row := bson.D{
		{Key: "_id", Value: int64(3)},
		{Key: "customer", Value: bson.D{
			{Key: "name", Value: "ann"},
			{Key: "tags", Value: bson.A{"a", nil}},
		}},
		{Key: "total", Value: total},
	}

	v, err := cols[0].Value(row)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	v, err = cols[1].Value(row)
	require.NoError(t, err)
	assert.Equal(t, "ann", v)

	v, err = cols[2].Value(row)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", nil}, v)

	v, err = cols[3].Value(row)
	require.NoError(t, err)
	assert.Equal(t, "12.50", v.(*apd.Decimal).String())

	v, err = cols[3].Value(bson.D{})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestAggregateResultColumns(t *testing.T) {
	e := newEngine(t, newConfig())
	cmd, err := e.TranslateQuery(`{type: select, table: Order, aggregates: [{func: count}, {func: sum, column: total}]}`)
	require.NoError(t, err)

	cols := cmd.Columns()
	require.Len(t, cols, 2)
	assert.Equal(t, "", cols[1].Type())

	sum, err := bson.ParseDecimal128("7.5")
	require.NoError(t, err)
	row := bson.D{{Key: "count", Value: int32(2)}, {Key: "sum_total", Value: sum}}

	v, err := cols[0].Value(row)
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)

	v, err = cols[1].Value(row)
	require.NoError(t, err)
	assert.Equal(t, "7.5", v.(*apd.Decimal).String())
}

func TestTranslateBatch(t *testing.T) {
	conf := newConfig()
	conf.BatchConcurrency = 3
	e := newEngine(t, conf)

	var items []core.BatchItem
	for i := 0; i < 20; i++ {
		items = append(items, core.BatchItem{
			Query: `{type: delete, table: items, where: {op: eq, column: id, value: $1}}`,
			Args:  []any{i},
		})
	}
	st, err := core.ParseStatement([]byte(`{type: select, table: Order, columns: [total]}`))
	require.NoError(t, err)
	items = append(items, core.BatchItem{Statement: st})

	cmds, err := e.TranslateBatch(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, cmds, len(items))

	for i := 0; i < 20; i++ {
		q := cmds[i].Document()[1].Value.(bson.A)[0].(bson.D)[0].Value
		assert.Equal(t, bson.D{{Key: "_id", Value: bson.D{{Key: "$eq", Value: int32(i)}}}}, q, fmt.Sprint(i))
	}
	assert.Equal(t, "aggregate", cmds[20].Name())
}

func TestTranslateBatchError(t *testing.T) {
	e := newEngine(t, newConfig())
	items := []core.BatchItem{
		{Query: `{type: delete, table: items}`},
		{Query: `{type: delete, table: nowhere}`},
	}
	_, err := e.TranslateBatch(context.Background(), items)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch item 1")

	var te *core.TranslationError
	assert.ErrorAs(t, err, &te)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.TranslateBatch(ctx, items[:1])
	assert.ErrorIs(t, err, context.Canceled)
}

type upperCollections struct{ core.MappedNames }

func (upperCollections) RenderCollectionName(e *core.Entity, emit func(string)) {
	emit("T_" + e.Collection)
}

func TestNameRendererOption(t *testing.T) {
	e := newEngine(t, newConfig(), core.OptionSetNameRenderer(upperCollections{}))
	cmd, err := e.TranslateQuery(`{type: delete, table: Order}`)
	require.NoError(t, err)
	assert.Equal(t, "T_Order", cmd.Collection())

	_, err = core.NewEngine(newConfig(), core.OptionSetNameRenderer(nil))
	assert.Error(t, err)
}

func TestFindCommandOption(t *testing.T) {
	conf := newConfig()
	conf.UseFindCommand = true
	e := newEngine(t, conf)

	cmd, err := e.TranslateQuery(`{type: select, table: Order, columns: [total], limit: 2}`)
	require.NoError(t, err)
	assert.Equal(t, "find", cmd.Name())
	assert.True(t, cmd.IsQuery())
}

func TestArrayOf(t *testing.T) {
	a, err := core.ArrayOf([]int32{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "INTEGER", a.TypeName)
	assert.Equal(t, []any{int32(1), int32(2)}, a.Elements)

	a, err = core.ArrayOfType([]any{"x"}, "Collection<String>")
	require.NoError(t, err)
	assert.Equal(t, "VARCHAR", a.TypeName)

	_, err = core.ArrayOfType([]any{'c'}, "Character[]")
	var ute *core.UnsupportedTypeError
	require.ErrorAs(t, err, &ute)
	assert.Contains(t, err.Error(), "contains elements of the unsupported type [Character]")

	_, err = core.ArrayOf([]any{int32(1), "x"})
	assert.ErrorIs(t, err, core.ErrFeatureNotSupported)
}
