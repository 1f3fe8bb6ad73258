//go:build integration

package mongodriver_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/cockroachdb/apd/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap/zaptest"

	"github.com/qbloq/mongobridge/core"
	"github.com/qbloq/mongobridge/mongodriver"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	engine, err := core.NewEngine(&core.Config{
		Entities: []core.EntityConfig{{
			Name:       "ItemWithArrays",
			Collection: "items",
			ID:         core.Attribute{Name: "id", Type: "int"},
			Attributes: []core.Attribute{
				{Name: "ints", Type: "int[]"},
				{Name: "bigDecimals", Type: "BigDecimal[]"},
			},
		}},
	}, core.OptionSetLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	connector, err := mongodriver.NewConnector(client, "test", engine,
		mongodriver.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	db := sql.OpenDB(connector)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRoundTrip(t *testing.T) {
	db := openDB(t)

	res, err := db.Exec(`
type: insert
table: ItemWithArrays
columns: [id, ints, bigDecimals]
values: [$1, $2, $3]`, 1, []int32{5}, []*apd.Decimal{apd.New(101, -1)})
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var (
		id   int32
		ints any
		decs any
	)
	err = db.QueryRow(`{type: select, table: items, columns: [id, ints, bigDecimals]}`).Scan(&id, &ints, &decs)
	require.NoError(t, err)
	assert.Equal(t, int32(1), id)
	assert.Equal(t, []int32{5}, ints)
	require.Len(t, decs, 1)
	assert.Equal(t, "10.1", decs.([]any)[0].(*apd.Decimal).String())

	res, err = db.Exec(`{type: update, table: items, set: [{column: ints, value: $1}], where: {op: eq, column: id, value: 1}}`,
		[]int32{1, 2, 3})
	require.NoError(t, err)
	n, _ = res.RowsAffected()
	assert.Equal(t, int64(1), n)

	// same values again, the row still matches
	res, err = db.Exec(`{type: update, table: items, set: [{column: ints, value: $1}], where: {op: eq, column: id, value: 1}}`,
		[]int32{1, 2, 3})
	require.NoError(t, err)
	n, _ = res.RowsAffected()
	assert.Equal(t, int64(1), n)

	var count int64
	err = db.QueryRow(`{type: select, table: items, aggregates: [{func: count, alias: c}], where: {op: eq, column: ints, value: 2}}`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	res, err = db.Exec(`{type: delete, table: items, where: {op: eq, column: id, value: $1}}`, 1)
	require.NoError(t, err)
	n, _ = res.RowsAffected()
	assert.Equal(t, int64(1), n)

	// an empty collection still yields one aggregate row
	rows, err := db.Query(`{type: select, table: items, aggregates: [{func: count, alias: c}, {func: max, column: id, alias: m}]}`)
	require.NoError(t, err)
	defer rows.Close() //nolint:errcheck

	require.True(t, rows.Next())
	var maxID sql.NullInt64
	require.NoError(t, rows.Scan(&count, &maxID))
	assert.Equal(t, int64(0), count)
	assert.False(t, maxID.Valid)
	assert.False(t, rows.Next())
	require.NoError(t, rows.Err())
}
