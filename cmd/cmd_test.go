package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/apd/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/qbloq/mongobridge/core"
	"github.com/qbloq/mongobridge/serv"
)

func newTestEngine(t *testing.T) *core.Engine {
	t.Helper()
	e, err := core.NewEngine(&core.Config{
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
				ID:   core.Attribute{Name: "code", Type: "String"},
				Attributes: []core.Attribute{
					{Name: "total", Type: "BigDecimal"},
					{Name: "placed", Type: "Instant"},
					{Name: "letters", Type: "char[]"},
					{Name: "flags", Type: "Collection<Boolean>"},
					{Name: "customer", Type: "Customer"},
				},
			},
		},
		Embeddables: []core.EmbeddableConfig{
			{
				Name:       "Customer",
				Aggregate:  true,
				Attributes: []core.Attribute{{Name: "name", Type: "String"}},
			},
		},
	}, core.OptionSetLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return e
}

func TestParseArgs(t *testing.T) {
	args, err := parseArgs([]string{"1", "[5, 6]", `"1"`, "null", "10.5"})
	require.NoError(t, err)
	assert.Equal(t, []any{1, []any{5, 6}, "1", nil, 10.5}, args)

	_, err = parseArgs([]string{"1", "[unclosed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "argument $2")
}

func TestTranslateStatements(t *testing.T) {
	e := newTestEngine(t)
	args, err := parseArgs([]string{"1", "[5]", `["10.1"]`})
	require.NoError(t, err)

	var out bytes.Buffer
	err = translateStatements(context.Background(), &out, e, []string{
		`{type: insert, table: ItemWithArrays, columns: [id, ints, bigDecimals], values: [$1, $2, $3]}`,
		`{"type": "delete", "table": "items", "where": {"op": "eq", "column": "id", "value": "$1"}}`,
	}, args, false)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"insert":"items"`)
	assert.Contains(t, lines[1], `"delete":"items"`)
}

func TestTranslateStatementsError(t *testing.T) {
	e := newTestEngine(t)

	var out bytes.Buffer
	err := translateStatements(context.Background(), &out, e, []string{
		`{type: select, table: Unknown}`,
	}, nil, false)
	require.Error(t, err)
	assert.Empty(t, out.String())
}

type fakeRows struct {
	cols []string
	data [][]any
	pos  int
	err  error
}

func (r *fakeRows) Columns() ([]string, error) { return r.cols, nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	for i, v := range r.data[r.pos-1] {
		*(dest[i].(*any)) = v
	}
	return nil
}

func (r *fakeRows) Err() error { return r.err }

func TestPrintRows(t *testing.T) {
	rows := &fakeRows{
		cols: []string{"id", "name"},
		data: [][]any{{1, "a"}, {2, nil}},
	}

	var out bytes.Buffer
	require.NoError(t, printRows(&out, rows))
	assert.Equal(t, "{\"id\":1,\"name\":\"a\"}\n{\"id\":2,\"name\":null}\n", out.String())

	rows = &fakeRows{cols: []string{"id"}, err: errors.New("cursor closed")}
	assert.EqualError(t, printRows(&out, rows), "cursor closed")
}

func TestSeederRow(t *testing.T) {
	e := newTestEngine(t)
	s := newSeeder(42)

	items, ok := e.Entity("ItemWithArrays")
	require.True(t, ok)

	r1 := s.row(items)
	r2 := s.row(items)
	require.Len(t, r1, 3)
	assert.Equal(t, int32(1), r1[0])
	assert.Equal(t, int32(2), r2[0])
	for _, v := range r1[2].([]any) {
		assert.IsType(t, &apd.Decimal{}, v)
	}

	text, err := insertText(items)
	require.NoError(t, err)
	cmd, err := e.TranslateQuery(text, r1...)
	require.NoError(t, err)
	assert.Equal(t, "insert", cmd.Name())
	assert.Equal(t, "items", cmd.Collection())

	orders, ok := e.Entity("Order")
	require.True(t, ok)
	row := s.row(orders)
	require.Len(t, row, 6)
	assert.Len(t, row[0], 36)
	assert.IsType(t, []rune{}, row[3])
	assert.Nil(t, row[5])

	text, err = insertText(orders)
	require.NoError(t, err)
	_, err = e.TranslateQuery(text, row...)
	require.NoError(t, err)
}

func TestWriteDefaultConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "config")

	file, err := writeDefaultConfig(dir, "order-service", "development")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "development.yml"), file)

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(b), `app_name: "Order Service"`)
	assert.Contains(t, string(b), "dbname: order_service_development")

	c, err := serv.ReadInConfig(filepath.Join(dir, "development"))
	require.NoError(t, err)
	assert.Equal(t, "Order Service", c.AppName)
	require.Len(t, c.Entities, 1)

	_, err = writeDefaultConfig(dir, "order-service", "development")
	assert.ErrorContains(t, err, "config already exists")
}

func TestDescribeCatalog(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, describeCatalog(&out, newTestEngine(t)))
	assert.Contains(t, out.String(), "ItemWithArrays -> items (id int, ints int[], bigDecimals BigDecimal[])")
	assert.Contains(t, out.String(), "catalog fingerprint ")
}

func TestWriteSchema(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeSchema(&out))
	assert.Contains(t, out.String(), `"entities"`)
}

func TestBuildDetails(t *testing.T) {
	assert.Contains(t, BuildDetails(), "mongobridge dev (commit unknown")

	cmd := newRootCmd()
	assert.Equal(t, "mongobridge", cmd.Use)
	for _, name := range []string{"init", "check", "translate", "exec", "seed", "schema", "version"} {
		c, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
}
