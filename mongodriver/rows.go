package mongodriver

import (
	"context"
	"database/sql/driver"
	"io"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/qbloq/mongobridge/core"
)

// cursor is the part of mongo.Cursor rows read from.
type cursor interface {
	Next(ctx context.Context) bool
	Decode(v any) error
	Err() error
	Close(ctx context.Context) error
}

var _ cursor = (*mongo.Cursor)(nil)

// Rows implements driver.Rows over a command cursor. Values are
// converted back to the domain type of their column.
type Rows struct {
	ctx     context.Context
	cursor  cursor
	columns []core.ResultColumn
}

var _ driver.RowsColumnTypeDatabaseTypeName = (*Rows)(nil)

func newRows(ctx context.Context, c cursor, columns []core.ResultColumn) *Rows {
	return &Rows{ctx: ctx, cursor: c, columns: columns}
}

// Columns returns the result column names.
func (r *Rows) Columns() []string {
	names := make([]string, len(r.columns))
	for i, c := range r.columns {
		names[i] = c.Name
	}
	return names
}

// ColumnTypeDatabaseTypeName returns the declared type of a column,
// empty for aggregate results.
func (r *Rows) ColumnTypeDatabaseTypeName(index int) string {
	return r.columns[index].Type()
}

// Close closes the cursor.
func (r *Rows) Close() error {
	return r.cursor.Close(r.ctx)
}

// Next reads the next document into dest.
func (r *Rows) Next(dest []driver.Value) error {
	if !r.cursor.Next(r.ctx) {
		if err := r.cursor.Err(); err != nil {
			return errors.Wrap(err, "mongodriver: cursor")
		}
		return io.EOF
	}

	var doc bson.D
	if err := r.cursor.Decode(&doc); err != nil {
		return errors.Wrap(err, "mongodriver: decode row")
	}
	for i, c := range r.columns {
		v, err := c.Value(doc)
		if err != nil {
			return err
		}
		dest[i] = v
	}
	return nil
}
