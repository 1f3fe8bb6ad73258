package core

import (
	"github.com/cockroachdb/apd/v2"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/qbloq/mongobridge/core/internal/convert"
	"github.com/qbloq/mongobridge/core/internal/mongoast"
	"github.com/qbloq/mongobridge/core/internal/sdata"
	"github.com/qbloq/mongobridge/core/internal/translate"
)

// Command is a translated statement, ready to be run with
// mongo.Database.RunCommand or RunCommandCursor.
type Command struct {
	cmd     mongoast.Command
	doc     bson.D
	columns []ResultColumn
}

func newCommand(cmd mongoast.Command, outs []translate.Output) *Command {
	c := &Command{cmd: cmd, doc: mongoast.Render(cmd)}
	for _, o := range outs {
		c.columns = append(c.columns, ResultColumn{Name: o.Name, Field: o.Field, column: o.Column})
	}
	return c
}

// Name is the command name, one of insert, update, delete, find or
// aggregate.
func (c *Command) Name() string {
	return c.cmd.CommandName()
}

// Collection is the target collection
func (c *Command) Collection() string {
	return c.cmd.Collection()
}

// IsQuery reports whether the command returns a cursor
func (c *Command) IsQuery() bool {
	switch c.cmd.(type) {
	case *mongoast.FindCommand, *mongoast.AggregateCommand:
		return true
	}
	return false
}

// Document returns a copy of the rendered command document
func (c *Command) Document() bson.D {
	return copyDoc(c.doc)
}

// ExtJSON renders the command as MongoDB extended JSON
func (c *Command) ExtJSON(canonical bool) ([]byte, error) {
	return bson.MarshalExtJSON(c.doc, canonical, false)
}

// Columns are the result columns of a query, empty for writes
func (c *Command) Columns() []ResultColumn {
	return append([]ResultColumn(nil), c.columns...)
}

func copyDoc(d bson.D) bson.D {
	out := make(bson.D, len(d))
	for i, e := range d {
		out[i] = bson.E{Key: e.Key, Value: copyValue(e.Value)}
	}
	return out
}

func copyValue(v any) any {
	switch x := v.(type) {
	case bson.D:
		return copyDoc(x)
	case bson.A:
		out := make(bson.A, len(x))
		for i, e := range x {
			out[i] = copyValue(e)
		}
		return out
	case bson.Binary:
		return bson.Binary{Subtype: x.Subtype, Data: append([]byte{}, x.Data...)}
	}
	return v
}

// ResultColumn is a column of a query result
type ResultColumn struct {
	Name string
	// Field is the document field path holding the value
	Field  string
	column *sdata.Column
}

// Type is the declared type of the column, empty for aggregate results
func (rc ResultColumn) Type() string {
	if rc.column == nil {
		return ""
	}
	return rc.column.Type.String()
}

// Value reads the column from a result document and converts it back to
// its domain value. Missing fields read as nil.
func (rc ResultColumn) Value(doc bson.D) (any, error) {
	v, ok := convert.LookupField(doc, rc.Field)
	if !ok || v == nil {
		return nil, nil
	}
	if rc.column != nil {
		return convert.FromBSON(v, rc.column)
	}

	switch x := v.(type) {
	case bson.Decimal128:
		d, _, err := apd.NewFromString(x.String())
		if err != nil {
			return nil, err
		}
		return d, nil
	case bson.DateTime:
		return x.Time().UTC(), nil
	}
	return v, nil
}
