// Package translate turns relational statements into MongoDB command
// trees. A Translator holds only read-only state and may be shared.
package translate

import (
	"fmt"
	"reflect"

	"github.com/qbloq/mongobridge/core/internal/attach"
	"github.com/qbloq/mongobridge/core/internal/convert"
	"github.com/qbloq/mongobridge/core/internal/merr"
	"github.com/qbloq/mongobridge/core/internal/mongoast"
	"github.com/qbloq/mongobridge/core/internal/qcode"
	"github.com/qbloq/mongobridge/core/internal/sdata"
)

// NameRenderer is the hook through which collection and field names are
// produced. Implementations hand the name to emit exactly once.
type NameRenderer interface {
	RenderCollectionName(e *sdata.Entity, emit func(string))
	RenderFieldName(e *sdata.Entity, c *sdata.Column, emit func(string))
}

// MappedNames renders the names bound in the catalog.
type MappedNames struct{}

func (MappedNames) RenderCollectionName(e *sdata.Entity, emit func(string)) {
	emit(e.Collection)
}

func (MappedNames) RenderFieldName(_ *sdata.Entity, c *sdata.Column, emit func(string)) {
	emit(c.Field)
}

type Translator struct {
	catalog *sdata.Catalog
	names   NameRenderer
	useFind bool
}

type Option func(*Translator)

func WithNameRenderer(r NameRenderer) Option {
	return func(tr *Translator) {
		if r != nil {
			tr.names = r
		}
	}
}

// WithFindCommand renders selects without aggregate functions as find
// commands instead of aggregation pipelines.
func WithFindCommand(enable bool) Option {
	return func(tr *Translator) {
		tr.useFind = enable
	}
}

func New(cat *sdata.Catalog, opts ...Option) *Translator {
	tr := &Translator{catalog: cat, names: MappedNames{}}
	for _, o := range opts {
		o(tr)
	}
	return tr
}

// Output is a result column of a select.
type Output struct {
	Name string
	// Field is the document field path the value is read from.
	Field string
	// Column is nil for aggregate results.
	Column *sdata.Column
}

// Translate builds the command for st. args bind the statement's
// parameters, $1 being args[0].
func (tr *Translator) Translate(st *qcode.Statement, args []any) (mongoast.Command, error) {
	cmd, _, err := tr.translate(st, args)
	return cmd, err
}

// TranslateWithOutputs also returns the result columns, empty unless st
// is a select.
func (tr *Translator) TranslateWithOutputs(st *qcode.Statement, args []any) (mongoast.Command, []Output, error) {
	return tr.translate(st, args)
}

func (tr *Translator) translate(st *qcode.Statement, args []any) (mongoast.Command, []Output, error) {
	if st == nil {
		return nil, nil, &merr.TranslationError{Reason: "no statement"}
	}
	e, ok := tr.catalog.Entity(st.Table)
	if !ok {
		return nil, nil, &merr.TranslationError{
			Statement: st.Type.String(),
			Reason:    fmt.Sprintf("unknown table [%s]", st.Table),
		}
	}
	c := &context{tr: tr, st: st, args: args, entity: e}

	var cmd mongoast.Command
	var outs []Output
	var err error

	switch st.Type {
	case qcode.STInsert:
		cmd, err = c.insert()
	case qcode.STUpdate:
		cmd, err = c.update()
	case qcode.STDelete:
		cmd, err = c.delete()
	case qcode.STSelect:
		cmd, outs, err = c.selectStmt()
	default:
		err = c.errorf("", "unsupported statement type [%s]", st.Type)
	}
	if err != nil {
		return nil, nil, err
	}
	return cmd, outs, nil
}

// context is the state of one translation.
type context struct {
	tr     *Translator
	st     *qcode.Statement
	args   []any
	entity *sdata.Entity
}

func (c *context) errorf(path, format string, args ...any) error {
	return &merr.TranslationError{
		Statement: c.st.Type.String(),
		Path:      path,
		Reason:    fmt.Sprintf(format, args...),
	}
}

func (c *context) collection() string {
	return attach.Run(attach.CollectionName, func(y *attach.Yield[string]) {
		c.tr.names.RenderCollectionName(c.entity, func(name string) {
			y.Yield(attach.CollectionName, name)
		})
	})
}

func (c *context) field(col *sdata.Column) string {
	return attach.Run(attach.ColumnName, func(y *attach.Yield[string]) {
		c.tr.names.RenderFieldName(c.entity, col, func(name string) {
			y.Yield(attach.ColumnName, name)
		})
	})
}

func (c *context) resolve(name string) (*sdata.Column, error) {
	col, ok := c.entity.Resolve(name)
	if !ok {
		return nil, c.errorf(name, "unknown column [%s] of entity [%s]", name, c.entity.Name)
	}
	return col, nil
}

// bind replaces parameters, also inside lists, with their arguments.
func (c *context) bind(path string, v any) (any, error) {
	switch x := v.(type) {
	case qcode.Param:
		if x < 1 || int(x) > len(c.args) {
			return nil, c.errorf(path, "parameter %s out of range, %d argument(s) bound", x, len(c.args))
		}
		return c.args[x-1], nil

	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			b, err := c.bind(path, e)
			if err != nil {
				return nil, err
			}
			out[i] = b
		}
		return out, nil
	}
	return v, nil
}

func (c *context) insert() (mongoast.Command, error) {
	st := c.st
	if len(st.Columns) == 0 {
		return nil, c.errorf("", "insert needs columns")
	}
	if len(st.Columns) != len(st.Values) {
		return nil, c.errorf("", "%d columns but %d values", len(st.Columns), len(st.Values))
	}

	columns := c.entity.Columns()
	insertable := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		insertable[col.Name] = struct{}{}
	}

	values := make(map[string]any, len(st.Columns))
	for i, name := range st.Columns {
		if name == sdata.IDField {
			name = c.entity.ID.Name
		}
		if _, ok := insertable[name]; !ok {
			return nil, c.errorf(name, "unknown column [%s] of entity [%s]", name, c.entity.Name)
		}
		if _, ok := values[name]; ok {
			return nil, c.errorf(name, "column [%s] listed twice", name)
		}
		values[name] = st.Values[i]
	}

	elems := make([]mongoast.Element, 0, len(columns))
	for _, col := range columns {
		v, ok := values[col.Name]
		if !ok {
			return nil, c.errorf(col.Name, "missing value for column [%s]", col.Name)
		}
		v, err := c.bind(col.Name, v)
		if err != nil {
			return nil, err
		}
		if col.ID && v == nil {
			return nil, c.errorf(col.Name, "identifier must not be null")
		}
		n, err := convert.ToColumn(v, col)
		if err != nil {
			return nil, err
		}
		elems = append(elems, mongoast.Field(c.field(col), n))
	}
	return mongoast.NewInsertCommand(c.collection(), mongoast.NestDotted(elems...)), nil
}

func (c *context) update() (mongoast.Command, error) {
	if len(c.st.Set) == 0 {
		return nil, c.errorf("", "update needs at least one assignment")
	}

	seen := make(map[string]struct{}, len(c.st.Set))
	elems := make([]mongoast.Element, 0, len(c.st.Set))
	for _, a := range c.st.Set {
		col, err := c.resolve(a.Column)
		if err != nil {
			return nil, err
		}
		if col.ID {
			return nil, c.errorf(a.Column, "identifier cannot be updated")
		}
		if _, ok := seen[col.Name]; ok {
			return nil, c.errorf(a.Column, "column [%s] assigned twice", col.Name)
		}
		seen[col.Name] = struct{}{}

		v, err := c.bind(a.Column, a.Value)
		if err != nil {
			return nil, err
		}
		n, err := convert.ToColumn(v, col)
		if err != nil {
			return nil, err
		}
		elems = append(elems, mongoast.Field(c.field(col), n))
	}

	f, err := c.filter(c.st.Where)
	if err != nil {
		return nil, err
	}
	return mongoast.NewUpdateCommand(c.collection(),
		mongoast.NewUpdateStatement(f, mongoast.NewDocument(elems...))), nil
}

func (c *context) delete() (mongoast.Command, error) {
	f, err := c.filter(c.st.Where)
	if err != nil {
		return nil, err
	}
	return mongoast.NewDeleteCommand(c.collection(), mongoast.NewDeleteStatement(f)), nil
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func elements(v any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	rv := reflect.ValueOf(v)
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
