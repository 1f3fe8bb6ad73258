package mongoast

import (
	"github.com/qbloq/mongobridge/core/internal/assert"
)

// Command is the root of a translated statement.
type Command interface {
	Node
	CommandName() string
	Collection() string
	command()
}

type InsertCommand struct {
	collection string
	documents  []*Document
}

func NewInsertCommand(collection string, docs ...*Document) *InsertCommand {
	assert.True(collection != "", "insert needs a collection")
	assert.True(len(docs) != 0, "insert needs at least one document")
	return &InsertCommand{collection: collection, documents: append([]*Document(nil), docs...)}
}

func (c *InsertCommand) Kind() NodeKind      { return KindInsertCommand }
func (c *InsertCommand) CommandName() string { return "insert" }
func (c *InsertCommand) Collection() string  { return c.collection }

func (c *InsertCommand) Documents() []*Document {
	return append([]*Document(nil), c.documents...)
}

func (c *InsertCommand) Render(w Writer) {
	w.WriteStartDocument()
	w.WriteName("insert")
	w.WriteValue(String(c.collection))
	w.WriteName("documents")
	w.WriteStartArray()
	for _, d := range c.documents {
		d.Render(w)
	}
	w.WriteEndArray()
	w.WriteEndDocument()
}

func (c *InsertCommand) node()    {}
func (c *InsertCommand) command() {}

// UpdateStatement is one entry of an update command, always applied with
// $set to every matching document.
type UpdateStatement struct {
	filter Filter
	set    *Document
}

func NewUpdateStatement(f Filter, set *Document) *UpdateStatement {
	assert.NotNil(f, "update filter")
	assert.True(set != nil && set.Len() != 0, "update needs at least one assignment")
	return &UpdateStatement{filter: f, set: set}
}

func (s *UpdateStatement) Kind() NodeKind { return KindUpdateStatement }

func (s *UpdateStatement) Render(w Writer) {
	w.WriteStartDocument()
	w.WriteName("q")
	s.filter.Render(w)
	w.WriteName("u")
	w.WriteStartDocument()
	w.WriteName("$set")
	s.set.Render(w)
	w.WriteEndDocument()
	w.WriteName("multi")
	w.WriteValue(Bool(true))
	w.WriteEndDocument()
}

func (s *UpdateStatement) node() {}

type UpdateCommand struct {
	collection string
	updates    []*UpdateStatement
}

func NewUpdateCommand(collection string, updates ...*UpdateStatement) *UpdateCommand {
	assert.True(collection != "", "update needs a collection")
	assert.True(len(updates) != 0, "update needs at least one statement")
	return &UpdateCommand{collection: collection, updates: append([]*UpdateStatement(nil), updates...)}
}

func (c *UpdateCommand) Kind() NodeKind      { return KindUpdateCommand }
func (c *UpdateCommand) CommandName() string { return "update" }
func (c *UpdateCommand) Collection() string  { return c.collection }

func (c *UpdateCommand) Render(w Writer) {
	w.WriteStartDocument()
	w.WriteName("update")
	w.WriteValue(String(c.collection))
	w.WriteName("updates")
	w.WriteStartArray()
	for _, u := range c.updates {
		u.Render(w)
	}
	w.WriteEndArray()
	w.WriteEndDocument()
}

func (c *UpdateCommand) node()    {}
func (c *UpdateCommand) command() {}

// DeleteStatement removes every matching document.
type DeleteStatement struct {
	filter Filter
}

func NewDeleteStatement(f Filter) *DeleteStatement {
	return &DeleteStatement{filter: assert.NotNil(f, "delete filter")}
}

func (s *DeleteStatement) Kind() NodeKind { return KindDeleteStatement }

func (s *DeleteStatement) Render(w Writer) {
	w.WriteStartDocument()
	w.WriteName("q")
	s.filter.Render(w)
	w.WriteName("limit")
	w.WriteValue(Int32(0))
	w.WriteEndDocument()
}

func (s *DeleteStatement) node() {}

type DeleteCommand struct {
	collection string
	deletes    []*DeleteStatement
}

func NewDeleteCommand(collection string, deletes ...*DeleteStatement) *DeleteCommand {
	assert.True(collection != "", "delete needs a collection")
	assert.True(len(deletes) != 0, "delete needs at least one statement")
	return &DeleteCommand{collection: collection, deletes: append([]*DeleteStatement(nil), deletes...)}
}

func (c *DeleteCommand) Kind() NodeKind      { return KindDeleteCommand }
func (c *DeleteCommand) CommandName() string { return "delete" }
func (c *DeleteCommand) Collection() string  { return c.collection }

func (c *DeleteCommand) Render(w Writer) {
	w.WriteStartDocument()
	w.WriteName("delete")
	w.WriteValue(String(c.collection))
	w.WriteName("deletes")
	w.WriteStartArray()
	for _, d := range c.deletes {
		d.Render(w)
	}
	w.WriteEndArray()
	w.WriteEndDocument()
}

func (c *DeleteCommand) node()    {}
func (c *DeleteCommand) command() {}

// FindOptions are the optional parts of a find command. Zero Skip and
// Limit are left out.
type FindOptions struct {
	Projection []Projection
	Sort       []SortField
	Skip       int64
	Limit      int64
}

type FindCommand struct {
	collection string
	filter     Filter
	opts       FindOptions
}

func NewFindCommand(collection string, f Filter, opts FindOptions) *FindCommand {
	assert.True(collection != "", "find needs a collection")
	assert.True(opts.Skip >= 0 && opts.Limit >= 0, "find skip and limit must not be negative")
	opts.Projection = append([]Projection(nil), opts.Projection...)
	opts.Sort = append([]SortField(nil), opts.Sort...)
	return &FindCommand{collection: collection, filter: assert.NotNil(f, "find filter"), opts: opts}
}

func (c *FindCommand) Kind() NodeKind      { return KindFindCommand }
func (c *FindCommand) CommandName() string { return "find" }
func (c *FindCommand) Collection() string  { return c.collection }

// Projections returns the projected fields, empty when every field is
// returned.
func (c *FindCommand) Projections() []Projection {
	return append([]Projection(nil), c.opts.Projection...)
}

func (c *FindCommand) Render(w Writer) {
	w.WriteStartDocument()
	w.WriteName("find")
	w.WriteValue(String(c.collection))
	w.WriteName("filter")
	c.filter.Render(w)
	if len(c.opts.Projection) != 0 {
		w.WriteName("projection")
		renderProjections(w, c.opts.Projection)
	}
	if len(c.opts.Sort) != 0 {
		w.WriteName("sort")
		renderSort(w, c.opts.Sort)
	}
	if c.opts.Skip != 0 {
		w.WriteName("skip")
		w.WriteValue(Int64(c.opts.Skip))
	}
	if c.opts.Limit != 0 {
		w.WriteName("limit")
		w.WriteValue(Int64(c.opts.Limit))
	}
	w.WriteEndDocument()
}

func (c *FindCommand) node()    {}
func (c *FindCommand) command() {}

type AggregateCommand struct {
	collection string
	stages     []Stage
}

func NewAggregateCommand(collection string, stages ...Stage) *AggregateCommand {
	assert.True(collection != "", "aggregate needs a collection")
	return &AggregateCommand{collection: collection, stages: append([]Stage(nil), stages...)}
}

func (c *AggregateCommand) Kind() NodeKind      { return KindAggregateCommand }
func (c *AggregateCommand) CommandName() string { return "aggregate" }
func (c *AggregateCommand) Collection() string  { return c.collection }

func (c *AggregateCommand) Stages() []Stage {
	return append([]Stage(nil), c.stages...)
}

func (c *AggregateCommand) Render(w Writer) {
	w.WriteStartDocument()
	w.WriteName("aggregate")
	w.WriteValue(String(c.collection))
	w.WriteName("pipeline")
	w.WriteStartArray()
	for _, s := range c.stages {
		s.Render(w)
	}
	w.WriteEndArray()
	w.WriteName("cursor")
	w.WriteStartDocument()
	w.WriteEndDocument()
	w.WriteEndDocument()
}

func (c *AggregateCommand) node()    {}
func (c *AggregateCommand) command() {}
