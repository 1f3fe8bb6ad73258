package mongoast

import (
	"github.com/qbloq/mongobridge/core/internal/assert"
)

// Stage is an aggregation pipeline stage.
type Stage interface {
	Node
	stage()
}

type MatchStage struct {
	filter Filter
}

func NewMatchStage(f Filter) *MatchStage {
	return &MatchStage{filter: assert.NotNil(f, "match filter")}
}

func (s *MatchStage) Kind() NodeKind { return KindMatchStage }

func (s *MatchStage) Render(w Writer) {
	w.WriteStartDocument()
	w.WriteName("$match")
	s.filter.Render(w)
	w.WriteEndDocument()
}

func (s *MatchStage) node()  {}
func (s *MatchStage) stage() {}

// Projection is a single $project entry: an inclusion flag or an
// expression.
type Projection struct {
	Field string
	Value Node
}

func Include(field string) Projection {
	return Projection{Field: field, Value: NewLiteral(Bool(true))}
}

func Exclude(field string) Projection {
	return Projection{Field: field, Value: NewLiteral(Bool(false))}
}

func Computed(field string, expr Node) Projection {
	return Projection{Field: field, Value: expr}
}

type ProjectStage struct {
	specs []Projection
}

func NewProjectStage(specs ...Projection) *ProjectStage {
	assert.True(len(specs) != 0, "$project needs at least one field")
	return &ProjectStage{specs: append([]Projection(nil), specs...)}
}

func (s *ProjectStage) Kind() NodeKind { return KindProjectStage }

func (s *ProjectStage) Projections() []Projection {
	return append([]Projection(nil), s.specs...)
}

func (s *ProjectStage) Render(w Writer) {
	w.WriteStartDocument()
	w.WriteName("$project")
	renderProjections(w, s.specs)
	w.WriteEndDocument()
}

func (s *ProjectStage) node()  {}
func (s *ProjectStage) stage() {}

func renderProjections(w Writer, specs []Projection) {
	w.WriteStartDocument()
	for _, p := range specs {
		w.WriteName(p.Field)
		p.Value.Render(w)
	}
	w.WriteEndDocument()
}

type SortField struct {
	Field string
	Desc  bool
}

type SortStage struct {
	fields []SortField
}

func NewSortStage(fields ...SortField) *SortStage {
	assert.True(len(fields) != 0, "$sort needs at least one field")
	return &SortStage{fields: append([]SortField(nil), fields...)}
}

func (s *SortStage) Kind() NodeKind { return KindSortStage }

func (s *SortStage) Render(w Writer) {
	w.WriteStartDocument()
	w.WriteName("$sort")
	renderSort(w, s.fields)
	w.WriteEndDocument()
}

func (s *SortStage) node()  {}
func (s *SortStage) stage() {}

func renderSort(w Writer, fields []SortField) {
	w.WriteStartDocument()
	for _, f := range fields {
		w.WriteName(f.Field)
		if f.Desc {
			w.WriteValue(Int32(-1))
		} else {
			w.WriteValue(Int32(1))
		}
	}
	w.WriteEndDocument()
}

type SkipStage struct {
	n int64
}

func NewSkipStage(n int64) *SkipStage {
	assert.True(n >= 0, "$skip must not be negative")
	return &SkipStage{n: n}
}

func (s *SkipStage) Kind() NodeKind { return KindSkipStage }

func (s *SkipStage) Render(w Writer) {
	w.WriteStartDocument()
	w.WriteName("$skip")
	w.WriteValue(Int64(s.n))
	w.WriteEndDocument()
}

func (s *SkipStage) node()  {}
func (s *SkipStage) stage() {}

type LimitStage struct {
	n int64
}

func NewLimitStage(n int64) *LimitStage {
	assert.True(n > 0, "$limit must be positive")
	return &LimitStage{n: n}
}

func (s *LimitStage) Kind() NodeKind { return KindLimitStage }

func (s *LimitStage) Render(w Writer) {
	w.WriteStartDocument()
	w.WriteName("$limit")
	w.WriteValue(Int64(s.n))
	w.WriteEndDocument()
}

func (s *LimitStage) node()  {}
func (s *LimitStage) stage() {}

type AccumulatorOp int

const (
	AccSum AccumulatorOp = iota
	AccAvg
	AccMin
	AccMax
)

func (o AccumulatorOp) String() string {
	switch o {
	case AccAvg:
		return "$avg"
	case AccMin:
		return "$min"
	case AccMax:
		return "$max"
	}
	return "$sum"
}

// Accumulator renders field: {op: expr} inside a $group stage.
type Accumulator struct {
	Field string
	Op    AccumulatorOp
	Expr  Node
}

// GroupStage groups by key, a nil key groups every input document
// together.
type GroupStage struct {
	key  Node
	accs []Accumulator
}

func NewGroupStage(key Node, accs ...Accumulator) *GroupStage {
	for _, a := range accs {
		assert.True(a.Field != "" && a.Field != "_id", "invalid accumulator field %q", a.Field)
		assert.NotNil(a.Expr, "accumulator expression")
	}
	return &GroupStage{key: key, accs: append([]Accumulator(nil), accs...)}
}

func (s *GroupStage) Kind() NodeKind { return KindGroupStage }

func (s *GroupStage) Render(w Writer) {
	w.WriteStartDocument()
	w.WriteName("$group")
	w.WriteStartDocument()
	w.WriteName("_id")
	if s.key == nil {
		w.WriteValue(Null())
	} else {
		s.key.Render(w)
	}
	for _, a := range s.accs {
		w.WriteName(a.Field)
		w.WriteStartDocument()
		w.WriteName(a.Op.String())
		a.Expr.Render(w)
		w.WriteEndDocument()
	}
	w.WriteEndDocument()
	w.WriteEndDocument()
}

func (s *GroupStage) node()  {}
func (s *GroupStage) stage() {}

// DocumentsStage emits literal documents, it must open a pipeline that
// reads no collection.
type DocumentsStage struct {
	docs []*Document
}

func NewDocumentsStage(docs ...*Document) *DocumentsStage {
	assert.True(len(docs) != 0, "$documents needs at least one document")
	for _, d := range docs {
		assert.NotNil(d, "$documents entry")
	}
	return &DocumentsStage{docs: append([]*Document(nil), docs...)}
}

func (s *DocumentsStage) Kind() NodeKind { return KindDocumentsStage }

func (s *DocumentsStage) Render(w Writer) {
	w.WriteStartDocument()
	w.WriteName("$documents")
	w.WriteStartArray()
	for _, d := range s.docs {
		d.Render(w)
	}
	w.WriteEndArray()
	w.WriteEndDocument()
}

func (s *DocumentsStage) node()  {}
func (s *DocumentsStage) stage() {}

// UnionWithStage appends the output of a collectionless pipeline.
type UnionWithStage struct {
	pipeline []Stage
}

func NewUnionWithStage(pipeline ...Stage) *UnionWithStage {
	assert.True(len(pipeline) != 0, "$unionWith needs a pipeline")
	return &UnionWithStage{pipeline: append([]Stage(nil), pipeline...)}
}

func (s *UnionWithStage) Kind() NodeKind { return KindUnionWithStage }

func (s *UnionWithStage) Render(w Writer) {
	w.WriteStartDocument()
	w.WriteName("$unionWith")
	w.WriteStartDocument()
	w.WriteName("pipeline")
	w.WriteStartArray()
	for _, st := range s.pipeline {
		st.Render(w)
	}
	w.WriteEndArray()
	w.WriteEndDocument()
	w.WriteEndDocument()
}

func (s *UnionWithStage) node()  {}
func (s *UnionWithStage) stage() {}
