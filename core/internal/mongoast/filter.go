package mongoast

import (
	"github.com/qbloq/mongobridge/core/internal/assert"
)

// Filter is a query predicate document.
type Filter interface {
	Node
	filter()
}

type FilterOperator int

const (
	OpEq FilterOperator = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
	OpNin
)

var filterOps = [...]string{
	OpEq:  "$eq",
	OpNe:  "$ne",
	OpGt:  "$gt",
	OpGte: "$gte",
	OpLt:  "$lt",
	OpLte: "$lte",
	OpIn:  "$in",
	OpNin: "$nin",
}

func (o FilterOperator) String() string {
	return filterOps[o]
}

// EmptyFilter matches every document.
type EmptyFilter struct{}

func (EmptyFilter) Kind() NodeKind { return KindEmptyFilter }

func (EmptyFilter) Render(w Writer) {
	w.WriteStartDocument()
	w.WriteEndDocument()
}

func (EmptyFilter) node()   {}
func (EmptyFilter) filter() {}

// FieldOperationFilter renders {field: {op: value}}.
type FieldOperationFilter struct {
	field string
	op    FilterOperator
	value Node
}

func NewFieldOperationFilter(field string, op FilterOperator, value Node) *FieldOperationFilter {
	assert.True(field != "", "filter field must not be empty")
	assert.NotNil(value, "filter value")
	if op == OpIn || op == OpNin {
		assert.True(value.Kind() == KindArray, "%s needs an array operand, got %s", op, value.Kind())
	}
	return &FieldOperationFilter{field: field, op: op, value: value}
}

func (f *FieldOperationFilter) Kind() NodeKind { return KindFieldOperationFilter }

func (f *FieldOperationFilter) Render(w Writer) {
	w.WriteStartDocument()
	w.WriteName(f.field)
	w.WriteStartDocument()
	w.WriteName(f.op.String())
	f.value.Render(w)
	w.WriteEndDocument()
	w.WriteEndDocument()
}

func (f *FieldOperationFilter) node()   {}
func (f *FieldOperationFilter) filter() {}

// RegexFilter renders {field: {$regex: pattern, $options: options}}.
type RegexFilter struct {
	field   string
	pattern string
	options string
}

func NewRegexFilter(field, pattern, options string) *RegexFilter {
	assert.True(field != "", "filter field must not be empty")
	return &RegexFilter{field: field, pattern: pattern, options: options}
}

func (f *RegexFilter) Kind() NodeKind { return KindRegexFilter }

func (f *RegexFilter) Render(w Writer) {
	w.WriteStartDocument()
	w.WriteName(f.field)
	w.WriteStartDocument()
	w.WriteName("$regex")
	w.WriteValue(String(f.pattern))
	if f.options != "" {
		w.WriteName("$options")
		w.WriteValue(String(f.options))
	}
	w.WriteEndDocument()
	w.WriteEndDocument()
}

func (f *RegexFilter) node()   {}
func (f *RegexFilter) filter() {}

type LogicalOperator int

const (
	OpAnd LogicalOperator = iota
	OpOr
	OpNor
)

func (o LogicalOperator) String() string {
	switch o {
	case OpOr:
		return "$or"
	case OpNor:
		return "$nor"
	}
	return "$and"
}

// LogicalFilter renders {op: [filters...]}.
type LogicalFilter struct {
	op      LogicalOperator
	filters []Filter
}

func NewLogicalFilter(op LogicalOperator, filters ...Filter) *LogicalFilter {
	assert.True(len(filters) != 0, "%s needs at least one operand", op)
	return &LogicalFilter{op: op, filters: append([]Filter(nil), filters...)}
}

func (f *LogicalFilter) Kind() NodeKind { return KindLogicalFilter }

func (f *LogicalFilter) Operator() LogicalOperator { return f.op }

func (f *LogicalFilter) Filters() []Filter {
	return append([]Filter(nil), f.filters...)
}

func (f *LogicalFilter) Render(w Writer) {
	w.WriteStartDocument()
	w.WriteName(f.op.String())
	w.WriteStartArray()
	for _, v := range f.filters {
		v.Render(w)
	}
	w.WriteEndArray()
	w.WriteEndDocument()
}

func (f *LogicalFilter) node()   {}
func (f *LogicalFilter) filter() {}
