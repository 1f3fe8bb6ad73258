// Package qcode holds the relational statement model handed to the
// translator: one command kind, a target table, columns, a predicate tree
// and update assignments.
package qcode

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

type StmtType int

const (
	STNone StmtType = iota
	STInsert
	STUpdate
	STDelete
	STSelect
)

func (t StmtType) String() string {
	switch t {
	case STInsert:
		return "insert"
	case STUpdate:
		return "update"
	case STDelete:
		return "delete"
	case STSelect:
		return "select"
	}
	return "none"
}

func (t *StmtType) UnmarshalText(b []byte) error {
	switch fold(string(b)) {
	case "insert":
		*t = STInsert
	case "update":
		*t = STUpdate
	case "delete":
		*t = STDelete
	case "select", "find", "query":
		*t = STSelect
	default:
		return fmt.Errorf("unknown statement type '%s'", b)
	}
	return nil
}

type ExpOp int

const (
	OpNop ExpOp = iota
	OpAnd
	OpOr
	OpNot
	OpEquals
	OpNotEquals
	OpGreaterOrEquals
	OpLesserOrEquals
	OpGreaterThan
	OpLesserThan
	OpIn
	OpNotIn
	OpLike
	OpNotLike
	OpILike
	OpNotILike
	OpIsNull
	OpIsNotNull
)

var expOps = map[string]ExpOp{
	"and":         OpAnd,
	"or":          OpOr,
	"not":         OpNot,
	"eq":          OpEquals,
	"=":           OpEquals,
	"equals":      OpEquals,
	"neq":         OpNotEquals,
	"ne":          OpNotEquals,
	"!=":          OpNotEquals,
	"<>":          OpNotEquals,
	"gte":         OpGreaterOrEquals,
	">=":          OpGreaterOrEquals,
	"lte":         OpLesserOrEquals,
	"<=":          OpLesserOrEquals,
	"gt":          OpGreaterThan,
	">":           OpGreaterThan,
	"lt":          OpLesserThan,
	"<":           OpLesserThan,
	"in":          OpIn,
	"nin":         OpNotIn,
	"not in":      OpNotIn,
	"like":        OpLike,
	"nlike":       OpNotLike,
	"not like":    OpNotLike,
	"ilike":       OpILike,
	"nilike":      OpNotILike,
	"not ilike":   OpNotILike,
	"is null":     OpIsNull,
	"is_null":     OpIsNull,
	"is not null": OpIsNotNull,
	"is_not_null": OpIsNotNull,
}

var expOpNames = [...]string{
	OpNop:             "nop",
	OpAnd:             "and",
	OpOr:              "or",
	OpNot:             "not",
	OpEquals:          "eq",
	OpNotEquals:       "neq",
	OpGreaterOrEquals: "gte",
	OpLesserOrEquals:  "lte",
	OpGreaterThan:     "gt",
	OpLesserThan:      "lt",
	OpIn:              "in",
	OpNotIn:           "nin",
	OpLike:            "like",
	OpNotLike:         "nlike",
	OpILike:           "ilike",
	OpNotILike:        "nilike",
	OpIsNull:          "is_null",
	OpIsNotNull:       "is_not_null",
}

func (op ExpOp) String() string {
	if op >= 0 && int(op) < len(expOpNames) {
		return expOpNames[op]
	}
	return fmt.Sprintf("ExpOp(%d)", int(op))
}

func (op *ExpOp) UnmarshalText(b []byte) error {
	v, ok := expOps[strings.Join(strings.Fields(fold(string(b))), " ")]
	if !ok {
		return fmt.Errorf("unknown operator '%s'", b)
	}
	*op = v
	return nil
}

// Logical reports whether op combines child expressions.
func (op ExpOp) Logical() bool {
	return op == OpAnd || op == OpOr || op == OpNot
}

// Unary reports whether op takes no value.
func (op ExpOp) Unary() bool {
	return op == OpIsNull || op == OpIsNotNull
}

// Param is a 1-based reference to a bound statement argument, written
// "$1" in statement text.
type Param int

func (p Param) String() string {
	return fmt.Sprintf("$%d", int(p))
}

// Exp is a node of the predicate tree. Logical nodes use Children, the
// others compare Column with Value.
type Exp struct {
	Op       ExpOp
	Column   string `mapstructure:"column" json:"column,omitempty" yaml:"column,omitempty"`
	Value    any    `mapstructure:"value" json:"value,omitempty" yaml:"value,omitempty"`
	Children []*Exp `mapstructure:"children" json:"children,omitempty" yaml:"children,omitempty"`
}

func (ex *Exp) String() string {
	var sb strings.Builder
	ex.write(&sb)
	return sb.String()
}

func (ex *Exp) write(sb *strings.Builder) {
	if ex == nil {
		sb.WriteString("<nil>")
		return
	}
	if ex.Op.Logical() {
		sb.WriteString(ex.Op.String())
		sb.WriteString("(")
		for i, c := range ex.Children {
			if i != 0 {
				sb.WriteString(", ")
			}
			c.write(sb)
		}
		sb.WriteString(")")
		return
	}
	sb.WriteString(ex.Column)
	sb.WriteString(" ")
	sb.WriteString(ex.Op.String())
	if !ex.Op.Unary() {
		fmt.Fprintf(sb, " %v", ex.Value)
	}
}

// Assignment is a single SET entry of an update.
type Assignment struct {
	Column string
	Value  any
}

type AggFunc int

const (
	AggNone AggFunc = iota
	AggCount
	AggSum
	AggAvg
	AggMin
	AggMax
)

func (f AggFunc) String() string {
	switch f {
	case AggCount:
		return "count"
	case AggSum:
		return "sum"
	case AggAvg:
		return "avg"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	}
	return "none"
}

func (f *AggFunc) UnmarshalText(b []byte) error {
	switch fold(string(b)) {
	case "count":
		*f = AggCount
	case "sum":
		*f = AggSum
	case "avg", "average":
		*f = AggAvg
	case "min":
		*f = AggMin
	case "max":
		*f = AggMax
	default:
		return fmt.Errorf("unknown aggregate function '%s'", b)
	}
	return nil
}

// Aggregate is a projected aggregate function. An empty Column with
// AggCount counts rows.
type Aggregate struct {
	Func   AggFunc
	Column string `mapstructure:"column" json:"column,omitempty" yaml:"column,omitempty"`
	Alias  string `mapstructure:"alias" json:"alias,omitempty" yaml:"alias,omitempty"`
}

// Name is the result column name of the aggregate.
func (a Aggregate) Name() string {
	if a.Alias != "" {
		return a.Alias
	}
	if a.Column == "" {
		return a.Func.String()
	}
	return a.Func.String() + "_" + strings.ReplaceAll(a.Column, ".", "_")
}

type OrderBy struct {
	Column string
	Desc   bool
}

// Statement is a single relational statement against one table.
type Statement struct {
	Type  StmtType
	Table string
	// Columns are the inserted columns of an insert or the projected
	// columns of a select, empty meaning every column.
	Columns    []string
	Values     []any
	Where      *Exp         `mapstructure:"where" json:"where,omitempty" yaml:"where,omitempty"`
	Set        []Assignment `mapstructure:"set" json:"set,omitempty" yaml:"set,omitempty"`
	Aggregates []Aggregate  `mapstructure:"aggregates" json:"aggregates,omitempty" yaml:"aggregates,omitempty"`
	OrderBy    []OrderBy    `mapstructure:"order_by" json:"order_by,omitempty" yaml:"order_by,omitempty"`
	Limit      int64
	Offset     int64
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
