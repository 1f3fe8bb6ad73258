package core

import (
	"github.com/qbloq/mongobridge/core/internal/merr"
	"github.com/qbloq/mongobridge/core/internal/qcode"
	"github.com/qbloq/mongobridge/core/internal/sdata"
	"github.com/qbloq/mongobridge/core/internal/translate"
)

// ErrFeatureNotSupported is matched, with errors.Is, by every error
// reporting something MongoDB cannot represent
var ErrFeatureNotSupported = merr.ErrFeatureNotSupported

type (
	// UnsupportedTypeError reports a value with no document mapping
	UnsupportedTypeError = merr.UnsupportedTypeError

	// MappingViolation reports an invalid catalog, returned by NewEngine
	MappingViolation = merr.MappingViolation

	// TranslationError reports a statement that has no MongoDB rendition
	TranslationError = merr.TranslationError
)

type (
	// Entity is a bound entity of the catalog
	Entity = sdata.Entity

	// Column is a bound column of an entity
	Column = sdata.Column

	// NameRenderer produces collection and field names. Each method must
	// call emit exactly once with a non-empty name.
	NameRenderer = translate.NameRenderer

	// MappedNames renders the names configured in the catalog
	MappedNames = translate.MappedNames
)

type (
	Statement  = qcode.Statement
	StmtType   = qcode.StmtType
	Exp        = qcode.Exp
	ExpOp      = qcode.ExpOp
	Param      = qcode.Param
	Assignment = qcode.Assignment
	Aggregate  = qcode.Aggregate
	AggFunc    = qcode.AggFunc
	OrderBy    = qcode.OrderBy
)

const (
	StmtInsert = qcode.STInsert
	StmtUpdate = qcode.STUpdate
	StmtDelete = qcode.STDelete
	StmtSelect = qcode.STSelect
)

const (
	OpAnd             = qcode.OpAnd
	OpOr              = qcode.OpOr
	OpNot             = qcode.OpNot
	OpEquals          = qcode.OpEquals
	OpNotEquals       = qcode.OpNotEquals
	OpGreaterOrEquals = qcode.OpGreaterOrEquals
	OpLesserOrEquals  = qcode.OpLesserOrEquals
	OpGreaterThan     = qcode.OpGreaterThan
	OpLesserThan      = qcode.OpLesserThan
	OpIn              = qcode.OpIn
	OpNotIn           = qcode.OpNotIn
	OpLike            = qcode.OpLike
	OpNotLike         = qcode.OpNotLike
	OpILike           = qcode.OpILike
	OpNotILike        = qcode.OpNotILike
	OpIsNull          = qcode.OpIsNull
	OpIsNotNull       = qcode.OpIsNotNull
)

const (
	AggCount = qcode.AggCount
	AggSum   = qcode.AggSum
	AggAvg   = qcode.AggAvg
	AggMin   = qcode.AggMin
	AggMax   = qcode.AggMax
)

// ParseStatement reads a statement written as YAML or JSON without
// going through an engine's cache
func ParseStatement(text []byte) (*Statement, error) {
	return qcode.ParseStatement(text)
}
