package translate

import (
	"regexp"
	"strings"

	"github.com/qbloq/mongobridge/core/internal/convert"
	"github.com/qbloq/mongobridge/core/internal/mongoast"
	"github.com/qbloq/mongobridge/core/internal/qcode"
	"github.com/qbloq/mongobridge/core/internal/sdata"
)

// filter translates a predicate tree, nil matching every document.
func (c *context) filter(ex *qcode.Exp) (mongoast.Filter, error) {
	if ex == nil {
		return mongoast.EmptyFilter{}, nil
	}
	return c.exp(ex)
}

func (c *context) exp(ex *qcode.Exp) (mongoast.Filter, error) {
	switch ex.Op {
	case qcode.OpAnd, qcode.OpOr:
		if len(ex.Children) == 0 {
			return nil, c.errorf("", "%s needs at least one operand", ex.Op)
		}
		children, err := c.children(ex.Children)
		if err != nil {
			return nil, err
		}
		op := mongoast.OpAnd
		if ex.Op == qcode.OpOr {
			op = mongoast.OpOr
		}
		return mongoast.NewLogicalFilter(op, children...), nil

	case qcode.OpNot:
		if len(ex.Children) != 1 {
			return nil, c.errorf("", "not takes exactly one operand, got %d", len(ex.Children))
		}
		children, err := c.children(ex.Children)
		if err != nil {
			return nil, err
		}
		return mongoast.NewLogicalFilter(mongoast.OpNor, children...), nil
	}

	if ex.Column == "" {
		return nil, c.errorf("", "%s needs a column", ex.Op)
	}
	col, err := c.resolve(ex.Column)
	if err != nil {
		return nil, err
	}
	field := c.field(col)

	switch ex.Op {
	case qcode.OpIsNull:
		return mongoast.NewFieldOperationFilter(field, mongoast.OpEq, mongoast.NewLiteral(mongoast.Null())), nil

	case qcode.OpIsNotNull:
		return mongoast.NewFieldOperationFilter(field, mongoast.OpNe, mongoast.NewLiteral(mongoast.Null())), nil

	case qcode.OpLike, qcode.OpNotLike, qcode.OpILike, qcode.OpNotILike:
		return c.like(ex, col, field)

	case qcode.OpIn, qcode.OpNotIn:
		return c.in(ex, col, field)
	}

	op, ok := compareOps[ex.Op]
	if !ok {
		return nil, c.errorf(ex.Column, "unsupported operator [%s]", ex.Op)
	}
	v, err := c.bind(ex.Column, ex.Value)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, c.errorf(ex.Column, "comparison with null, use is_null or is_not_null")
	}
	n, err := convert.ToColumn(v, operand(col, v))
	if err != nil {
		return nil, err
	}
	return mongoast.NewFieldOperationFilter(field, op, n), nil
}

var compareOps = map[qcode.ExpOp]mongoast.FilterOperator{
	qcode.OpEquals:          mongoast.OpEq,
	qcode.OpNotEquals:       mongoast.OpNe,
	qcode.OpGreaterThan:     mongoast.OpGt,
	qcode.OpGreaterOrEquals: mongoast.OpGte,
	qcode.OpLesserThan:      mongoast.OpLt,
	qcode.OpLesserOrEquals:  mongoast.OpLte,
}

func (c *context) children(exps []*qcode.Exp) ([]mongoast.Filter, error) {
	out := make([]mongoast.Filter, 0, len(exps))
	for _, e := range exps {
		if e == nil {
			return nil, c.errorf("", "empty expression")
		}
		f, err := c.exp(e)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// operand is the column type a compared value converts with. A scalar
// compared with an array column matches its elements.
func operand(col *sdata.Column, v any) *sdata.Column {
	t := col.Type
	if !t.Plural() || t.IsBinary() || t.IsText() || isList(v) {
		return col
	}
	return &sdata.Column{
		Name:       col.Name,
		Field:      col.Field,
		Type:       *t.Elem,
		Embeddable: col.Embeddable,
	}
}

func (c *context) in(ex *qcode.Exp, col *sdata.Column, field string) (mongoast.Filter, error) {
	v, err := c.bind(ex.Column, ex.Value)
	if err != nil {
		return nil, err
	}
	if !isList(v) {
		return nil, c.errorf(ex.Column, "%s needs a list of values, got %T", ex.Op, v)
	}
	list := elements(v)
	elems := make([]mongoast.Node, 0, len(list))
	for _, e := range list {
		n, err := convert.ToColumn(e, operand(col, e))
		if err != nil {
			return nil, err
		}
		elems = append(elems, n)
	}
	op := mongoast.OpIn
	if ex.Op == qcode.OpNotIn {
		op = mongoast.OpNin
	}
	return mongoast.NewFieldOperationFilter(field, op, mongoast.NewArray(elems...)), nil
}

func (c *context) like(ex *qcode.Exp, col *sdata.Column, field string) (mongoast.Filter, error) {
	base := col.Type
	if base.Plural() && !base.IsText() {
		base = *base.Elem
	}
	if !base.IsText() && (base.Shape != sdata.ShapeBasic || base.Base != sdata.BaseString) {
		return nil, c.errorf(ex.Column, "%s needs a string column, [%s] is %s", ex.Op, col.Name, col.Type)
	}

	v, err := c.bind(ex.Column, ex.Value)
	if err != nil {
		return nil, err
	}
	pattern, ok := v.(string)
	if !ok {
		return nil, c.errorf(ex.Column, "%s needs a string pattern, got %T", ex.Op, v)
	}

	// s lets % and _ match line breaks
	opts := "s"
	if ex.Op == qcode.OpILike || ex.Op == qcode.OpNotILike {
		opts = "is"
	}
	var f mongoast.Filter = mongoast.NewRegexFilter(field, likeToRegex(pattern), opts)
	if ex.Op == qcode.OpNotLike || ex.Op == qcode.OpNotILike {
		f = mongoast.NewLogicalFilter(mongoast.OpNor, f)
	}
	return f, nil
}

// likeToRegex anchors a LIKE pattern: % is any run, _ any single
// character and a backslash escapes the next character. The end anchor
// is \z since $ also matches before a trailing newline.
func likeToRegex(pattern string) string {
	var sb strings.Builder
	sb.WriteString("^")
	var lit strings.Builder
	flush := func() {
		sb.WriteString(regexp.QuoteMeta(lit.String()))
		lit.Reset()
	}

	rs := []rune(pattern)
	for i := 0; i < len(rs); i++ {
		switch r := rs[i]; {
		case r == '\\' && i+1 < len(rs):
			i++
			lit.WriteRune(rs[i])
		case r == '%':
			flush()
			sb.WriteString(".*")
		case r == '_':
			flush()
			sb.WriteString(".")
		default:
			lit.WriteRune(r)
		}
	}
	flush()
	sb.WriteString(`\z`)
	return sb.String()
}
