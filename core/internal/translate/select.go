package translate

import (
	"strings"

	"github.com/qbloq/mongobridge/core/internal/mongoast"
	"github.com/qbloq/mongobridge/core/internal/qcode"
	"github.com/qbloq/mongobridge/core/internal/sdata"
)

func (c *context) selectStmt() (mongoast.Command, []Output, error) {
	st := c.st
	if st.Limit < 0 || st.Offset < 0 {
		return nil, nil, c.errorf("", "limit and offset must not be negative")
	}
	if len(st.Aggregates) != 0 {
		return c.aggregate()
	}

	names := st.Columns
	if len(names) == 0 {
		for _, col := range c.entity.Columns() {
			names = append(names, col.Name)
		}
	}

	var outs []Output
	var proj []mongoast.Projection
	idSelected := false
	seen := make(map[string]struct{}, len(names))

	for _, name := range names {
		col, err := c.resolve(name)
		if err != nil {
			return nil, nil, err
		}
		if _, ok := seen[col.Name]; ok {
			return nil, nil, c.errorf(name, "column [%s] selected twice", col.Name)
		}
		seen[col.Name] = struct{}{}

		field := c.field(col)
		for _, o := range outs {
			if overlaps(o.Field, field) {
				return nil, nil, c.errorf(name, "column [%s] overlaps column [%s]", col.Name, o.Name)
			}
		}
		if col.ID {
			idSelected = true
		}
		outs = append(outs, Output{Name: col.Name, Field: field, Column: col})
		proj = append(proj, mongoast.Include(field))
	}
	if !idSelected {
		proj = append([]mongoast.Projection{mongoast.Exclude(sdata.IDField)}, proj...)
	}

	sort, err := c.sort(nil)
	if err != nil {
		return nil, nil, err
	}
	f, err := c.filter(st.Where)
	if err != nil {
		return nil, nil, err
	}

	if c.tr.useFind {
		return mongoast.NewFindCommand(c.collection(), f, mongoast.FindOptions{
			Projection: proj,
			Sort:       sort,
			Skip:       st.Offset,
			Limit:      st.Limit,
		}), outs, nil
	}

	var stages []mongoast.Stage
	if st.Where != nil {
		stages = append(stages, mongoast.NewMatchStage(f))
	}
	if len(sort) != 0 {
		stages = append(stages, mongoast.NewSortStage(sort...))
	}
	stages = append(stages, c.window()...)
	stages = append(stages, mongoast.NewProjectStage(proj...))
	return mongoast.NewAggregateCommand(c.collection(), stages...), outs, nil
}

// window returns the $skip and $limit stages.
func (c *context) window() []mongoast.Stage {
	var stages []mongoast.Stage
	if c.st.Offset > 0 {
		stages = append(stages, mongoast.NewSkipStage(c.st.Offset))
	}
	if c.st.Limit > 0 {
		stages = append(stages, mongoast.NewLimitStage(c.st.Limit))
	}
	return stages
}

// sort resolves ORDER BY entries against the entity, or against the
// given result names when sorting grouped output.
func (c *context) sort(results map[string]struct{}) ([]mongoast.SortField, error) {
	var out []mongoast.SortField
	for _, ob := range c.st.OrderBy {
		if results != nil {
			if _, ok := results[ob.Column]; !ok {
				return nil, c.errorf(ob.Column, "order by [%s] is not an aggregate result", ob.Column)
			}
			out = append(out, mongoast.SortField{Field: ob.Column, Desc: ob.Desc})
			continue
		}
		col, err := c.resolve(ob.Column)
		if err != nil {
			return nil, err
		}
		if col.Type.Shape == sdata.ShapeEmbeddable {
			return nil, c.errorf(ob.Column, "cannot order by embeddable [%s]", col.Name)
		}
		out = append(out, mongoast.SortField{Field: c.field(col), Desc: ob.Desc})
	}
	return out, nil
}

// aggregate renders aggregate functions as a single $group over every
// matching document.
func (c *context) aggregate() (mongoast.Command, []Output, error) {
	st := c.st
	if len(st.Columns) != 0 {
		return nil, nil, c.errorf("", "columns cannot be selected together with aggregates")
	}

	var outs []Output
	var accs []mongoast.Accumulator
	proj := []mongoast.Projection{mongoast.Exclude(sdata.IDField)}
	empty := []mongoast.Element{mongoast.Field(sdata.IDField, mongoast.NewLiteral(mongoast.Int32(1)))}
	results := make(map[string]struct{}, len(st.Aggregates))

	for _, a := range st.Aggregates {
		name := a.Name()
		if name == sdata.IDField || strings.HasPrefix(name, "$") || strings.Contains(name, ".") {
			return nil, nil, c.errorf(name, "aggregate cannot be named [%s]", name)
		}
		if _, ok := results[name]; ok {
			return nil, nil, c.errorf(name, "aggregate [%s] defined twice", name)
		}
		results[name] = struct{}{}

		acc, err := c.accumulator(a, name)
		if err != nil {
			return nil, nil, err
		}
		accs = append(accs, acc)
		empty = append(empty, mongoast.Field(name, emptyValue(a)))
		proj = append(proj, mongoast.Include(name))
		outs = append(outs, Output{Name: name, Field: name})
	}

	sort, err := c.sort(results)
	if err != nil {
		return nil, nil, err
	}

	var stages []mongoast.Stage
	if st.Where != nil {
		f, err := c.filter(st.Where)
		if err != nil {
			return nil, nil, err
		}
		stages = append(stages, mongoast.NewMatchStage(f))
	}
	// $group emits nothing for an empty match. The unioned row carries
	// the empty results and an _id of 1, which sorts after the null _id
	// of a real group.
	stages = append(stages,
		mongoast.NewGroupStage(nil, accs...),
		mongoast.NewUnionWithStage(mongoast.NewDocumentsStage(mongoast.NewDocument(empty...))),
		mongoast.NewSortStage(mongoast.SortField{Field: sdata.IDField}),
		mongoast.NewLimitStage(1),
		mongoast.NewProjectStage(proj...))
	if len(sort) != 0 {
		stages = append(stages, mongoast.NewSortStage(sort...))
	}
	stages = append(stages, c.window()...)
	return mongoast.NewAggregateCommand(c.collection(), stages...), outs, nil
}

// emptyValue is the result of an aggregate over no rows.
func emptyValue(a qcode.Aggregate) mongoast.Node {
	if a.Func == qcode.AggCount {
		return mongoast.NewLiteral(mongoast.Int32(0))
	}
	return mongoast.NewLiteral(mongoast.Null())
}

// overlaps reports whether one field path equals or contains the other,
// which $project rejects as a path collision.
func overlaps(a, b string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	return a == b || strings.HasPrefix(b, a+".")
}

func (c *context) accumulator(a qcode.Aggregate, name string) (mongoast.Accumulator, error) {
	if a.Func == qcode.AggCount && a.Column == "" {
		return mongoast.Accumulator{Field: name, Op: mongoast.AccSum, Expr: mongoast.NewLiteral(mongoast.Int32(1))}, nil
	}
	if a.Column == "" {
		return mongoast.Accumulator{}, c.errorf(name, "%s needs a column", a.Func)
	}
	col, err := c.resolve(a.Column)
	if err != nil {
		return mongoast.Accumulator{}, err
	}
	ref := mongoast.NewFieldPath(c.field(col))

	switch a.Func {
	case qcode.AggCount:
		// {$cond: [{$eq: [{$ifNull: [ref, null]}, null]}, 0, 1]}
		null := mongoast.NewLiteral(mongoast.Null())
		isNull := mongoast.NewDocument(mongoast.Field("$eq", mongoast.NewArray(
			mongoast.NewDocument(mongoast.Field("$ifNull", mongoast.NewArray(ref, null))),
			null,
		)))
		return mongoast.Accumulator{Field: name, Op: mongoast.AccSum, Expr: mongoast.NewDocument(
			mongoast.Field("$cond", mongoast.NewArray(
				isNull,
				mongoast.NewLiteral(mongoast.Int32(0)),
				mongoast.NewLiteral(mongoast.Int32(1)),
			)),
		)}, nil

	case qcode.AggSum, qcode.AggAvg:
		if col.Type.Shape != sdata.ShapeBasic || !numeric(col.Type.Base) {
			return mongoast.Accumulator{}, c.errorf(a.Column, "%s needs a numeric column, [%s] is %s", a.Func, col.Name, col.Type)
		}
		op := mongoast.AccSum
		if a.Func == qcode.AggAvg {
			op = mongoast.AccAvg
		}
		return mongoast.Accumulator{Field: name, Op: op, Expr: ref}, nil

	case qcode.AggMin, qcode.AggMax:
		if col.Type.Shape != sdata.ShapeBasic {
			return mongoast.Accumulator{}, c.errorf(a.Column, "%s needs a basic column, [%s] is %s", a.Func, col.Name, col.Type)
		}
		op := mongoast.AccMin
		if a.Func == qcode.AggMax {
			op = mongoast.AccMax
		}
		return mongoast.Accumulator{Field: name, Op: op, Expr: ref}, nil
	}
	return mongoast.Accumulator{}, c.errorf(a.Column, "unsupported aggregate function [%s]", a.Func)
}

func numeric(b sdata.BaseType) bool {
	switch b {
	case sdata.BaseByte, sdata.BaseShort, sdata.BaseInteger, sdata.BaseLong,
		sdata.BaseDouble, sdata.BaseDecimal:
		return true
	}
	return false
}
