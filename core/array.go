package core

import (
	"github.com/qbloq/mongobridge/core/internal/convert"
	"github.com/qbloq/mongobridge/core/internal/sdata"
)

// ArrayValue is a plural value with the SQL type name its elements are
// stored as, such as INTEGER, NUMERIC or VARCHAR.
type ArrayValue struct {
	Elements []any
	TypeName string
}

// ArrayOf flattens a slice and infers its element type from the Go types
// of its elements. Unsupported or mixed element types are reported as
// *UnsupportedTypeError.
func ArrayOf(v any) (ArrayValue, error) {
	a, err := convert.NewArrayWithBaseType(v, nil)
	if err != nil {
		return ArrayValue{}, err
	}
	return ArrayValue{Elements: a.Elements, TypeName: a.TypeName}, nil
}

// ArrayOfType flattens a slice declared with the type expression typ,
// for example Integer[] or Collection<String>.
func ArrayOfType(v any, typ string) (ArrayValue, error) {
	t, err := sdata.ParseType(typ)
	if err != nil {
		return ArrayValue{}, err
	}
	a, err := convert.NewArrayWithBaseType(v, &t)
	if err != nil {
		return ArrayValue{}, err
	}
	return ArrayValue{Elements: a.Elements, TypeName: a.TypeName}, nil
}
