package mongodriver

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/qbloq/mongobridge/core"
)

// SQL type codes, as defined by JDBC's java.sql.Types.
const (
	TypeBit                   = -7
	TypeTinyInt               = -6
	TypeSmallInt              = 5
	TypeInteger               = 4
	TypeBigInt                = -5
	TypeFloat                 = 6
	TypeReal                  = 7
	TypeDouble                = 8
	TypeNumeric               = 2
	TypeDecimal               = 3
	TypeChar                  = 1
	TypeVarChar               = 12
	TypeLongVarChar           = -1
	TypeDate                  = 91
	TypeTime                  = 92
	TypeTimestamp             = 93
	TypeBinary                = -2
	TypeVarBinary             = -3
	TypeLongVarBinary         = -4
	TypeNull                  = 0
	TypeOther                 = 1111
	TypeJavaObject            = 2000
	TypeDistinct              = 2001
	TypeStruct                = 2002
	TypeArray                 = 2003
	TypeBlob                  = 2004
	TypeClob                  = 2005
	TypeRef                   = 2006
	TypeDatalink              = 70
	TypeBoolean               = 16
	TypeRowID                 = -8
	TypeNChar                 = -15
	TypeNVarChar              = -9
	TypeLongNVarChar          = -16
	TypeNClob                 = 2011
	TypeSQLXML                = 2009
	TypeRefCursor             = 2012
	TypeTimeWithTimezone      = 2013
	TypeTimestampWithTimezone = 2014
)

// sqlTypes maps lower-case SQL type names to their codes.
var sqlTypes = map[string]int{
	"bit":                     TypeBit,
	"tinyint":                 TypeTinyInt,
	"smallint":                TypeSmallInt,
	"integer":                 TypeInteger,
	"bigint":                  TypeBigInt,
	"float":                   TypeFloat,
	"real":                    TypeReal,
	"double":                  TypeDouble,
	"numeric":                 TypeNumeric,
	"decimal":                 TypeDecimal,
	"char":                    TypeChar,
	"varchar":                 TypeVarChar,
	"longvarchar":             TypeLongVarChar,
	"date":                    TypeDate,
	"time":                    TypeTime,
	"timestamp":               TypeTimestamp,
	"binary":                  TypeBinary,
	"varbinary":               TypeVarBinary,
	"longvarbinary":           TypeLongVarBinary,
	"null":                    TypeNull,
	"other":                   TypeOther,
	"java_object":             TypeJavaObject,
	"distinct":                TypeDistinct,
	"struct":                  TypeStruct,
	"array":                   TypeArray,
	"blob":                    TypeBlob,
	"clob":                    TypeClob,
	"ref":                     TypeRef,
	"datalink":                TypeDatalink,
	"boolean":                 TypeBoolean,
	"rowid":                   TypeRowID,
	"nchar":                   TypeNChar,
	"nvarchar":                TypeNVarChar,
	"longnvarchar":            TypeLongNVarChar,
	"nclob":                   TypeNClob,
	"sqlxml":                  TypeSQLXML,
	"ref_cursor":              TypeRefCursor,
	"time_with_timezone":      TypeTimeWithTimezone,
	"timestamp_with_timezone": TypeTimestampWithTimezone,
}

// Array is an array argument tagged with the SQL type of its elements.
// Pass it as a statement argument to bind an array column.
type Array struct {
	typeName string
	typeCode int
	elements []any
}

// NewArray builds an array whose elements are declared as typeName, one
// of the JDBC type names such as INTEGER or VARCHAR, matched ignoring
// case.
func NewArray(typeName string, elements []any) (*Array, error) {
	code, ok := sqlTypes[strings.ToLower(typeName)]
	if !ok {
		return nil, fmt.Errorf("mongodriver: unknown SQL type name [%s]", typeName)
	}
	return &Array{
		typeName: strings.ToUpper(typeName),
		typeCode: code,
		elements: append([]any(nil), elements...),
	}, nil
}

// ArrayOf builds an array from a Go slice, inferring the element type.
// Element types with no array mapping fail with an error matching
// core.ErrFeatureNotSupported.
func ArrayOf(v any) (*Array, error) {
	a, err := core.ArrayOf(v)
	if err != nil {
		return nil, errors.Wrap(err, "mongodriver: array")
	}
	return NewArray(a.TypeName, a.Elements)
}

// BaseTypeName is the SQL type name of the elements.
func (a *Array) BaseTypeName() string {
	return a.typeName
}

// BaseType is the SQL type code of the elements.
func (a *Array) BaseType() int {
	return a.typeCode
}

// Elements returns a copy of the elements.
func (a *Array) Elements() []any {
	return append([]any(nil), a.elements...)
}

func (a *Array) String() string {
	return fmt.Sprintf("%s%v", a.typeName, a.elements)
}
