package sdata

import (
	"fmt"
	"strings"
)

// BaseType is the scalar kind of a basic attribute or of an array or
// collection element.
type BaseType int

const (
	BaseNone BaseType = iota
	BaseBoolean
	BaseChar
	BaseByte
	BaseShort
	BaseInteger
	BaseLong
	BaseDouble
	BaseDecimal
	BaseString
	BaseInstant

	// Known to the model but without a document mapping.
	BaseFloat
	BaseBigInteger
	BaseCalendar
	BaseDate
	BaseLocalDate
	BaseLocalTime
	BaseLocalDateTime
	BaseOffsetTime
)

var baseNames = map[BaseType]string{
	BaseNone:          "none",
	BaseBoolean:       "boolean",
	BaseChar:          "char",
	BaseByte:          "byte",
	BaseShort:         "short",
	BaseInteger:       "int",
	BaseLong:          "long",
	BaseDouble:        "double",
	BaseDecimal:       "BigDecimal",
	BaseString:        "String",
	BaseInstant:       "Instant",
	BaseFloat:         "float",
	BaseBigInteger:    "BigInteger",
	BaseCalendar:      "Calendar",
	BaseDate:          "Date",
	BaseLocalDate:     "LocalDate",
	BaseLocalTime:     "LocalTime",
	BaseLocalDateTime: "LocalDateTime",
	BaseOffsetTime:    "OffsetTime",
}

func (b BaseType) String() string {
	if s, ok := baseNames[b]; ok {
		return s
	}
	return fmt.Sprintf("BaseType(%d)", int(b))
}

// Supported reports whether values of this base type can be stored.
func (b BaseType) Supported() bool {
	return b > BaseNone && b < BaseFloat
}

// Shape tells how an attribute is laid out in the document.
type Shape int

const (
	ShapeBasic Shape = iota
	ShapeArray
	ShapeCollection
	ShapeEmbeddable
)

func (s Shape) String() string {
	switch s {
	case ShapeBasic:
		return "basic"
	case ShapeArray:
		return "array"
	case ShapeCollection:
		return "collection"
	case ShapeEmbeddable:
		return "embeddable"
	}
	return fmt.Sprintf("Shape(%d)", int(s))
}

// TypeDescriptor is the parsed form of a declared attribute type.
type TypeDescriptor struct {
	// Expr is the declared type expression, eg. "Collection<Integer>".
	Expr  string
	Shape Shape
	// Base is set for basic types only.
	Base BaseType
	// Boxed distinguishes Integer from int, Byte[] from byte[].
	Boxed bool
	// Elem is the element type of an array or collection.
	Elem *TypeDescriptor
	// Embeddable names the referenced embeddable for ShapeEmbeddable.
	Embeddable string
}

// Plural reports whether the type is an array or a collection.
func (t TypeDescriptor) Plural() bool {
	return t.Shape == ShapeArray || t.Shape == ShapeCollection
}

// Depth is the number of array or collection levels.
func (t TypeDescriptor) Depth() int {
	if !t.Plural() {
		return 0
	}
	return 1 + t.Elem.Depth()
}

// IsBinary is true for a primitive byte array, stored as one binary value.
func (t TypeDescriptor) IsBinary() bool {
	return t.Shape == ShapeArray && t.Elem.Shape == ShapeBasic &&
		t.Elem.Base == BaseByte && !t.Elem.Boxed
}

// IsText is true for a primitive char array, stored as one string.
func (t TypeDescriptor) IsText() bool {
	return t.Shape == ShapeArray && t.Elem.Shape == ShapeBasic &&
		t.Elem.Base == BaseChar && !t.Elem.Boxed
}

func (t TypeDescriptor) String() string {
	if t.Expr != "" {
		return t.Expr
	}
	switch t.Shape {
	case ShapeArray:
		return t.Elem.String() + "[]"
	case ShapeCollection:
		return "Collection<" + t.Elem.String() + ">"
	case ShapeEmbeddable:
		return t.Embeddable
	}
	if t.Boxed {
		if s, ok := boxedNames[t.Base]; ok {
			return s
		}
	}
	return t.Base.String()
}

type scalar struct {
	base  BaseType
	boxed bool
}

var scalarTypes = map[string]scalar{
	"boolean":       {BaseBoolean, false},
	"Boolean":       {BaseBoolean, true},
	"char":          {BaseChar, false},
	"Character":     {BaseChar, true},
	"byte":          {BaseByte, false},
	"Byte":          {BaseByte, true},
	"short":         {BaseShort, false},
	"Short":         {BaseShort, true},
	"int":           {BaseInteger, false},
	"Integer":       {BaseInteger, true},
	"long":          {BaseLong, false},
	"Long":          {BaseLong, true},
	"double":        {BaseDouble, false},
	"Double":        {BaseDouble, true},
	"BigDecimal":    {BaseDecimal, true},
	"String":        {BaseString, true},
	"Instant":       {BaseInstant, true},
	"float":         {BaseFloat, false},
	"Float":         {BaseFloat, true},
	"BigInteger":    {BaseBigInteger, true},
	"Calendar":      {BaseCalendar, true},
	"Date":          {BaseDate, true},
	"LocalDate":     {BaseLocalDate, true},
	"LocalTime":     {BaseLocalTime, true},
	"LocalDateTime": {BaseLocalDateTime, true},
	"OffsetTime":    {BaseOffsetTime, true},
}

var boxedNames = map[BaseType]string{
	BaseBoolean: "Boolean",
	BaseChar:    "Character",
	BaseByte:    "Byte",
	BaseShort:   "Short",
	BaseInteger: "Integer",
	BaseLong:    "Long",
	BaseDouble:  "Double",
	BaseFloat:   "Float",
}

var collectionTypes = map[string]struct{}{
	"Collection": {},
	"List":       {},
	"Set":        {},
	"SortedSet":  {},
	"Iterable":   {},
}

// ParseType parses a declared type expression. Identifiers that are not
// scalar types are taken as embeddable references and resolved by the
// catalog.
func ParseType(expr string) (TypeDescriptor, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return TypeDescriptor{}, fmt.Errorf("empty type expression")
	}
	t, err := parseType(s)
	if err != nil {
		return TypeDescriptor{}, fmt.Errorf("invalid type expression '%s': %w", expr, err)
	}
	t.Expr = s
	return t, nil
}

func parseType(s string) (TypeDescriptor, error) {
	s = strings.TrimSpace(s)

	if strings.HasSuffix(s, "[]") {
		elem, err := parseType(s[:len(s)-2])
		if err != nil {
			return TypeDescriptor{}, err
		}
		return TypeDescriptor{Shape: ShapeArray, Elem: &elem}, nil
	}

	if i := strings.IndexByte(s, '<'); i != -1 {
		if !strings.HasSuffix(s, ">") {
			return TypeDescriptor{}, fmt.Errorf("unbalanced '<'")
		}
		name := strings.TrimSpace(s[:i])
		if _, ok := collectionTypes[name]; !ok {
			return TypeDescriptor{}, fmt.Errorf("unknown collection type '%s'", name)
		}
		elem, err := parseType(s[i+1 : len(s)-1])
		if err != nil {
			return TypeDescriptor{}, err
		}
		// generic arguments are always boxed
		if elem.Shape == ShapeBasic {
			elem.Boxed = true
		}
		return TypeDescriptor{Shape: ShapeCollection, Elem: &elem}, nil
	}

	if !isIdent(s) {
		return TypeDescriptor{}, fmt.Errorf("unexpected '%s'", s)
	}
	if sc, ok := scalarTypes[s]; ok {
		return TypeDescriptor{Shape: ShapeBasic, Base: sc.base, Boxed: sc.boxed}, nil
	}
	return TypeDescriptor{Shape: ShapeEmbeddable, Embeddable: s}, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '.' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
