// Package mongoast is the immutable command tree sitting between the
// statement translator and the wire documents sent to MongoDB.
//
// Nodes are built bottom-up, constructors copy their inputs and no node
// exposes a way to change it afterwards, so a tree may be shared freely.
// Rendering walks the tree once and writes into a Writer; it makes no
// decisions of its own.
package mongoast

import (
	"fmt"
	"strings"

	"github.com/qbloq/mongobridge/core/internal/assert"
)

type NodeKind int

const (
	KindDocument NodeKind = iota + 1
	KindArray
	KindFieldPath
	KindLiteral
	KindEmptyFilter
	KindFieldOperationFilter
	KindRegexFilter
	KindLogicalFilter
	KindMatchStage
	KindProjectStage
	KindSortStage
	KindSkipStage
	KindLimitStage
	KindGroupStage
	KindDocumentsStage
	KindUnionWithStage
	KindUpdateStatement
	KindDeleteStatement
	KindInsertCommand
	KindUpdateCommand
	KindDeleteCommand
	KindFindCommand
	KindAggregateCommand
)

var kindNames = [...]string{
	KindDocument:             "Document",
	KindArray:                "Array",
	KindFieldPath:            "FieldPath",
	KindLiteral:              "Literal",
	KindEmptyFilter:          "EmptyFilter",
	KindFieldOperationFilter: "FieldOperationFilter",
	KindRegexFilter:          "RegexFilter",
	KindLogicalFilter:        "LogicalFilter",
	KindMatchStage:           "MatchStage",
	KindProjectStage:         "ProjectStage",
	KindSortStage:            "SortStage",
	KindSkipStage:            "SkipStage",
	KindLimitStage:           "LimitStage",
	KindGroupStage:           "GroupStage",
	KindDocumentsStage:       "DocumentsStage",
	KindUnionWithStage:       "UnionWithStage",
	KindUpdateStatement:      "UpdateStatement",
	KindDeleteStatement:      "DeleteStatement",
	KindInsertCommand:        "InsertCommand",
	KindUpdateCommand:        "UpdateCommand",
	KindDeleteCommand:        "DeleteCommand",
	KindFindCommand:          "FindCommand",
	KindAggregateCommand:     "AggregateCommand",
}

func (k NodeKind) String() string {
	if k > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// Node is implemented by this package only.
type Node interface {
	Kind() NodeKind
	Render(w Writer)
	node()
}

// Element is a named document entry.
type Element struct {
	Name  string
	Value Node
}

func Field(name string, v Node) Element {
	return Element{Name: name, Value: v}
}

// Document is an ordered set of named nodes.
type Document struct {
	elems []Element
}

func NewDocument(elems ...Element) *Document {
	return &Document{elems: append([]Element(nil), elems...)}
}

func (d *Document) Kind() NodeKind { return KindDocument }

func (d *Document) Len() int { return len(d.elems) }

// Elements returns a copy of the entries in insertion order.
func (d *Document) Elements() []Element {
	return append([]Element(nil), d.elems...)
}

// Lookup returns the first entry named name.
func (d *Document) Lookup(name string) (Node, bool) {
	for _, e := range d.elems {
		if e.Name == name {
			return e.Value, true
		}
	}
	return nil, false
}

func (d *Document) Render(w Writer) {
	w.WriteStartDocument()
	renderElements(w, d.elems)
	w.WriteEndDocument()
}

func (d *Document) node() {}

type Array struct {
	elems []Node
}

func NewArray(elems ...Node) *Array {
	return &Array{elems: append([]Node(nil), elems...)}
}

func (a *Array) Kind() NodeKind { return KindArray }

func (a *Array) Len() int { return len(a.elems) }

func (a *Array) Elements() []Node {
	return append([]Node(nil), a.elems...)
}

func (a *Array) Render(w Writer) {
	w.WriteStartArray()
	for _, e := range a.elems {
		e.Render(w)
	}
	w.WriteEndArray()
}

func (a *Array) node() {}

// FieldPath references a document field inside an expression, "$a.b".
type FieldPath struct {
	path string
}

func NewFieldPath(path string) *FieldPath {
	return &FieldPath{path: path}
}

func (f *FieldPath) Kind() NodeKind { return KindFieldPath }

func (f *FieldPath) Path() string { return f.path }

func (f *FieldPath) Render(w Writer) {
	w.WriteValue(String("$" + f.path))
}

func (f *FieldPath) node() {}

type Literal struct {
	v Value
}

func NewLiteral(v Value) *Literal {
	return &Literal{v: v}
}

func (l *Literal) Kind() NodeKind { return KindLiteral }

func (l *Literal) Value() Value { return l.v }

func (l *Literal) Render(w Writer) {
	w.WriteValue(l.v)
}

func (l *Literal) node() {}

func renderElements(w Writer, elems []Element) {
	for _, e := range elems {
		w.WriteName(e.Name)
		e.Value.Render(w)
	}
}

// NestDotted builds a document where dotted names become sub-documents,
// {"a.b": 1, "a.c": 2} turning into {a: {b: 1, c: 2}}. Top-level names
// keep the order of their first appearance.
func NestDotted(elems ...Element) *Document {
	type group struct {
		name     string
		value    Node
		children []Element
	}
	var groups []*group
	index := make(map[string]*group)

	for _, e := range elems {
		head, rest, dotted := strings.Cut(e.Name, ".")
		g, ok := index[head]
		if !ok {
			g = &group{name: head}
			index[head] = g
			groups = append(groups, g)
		}
		if dotted {
			assert.True(g.value == nil, "field %q is both a value and a document", head)
			g.children = append(g.children, Element{Name: rest, Value: e.Value})
		} else {
			assert.True(g.value == nil && g.children == nil, "field %q written twice", head)
			g.value = e.Value
		}
	}

	out := make([]Element, 0, len(groups))
	for _, g := range groups {
		if g.value != nil {
			out = append(out, Element{Name: g.name, Value: g.value})
		} else {
			out = append(out, Element{Name: g.name, Value: NestDotted(g.children...)})
		}
	}
	return &Document{elems: out}
}
