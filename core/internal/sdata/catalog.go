// Package sdata binds entity and embeddable definitions into the read-only
// column catalog consulted by the translator.
package sdata

import (
	"fmt"
	"strings"

	"github.com/qbloq/mongobridge/core/internal/merr"
)

// IDField is the document field holding the entity identifier.
const IDField = "_id"

// Configuration for a persistent attribute
type AttributeDef struct {
	Name string
	// Document field name, defaults to the attribute name
	Field string `mapstructure:"field" json:"field,omitempty" yaml:"field,omitempty"`
	Type  string `jsonschema:"example=Integer,example=int[],example=Collection<String>"`
}

// Configuration for a mapped entity
type EntityDef struct {
	Name string
	// Target collection, defaults to the entity name
	Collection string       `mapstructure:"collection" json:"collection,omitempty" yaml:"collection,omitempty"`
	ID         AttributeDef `mapstructure:"id" json:"id" yaml:"id"`
	Attributes []AttributeDef
}

// Configuration for an embeddable value type. An aggregate embeddable is
// stored as a nested document, otherwise its attributes are flattened
// into the owner.
type EmbeddableDef struct {
	Name       string
	Aggregate  bool
	Attributes []AttributeDef
}

type Options struct {
	// Allow aggregate embeddables as array and collection elements
	StructuredArrayElements bool
}

// Column is a bound, resolvable attribute.
type Column struct {
	// Name is the relational column name, dotted for embedded attributes.
	Name string
	// Field is the document field path.
	Field string
	Type  TypeDescriptor
	// Embeddable is set when the column, or its elements, are aggregate
	// embeddables.
	Embeddable *Embeddable
	ID         bool
}

// Embeddable is a bound aggregate embeddable.
type Embeddable struct {
	Name string
	// Attributes hold field names relative to the embeddable.
	Attributes []*Column
}

type Entity struct {
	Name       string
	Collection string
	ID         *Column

	columns []*Column
	paths   map[string]*Column
}

// Columns returns the insertable columns, identifier first, in
// declaration order.
func (e *Entity) Columns() []*Column {
	return append([]*Column(nil), e.columns...)
}

// Resolve finds a column by name. Attributes inside aggregate embeddables
// resolve through their dotted path.
func (e *Entity) Resolve(name string) (*Column, bool) {
	if name == IDField {
		return e.ID, true
	}
	c, ok := e.paths[name]
	return c, ok
}

type Catalog struct {
	entities map[string]*Entity
	names    []string
}

// Entity looks an entity up by its name or its collection.
func (c *Catalog) Entity(name string) (*Entity, bool) {
	e, ok := c.entities[name]
	return e, ok
}

// EntityNames returns entity names in definition order.
func (c *Catalog) EntityNames() []string {
	return append([]string(nil), c.names...)
}

type binder struct {
	opts  Options
	defs  map[string]EmbeddableDef
	bound map[string]*Embeddable
	stack []string
}

// NewCatalog validates and binds the definitions. Any violation aborts
// the whole catalog.
func NewCatalog(entities []EntityDef, embeddables []EmbeddableDef, opts Options) (*Catalog, error) {
	b := &binder{
		opts:  opts,
		defs:  make(map[string]EmbeddableDef, len(embeddables)),
		bound: make(map[string]*Embeddable),
	}
	for _, ed := range embeddables {
		if ed.Name == "" {
			return nil, &merr.MappingViolation{Reason: "embeddable name is required"}
		}
		if _, ok := scalarTypes[ed.Name]; ok {
			return nil, &merr.MappingViolation{Entity: ed.Name, Reason: "embeddable name shadows a basic type"}
		}
		if _, ok := b.defs[ed.Name]; ok {
			return nil, &merr.MappingViolation{Entity: ed.Name, Reason: "duplicate embeddable"}
		}
		b.defs[ed.Name] = ed
	}

	cat := &Catalog{entities: make(map[string]*Entity, len(entities)*2)}
	for _, ed := range entities {
		e, err := b.bindEntity(ed)
		if err != nil {
			return nil, err
		}
		for _, key := range []string{e.Name, e.Collection} {
			if other, ok := cat.entities[key]; ok && other != e {
				return nil, &merr.MappingViolation{
					Entity: e.Name,
					Reason: fmt.Sprintf("name [%s] already used by entity [%s]", key, other.Name),
				}
			}
			cat.entities[key] = e
		}
		cat.names = append(cat.names, e.Name)
	}
	return cat, nil
}

func (b *binder) bindEntity(ed EntityDef) (*Entity, error) {
	if ed.Name == "" {
		return nil, &merr.MappingViolation{Reason: "entity name is required"}
	}
	e := &Entity{
		Name:       ed.Name,
		Collection: ed.Collection,
		paths:      make(map[string]*Column),
	}
	if e.Collection == "" {
		e.Collection = ed.Name
	}

	if ed.ID.Name == "" || ed.ID.Type == "" {
		return nil, &merr.MappingViolation{Entity: e.Name, Reason: "identifier attribute is required"}
	}
	idt, err := ParseType(ed.ID.Type)
	if err != nil {
		return nil, &merr.MappingViolation{Entity: e.Name, Path: ed.ID.Name, Reason: err.Error()}
	}
	if idt.Shape != ShapeBasic {
		return nil, &merr.MappingViolation{
			Entity: e.Name,
			Path:   ed.ID.Name,
			Reason: fmt.Sprintf("identifier type [%s] must be basic", idt),
		}
	}
	if !idt.Base.Supported() {
		return nil, merr.NotSupported(e.Name, ed.ID.Name, idt.String())
	}
	e.ID = &Column{Name: ed.ID.Name, Field: IDField, Type: idt, ID: true}
	e.columns = append(e.columns, e.ID)
	e.paths[ed.ID.Name] = e.ID

	fields := map[string]string{IDField: ed.ID.Name}
	for _, ad := range ed.Attributes {
		cols, err := b.bindAttribute(e.Name, "", "", ad)
		if err != nil {
			return nil, err
		}
		for _, c := range cols {
			if prev, ok := fields[c.Field]; ok {
				return nil, &merr.MappingViolation{
					Entity: e.Name,
					Path:   c.Name,
					Reason: fmt.Sprintf("field [%s] already mapped by [%s]", c.Field, prev),
				}
			}
			if _, ok := e.paths[c.Name]; ok {
				return nil, &merr.MappingViolation{Entity: e.Name, Path: c.Name, Reason: "duplicate attribute"}
			}
			if prefix, ok := fieldPrefixOf(fields, c.Field); ok {
				return nil, &merr.MappingViolation{
					Entity: e.Name,
					Path:   c.Name,
					Reason: fmt.Sprintf("field [%s] overlaps field [%s]", c.Field, prefix),
				}
			}
			fields[c.Field] = c.Name
			e.columns = append(e.columns, c)
			e.addPaths(c)
		}
	}
	return e, nil
}

// addPaths registers c and, for aggregate embeddables, every attribute
// reachable through it.
func (e *Entity) addPaths(c *Column) {
	e.paths[c.Name] = c
	if c.Embeddable == nil || c.Type.Shape != ShapeEmbeddable {
		return
	}
	for _, a := range c.Embeddable.Attributes {
		e.addPaths(&Column{
			Name:       c.Name + "." + a.Name,
			Field:      c.Field + "." + a.Field,
			Type:       a.Type,
			Embeddable: a.Embeddable,
		})
	}
}

// bindAttribute returns the columns an attribute contributes: one, or the
// leaves of a flattened embeddable.
func (b *binder) bindAttribute(entity, namePrefix, fieldPrefix string, ad AttributeDef) ([]*Column, error) {
	path := namePrefix + ad.Name
	if ad.Name == "" {
		return nil, &merr.MappingViolation{Entity: entity, Path: strings.TrimSuffix(namePrefix, "."), Reason: "attribute name is required"}
	}
	if strings.ContainsAny(ad.Name, ".$") {
		return nil, &merr.MappingViolation{Entity: entity, Path: path, Reason: "attribute name must not contain '.' or '$'"}
	}
	field := ad.Field
	if field == "" {
		field = ad.Name
	}
	if field == IDField || strings.ContainsAny(field, ".$") {
		return nil, &merr.MappingViolation{Entity: entity, Path: path, Reason: fmt.Sprintf("invalid field name [%s]", field)}
	}
	field = fieldPrefix + field

	t, err := ParseType(ad.Type)
	if err != nil {
		return nil, &merr.MappingViolation{Entity: entity, Path: path, Reason: err.Error()}
	}

	switch t.Shape {
	case ShapeBasic:
		if !t.Base.Supported() {
			return nil, merr.NotSupported(entity, path, t.String())
		}
		return []*Column{{Name: path, Field: field, Type: t}}, nil

	case ShapeArray, ShapeCollection:
		emb, err := b.bindPlural(entity, path, t)
		if err != nil {
			return nil, err
		}
		return []*Column{{Name: path, Field: field, Type: t, Embeddable: emb}}, nil
	}

	def, ok := b.defs[t.Embeddable]
	if !ok {
		return nil, &merr.MappingViolation{
			Entity: entity,
			Path:   path,
			Reason: fmt.Sprintf("unknown type [%s]", t.Embeddable),
		}
	}
	if def.Aggregate {
		emb, err := b.bindEmbeddable(entity, path, def)
		if err != nil {
			return nil, err
		}
		return []*Column{{Name: path, Field: field, Type: t, Embeddable: emb}}, nil
	}

	if err := b.enter(entity, path, def.Name); err != nil {
		return nil, err
	}
	defer b.leave()

	var cols []*Column
	for _, a := range def.Attributes {
		c, err := b.bindAttribute(entity, path+".", field+".", a)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c...)
	}
	if len(cols) == 0 {
		return nil, &merr.MappingViolation{Entity: entity, Path: path, Reason: fmt.Sprintf("embeddable [%s] has no attributes", def.Name)}
	}
	return cols, nil
}

func (b *binder) bindPlural(entity, path string, t TypeDescriptor) (*Embeddable, error) {
	elem := t.Elem
	switch elem.Shape {
	case ShapeArray, ShapeCollection:
		return nil, &merr.MappingViolation{
			Entity: entity,
			Path:   path,
			Reason: fmt.Sprintf("type [%s] nests arrays or collections", t),
			Err:    merr.ErrFeatureNotSupported,
		}

	case ShapeBasic:
		if !elem.Base.Supported() {
			return nil, merr.NotSupported(entity, path, t.String())
		}
		return nil, nil
	}

	def, ok := b.defs[elem.Embeddable]
	if !ok {
		return nil, &merr.MappingViolation{
			Entity: entity,
			Path:   path,
			Reason: fmt.Sprintf("unknown type [%s]", elem.Embeddable),
		}
	}
	if !def.Aggregate {
		return nil, &merr.MappingViolation{
			Entity: entity,
			Path:   path,
			Reason: fmt.Sprintf("flattened embeddable [%s] cannot be an array or collection element", def.Name),
			Err:    merr.ErrFeatureNotSupported,
		}
	}
	if !b.opts.StructuredArrayElements {
		return nil, &merr.MappingViolation{
			Entity: entity,
			Path:   path,
			Reason: fmt.Sprintf("structured array elements are disabled, [%s] cannot hold embeddable [%s]", t, def.Name),
			Err:    merr.ErrFeatureNotSupported,
		}
	}
	emb, err := b.bindEmbeddable(entity, path, def)
	if err != nil {
		return nil, err
	}
	if p, ok := pluralAttribute(emb); ok {
		return nil, &merr.MappingViolation{
			Entity: entity,
			Path:   path + "." + p,
			Reason: fmt.Sprintf("type [%s] nests arrays or collections", t),
			Err:    merr.ErrFeatureNotSupported,
		}
	}
	return emb, nil
}

func (b *binder) bindEmbeddable(entity, path string, def EmbeddableDef) (*Embeddable, error) {
	if emb, ok := b.bound[def.Name]; ok {
		return emb, nil
	}
	if err := b.enter(entity, path, def.Name); err != nil {
		return nil, err
	}
	defer b.leave()

	emb := &Embeddable{Name: def.Name}
	seen := make(map[string]struct{}, len(def.Attributes))
	for _, a := range def.Attributes {
		cols, err := b.bindAttribute(entity, path+".", "", a)
		if err != nil {
			return nil, err
		}
		for _, c := range cols {
			if _, ok := seen[c.Field]; ok {
				return nil, &merr.MappingViolation{Entity: entity, Path: c.Name, Reason: fmt.Sprintf("field [%s] mapped twice", c.Field)}
			}
			seen[c.Field] = struct{}{}
			// names inside the embeddable are relative
			c.Name = strings.TrimPrefix(c.Name, path+".")
			emb.Attributes = append(emb.Attributes, c)
		}
	}
	if len(emb.Attributes) == 0 {
		return nil, &merr.MappingViolation{Entity: entity, Path: path, Reason: fmt.Sprintf("embeddable [%s] has no attributes", def.Name)}
	}
	b.bound[def.Name] = emb
	return emb, nil
}

func (b *binder) enter(entity, path, name string) error {
	for _, s := range b.stack {
		if s == name {
			return &merr.MappingViolation{
				Entity: entity,
				Path:   path,
				Reason: fmt.Sprintf("embeddable [%s] contains itself", name),
			}
		}
	}
	b.stack = append(b.stack, name)
	return nil
}

func (b *binder) leave() {
	b.stack = b.stack[:len(b.stack)-1]
}

func pluralAttribute(emb *Embeddable) (string, bool) {
	for _, a := range emb.Attributes {
		if a.Type.Plural() {
			return a.Name, true
		}
		if a.Embeddable != nil {
			if p, ok := pluralAttribute(a.Embeddable); ok {
				return a.Name + "." + p, true
			}
		}
	}
	return "", false
}

// fieldPrefixOf reports a mapped field that is a path prefix of field, or
// has field as its prefix.
func fieldPrefixOf(fields map[string]string, field string) (string, bool) {
	for f := range fields {
		if strings.HasPrefix(field, f+".") || strings.HasPrefix(f, field+".") {
			return f, true
		}
	}
	return "", false
}
