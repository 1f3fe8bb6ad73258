package serv

import (
	"github.com/gobuffalo/flect"

	"github.com/qbloq/mongobridge/core"
)

// pluralNames names the collection of an entity mapped without an
// explicit collection after its pluralized snake case name, OrderItem
// goes to order_items. Field names are left as mapped.
type pluralNames struct{}

func (pluralNames) RenderCollectionName(e *core.Entity, emit func(string)) {
	if e.Collection != e.Name {
		emit(e.Collection)
		return
	}
	emit(flect.Pluralize(flect.Underscore(e.Name)))
}

func (pluralNames) RenderFieldName(_ *core.Entity, c *core.Column, emit func(string)) {
	emit(c.Field)
}
