package mongoast

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/qbloq/mongobridge/core/internal/assert"
)

// Writer is the document sink nodes render into.
type Writer interface {
	WriteStartDocument()
	WriteEndDocument()
	WriteStartArray()
	WriteEndArray()
	WriteName(name string)
	WriteValue(v Value)
}

type frame struct {
	doc     bson.D
	arr     bson.A
	isArray bool
	name    string
	named   bool
}

// DocumentWriter collects the rendered stream into a bson.D. Misuse of the
// stream is a rendering bug and panics.
type DocumentWriter struct {
	stack []*frame
	root  bson.D
	done  bool
}

func NewDocumentWriter() *DocumentWriter {
	return &DocumentWriter{}
}

func (w *DocumentWriter) WriteStartDocument() {
	if len(w.stack) == 0 {
		assert.True(!w.done, "document already complete")
	} else {
		w.checkSlot("document")
	}
	w.stack = append(w.stack, &frame{doc: bson.D{}})
}

func (w *DocumentWriter) WriteEndDocument() {
	f := w.pop("document")
	assert.True(!f.isArray, "end of document inside an array")
	assert.True(!f.named, "name %q written without a value", f.name)
	if len(w.stack) == 0 {
		w.root = f.doc
		w.done = true
		return
	}
	w.add(f.doc)
}

func (w *DocumentWriter) WriteStartArray() {
	assert.True(len(w.stack) != 0, "array outside of a document")
	w.checkSlot("array")
	w.stack = append(w.stack, &frame{arr: bson.A{}, isArray: true})
}

func (w *DocumentWriter) WriteEndArray() {
	f := w.pop("array")
	assert.True(f.isArray, "end of array inside a document")
	w.add(f.arr)
}

func (w *DocumentWriter) WriteName(name string) {
	assert.True(len(w.stack) != 0, "name %q outside of a document", name)
	f := w.top()
	assert.True(!f.isArray, "name %q inside an array", name)
	assert.True(!f.named, "name %q follows name %q", name, f.name)
	f.name = name
	f.named = true
}

func (w *DocumentWriter) WriteValue(v Value) {
	assert.True(len(w.stack) != 0, "value outside of a document")
	w.checkSlot("value")
	w.add(v.BSON())
}

// Document returns the completed root document.
func (w *DocumentWriter) Document() bson.D {
	assert.True(w.done, "document is not complete")
	return w.root
}

func (w *DocumentWriter) top() *frame {
	return w.stack[len(w.stack)-1]
}

func (w *DocumentWriter) checkSlot(what string) {
	f := w.top()
	if !f.isArray {
		assert.True(f.named, "%s without a name", what)
	}
}

func (w *DocumentWriter) pop(what string) *frame {
	assert.True(len(w.stack) != 0, "unbalanced end of %s", what)
	f := w.top()
	w.stack = w.stack[:len(w.stack)-1]
	return f
}

func (w *DocumentWriter) add(v any) {
	f := w.top()
	if f.isArray {
		f.arr = append(f.arr, v)
		return
	}
	f.doc = append(f.doc, bson.E{Key: f.name, Value: v})
	f.name = ""
	f.named = false
}

// Render writes n into a fresh DocumentWriter and returns the result. n
// must render a document.
func Render(n Node) bson.D {
	w := NewDocumentWriter()
	n.Render(w)
	return w.Document()
}

// ExtJSON renders n as MongoDB extended JSON.
func ExtJSON(n Node, canonical bool) ([]byte, error) {
	return bson.MarshalExtJSON(Render(n), canonical, false)
}
