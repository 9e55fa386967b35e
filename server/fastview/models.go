// Package fastview pushes element-level updates of server-rendered html views to a browser
// over a websocket.
package fastview

import (
	"html/template"
)

// EleUpdate sets attributes or text of the element with id EleId.
type EleUpdate struct {
	EleId string
	// Ops are applied in order. The key 'textContent' sets the element's text; any other key
	// sets the attribute of that name.
	Ops []Op
}

type Op struct {
	Key   string
	Value string
}

// TextContent is the reserved op key for an element's text.
const TextContent = "textContent"

// ViewComponent is a view that renders once from a template and is then kept current by
// a stream of element updates.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	// Parse adds the view's template to parent, inheriting its func-map, and returns the
	// name under which it was defined.
	Parse(parent *template.Template) (string, error)
}
