// fastview pushes incremental element updates from server side views to a page over websocket.
// A view renders its initial markup from a template, then emits EleUpdates as its model changes.
package fastview

import (
	"html/template"
)

// EleUpdate is an element identifier and a set of operations to apply to its attributes/content.
type EleUpdate struct {
	// The id by which to find the element
	EleId string
	// Op keys are attrib keys or 'textContent', values are the strings to which these are set.
	// Example: ('points','0,1 2,3') sets attribute 'points'; ('textContent','abc') sets ele.textContent.
	Ops []Op
}

// Op is a key and value. For example an html attribute and its new value.
type Op struct {
	Key   string
	Value string
}

// ViewComponent is a server side view: Parse adds its named template to a parent
// template, and Updates notifies the ele-updates to apply once the page is live.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	// Parse defines the component's template within @parent and returns its name.
	// Components may use the funcs registered on the parent.
	Parse(parent *template.Template) (string, error)
}
