package compile

import "fmt"

// ParamBinder collects query parameters. It is the only way a value may
// enter generated Cypher: callers bind the value and splice the returned
// "$name" placeholder into the query text, so no literal ever appears
// inline regardless of its content.
type ParamBinder struct {
	params map[string]any
	next   int
}

// NewParamBinder creates an empty binder.
func NewParamBinder() *ParamBinder {
	return &ParamBinder{params: make(map[string]any)}
}

// Bind stores v under a fresh generated name and returns the "$pN"
// placeholder to embed in the query.
func (b *ParamBinder) Bind(v any) string {
	name := fmt.Sprintf("p%d", b.next)
	b.next++
	b.params[name] = v
	return "$" + name
}

// BindNamed stores v under an explicit name and returns its placeholder.
// Used for parameters with contractual names, like the row limit and the
// trust ceiling.
func (b *ParamBinder) BindNamed(name string, v any) string {
	b.params[name] = v
	return "$" + name
}

// Params returns the accumulated parameter map.
func (b *ParamBinder) Params() map[string]any {
	return b.params
}
