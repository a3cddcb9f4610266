// Package shorthand expands ergonomic compact property values ("margin: 10
// 20", "border: 1 solid red", "boxShadow: 2 2 4 #000") into the structured
// property bags the host framework understands.
//
// Every expander implements Expander: Expand works on already classified
// arguments, ParseArgs turns a shorthand string into such arguments. A
// Registry maps property names to expanders and is what the composer
// consults while walking element bags.
package shorthand

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

var (
	// ErrInvalidArgument is returned for arguments of wrong type or count.
	ErrInvalidArgument = errors.New("invalid shorthand argument")
	// ErrDuplicateArgument is returned when two unordered arguments claim the same field.
	ErrDuplicateArgument = errors.New("duplicate shorthand argument")
)

// Props is a property bag as handed to the host framework.
type Props = map[string]any

// Expander converts shorthand arguments to host properties.
type Expander interface {
	Expand(args []Value) (Props, error)
	ParseArgs(s string) ([]Value, error)
}

// Registry maps property names to expanders.
type Registry struct {
	expanders map[string]Expander
}

// NewRegistry creates empty registry.
func NewRegistry() *Registry {
	return &Registry{expanders: make(map[string]Expander)}
}

// Default returns registry with every expander this package provides.
func Default() *Registry {
	r := NewRegistry()
	r.Register("margin", newFourValue("margin", KindNumber, "marginTop", "marginRight", "marginBottom", "marginLeft"))
	r.Register("padding", newFourValue("padding", KindNumber, "paddingTop", "paddingRight", "paddingBottom", "paddingLeft"))
	r.Register("borderWidth", newFourValue("borderWidth", KindNumber, "borderTopWidth", "borderRightWidth", "borderBottomWidth", "borderLeftWidth"))
	r.Register("borderRadius", newFourValue("borderRadius", KindNumber, "borderTopLeftRadius", "borderTopRightRadius", "borderBottomRightRadius", "borderBottomLeftRadius"))
	r.Register("borderColor", newFourValue("borderColor", KindColor, "borderTopColor", "borderRightColor", "borderBottomColor", "borderLeftColor"))
	r.Register("border", newBorder("border", ""))
	for _, side := range []string{"Top", "Right", "Bottom", "Left"} {
		r.Register("border"+side, newBorder("border"+side, side))
	}
	r.Register("boxShadow", newShadow("boxShadow", false))
	r.Register("textShadow", newShadow("textShadow", true))
	return r
}

// Register adds (or replaces) expander for property name.
func (r *Registry) Register(name string, e Expander) {
	r.expanders[name] = e
}

// Lookup returns expander registered for property name.
func (r *Registry) Lookup(name string) (Expander, bool) {
	if r == nil {
		return nil, false
	}
	e, ok := r.expanders[name]
	return e, ok
}

// Names returns registered property names, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.expanders))
}

// ExpandString parses shorthand string for property name and expands it.
func (r *Registry) ExpandString(name, s string) (Props, error) {
	e, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: no shorthand for %q", ErrInvalidArgument, name)
	}
	args, err := e.ParseArgs(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return e.Expand(args)
}

// ExpandAny expands structured arguments (a single number or a list of
// numbers/strings) for property name.
func (r *Registry) ExpandAny(name string, raw any) (Props, error) {
	e, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: no shorthand for %q", ErrInvalidArgument, name)
	}
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []float64:
		for _, f := range v {
			items = append(items, f)
		}
	default:
		items = []any{v}
	}
	args := make([]Value, 0, len(items))
	for _, item := range items {
		val, err := FromAny(item)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		args = append(args, val)
	}
	return e.Expand(args)
}

// parseArgs is the argument string parser shared by all expanders.
func parseArgs(s string) ([]Value, error) {
	return Tokenize(s)
}
