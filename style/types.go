// Package style composes layered style descriptors into per-layout style
// tables and answers element style queries against them.
//
// Descriptor set is indexed by layout name. Every layout is merged from
// "common", the layouts it lists in "@extendLayouts" (in that order) and
// its own descriptor. Nested "&suffix" groups are flattened into elements
// named parent+suffix, "&:nth-child(pattern)" groups become pseudo-rule
// entries activated by child index, transform strings are compiled to
// matrices and registered shorthand properties are expanded.
//
// All state (compiled tables, selector ids, caches, metrics snapshot) is
// owned by Runtime. Recompute re-runs composition for every table created by
// the runtime and invalidates previously obtained resolvers.
package style

import (
	"errors"
	"fmt"
	"slices"

	"stylec/shorthand"
)

// Props is property bag of a single element.
type Props = shorthand.Props

// CommonLayout is the implicit base merged into every other layout.
const CommonLayout = "common"

const (
	keyLayout  = "layout"
	keyExtends = "@extendLayouts"
)

var (
	// ErrInvalidInput is returned for descriptor input of unsupported shape.
	ErrInvalidInput = errors.New("invalid style input")
	// ErrStaleTable is returned by resolvers obtained before a recompute.
	ErrStaleTable = errors.New("style table was recomputed")
	// ErrBadQuery is returned for malformed style queries.
	ErrBadQuery = errors.New("bad style query")
)

// Descriptor maps element keys to property bags. It may carry "layout"
// (string, defaults to common) and "@extendLayouts" (list of layout names).
type Descriptor map[string]any

// Layout returns layout name of the descriptor.
func (d Descriptor) Layout() string {
	if s, ok := d[keyLayout].(string); ok && s != "" {
		return s
	}
	return CommonLayout
}

// Extends returns names of layouts merged in before descriptor itself.
func (d Descriptor) Extends() []string {
	switch v := d[keyExtends].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Source supplies descriptors to compose. It is consulted on every
// (re)composition.
type Source interface {
	Descriptors() ([]Descriptor, error)
}

// Static is Source with fixed descriptors.
type Static []Descriptor

// Descriptors implements Source.
func (s Static) Descriptors() ([]Descriptor, error) { return s, nil }

// Producer is Source which builds descriptors anew every time, usually
// reading current metrics from the runtime.
type Producer func() any

// Descriptors implements Source.
func (p Producer) Descriptors() ([]Descriptor, error) {
	v := p()
	if _, ok := v.(Producer); ok {
		return nil, fmt.Errorf("%w: producer returned producer", ErrInvalidInput)
	}
	if _, ok := v.(func() any); ok {
		return nil, fmt.Errorf("%w: producer returned producer", ErrInvalidInput)
	}
	return Normalize(v)
}

// sourceOf turns caller input into Source. Functions are kept as producers,
// everything else is normalized once.
func sourceOf(input any) (Source, error) {
	switch v := input.(type) {
	case Source:
		return v, nil
	case func() any:
		return Producer(v), nil
	}
	descs, err := Normalize(input)
	if err != nil {
		return nil, err
	}
	return Static(descs), nil
}

// Normalize converts input to flat descriptor list. Accepted are single
// Descriptor or map, lists of those with nested lists flattened one level,
// and producers which are invoked.
func Normalize(input any) ([]Descriptor, error) {
	switch v := input.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil", ErrInvalidInput)
	case Descriptor:
		return []Descriptor{v}, nil
	case map[string]any:
		return []Descriptor{Descriptor(v)}, nil
	case []Descriptor:
		return slices.Clone(v), nil
	case []map[string]any:
		out := make([]Descriptor, 0, len(v))
		for _, m := range v {
			out = append(out, Descriptor(m))
		}
		return out, nil
	case []any:
		out := make([]Descriptor, 0, len(v))
		for i, item := range v {
			if d, ok := asDescriptor(item); ok {
				out = append(out, d)
				continue
			}
			nested, ok := item.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: element %d is %T", ErrInvalidInput, i, item)
			}
			for j, inner := range nested {
				d, ok := asDescriptor(inner)
				if !ok {
					return nil, fmt.Errorf("%w: element %d.%d is %T", ErrInvalidInput, i, j, inner)
				}
				out = append(out, d)
			}
		}
		return out, nil
	case Source:
		return v.Descriptors()
	case func() any:
		return Producer(v).Descriptors()
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidInput, input)
}

func asDescriptor(v any) (Descriptor, bool) {
	switch d := v.(type) {
	case Descriptor:
		return d, true
	case map[string]any:
		return Descriptor(d), true
	}
	return nil, false
}

// asProps returns v as property bag if it is one.
func asProps(v any) (Props, bool) {
	switch p := v.(type) {
	case map[string]any:
		return p, true
	case Descriptor:
		return Props(p), true
	}
	return nil, false
}
