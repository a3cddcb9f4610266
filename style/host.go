package style

import "maps"

// Host is the rendering framework style table constructor. It receives
// fully expanded property bags of a single layout and returns opaque
// compiled style objects keyed the same way.
type Host interface {
	CreateStyles(layout string, bags map[string]Props) (map[string]any, error)
}

// HostFunc adapts function to Host.
type HostFunc func(layout string, bags map[string]Props) (map[string]any, error)

// CreateStyles implements Host.
func (f HostFunc) CreateStyles(layout string, bags map[string]Props) (map[string]any, error) {
	return f(layout, bags)
}

// PlainHost returns expanded bags as they are.
type PlainHost struct{}

// CreateStyles implements Host.
func (PlainHost) CreateStyles(_ string, bags map[string]Props) (map[string]any, error) {
	out := make(map[string]any, len(bags))
	for k, v := range bags {
		out[k] = maps.Clone(v)
	}
	return out, nil
}
