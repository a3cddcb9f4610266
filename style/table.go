package style

import (
	"maps"
	"slices"

	"github.com/google/uuid"
)

// Table is composed style table. It is rebuilt in place by every runtime
// recompute.
type Table struct {
	rt     *Runtime
	id     uuid.UUID
	source Source

	// guarded by rt.mu
	gen    uint64
	comp   *composition
	active string
}

// ID returns table instance key.
func (t *Table) ID() uuid.UUID {
	return t.id
}

// Generation returns runtime generation table was composed at.
func (t *Table) Generation() uint64 {
	t.rt.mu.Lock()
	defer t.rt.mu.Unlock()
	return t.gen
}

// Layouts returns layout names in order of first appearance.
func (t *Table) Layouts() []string {
	t.rt.mu.Lock()
	defer t.rt.mu.Unlock()
	return slices.Clone(t.comp.order)
}

// Layout returns compiled styles of a layout keyed by element.
func (t *Table) Layout(name string) (map[string]any, bool) {
	t.rt.mu.Lock()
	defer t.rt.mu.Unlock()

	l, ok := t.comp.layouts[name]
	if !ok {
		return nil, false
	}
	return maps.Clone(l.styles), true
}

// Style returns compiled style of element in a layout.
func (t *Table) Style(layout, element string) (any, bool) {
	t.rt.mu.Lock()
	defer t.rt.mu.Unlock()
	return t.comp.layouts[layout].style(element)
}

// Raw returns descriptors table was last composed from.
func (t *Table) Raw() []Descriptor {
	t.rt.mu.Lock()
	defer t.rt.mu.Unlock()
	return slices.Clone(t.comp.raw)
}

// Snapshot returns descriptors indexed by layout, later descriptors replace
// earlier ones with the same layout.
func (t *Table) Snapshot() map[string]Descriptor {
	t.rt.mu.Lock()
	defer t.rt.mu.Unlock()
	return maps.Clone(t.comp.snapshot)
}

// SetLayouts selects active layout for following queries. Names and flags
// are joined with '&', no arguments select common.
func (t *Table) SetLayouts(args ...Arg) error {
	name, err := layoutName(args)
	if err != nil {
		return err
	}

	t.rt.mu.Lock()
	defer t.rt.mu.Unlock()
	t.active = name
	return nil
}

// ActiveLayout returns name of active layout.
func (t *Table) ActiveLayout() string {
	t.rt.mu.Lock()
	defer t.rt.mu.Unlock()
	return t.active
}

// StyleNames resolves query against active layout. Result holds styles of
// named elements (missing in active layout are taken from common, unknown
// are skipped), then styles of their pseudo-rules accepting index+1 when
// trailing Index is given, then inline override or empty Props.
func (t *Table) StyleNames(args ...Arg) ([]any, error) {
	t.rt.mu.Lock()
	defer t.rt.mu.Unlock()
	return t.rt.resolve(t, args)
}

// Resolver returns StyleNames bound to current generation. After the next
// recompute it returns ErrStaleTable and caller has to obtain new one.
func (t *Table) Resolver() func(args ...Arg) ([]any, error) {
	t.rt.mu.Lock()
	gen := t.gen
	t.rt.mu.Unlock()

	return func(args ...Arg) ([]any, error) {
		t.rt.mu.Lock()
		defer t.rt.mu.Unlock()

		if t.gen != gen {
			return nil, ErrStaleTable
		}
		return t.rt.resolve(t, args)
	}
}

// Bags returns expanded property bags of a layout before host compilation.
func (t *Table) Bags(layout string) (map[string]Props, bool) {
	t.rt.mu.Lock()
	defer t.rt.mu.Unlock()

	l, ok := t.comp.layouts[layout]
	if !ok {
		return nil, false
	}
	out := make(map[string]Props, len(l.bags))
	for k, v := range l.bags {
		out[k] = maps.Clone(v)
	}
	return out, true
}
