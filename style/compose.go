package style

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"stylec/nth"
	"stylec/shorthand"
	"stylec/transform"
)

const (
	keyTransform = "transform"
	keyOrigin    = "transformOrigin"
	keyWidth     = "width"
	keyHeight    = "height"
)

// compiledLayout is a single composed layout.
type compiledLayout struct {
	name   string
	bags   map[string]Props // expanded property bags
	styles map[string]any   // host compiled styles
	nth    map[string][]int // owner element -> selector ids
}

// composition is result of composing descriptor set.
type composition struct {
	raw      []Descriptor
	snapshot map[string]Descriptor
	order    []string // layout names in order of first appearance
	layouts  map[string]*compiledLayout
}

// dropNth forgets pseudo-rule ownership, used when selector ids are reset
// without recomposition.
func (c *composition) dropNth() {
	for _, l := range c.layouts {
		l.nth = map[string][]int{}
	}
}

// composer turns descriptors into compiled layouts. It is not safe for
// concurrent use, Runtime serializes access.
type composer struct {
	log        *zap.Logger
	host       Host
	shorthands *shorthand.Registry
	matcher    *nth.Matcher
	transforms *transform.Compiler
	tracer     *Tracer
	strict     bool
}

func (c *composer) compose(descs []Descriptor) (*composition, error) {
	comp := &composition{
		raw:      descs,
		snapshot: make(map[string]Descriptor, len(descs)),
		layouts:  make(map[string]*compiledLayout, len(descs)),
	}
	for _, d := range descs {
		name := d.Layout()
		_, replaced := comp.snapshot[name]
		if !replaced {
			comp.order = append(comp.order, name)
		}
		comp.snapshot[name] = d
		c.tracer.TraceSnapshot(name, len(d), replaced)
	}

	var errs error
	for _, name := range comp.order {
		l, err := c.layout(comp.snapshot, name)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("layout %q: %w", name, err))
			continue
		}
		comp.layouts[name] = l
	}
	if errs != nil {
		return nil, errs
	}
	return comp, nil
}

func (c *composer) layout(snapshot map[string]Descriptor, name string) (*compiledLayout, error) {
	merged, err := c.merge(snapshot, name)
	if err != nil {
		return nil, err
	}
	bags, nthList, err := c.flatten(merged)
	if err != nil {
		return nil, err
	}
	for _, element := range sortedKeys(bags) {
		if err := c.resolve(element, bags[element]); err != nil {
			return nil, err
		}
	}
	styles, err := c.host.CreateStyles(name, bags)
	if err != nil {
		return nil, fmt.Errorf("host: %w", err)
	}
	c.log.Debug("Layout composed", zap.String("layout", name), zap.Int("elements", len(bags)), zap.Int("nth", len(nthList)))
	return &compiledLayout{name: name, bags: bags, styles: styles, nth: nthList}, nil
}

// merge builds element bags of a layout: common, then extensions in listed
// order, then layout itself. Unknown extensions are skipped.
func (c *composer) merge(snapshot map[string]Descriptor, name string) (map[string]Props, error) {
	out := make(map[string]Props)
	apply := func(d Descriptor) error {
		for _, element := range sortedKeys(d) {
			if element == keyLayout || element == keyExtends {
				continue
			}
			props, ok := asProps(d[element])
			if !ok {
				return fmt.Errorf("%w: element %q is %T, not property bag", ErrInvalidInput, element, d[element])
			}
			dst := out[element]
			if dst == nil {
				dst = make(Props, len(props))
				out[element] = dst
			}
			maps.Copy(dst, props)
		}
		return nil
	}

	var sources, skipped []string
	if common, ok := snapshot[CommonLayout]; ok {
		if err := apply(common); err != nil {
			return nil, err
		}
		sources = append(sources, CommonLayout)
	}
	self := snapshot[name]
	if name != CommonLayout {
		for _, ext := range self.Extends() {
			d, ok := snapshot[ext]
			if !ok {
				skipped = append(skipped, ext)
				continue
			}
			if err := apply(d); err != nil {
				return nil, err
			}
			sources = append(sources, ext)
		}
		if err := apply(self); err != nil {
			return nil, err
		}
		sources = append(sources, name)
	}
	c.tracer.TraceMerge(name, sources, skipped)
	return out, nil
}

// fragment is a property bag pending to be merged into element.
type fragment struct {
	element string
	props   Props
}

// flatten resolves nested groups and pseudo-rules. Fragments are processed
// once each in FIFO order and written into separate output map, so later
// (deeper) fragments override earlier ones.
func (c *composer) flatten(merged map[string]Props) (map[string]Props, map[string][]int, error) {
	queue := make([]fragment, 0, len(merged))
	for _, element := range sortedKeys(merged) {
		queue = append(queue, fragment{element: element, props: merged[element]})
	}

	out := make(map[string]Props, len(merged))
	nthList := make(map[string][]int)
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]

		dst := out[f.element]
		if dst == nil {
			dst = make(Props, len(f.props))
			out[f.element] = dst
		}
		for _, k := range sortedKeys(f.props) {
			v := f.props[k]
			if key, ok := nth.ParseKey(k); ok {
				props, ok := asProps(v)
				if !ok {
					return nil, nil, fmt.Errorf("%w: %s%s is %T, not property bag", ErrInvalidInput, f.element, k, v)
				}
				rule, err := c.rule(f.element, key)
				if err != nil {
					return nil, nil, err
				}
				if !slices.Contains(nthList[f.element], rule.ID) {
					nthList[f.element] = append(nthList[f.element], rule.ID)
				}
				queue = append(queue, fragment{element: nth.SelectorName(f.element, rule.ID), props: props})
				continue
			}
			if suffix, ok := strings.CutPrefix(k, "&"); ok {
				props, ok := asProps(v)
				if !ok {
					return nil, nil, fmt.Errorf("%w: %s%s is %T, not property bag", ErrInvalidInput, f.element, suffix, v)
				}
				child := f.element + suffix
				c.tracer.TraceNest(f.element, k, child)
				queue = append(queue, fragment{element: child, props: props})
				continue
			}
			dst[k] = v
		}
	}
	return out, nthList, nil
}

func (c *composer) rule(owner string, key nth.Key) (nth.Rule, error) {
	if key.Pattern != "" {
		var r nth.Rule
		if c.strict {
			var err error
			if r, err = c.matcher.Compile(key.Pattern); err != nil {
				return r, fmt.Errorf("%s: %w", owner, err)
			}
		} else {
			r = c.matcher.CompileLenient(key.Pattern)
		}
		c.tracer.TraceNth(owner, key.Pattern, r.ID, r.Valid)
		return r, nil
	}

	r, ok := c.matcher.Lookup(key.ID)
	if !ok {
		if c.strict {
			return r, fmt.Errorf("%s: %w: unknown selector id %d", owner, nth.ErrInvalidPattern, key.ID)
		}
		c.log.Warn("Unknown selector id, rule will never match", zap.String("element", owner), zap.Int("id", key.ID))
		return nth.Rule{ID: key.ID}, nil
	}
	return r, nil
}

// resolve compiles transform and expands shorthands of a single element in
// place.
func (c *composer) resolve(element string, bag Props) error {
	origin, hasOrigin := bag[keyOrigin]
	delete(bag, keyOrigin)

	if src, ok := bag[keyTransform].(string); ok {
		var originStr string
		if hasOrigin {
			originStr = formatOrigin(origin)
		}
		m, err := c.transforms.Compile(src, originStr, geometry(bag))
		if err != nil {
			return fmt.Errorf("%s: %w", element, err)
		}
		bag[keyTransform] = transform.HostValue(m)
		c.tracer.TraceTransform(element, src, originStr, m.ColumnMajor())
	}

	originals := maps.Clone(bag)
	for _, name := range sortedKeys(originals) {
		if _, ok := c.shorthands.Lookup(name); !ok {
			continue
		}
		raw := originals[name]
		var (
			props Props
			err   error
		)
		switch v := raw.(type) {
		case string:
			props, err = c.shorthands.ExpandString(name, v)
		case map[string]any:
			props = v
		case []any, []float64:
			props, err = c.shorthands.ExpandAny(name, v)
		default:
			// host understands plain values
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", element, err)
		}
		delete(bag, name)
		maps.Copy(bag, props)
		c.tracer.TraceExpand(element, name, raw, props)
	}
	return nil
}

// geometry returns element size when bag has positive numeric width and
// height.
func geometry(bag Props) *transform.Geometry {
	w, okW := toFloat(bag[keyWidth])
	h, okH := toFloat(bag[keyHeight])
	if !okW || !okH {
		return nil
	}
	geo := &transform.Geometry{Width: w, Height: h}
	if !geo.Valid() {
		return nil
	}
	return geo
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func formatOrigin(v any) string {
	switch o := v.(type) {
	case string:
		return o
	case []any:
		parts := make([]string, 0, len(o))
		for _, item := range o {
			parts = append(parts, formatOrigin(item))
		}
		return strings.Join(parts, " ")
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	return slices.SortedFunc(maps.Keys(m), naturalCmp)
}
