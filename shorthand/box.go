package shorthand

import "fmt"

// fourValue implements box model rule shared by margin, padding and
// border width/radius/color: (a, b=a, c=a, d=b) -> top, right, bottom, left.
type fourValue struct {
	name string
	kind Kind // KindNumber accepts percentages too
	keys [4]string
}

func newFourValue(name string, kind Kind, top, right, bottom, left string) *fourValue {
	return &fourValue{name: name, kind: kind, keys: [4]string{top, right, bottom, left}}
}

func (f *fourValue) ParseArgs(s string) ([]Value, error) {
	return parseArgs(s)
}

func (f *fourValue) Expand(args []Value) (Props, error) {
	if len(args) < 1 || len(args) > 4 {
		return nil, fmt.Errorf("%s: %w: expected 1 to 4 values, got %d", f.name, ErrInvalidArgument, len(args))
	}
	for _, a := range args {
		ok := a.Kind == f.kind
		if f.kind == KindNumber {
			ok = a.IsNumeric()
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w: %q is %s, expected %s", f.name, ErrInvalidArgument, a, a.Kind, f.kind)
		}
	}

	vals := FourValues(args)
	out := make(Props, 4)
	for i, key := range f.keys {
		out[key] = vals[i].Host()
	}
	return out, nil
}

// FourValues applies box model defaults: (a) -> (a,a,a,a), (a,b) ->
// (a,b,a,b), (a,b,c) -> (a,b,c,b). args must not be empty.
func FourValues[T any](args []T) [4]T {
	var out [4]T
	out[0] = args[0]
	out[1] = out[0]
	if len(args) > 1 {
		out[1] = args[1]
	}
	out[2] = out[0]
	if len(args) > 2 {
		out[2] = args[2]
	}
	out[3] = out[1]
	if len(args) > 3 {
		out[3] = args[3]
	}
	return out
}

func numbers(vals []float64) []Value {
	out := make([]Value, 0, len(vals))
	for _, v := range vals {
		out = append(out, Number(v))
	}
	return out
}

func mustExpand(name string, vals []float64) Props {
	e, _ := Default().Lookup(name)
	p, err := e.Expand(numbers(vals))
	if err != nil {
		panic(err)
	}
	return p
}

// Margin returns expanded margin properties for 1 to 4 values. It panics
// on wrong number of values, use it with literals.
func Margin(vals ...float64) Props { return mustExpand("margin", vals) }

// Padding is Margin for paddings.
func Padding(vals ...float64) Props { return mustExpand("padding", vals) }

// BorderWidth is Margin for border widths.
func BorderWidth(vals ...float64) Props { return mustExpand("borderWidth", vals) }

// BorderRadius is Margin for corner radii (top-left, top-right,
// bottom-right, bottom-left).
func BorderRadius(vals ...float64) Props { return mustExpand("borderRadius", vals) }
