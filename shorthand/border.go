package shorthand

import "fmt"

var borderStyles = map[string]bool{"solid": true, "dotted": true, "dashed": true}

// IsBorderStyle reports whether keyword is a border style the host supports.
func IsBorderStyle(s string) bool {
	return borderStyles[s]
}

// border expands compound "width style color" where arguments may come in
// any order. side is empty for the all-sides shorthand.
type border struct {
	name string
	side string
}

func newBorder(name, side string) *border {
	return &border{name: name, side: side}
}

func (b *border) ParseArgs(s string) ([]Value, error) {
	return parseArgs(s)
}

func (b *border) Expand(args []Value) (Props, error) {
	if len(args) > 3 {
		return nil, fmt.Errorf("%s: %w: expected up to 3 values, got %d", b.name, ErrInvalidArgument, len(args))
	}

	var (
		width      = Number(1)
		style      = Keyword("solid")
		clr        Value
		haveWidth  bool
		haveStyle  bool
		haveColor  bool
		classified = func(field string, seen *bool) error {
			if *seen {
				return fmt.Errorf("%s: %w: %s given twice", b.name, ErrDuplicateArgument, field)
			}
			*seen = true
			return nil
		}
	)

	for _, a := range args {
		switch {
		case a.Kind == KindColor:
			if err := classified("color", &haveColor); err != nil {
				return nil, err
			}
			clr = a
		case a.Kind == KindNumber:
			if err := classified("width", &haveWidth); err != nil {
				return nil, err
			}
			width = a
		case a.Kind == KindKeyword && IsBorderStyle(a.Str):
			if err := classified("style", &haveStyle); err != nil {
				return nil, err
			}
			style = a
		default:
			return nil, fmt.Errorf("%s: %w: %q is neither width, style nor color", b.name, ErrInvalidArgument, a)
		}
	}

	out := Props{"borderStyle": style.Host()}
	if b.side == "" {
		out["borderWidth"] = width.Host()
		if haveColor {
			out["borderColor"] = clr.Host()
		}
		return out, nil
	}
	out["border"+b.side+"Width"] = width.Host()
	if haveColor {
		out["border"+b.side+"Color"] = clr.Host()
	}
	return out, nil
}
