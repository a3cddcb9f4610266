package shorthand

import (
	"fmt"

	"stylec/color"
)

// DefaultShadowColor is used when shadow shorthand has no color.
const DefaultShadowColor = "rgba(0,0,5,0.5)"

// shadow expands "offsetX offsetY [radius] [color]" into host shadow
// properties. Single null means "no shadow": result is structurally
// complete but fully transparent.
type shadow struct {
	name string
	text bool
}

func newShadow(name string, text bool) *shadow {
	return &shadow{name: name, text: text}
}

func (s *shadow) ParseArgs(str string) ([]Value, error) {
	return parseArgs(str)
}

func (s *shadow) Expand(args []Value) (Props, error) {
	if len(args) == 1 && args[0].Kind == KindNull {
		return s.props(0, 0, 0, DefaultShadowColor, 0)
	}
	if len(args) < 2 || len(args) > 4 {
		return nil, fmt.Errorf("%s: %w: expected 2 to 4 values, got %d", s.name, ErrInvalidArgument, len(args))
	}
	for i, a := range args[:2] {
		if a.Kind != KindNumber {
			return nil, fmt.Errorf("%s: %w: offset %d must be a number, got %q", s.name, ErrInvalidArgument, i+1, a)
		}
	}

	var (
		radius float64
		clr    = DefaultShadowColor
		rest   = args[2:]
	)
	if len(rest) > 0 && rest[0].Kind == KindNumber {
		radius = rest[0].Num
		rest = rest[1:]
	}
	switch {
	case len(rest) == 1 && rest[0].Kind == KindColor:
		clr = rest[0].Str
	case len(rest) > 0:
		return nil, fmt.Errorf("%s: %w: expected radius and color, got %q", s.name, ErrInvalidArgument, rest[0])
	}
	return s.props(args[0].Num, args[1].Num, radius, clr, 1)
}

func (s *shadow) props(dx, dy, radius float64, clr string, opacity float64) (Props, error) {
	c, err := color.Parse(clr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	offset := Props{"width": dx, "height": dy}
	if s.text {
		// no separate opacity for text shadows, fold it into color
		if opacity == 0 {
			c = c.WithAlpha(0)
		}
		return Props{
			"textShadowOffset": offset,
			"textShadowRadius": radius,
			"textShadowColor":  c.String(),
		}, nil
	}
	return Props{
		"shadowOffset":  offset,
		"shadowRadius":  radius,
		"shadowColor":   c.String(),
		"shadowOpacity": opacity,
	}, nil
}
