package transform

import (
	"fmt"
	"strconv"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// originValue is single transform-origin component before it is resolved
// against geometry.
type originValue struct {
	num     float64
	percent bool
	keyword string
}

func (v originValue) isKeyword() bool { return v.keyword != "" }

// resolve converts value to absolute offset along axis of given size.
func (v originValue) resolve(size float64, geo *Geometry) (float64, error) {
	switch {
	case v.isKeyword():
		switch v.keyword {
		case "left", "top":
			return 0, nil
		case "center":
			return size / 2, nil
		case "right", "bottom":
			return size, nil
		}
		return 0, fmt.Errorf("%w: unknown origin keyword %q", ErrInvalidArgument, v.keyword)
	case v.percent:
		if geo == nil {
			return 0, fmt.Errorf("%w: percentage origin", ErrMissingGeometry)
		}
		return size * v.num / 100, nil
	}
	return v.num, nil
}

// ParseOrigin parses transform-origin ("center", "left top", "10 20", "50% 0
// 5"). Result is relative to the element center when geometry is given, the
// way the host framework applies transforms. Without geometry values are
// taken as is and keywords resolve against zero size.
//
// Single numeric value is used for both axes.
func ParseOrigin(s string, geo *Geometry) (Origin, error) {
	values, err := tokenizeOrigin(s)
	if err != nil {
		return Origin{}, err
	}
	if len(values) == 0 || len(values) > 3 {
		return Origin{}, fmt.Errorf("%w: origin %q needs 1 to 3 values", ErrInvalidArgument, s)
	}

	var x, y originValue
	switch {
	case len(values) == 1 && !values[0].isKeyword():
		x, y = values[0], values[0]
	case len(values) == 1:
		x, y = values[0], originValue{keyword: "center"}
		if k := values[0].keyword; k == "top" || k == "bottom" {
			x, y = y, x
		}
	default:
		x, y = values[0], values[1]
		// "top left" is same as "left top"
		if x.keyword == "top" || x.keyword == "bottom" || y.keyword == "left" || y.keyword == "right" {
			x, y = y, x
		}
		if x.keyword == "top" || x.keyword == "bottom" || y.keyword == "left" || y.keyword == "right" {
			return Origin{}, fmt.Errorf("%w: conflicting origin keywords in %q", ErrInvalidArgument, s)
		}
	}

	var w, h float64
	if geo != nil {
		w, h = geo.Width, geo.Height
	}

	var o Origin
	if o.X, err = x.resolve(w, geo); err != nil {
		return Origin{}, err
	}
	if o.Y, err = y.resolve(h, geo); err != nil {
		return Origin{}, err
	}
	if len(values) == 3 {
		z := values[2]
		if z.isKeyword() || z.percent {
			return Origin{}, fmt.Errorf("%w: origin z must be length in %q", ErrInvalidArgument, s)
		}
		o.Z = z.num
	}

	if geo != nil {
		o.X -= w / 2
		o.Y -= h / 2
	}
	return o, nil
}

func tokenizeOrigin(s string) ([]originValue, error) {
	lexer := css.NewLexer(parse.NewInputString(s))

	var values []originValue
	for {
		tt, data := lexer.Next()
		switch tt {
		case css.ErrorToken:
			return values, nil
		case css.WhitespaceToken:
			continue
		case css.IdentToken:
			values = append(values, originValue{keyword: strings.ToLower(string(data))})
		case css.NumberToken:
			v, err := strconv.ParseFloat(string(data), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidArgument, data)
			}
			values = append(values, originValue{num: v})
		case css.PercentageToken:
			v, err := strconv.ParseFloat(strings.TrimSuffix(string(data), "%"), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidArgument, data)
			}
			values = append(values, originValue{num: v, percent: true})
		case css.DimensionToken:
			a, err := parseDimension(string(data))
			if err != nil {
				return nil, err
			}
			v, err := a.length()
			if err != nil {
				return nil, err
			}
			values = append(values, originValue{num: v})
		default:
			return nil, fmt.Errorf("%w: unexpected %q in origin %q", ErrInvalidArgument, data, s)
		}
	}
}
