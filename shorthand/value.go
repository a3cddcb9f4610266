package shorthand

import (
	"fmt"
	"strconv"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"

	"stylec/color"
)

// Kind classifies a single shorthand argument.
type Kind int

const (
	KindNumber  Kind = iota // plain or px length
	KindPercent             // percentage, kept as string for the host
	KindColor               // any literal color.Parse accepts
	KindKeyword             // identifier which is not a color
	KindNull                // literal null
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindPercent:
		return "percent"
	case KindColor:
		return "color"
	case KindKeyword:
		return "keyword"
	case KindNull:
		return "null"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is a classified shorthand argument.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
}

// Number makes numeric (length) value.
func Number(v float64) Value { return Value{Kind: KindNumber, Num: v} }

// Color makes color value, s is expected to be canonical already.
func Color(s string) Value { return Value{Kind: KindColor, Str: s} }

// Keyword makes value for identifier which is not a color (solid, dashed...).
func Keyword(s string) Value { return Value{Kind: KindKeyword, Str: s} }

// Null makes explicit null argument.
func Null() Value { return Value{Kind: KindNull} }

// Percent makes percentage value, Str keeps its textual form.
func Percent(v float64) Value {
	return Value{Kind: KindPercent, Num: v, Str: strconv.FormatFloat(v, 'f', -1, 64) + "%"}
}

// IsNumeric reports whether value can be used as a length.
func (v Value) IsNumeric() bool {
	return v.Kind == KindNumber || v.Kind == KindPercent
}

// Host returns the value as the host framework expects it: numbers as
// float64, percentages and keywords as strings, colors in canonical rgba
// form and null as nil.
func (v Value) Host() any {
	switch v.Kind {
	case KindNumber:
		return v.Num
	case KindColor:
		if s, err := color.Normalize(v.Str); err == nil {
			return s
		}
		return v.Str
	case KindNull:
		return nil
	}
	return v.Str
}

func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindNull:
		return "null"
	}
	return v.Str
}

// FromAny classifies structured argument coming from a descriptor (numbers,
// strings, nil).
func FromAny(a any) (Value, error) {
	switch v := a.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v, nil
	case float64:
		return Number(v), nil
	case float32:
		return Number(float64(v)), nil
	case int:
		return Number(float64(v)), nil
	case int64:
		return Number(float64(v)), nil
	case uint64:
		return Number(float64(v)), nil
	case string:
		vals, err := Tokenize(v)
		if err != nil {
			return Value{}, err
		}
		if len(vals) != 1 {
			return Value{}, fmt.Errorf("%w: %q is not a single value", ErrInvalidArgument, v)
		}
		return vals[0], nil
	}
	return Value{}, fmt.Errorf("%w: unsupported argument type %T", ErrInvalidArgument, a)
}

// Tokenize splits shorthand argument string ("1px solid #fff",
// "2 4 rgba(0,0,0,.3)") into classified values. Whitespace and commas
// separate arguments, commas inside function literals are kept.
func Tokenize(s string) ([]Value, error) {
	lexer := css.NewLexer(parse.NewInputString(s))

	var (
		vals  []Value
		fn    strings.Builder
		depth int
	)
	for {
		tt, data := lexer.Next()
		if tt == css.ErrorToken {
			break
		}

		if depth > 0 {
			fn.Write(data)
			switch tt {
			case css.FunctionToken, css.LeftParenthesisToken:
				depth++
			case css.RightParenthesisToken:
				depth--
			}
			if depth == 0 {
				lit := fn.String()
				if !color.IsColor(lit) {
					return nil, fmt.Errorf("%w: unsupported function %q", ErrInvalidArgument, lit)
				}
				vals = append(vals, Color(lit))
				fn.Reset()
			}
			continue
		}

		switch tt {
		case css.WhitespaceToken, css.CommaToken:
		case css.NumberToken:
			v, err := strconv.ParseFloat(string(data), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: number %q", ErrInvalidArgument, data)
			}
			vals = append(vals, Number(v))
		case css.DimensionToken:
			v, err := parseLength(string(data))
			if err != nil {
				return nil, err
			}
			vals = append(vals, Number(v))
		case css.PercentageToken:
			v, err := strconv.ParseFloat(strings.TrimSuffix(string(data), "%"), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: percentage %q", ErrInvalidArgument, data)
			}
			vals = append(vals, Percent(v))
		case css.HashToken:
			if !color.IsColor(string(data)) {
				return nil, fmt.Errorf("%w: bad color %q", ErrInvalidArgument, data)
			}
			vals = append(vals, Color(string(data)))
		case css.IdentToken:
			ident := string(data)
			switch {
			case strings.EqualFold(ident, "null"):
				vals = append(vals, Null())
			case color.IsColor(ident):
				vals = append(vals, Color(ident))
			default:
				vals = append(vals, Keyword(strings.ToLower(ident)))
			}
		case css.FunctionToken:
			fn.Write(data)
			depth = 1
		default:
			return nil, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidArgument, data, s)
		}
	}
	if depth > 0 {
		return nil, fmt.Errorf("%w: unterminated function in %q", ErrInvalidArgument, s)
	}
	return vals, nil
}

// parseLength accepts unitless, px and dp lengths.
func parseLength(s string) (float64, error) {
	num := strings.TrimRightFunc(s, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
	})
	unit := strings.ToLower(s[len(num):])
	switch unit {
	case "", "px", "dp":
	default:
		return 0, fmt.Errorf("%w: unsupported unit %q in %q", ErrInvalidArgument, unit, s)
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: length %q", ErrInvalidArgument, s)
	}
	return v, nil
}
