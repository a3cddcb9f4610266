package transform

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

var (
	// ErrUnknownFunction is returned for transform functions we do not know.
	ErrUnknownFunction = errors.New("unknown transform function")
	// ErrInvalidArgument is returned for malformed transform strings and
	// arguments of wrong type or count.
	ErrInvalidArgument = errors.New("invalid transform argument")
	// ErrMissingGeometry is returned when transform-origin needs element
	// dimensions which are not known.
	ErrMissingGeometry = errors.New("transform-origin requires width and height")
)

// Geometry is size of the element being transformed.
type Geometry struct {
	Width, Height float64
}

// Valid reports whether both dimensions are positive.
func (g *Geometry) Valid() bool {
	return g != nil && g.Width > 0 && g.Height > 0
}

// Call is a single parsed transform function.
type Call struct {
	Name string
	args []argument
}

func (c Call) String() string {
	parts := make([]string, 0, len(c.args))
	for _, a := range c.args {
		parts = append(parts, a.String())
	}
	return c.Name + "(" + strings.Join(parts, ", ") + ")"
}

type cacheKey struct {
	src, origin string
	geo         Geometry
}

// Compiler turns transform strings into matrices and caches results. In
// strict mode unknown functions and origins without geometry are errors,
// otherwise they are logged and degrade to identity and un-centered origin.
// Not safe for concurrent use.
type Compiler struct {
	log    *zap.Logger
	strict bool
	cache  map[cacheKey]Matrix
}

// NewCompiler creates compiler with empty cache.
func NewCompiler(log *zap.Logger, strict bool) *Compiler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Compiler{log: log.Named("transform"), strict: strict, cache: make(map[cacheKey]Matrix)}
}

// Reset drops cached matrices.
func (c *Compiler) Reset() {
	c.cache = make(map[cacheKey]Matrix)
}

// Len returns number of cached matrices.
func (c *Compiler) Len() int {
	return len(c.cache)
}

// Compile parses src, corrects every function matrix for transform-origin
// and composes them left to right. Empty origin means default origin.
func (c *Compiler) Compile(src, origin string, geo *Geometry) (Matrix, error) {
	key := cacheKey{src: src, origin: origin}
	if geo != nil {
		key.geo = *geo
	}
	if m, ok := c.cache[key]; ok {
		return m, nil
	}

	calls, err := Parse(src)
	if err != nil {
		return Identity(), err
	}

	var o Origin
	if strings.TrimSpace(origin) != "" {
		if o, err = c.origin(origin, geo); err != nil {
			return Identity(), err
		}
	}

	matrices := make([]Matrix, 0, len(calls))
	for _, call := range calls {
		m, err := c.build(call)
		if err != nil {
			return Identity(), err
		}
		matrices = append(matrices, m.AtOrigin(o))
	}

	m := Compose(matrices...)
	c.cache[key] = m
	c.log.Debug("Compiled transform", zap.String("src", src), zap.String("origin", origin), zap.Int("functions", len(calls)))
	return m, nil
}

func (c *Compiler) build(call Call) (Matrix, error) {
	fn, ok := functions[call.Name]
	if !ok {
		if c.strict {
			return Identity(), fmt.Errorf("%w: %q", ErrUnknownFunction, call.Name)
		}
		c.log.Warn("Unknown transform function replaced with identity", zap.String("function", call.String()))
		return Identity(), nil
	}
	if len(call.args) < fn.min || len(call.args) > fn.max {
		return Identity(), fmt.Errorf("%w: %s takes %d to %d arguments, got %d", ErrInvalidArgument, call.Name, fn.min, fn.max, len(call.args))
	}
	m, err := fn.build(call.args)
	if err != nil {
		return Identity(), fmt.Errorf("%s: %w", call.Name, err)
	}
	return m, nil
}

func (c *Compiler) origin(s string, geo *Geometry) (Origin, error) {
	if geo.Valid() {
		return ParseOrigin(s, geo)
	}
	// without geometry origin is not re-centered, only percentages cannot be resolved
	o, err := ParseOrigin(s, nil)
	if !errors.Is(err, ErrMissingGeometry) {
		return o, err
	}
	if c.strict {
		return Origin{}, fmt.Errorf("origin %q: %w", s, err)
	}
	c.log.Warn("Percentage transform-origin ignored, set width and height", zap.String("origin", s))
	return Origin{}, nil
}

// Parse splits transform string into function calls. "none" and empty
// string produce no calls.
func Parse(src string) ([]Call, error) {
	if s := strings.TrimSpace(src); s == "" || strings.EqualFold(s, "none") {
		return nil, nil
	}

	lexer := css.NewLexer(parse.NewInputString(src))

	var (
		calls []Call
		cur   *Call
	)
	for {
		tt, data := lexer.Next()
		if tt == css.ErrorToken {
			break
		}
		switch tt {
		case css.WhitespaceToken:
			continue
		case css.CommaToken:
			if cur == nil {
				return nil, fmt.Errorf("%w: unexpected ',' in %q", ErrInvalidArgument, src)
			}
			continue
		}

		if cur == nil {
			if tt != css.FunctionToken {
				return nil, fmt.Errorf("%w: expected function, got %q in %q", ErrInvalidArgument, data, src)
			}
			cur = &Call{Name: strings.TrimSuffix(string(data), "(")}
			continue
		}

		switch tt {
		case css.NumberToken:
			v, err := strconv.ParseFloat(string(data), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidArgument, data)
			}
			cur.args = append(cur.args, argument{num: v})
		case css.DimensionToken:
			a, err := parseDimension(string(data))
			if err != nil {
				return nil, err
			}
			cur.args = append(cur.args, a)
		case css.RightParenthesisToken:
			calls = append(calls, *cur)
			cur = nil
		default:
			return nil, fmt.Errorf("%w: unexpected %q in %s()", ErrInvalidArgument, data, cur.Name)
		}
	}
	if cur != nil {
		return nil, fmt.Errorf("%w: unterminated %s() in %q", ErrInvalidArgument, cur.Name, src)
	}
	return calls, nil
}

// parseDimension splits dimension token ("45deg", "10px") into number and unit.
func parseDimension(s string) (argument, error) {
	numEnd := 0
	for i, r := range s {
		if unicode.IsDigit(r) || r == '.' || r == '-' || r == '+' {
			numEnd = i + 1
		} else {
			break
		}
	}
	if numEnd == 0 {
		return argument{}, fmt.Errorf("%w: %q", ErrInvalidArgument, s)
	}
	v, err := strconv.ParseFloat(s[:numEnd], 64)
	if err != nil {
		return argument{}, fmt.Errorf("%w: %q", ErrInvalidArgument, s)
	}
	return argument{num: v, unit: strings.ToLower(s[numEnd:])}, nil
}
