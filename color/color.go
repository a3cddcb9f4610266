// Package color converts between the color notations style descriptors use
// (hex literals, rgb()/rgba() functions, named colors) and the canonical
// rgba(r,g,b,a) string the host framework consumes.
package color

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// ErrInvalidColor is returned for literals the codec cannot interpret.
var ErrInvalidColor = errors.New("invalid color")

// RGBA is a color with 8 bit channels and alpha in [0, 1].
type RGBA struct {
	R, G, B uint8
	A       float64
}

// Opaque returns fully opaque color.
func Opaque(r, g, b uint8) RGBA {
	return RGBA{R: r, G: g, B: b, A: 1}
}

// String formats color as canonical rgba(r,g,b,a).
func (c RGBA) String() string {
	return fmt.Sprintf("rgba(%d,%d,%d,%s)", c.R, c.G, c.B, strconv.FormatFloat(c.A, 'f', -1, 64))
}

// Hex formats color as #rrggbb, alpha is dropped.
func (c RGBA) Hex() string {
	return RGBToHex(c.R, c.G, c.B)
}

// WithAlpha returns a copy of the color with alpha clamped to [0, 1].
func (c RGBA) WithAlpha(a float64) RGBA {
	c.A = clampAlpha(a)
	return c
}

// RGBToHex formats channels as #rrggbb.
func RGBToHex(r, g, b uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// HexToRGB parses 3, 4, 6 or 8 digit hex literals, leading '#' is optional.
// Short forms duplicate every nibble, the 4th (or 4th pair) digit is alpha.
func HexToRGB(s string) (RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(hex) {
	case 3, 4:
		var long strings.Builder
		for _, r := range hex {
			long.WriteRune(r)
			long.WriteRune(r)
		}
		hex = long.String()
	case 6, 8:
	default:
		return RGBA{}, fmt.Errorf("%w: hex literal %q has %d digits", ErrInvalidColor, s, len(hex))
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGBA{}, fmt.Errorf("%w: hex literal %q", ErrInvalidColor, s)
	}
	if len(hex) == 6 {
		return Opaque(uint8(v>>16), uint8(v>>8), uint8(v)), nil
	}
	return RGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: float64(uint8(v)) / 255,
	}, nil
}

// RGB builds color from function arguments the way rgb()/rgba() literals
// are written in descriptors:
//
//	rgb("#fff")            one hex argument
//	rgb("#fff", "0.5")     hex and alpha
//	rgb("1", "2", "3")     raw channels, optional 4th alpha
//
// Channels are clamped to [0, 255], alpha to [0, 1].
func RGB(args ...string) (RGBA, error) {
	switch len(args) {
	case 1:
		return HexToRGB(args[0])
	case 2:
		c, err := HexToRGB(args[0])
		if err != nil {
			return RGBA{}, err
		}
		a, err := parseAlpha(args[1])
		if err != nil {
			return RGBA{}, err
		}
		return c.WithAlpha(a), nil
	case 3, 4:
		var ch [3]uint8
		for i := range 3 {
			v, err := parseChannel(args[i])
			if err != nil {
				return RGBA{}, err
			}
			ch[i] = v
		}
		c := Opaque(ch[0], ch[1], ch[2])
		if len(args) == 4 {
			a, err := parseAlpha(args[3])
			if err != nil {
				return RGBA{}, err
			}
			c = c.WithAlpha(a)
		}
		return c, nil
	}
	return RGBA{}, fmt.Errorf("%w: rgb() takes 1 to 4 arguments, got %d", ErrInvalidColor, len(args))
}

// Parse recognizes any color literal: hex, rgb()/rgba(), "transparent" and
// SVG named colors.
func Parse(s string) (RGBA, error) {
	raw := strings.TrimSpace(s)
	lower := strings.ToLower(raw)

	switch {
	case strings.HasPrefix(raw, "#"):
		return HexToRGB(raw)
	case strings.HasPrefix(lower, "rgb(") || strings.HasPrefix(lower, "rgba("):
		open := strings.IndexByte(lower, '(')
		if !strings.HasSuffix(lower, ")") {
			return RGBA{}, fmt.Errorf("%w: unterminated %q", ErrInvalidColor, s)
		}
		var args []string
		for part := range strings.SplitSeq(raw[open+1:len(raw)-1], ",") {
			args = append(args, strings.TrimSpace(part))
		}
		return RGB(args...)
	case lower == "transparent":
		return RGBA{}, nil
	}

	if c, ok := colornames.Map[lower]; ok {
		return Opaque(c.R, c.G, c.B), nil
	}
	return RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
}

// IsColor reports whether s is a color literal Parse accepts.
func IsColor(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Normalize parses any color literal and formats it as rgba(r,g,b,a).
func Normalize(s string) (string, error) {
	c, err := Parse(s)
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

func parseChannel(s string) (uint8, error) {
	s = strings.TrimSpace(s)
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		v, err := strconv.ParseFloat(pct, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: channel %q", ErrInvalidColor, s)
		}
		return clampChannel(v * 255 / 100), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: channel %q", ErrInvalidColor, s)
	}
	return clampChannel(v), nil
}

func parseAlpha(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		v, err := strconv.ParseFloat(pct, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: alpha %q", ErrInvalidColor, s)
		}
		return clampAlpha(v / 100), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: alpha %q", ErrInvalidColor, s)
	}
	return clampAlpha(v), nil
}

func clampChannel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}

func clampAlpha(a float64) float64 {
	return math.Max(0, math.Min(1, a))
}
