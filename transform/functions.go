package transform

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
)

// Translate3d moves by (x, y, z).
func Translate3d(x, y, z float64) Matrix {
	return Matrix{
		1, 0, 0, x,
		0, 1, 0, y,
		0, 0, 1, z,
		0, 0, 0, 1,
	}
}

// Scale3d scales along every axis independently.
func Scale3d(x, y, z float64) Matrix {
	return Matrix{
		x, 0, 0, 0,
		0, y, 0, 0,
		0, 0, z, 0,
		0, 0, 0, 1,
	}
}

// RotateX rotates around x axis. Rotations take angle in radians.
func RotateX(rad float64) Matrix {
	s, c := math.Sincos(rad)
	return Matrix{
		1, 0, 0, 0,
		0, c, -s, 0,
		0, s, c, 0,
		0, 0, 0, 1,
	}
}

// RotateY rotates around y axis.
func RotateY(rad float64) Matrix {
	s, c := math.Sincos(rad)
	return Matrix{
		c, 0, s, 0,
		0, 1, 0, 0,
		-s, 0, c, 0,
		0, 0, 0, 1,
	}
}

// RotateZ rotates around z axis, this is what 2d rotate produces.
func RotateZ(rad float64) Matrix {
	s, c := math.Sincos(rad)
	return Matrix{
		c, -s, 0, 0,
		s, c, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Rotate3d rotates around axis (x, y, z) by angle in radians. Zero axis
// yields identity.
func Rotate3d(x, y, z, rad float64) Matrix {
	l := math.Sqrt(x*x + y*y + z*z)
	if l == 0 {
		return Identity()
	}
	x, y, z = x/l, y/l, z/l
	s, c := math.Sincos(rad)
	t := 1 - c
	return Matrix{
		t*x*x + c, t*x*y - s*z, t*x*z + s*y, 0,
		t*x*y + s*z, t*y*y + c, t*y*z - s*x, 0,
		t*x*z - s*y, t*y*z + s*x, t*z*z + c, 0,
		0, 0, 0, 1,
	}
}

// Skew shears along x and y, angles in radians.
func Skew(ax, ay float64) Matrix {
	return Matrix{
		1, math.Tan(ax), 0, 0,
		math.Tan(ay), 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Matrix2d builds matrix from CSS matrix(a, b, c, d, e, f).
func Matrix2d(a, b, c, d, e, f float64) Matrix {
	return Matrix{
		a, c, 0, e,
		b, d, 0, f,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Matrix3d builds matrix from 16 CSS matrix3d() values, which are listed in
// column-major order.
func Matrix3d(v [16]float64) Matrix {
	var m Matrix
	for r := range 4 {
		for c := range 4 {
			m[r*4+c] = v[c*4+r]
		}
	}
	return m
}

// Angle conversions.
func DegToRad(v float64) float64  { return v / 180 * math.Pi }
func GradToRad(v float64) float64 { return v / 200 * math.Pi }
func TurnToRad(v float64) float64 { return v * 2 * math.Pi }

// ParseAngle converts angle ("45", "45deg", "100grad", "0.5turn", "1rad")
// to radians.
func ParseAngle(s string) (float64, error) {
	a, err := parseDimension(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return a.angle()
}

// argument is single numeric transform function argument.
type argument struct {
	num  float64
	unit string
}

func (a argument) String() string {
	return fmt.Sprintf("%g%s", a.num, a.unit)
}

// angle converts argument to radians, unitless values are degrees.
func (a argument) angle() (float64, error) {
	switch strings.ToLower(a.unit) {
	case "", "deg":
		return DegToRad(a.num), nil
	case "grad":
		return GradToRad(a.num), nil
	case "turn":
		return TurnToRad(a.num), nil
	case "rad":
		return a.num, nil
	}
	return 0, fmt.Errorf("%w: %s is not an angle", ErrInvalidArgument, a)
}

// length accepts unitless and px values.
func (a argument) length() (float64, error) {
	switch strings.ToLower(a.unit) {
	case "", "px":
		return a.num, nil
	}
	return 0, fmt.Errorf("%w: %s is not a length", ErrInvalidArgument, a)
}

func (a argument) number() (float64, error) {
	if a.unit != "" {
		return 0, fmt.Errorf("%w: %s is not a number", ErrInvalidArgument, a)
	}
	return a.num, nil
}

type function struct {
	min, max int
	build    func(args []argument) (Matrix, error)
}

// functions lists every supported transform function.
var functions = map[string]function{
	"translate": {1, 2, func(args []argument) (Matrix, error) {
		v, err := convert(args, argument.length, 0)
		if len(args) == 1 {
			v[1] = v[0]
		}
		return Translate3d(v[0], v[1], 0), err
	}},
	"translate3d": {3, 3, func(args []argument) (Matrix, error) {
		v, err := convert(args, argument.length, 0)
		return Translate3d(v[0], v[1], v[2]), err
	}},
	"translateX": {1, 1, func(args []argument) (Matrix, error) {
		v, err := convert(args, argument.length, 0)
		return Translate3d(v[0], 0, 0), err
	}},
	"translateY": {1, 1, func(args []argument) (Matrix, error) {
		v, err := convert(args, argument.length, 0)
		return Translate3d(0, v[0], 0), err
	}},
	"translateZ": {1, 1, func(args []argument) (Matrix, error) {
		v, err := convert(args, argument.length, 0)
		return Translate3d(0, 0, v[0]), err
	}},
	"scale": {1, 2, func(args []argument) (Matrix, error) {
		v, err := convert(args, argument.number, 0)
		if len(args) == 1 {
			v[1] = v[0]
		}
		return Scale3d(v[0], v[1], 1), err
	}},
	"scale3d": {3, 3, func(args []argument) (Matrix, error) {
		v, err := convert(args, argument.number, 0)
		return Scale3d(v[0], v[1], v[2]), err
	}},
	"scaleX": {1, 1, func(args []argument) (Matrix, error) {
		v, err := convert(args, argument.number, 0)
		return Scale3d(v[0], 1, 1), err
	}},
	"scaleY": {1, 1, func(args []argument) (Matrix, error) {
		v, err := convert(args, argument.number, 0)
		return Scale3d(1, v[0], 1), err
	}},
	"scaleZ": {1, 1, func(args []argument) (Matrix, error) {
		v, err := convert(args, argument.number, 0)
		return Scale3d(1, 1, v[0]), err
	}},
	"rotate": {1, 1, func(args []argument) (Matrix, error) {
		v, err := convert(args, argument.angle, 0)
		return RotateZ(v[0]), err
	}},
	"rotateX": {1, 1, func(args []argument) (Matrix, error) {
		v, err := convert(args, argument.angle, 0)
		return RotateX(v[0]), err
	}},
	"rotateY": {1, 1, func(args []argument) (Matrix, error) {
		v, err := convert(args, argument.angle, 0)
		return RotateY(v[0]), err
	}},
	"rotateZ": {1, 1, func(args []argument) (Matrix, error) {
		v, err := convert(args, argument.angle, 0)
		return RotateZ(v[0]), err
	}},
	"rotate3d": {4, 4, func(args []argument) (Matrix, error) {
		axis, err := convert(args[:3], argument.number, 0)
		if err != nil {
			return Identity(), err
		}
		a, err := args[3].angle()
		return Rotate3d(axis[0], axis[1], axis[2], a), err
	}},
	"skew": {1, 2, func(args []argument) (Matrix, error) {
		v, err := convert(args, argument.angle, 0)
		return Skew(v[0], v[1]), err
	}},
	"skewX": {1, 1, func(args []argument) (Matrix, error) {
		v, err := convert(args, argument.angle, 0)
		return Skew(v[0], 0), err
	}},
	"skewY": {1, 1, func(args []argument) (Matrix, error) {
		v, err := convert(args, argument.angle, 0)
		return Skew(0, v[0]), err
	}},
	"skewXY": {1, 2, func(args []argument) (Matrix, error) {
		v, err := convert(args, argument.angle, 0)
		if len(args) == 1 {
			v[1] = v[0]
		}
		return Skew(v[0], v[1]), err
	}},
	"matrix": {6, 6, func(args []argument) (Matrix, error) {
		v, err := convert(args, argument.number, 0)
		return Matrix2d(v[0], v[1], v[2], v[3], v[4], v[5]), err
	}},
	"matrix3d": {16, 16, func(args []argument) (Matrix, error) {
		v, err := convert(args, argument.number, 0)
		return Matrix3d([16]float64(v)), err
	}},
}

// convert applies conversion to every argument. Result always has at least
// 3 elements (padded with def) so builders can index optional arguments.
func convert(args []argument, conv func(argument) (float64, error), def float64) ([]float64, error) {
	out := make([]float64, max(len(args), 3))
	for i := range out {
		out[i] = def
	}
	for i, a := range args {
		v, err := conv(a)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

// Functions returns names of supported transform functions.
func Functions() []string {
	return slices.Sorted(maps.Keys(functions))
}
