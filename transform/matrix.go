// Package transform compiles CSS-like transform function strings
// ("translate(10, 20) rotate(45deg) scale(2)") into 4x4 homogeneous matrices
// with transform-origin folded in.
package transform

import (
	"math"
	"strconv"
	"strings"
)

// Matrix is 4x4 homogeneous transform stored row-major.
type Matrix [16]float64

// Identity returns identity matrix.
func Identity() Matrix {
	return Matrix{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// At returns element at row r, column c.
func (m Matrix) At(r, c int) float64 {
	return m[r*4+c]
}

// Mul returns m·n.
func (m Matrix) Mul(n Matrix) Matrix {
	var out Matrix
	for r := range 4 {
		for c := range 4 {
			var sum float64
			for k := range 4 {
				sum += m[r*4+k] * n[k*4+c]
			}
			out[r*4+c] = sum
		}
	}
	return out
}

// Compose multiplies matrices left to right, reducing list pairwise:
// Compose(a, b, c) == (a·b)·c. Empty list is identity.
func Compose(ms ...Matrix) Matrix {
	switch len(ms) {
	case 0:
		return Identity()
	case 1:
		return ms[0]
	}
	return Compose(append([]Matrix{ms[0].Mul(ms[1])}, ms[2:]...)...)
}

// IsAffine reports whether bottom row is (0, 0, 0, 1).
func (m Matrix) IsAffine() bool {
	return m[12] == 0 && m[13] == 0 && m[14] == 0 && m[15] == 1
}

// Origin is transform-origin relative to the point the host transforms
// around.
type Origin struct {
	X, Y, Z float64
}

// IsZero reports whether origin is the default one.
func (o Origin) IsZero() bool {
	return o == Origin{}
}

// AtOrigin returns m conjugated with translation to origin o, that is
// T(o)·m·T(-o). For affine matrices the correction is folded directly into
// translation terms.
func (m Matrix) AtOrigin(o Origin) Matrix {
	if o.IsZero() {
		return m
	}
	if !m.IsAffine() {
		return Compose(Translate3d(o.X, o.Y, o.Z), m, Translate3d(-o.X, -o.Y, -o.Z))
	}
	out := m
	out[3] = o.X + m[3] - m[0]*o.X - m[1]*o.Y - m[2]*o.Z
	out[7] = o.Y + m[7] - m[4]*o.X - m[5]*o.Y - m[6]*o.Z
	out[11] = o.Z + m[11] - m[8]*o.X - m[9]*o.Y - m[10]*o.Z
	return out
}

// ColumnMajor returns elements in column-major order, which is how the host
// framework expects matrix values.
func (m Matrix) ColumnMajor() []float64 {
	out := make([]float64, 16)
	for r := range 4 {
		for c := range 4 {
			out[c*4+r] = m[r*4+c]
		}
	}
	return out
}

// ApproxEqual compares matrices element-wise with tolerance eps.
func (m Matrix) ApproxEqual(n Matrix, eps float64) bool {
	for i := range m {
		if math.Abs(m[i]-n[i]) > eps {
			return false
		}
	}
	return true
}

func (m Matrix) String() string {
	var b strings.Builder
	for r := range 4 {
		if r > 0 {
			b.WriteByte('\n')
		}
		for c := range 4 {
			if c > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.FormatFloat(m.At(r, c), 'g', 6, 64))
		}
	}
	return b.String()
}

// HostValue returns transform value as the host framework consumes it: a
// list with single matrix entry in column-major order.
func HostValue(m Matrix) []any {
	return []any{map[string]any{"matrix": m.ColumnMajor()}}
}
