// Package nth compiles child-index patterns (":nth-child(2n+1)") into
// predicates and hands out selector ids naming every compiled rule.
//
// Ids grow monotonically for the lifetime of a Matcher and are reused for
// identical patterns until Reset is called.
package nth

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ErrInvalidPattern is returned for patterns outside of an+b grammar.
var ErrInvalidPattern = errors.New("invalid nth-child pattern")

// Rule is a compiled pattern.
type Rule struct {
	ID      int
	Pattern string // normalized
	A, B    int
	Valid   bool // false for patterns registered leniently after failure
}

// Match reports whether 1-based child index satisfies the rule, that is
// whether (index - B) mod A == 0. The sign of k in A*k + B is not restricted,
// so "n+4" accepts 2 as well.
func (r Rule) Match(index int) bool {
	if !r.Valid {
		return false
	}
	if r.A == 0 {
		return index == r.B
	}
	return (index-r.B)%r.A == 0
}

// Matcher compiles and caches rules. Not safe for concurrent use, owner
// serializes access.
type Matcher struct {
	log    *zap.Logger
	nextID int
	byPat  map[string]Rule
	byID   map[int]Rule
}

// NewMatcher creates empty matcher.
func NewMatcher(log *zap.Logger) *Matcher {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Matcher{log: log.Named("nth")}
	m.Reset()
	return m
}

// Reset forgets every compiled rule and restarts id sequence.
func (m *Matcher) Reset() {
	m.nextID = 0
	m.byPat = make(map[string]Rule)
	m.byID = make(map[int]Rule)
}

// Len returns number of rules compiled since last reset.
func (m *Matcher) Len() int {
	return len(m.byID)
}

// Compile returns rule for pattern, compiling it and assigning new id on
// first use.
func (m *Matcher) Compile(pattern string) (Rule, error) {
	norm := Normalize(pattern)
	if r, ok := m.byPat[norm]; ok {
		if !r.Valid {
			return r, fmt.Errorf("%w: %q", ErrInvalidPattern, norm)
		}
		return r, nil
	}
	a, b, err := Parse(norm)
	if err != nil {
		return Rule{}, err
	}
	return m.register(Rule{Pattern: norm, A: a, B: b, Valid: true}), nil
}

// CompileLenient is Compile which does not fail: invalid pattern is logged
// and registered as rule which never matches.
func (m *Matcher) CompileLenient(pattern string) Rule {
	r, err := m.Compile(pattern)
	if err == nil || r.ID != 0 {
		return r
	}
	m.log.Warn("Invalid nth-child pattern, rule will never match", zap.String("pattern", pattern), zap.Error(err))
	return m.register(Rule{Pattern: Normalize(pattern)})
}

// Lookup returns rule by id.
func (m *Matcher) Lookup(id int) (Rule, bool) {
	r, ok := m.byID[id]
	return r, ok
}

func (m *Matcher) register(r Rule) Rule {
	m.nextID++
	r.ID = m.nextID
	m.byPat[r.Pattern] = r
	m.byID[r.ID] = r
	m.log.Debug("Compiled nth-child rule", zap.Int("id", r.ID), zap.String("pattern", r.Pattern), zap.Int("a", r.A), zap.Int("b", r.B))
	return r
}

// Normalize lowercases pattern and removes all whitespace.
func Normalize(pattern string) string {
	return strings.ToLower(strings.Join(strings.Fields(pattern), ""))
}

var (
	reInteger = regexp.MustCompile(`^[+-]?\d+$`)
	// operand is optional coefficient with n, or plain number
	reOperand = regexp.MustCompile(`^(\d*)(n?)$`)
)

// Parse folds normalized pattern into (a, b). Bare integer k yields (0, k).
func Parse(norm string) (a, b int, err error) {
	switch norm {
	case "odd":
		return 2, 1, nil
	case "even":
		return 2, 0, nil
	case "":
		return 0, 0, fmt.Errorf("%w: empty", ErrInvalidPattern)
	}
	if reInteger.MatchString(norm) {
		b, err = strconv.Atoi(norm)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPattern, norm)
		}
		return 0, b, nil
	}

	// Split into operators and operands positionally, leading operator
	// defaults to '+'.
	var (
		ops      []byte
		operands []string
		cur      strings.Builder
	)
	rest := norm
	if rest[0] != '+' && rest[0] != '-' {
		rest = "+" + rest
	}
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if c == '+' || c == '-' {
			if i > 0 {
				operands = append(operands, cur.String())
				cur.Reset()
			}
			ops = append(ops, c)
			continue
		}
		cur.WriteByte(c)
	}
	operands = append(operands, cur.String())

	var haveN bool
	for i, operand := range operands {
		parts := reOperand.FindStringSubmatch(operand)
		if parts == nil || operand == "" {
			return 0, 0, fmt.Errorf("%w: bad operand %q in %q", ErrInvalidPattern, operand, norm)
		}
		sign := 1
		if ops[i] == '-' {
			sign = -1
		}
		if parts[2] == "n" {
			if haveN {
				return 0, 0, fmt.Errorf("%w: more than one n term in %q", ErrInvalidPattern, norm)
			}
			haveN = true
			coef := 1
			if parts[1] != "" {
				if coef, err = strconv.Atoi(parts[1]); err != nil {
					return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPattern, norm)
				}
			}
			a += sign * coef
			continue
		}
		v, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPattern, norm)
		}
		b += sign * v
	}
	if !haveN {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPattern, norm)
	}
	return a, b, nil
}
