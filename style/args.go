package style

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/maruel/natural"
)

// ArgKind tells which variant Arg holds.
type ArgKind int

const (
	ArgName   ArgKind = iota // element or layout name
	ArgIndex                 // trailing zero based child index
	ArgFlags                 // names enabled by true flags
	ArgInline                // raw inline override, always last in result
)

func (k ArgKind) String() string {
	switch k {
	case ArgName:
		return "name"
	case ArgIndex:
		return "index"
	case ArgFlags:
		return "flags"
	case ArgInline:
		return "inline"
	}
	return "ArgKind(" + strconv.Itoa(int(k)) + ")"
}

// Arg is single style query argument: element name, zero based child index,
// set of flags (every true flag names an element) or inline style override.
type Arg struct {
	kind   ArgKind
	name   string
	index  int
	flags  map[string]bool
	inline Props
}

// Name refers to element (or layout) by name.
func Name(s string) Arg { return Arg{kind: ArgName, name: s} }

// Key refers to element with numeric key.
func Key(n float64) Arg {
	return Arg{kind: ArgName, name: strconv.FormatFloat(n, 'f', -1, 64)}
}

// Index is zero based child index activating matching pseudo-rules. Must
// be the last argument.
func Index(i int) Arg { return Arg{kind: ArgIndex, index: i} }

// Flags names every element whose flag is true.
func Flags(f map[string]bool) Arg { return Arg{kind: ArgFlags, flags: f} }

// Inline is raw style override, returned last.
func Inline(p Props) Arg { return Arg{kind: ArgInline, inline: p} }

// Names is shortcut for list of Name arguments.
func Names(names ...string) []Arg {
	out := make([]Arg, 0, len(names))
	for _, n := range names {
		out = append(out, Name(n))
	}
	return out
}

// Kind returns variant held by argument.
func (a Arg) Kind() ArgKind { return a.kind }

// Visit calls the handler matching argument variant. Nil handlers are
// skipped.
func (a Arg) Visit(name func(string), index func(int), flags func(map[string]bool), inline func(Props)) {
	switch a.kind {
	case ArgName:
		if name != nil {
			name(a.name)
		}
	case ArgIndex:
		if index != nil {
			index(a.index)
		}
	case ArgFlags:
		if flags != nil {
			flags(a.flags)
		}
	case ArgInline:
		if inline != nil {
			inline(a.inline)
		}
	default:
		panic(fmt.Sprintf("unexpected argument kind %d", a.kind))
	}
}

func (a Arg) String() string {
	switch a.kind {
	case ArgName:
		return a.name
	case ArgIndex:
		return "#" + strconv.Itoa(a.index)
	case ArgFlags:
		return "{" + strings.Join(trueFlags(a.flags), ",") + "}"
	case ArgInline:
		return fmt.Sprintf("%v", a.inline)
	}
	return a.kind.String()
}

// trueFlags returns names of set flags in natural order.
func trueFlags(flags map[string]bool) []string {
	var out []string
	for k, v := range flags {
		if v {
			out = append(out, k)
		}
	}
	slices.SortFunc(out, naturalCmp)
	return out
}

func naturalCmp(a, b string) int {
	switch {
	case a == b:
		return 0
	case natural.Less(a, b):
		return -1
	}
	return 1
}

// query is validated argument list.
type query struct {
	names    []string
	index    int
	hasIndex bool
	inline   Props
}

func parseQuery(args []Arg) (query, error) {
	var (
		q         query
		hasInline bool
		err       error
	)
	for i, a := range args {
		a.Visit(
			func(n string) { q.names = append(q.names, n) },
			func(idx int) {
				if i != len(args)-1 {
					err = fmt.Errorf("%w: index must be the last argument", ErrBadQuery)
					return
				}
				q.index, q.hasIndex = idx, true
			},
			func(f map[string]bool) { q.names = append(q.names, trueFlags(f)...) },
			func(p Props) {
				if hasInline {
					err = fmt.Errorf("%w: more than one inline style", ErrBadQuery)
					return
				}
				q.inline, hasInline = p, true
			},
		)
		if err != nil {
			return query{}, err
		}
	}
	return q, nil
}

// cacheKey joins arguments into query cache key.
func cacheKey(args []Arg) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, a.kind.String()+"="+a.String())
	}
	return strings.Join(parts, "\x00")
}

// layoutName composes active layout name from layout arguments, composite
// names are joined with '&'.
func layoutName(args []Arg) (string, error) {
	var names []string
	for _, a := range args {
		switch a.kind {
		case ArgName:
			names = append(names, a.name)
		case ArgFlags:
			names = append(names, trueFlags(a.flags)...)
		default:
			return "", fmt.Errorf("%w: %s argument is not allowed for layouts", ErrBadQuery, a.kind)
		}
	}
	if len(names) == 0 {
		return CommonLayout, nil
	}
	return strings.Join(names, "&"), nil
}
