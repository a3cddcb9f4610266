// Package debug has helpers producing human readable dumps.
package debug

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/maruel/natural"
)

const defaultIndent = "  "

// TreeWriter accumulates indented lines.
type TreeWriter struct {
	w      *strings.Builder
	indent string
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w:      &strings.Builder{},
		indent: defaultIndent,
	}
}

// WithIndent changes indentation unit, empty string restores default.
func (tw *TreeWriter) WithIndent(indent string) *TreeWriter {
	if indent == "" {
		indent = defaultIndent
	}
	tw.indent = indent
	return tw
}

func (tw *TreeWriter) String() string {
	return tw.w.String()
}

func (tw *TreeWriter) pad(depth int) {
	for range depth {
		tw.w.WriteString(tw.indent)
	}
}

func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.pad(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// TextBlock writes label with quoted value.
func (tw *TreeWriter) TextBlock(depth int, label, value string) {
	tw.pad(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(encodeText(value))
	tw.w.WriteByte('\n')
}

// Prop writes "key: value" with value rendered by FormatValue.
func (tw *TreeWriter) Prop(depth int, key string, value any) {
	tw.pad(depth)
	tw.w.WriteString(key)
	tw.w.WriteString(": ")
	tw.w.WriteString(FormatValue(value))
	tw.w.WriteByte('\n')
}

// Props writes every entry of the map, keys in natural order.
func (tw *TreeWriter) Props(depth int, props map[string]any) {
	for _, k := range slices.SortedFunc(maps.Keys(props), naturalCmp) {
		tw.Prop(depth, k, props[k])
	}
}

// FormatValue renders value deterministically: maps with naturally sorted
// keys, strings quoted.
func FormatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		parts := make([]string, 0, len(val))
		for _, k := range slices.SortedFunc(maps.Keys(val), naturalCmp) {
			parts = append(parts, k+": "+FormatValue(val[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, FormatValue(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return strconv.Quote(val)
	}
	return fmt.Sprintf("%v", v)
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

func encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	return strconv.Quote(raw)
}
