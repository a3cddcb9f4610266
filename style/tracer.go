package style

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Tracer records composition steps for debugging. When enabled (via
// non-empty workDir) it captures how layouts were merged, flattened and
// expanded.
//
// The trace is written to a file when Flush() is called. The file is placed
// in the working directory so it gets included in the debug report archive.
type Tracer struct {
	enabled  bool
	workDir  string
	entries  []traceEntry
	sections map[string]int
}

type traceEntry struct {
	operation string
	subject   string
	details   string
}

// NewTracer creates a new tracer. If workDir is empty, tracing is disabled.
func NewTracer(workDir string) *Tracer {
	return &Tracer{
		workDir:  workDir,
		enabled:  workDir != "",
		sections: make(map[string]int),
	}
}

// IsEnabled returns true if tracing is active.
func (t *Tracer) IsEnabled() bool {
	if t == nil {
		return false
	}
	return t.enabled
}

func (t *Tracer) add(operation, section, subject, details string) {
	t.entries = append(t.entries, traceEntry{operation: operation, subject: subject, details: details})
	t.sections[section]++
}

// TraceSnapshot logs layout indexed into snapshot, replaced is true when it
// overrides earlier descriptor with the same layout.
func (t *Tracer) TraceSnapshot(layout string, elements int, replaced bool) {
	if !t.IsEnabled() {
		return
	}
	details := fmt.Sprintf("%d element(s)", elements)
	if replaced {
		details += ", replaces earlier descriptor"
	}
	t.add("SNAPSHOT", "snapshots", layout, details)
}

// TraceMerge logs merge sources of a layout in application order.
func (t *Tracer) TraceMerge(layout string, sources []string, skipped []string) {
	if !t.IsEnabled() {
		return
	}
	details := "sources: " + strings.Join(sources, " -> ")
	if len(skipped) > 0 {
		details += "\nskipped: " + strings.Join(skipped, ", ")
	}
	t.add("MERGE", "merged", layout, details)
}

// TraceNest logs nested group flattened into its own element.
func (t *Tracer) TraceNest(parent, key, element string) {
	if !t.IsEnabled() {
		return
	}
	t.add("NEST", "nested", element, fmt.Sprintf("from %q in %q", key, parent))
}

// TraceNth logs pseudo-rule extraction.
func (t *Tracer) TraceNth(owner, pattern string, id int, valid bool) {
	if !t.IsEnabled() {
		return
	}
	details := fmt.Sprintf("pattern %q -> id %d", pattern, id)
	if !valid {
		details += " (never matches)"
	}
	t.add("NTH", "nth_rules", owner, details)
}

// TraceTransform logs compiled transform.
func (t *Tracer) TraceTransform(element, src, origin string, matrix []float64) {
	if !t.IsEnabled() {
		return
	}
	details := fmt.Sprintf("%q", src)
	if origin != "" {
		details += fmt.Sprintf(" origin %q", origin)
	}
	details += fmt.Sprintf("\nmatrix: %v", matrix)
	t.add("TRANSFORM", "transforms", element, details)
}

// TraceExpand logs shorthand expansion.
func (t *Tracer) TraceExpand(element, property string, raw any, props Props) {
	if !t.IsEnabled() {
		return
	}
	t.add("EXPAND", "expanded", element, fmt.Sprintf("%s: %v\n%s", property, raw, traceFormatProps(props)))
}

// TraceRecompute logs runtime wide recompute.
func (t *Tracer) TraceRecompute(generation uint64, tables int, failed int) {
	if !t.IsEnabled() {
		return
	}
	t.add("RECOMPUTE", "recomputes", fmt.Sprintf("generation %d", generation), fmt.Sprintf("%d table(s), %d failed", tables, failed))
}

// Flush writes the trace to a file and clears the buffer.
// Returns the path to the trace file, or empty string if tracing is disabled.
func (t *Tracer) Flush() string {
	if !t.IsEnabled() || len(t.entries) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("=== Style Trace ===\n\n")

	sb.WriteString("Summary:\n")
	for _, section := range slices.SortedFunc(maps.Keys(t.sections), naturalCmp) {
		fmt.Fprintf(&sb, "  %s: %d\n", section, t.sections[section])
	}
	sb.WriteString("\n")

	sb.WriteString("Detailed Trace:\n")
	sb.WriteString(strings.Repeat("-", 80) + "\n")

	for i, entry := range t.entries {
		fmt.Fprintf(&sb, "[%04d] %s: %s\n", i+1, entry.operation, entry.subject)
		if entry.details != "" {
			for line := range strings.SplitSeq(entry.details, "\n") {
				sb.WriteString("       " + line + "\n")
			}
		}
		sb.WriteString("\n")
	}

	tracePath := filepath.Join(t.workDir, "style-trace.txt")
	if err := os.WriteFile(tracePath, []byte(sb.String()), 0644); err != nil {
		return ""
	}

	t.entries = nil
	t.sections = make(map[string]int)

	return tracePath
}

// traceFormatProps formats property bag for trace output.
func traceFormatProps(props Props) string {
	if len(props) == 0 {
		return "(no properties)"
	}
	parts := make([]string, 0, len(props))
	for _, k := range slices.SortedFunc(maps.Keys(props), naturalCmp) {
		parts = append(parts, fmt.Sprintf("%s: %v", k, props[k]))
	}
	return strings.Join(parts, ", ")
}
