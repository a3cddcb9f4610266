package style

import (
	"fmt"
	"slices"
	"strings"

	"stylec/utils/debug"
)

// Dump renders table as indented tree with layouts, elements and properties
// in natural order.
func Dump(t *Table) string {
	t.rt.mu.Lock()
	defer t.rt.mu.Unlock()

	tw := debug.NewTreeWriter()
	tw.Line(0, "table %s generation %d active %q", t.id, t.gen, t.active)
	for _, name := range slices.SortedFunc(slices.Values(t.comp.order), naturalCmp) {
		l := t.comp.layouts[name]
		tw.Line(1, "layout %q (%d elements)", name, len(l.bags))
		for _, element := range sortedKeys(l.bags) {
			tw.Line(2, "%s", element)
			tw.Props(3, l.bags[element])
		}
		for _, owner := range sortedKeys(l.nth) {
			rules := make([]string, 0, len(l.nth[owner]))
			for _, id := range l.nth[owner] {
				if r, ok := t.rt.composer.matcher.Lookup(id); ok {
					rules = append(rules, fmt.Sprintf("%d=%s", id, r.Pattern))
				} else {
					rules = append(rules, fmt.Sprintf("%d=?", id))
				}
			}
			tw.TextBlock(2, "nth "+owner, strings.Join(rules, " "))
		}
	}
	return tw.String()
}
