package style

import (
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"stylec/metrics"
	"stylec/nth"
	"stylec/shorthand"
	"stylec/transform"
)

func newRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	rt := New(append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
	t.Cleanup(rt.Close)
	return rt
}

func mustStyle(t *testing.T, tbl *Table, layout, element string) Props {
	t.Helper()
	s, ok := tbl.Style(layout, element)
	if !ok {
		t.Fatalf("no style %s/%s", layout, element)
	}
	p, ok := s.(Props)
	if !ok {
		t.Fatalf("style %s/%s is %T", layout, element, s)
	}
	return p
}

func TestNormalize(t *testing.T) {
	d1 := Descriptor{"a": Props{"color": "red"}}
	d2 := map[string]any{"layout": "wide", "a": Props{"color": "blue"}}

	tests := []struct {
		name  string
		input any
		want  int
	}{
		{"descriptor", d1, 1},
		{"map", d2, 1},
		{"descriptor list", []Descriptor{d1, d1}, 2},
		{"any list", []any{d1, d2}, 2},
		{"nested list", []any{d1, []any{d2, d1}}, 3},
		{"producer", func() any { return []any{d1, d2} }, 2},
		{"static", Static{d1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Normalize() len = %d, want %d", len(got), tt.want)
			}
		})
	}

	for _, bad := range []any{nil, 42, "a", []any{1}, []any{[]any{[]any{d1}}}} {
		if _, err := Normalize(bad); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Normalize(%v) error = %v, want ErrInvalidInput", bad, err)
		}
	}
}

func TestDescriptorAccessors(t *testing.T) {
	d := Descriptor{"layout": "wide", "@extendLayouts": []any{"a", 1, "b"}}
	if d.Layout() != "wide" {
		t.Errorf("Layout() = %q", d.Layout())
	}
	if got := d.Extends(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Extends() = %v", got)
	}
	if (Descriptor{}).Layout() != CommonLayout {
		t.Error("default layout is not common")
	}
}

func TestShorthandEndToEnd(t *testing.T) {
	rt := newRuntime(t)

	tbl, err := rt.CreateStyle(Descriptor{
		"box":  Props{"margin": shorthand.Margin(10)},
		"card": Props{"padding": "4 8", "border": "2 red", "boxShadow": "1 2"},
	})
	if err != nil {
		t.Fatalf("CreateStyle() error = %v", err)
	}

	want := Props{"marginTop": 10.0, "marginRight": 10.0, "marginBottom": 10.0, "marginLeft": 10.0}
	if got := mustStyle(t, tbl, CommonLayout, "box"); !reflect.DeepEqual(got, want) {
		t.Errorf("box = %v, want %v", got, want)
	}

	card := mustStyle(t, tbl, CommonLayout, "card")
	if card["paddingTop"] != 4.0 || card["paddingRight"] != 8.0 || card["paddingBottom"] != 4.0 || card["paddingLeft"] != 8.0 {
		t.Errorf("card padding = %v", card)
	}
	if card["borderWidth"] != 2.0 || card["borderStyle"] != "solid" || card["borderColor"] != "rgba(255,0,0,1)" {
		t.Errorf("card border = %v", card)
	}
	if _, ok := card["padding"]; ok {
		t.Error("shorthand key was not removed")
	}
	if card["shadowRadius"] != 0.0 || card["shadowOpacity"] != 1.0 {
		t.Errorf("card shadow = %v", card)
	}
}

func TestShorthandErrors(t *testing.T) {
	rt := newRuntime(t)
	_, err := rt.CreateStyle(Descriptor{"box": Props{"border": "red blue"}})
	if !errors.Is(err, shorthand.ErrDuplicateArgument) {
		t.Fatalf("CreateStyle() error = %v, want ErrDuplicateArgument", err)
	}
	if !strings.Contains(err.Error(), "color") || !strings.Contains(err.Error(), "box") {
		t.Errorf("error %q does not name element and field", err)
	}
	if len(rt.Tables()) != 0 {
		t.Error("failed table was registered")
	}
}

func TestLayoutMerge(t *testing.T) {
	rt := newRuntime(t)

	tbl, err := rt.CreateStyle([]any{
		Descriptor{"layout": "common", "a": Props{"color": "red", "fontSize": 12}},
		Descriptor{"layout": "wide", "a": Props{"color": "blue"}},
	})
	if err != nil {
		t.Fatalf("CreateStyle() error = %v", err)
	}

	if err := tbl.SetLayouts(Name("wide")); err != nil {
		t.Fatal(err)
	}
	res, err := tbl.StyleNames(Name("a"))
	if err != nil {
		t.Fatalf("StyleNames() error = %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("StyleNames() = %v", res)
	}
	a := res[0].(Props)
	if a["color"] != "blue" || a["fontSize"] != 12 {
		t.Errorf("wide a = %v", a)
	}
	if inline, ok := res[1].(Props); !ok || len(inline) != 0 {
		t.Errorf("inline = %v", res[1])
	}

	if got := mustStyle(t, tbl, CommonLayout, "a"); got["color"] != "red" {
		t.Errorf("common a = %v", got)
	}
	if got := tbl.Layouts(); !reflect.DeepEqual(got, []string{"common", "wide"}) {
		t.Errorf("Layouts() = %v", got)
	}
}

func TestLayoutExtends(t *testing.T) {
	rt := newRuntime(t)

	tbl, err := rt.CreateStyle([]Descriptor{
		{"a": Props{"color": "red", "margin": 1}},
		{"layout": "dark", "a": Props{"color": "black", "opacity": 0.5}},
		{"layout": "big", "a": Props{"fontSize": 30, "color": "green"}},
		{"layout": "darkBig", "@extendLayouts": []any{"big", "missing", "dark"}, "a": Props{"opacity": 1}},
		// replaces first "big"
		{"layout": "big", "a": Props{"fontSize": 40}},
	})
	if err != nil {
		t.Fatalf("CreateStyle() error = %v", err)
	}

	got := mustStyle(t, tbl, "darkBig", "a")
	want := Props{"color": "black", "margin": 1, "fontSize": 40, "opacity": 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("darkBig a = %v, want %v", got, want)
	}
	if _, ok := got["@extendLayouts"]; ok {
		t.Error("@extendLayouts leaked into styles")
	}
	if _, ok := tbl.Layout("darkBig"); !ok {
		t.Error("Layout(darkBig) missing")
	}
	if len(tbl.Raw()) != 5 || len(tbl.Snapshot()) != 4 {
		t.Errorf("Raw() = %d, Snapshot() = %d", len(tbl.Raw()), len(tbl.Snapshot()))
	}
}

func TestFallbackToCommon(t *testing.T) {
	rt := newRuntime(t)

	tbl, err := rt.CreateStyle([]Descriptor{
		{"a": Props{"color": "red"}, "b": Props{"color": "green"}},
		{"layout": "wide", "a": Props{"color": "blue"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := tbl.SetLayouts(Flags(map[string]bool{"wide": true, "tall": false})); err != nil {
		t.Fatal(err)
	}
	if tbl.ActiveLayout() != "wide" {
		t.Errorf("ActiveLayout() = %q", tbl.ActiveLayout())
	}

	res, err := tbl.StyleNames(Name("b"), Name("missing"), Name("a"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 3 || res[0].(Props)["color"] != "green" || res[1].(Props)["color"] != "blue" {
		t.Errorf("StyleNames() = %v", res)
	}

	// unknown composite layout resolves against common
	if err := tbl.SetLayouts(Name("wide"), Name("tablet")); err != nil {
		t.Fatal(err)
	}
	if tbl.ActiveLayout() != "wide&tablet" {
		t.Errorf("ActiveLayout() = %q", tbl.ActiveLayout())
	}
	res, err = tbl.StyleNames(Name("a"))
	if err != nil {
		t.Fatal(err)
	}
	if res[0].(Props)["color"] != "red" {
		t.Errorf("StyleNames() = %v", res)
	}

	if err := tbl.SetLayouts(Index(1)); !errors.Is(err, ErrBadQuery) {
		t.Errorf("SetLayouts(Index) error = %v", err)
	}
}

func TestNesting(t *testing.T) {
	rt := newRuntime(t)

	tbl, err := rt.CreateStyle(Descriptor{
		"item": Props{
			"color": "red",
			"&Title": Props{
				"fontSize": 20,
				"&Icon":    Props{"width": 10},
			},
		},
		"itemTitle": Props{"fontSize": 10, "fontWeight": "bold"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := mustStyle(t, tbl, CommonLayout, "item"); !reflect.DeepEqual(got, Props{"color": "red"}) {
		t.Errorf("item = %v", got)
	}
	want := Props{"fontSize": 20, "fontWeight": "bold"}
	if got := mustStyle(t, tbl, CommonLayout, "itemTitle"); !reflect.DeepEqual(got, want) {
		t.Errorf("itemTitle = %v, want %v", got, want)
	}
	if got := mustStyle(t, tbl, CommonLayout, "itemTitleIcon"); !reflect.DeepEqual(got, Props{"width": 10}) {
		t.Errorf("itemTitleIcon = %v", got)
	}
}

func TestNthRules(t *testing.T) {
	rt := newRuntime(t)

	tbl, err := rt.CreateStyle(Descriptor{
		"row": Props{
			"height":             40,
			"&:nth-child(2n+1)":  Props{"backgroundColor": "#eee"},
			"&:nth-child(3)":     Props{"borderWidth": 2},
			"&:nth-child(-n+ 2)": Props{"fontWeight": "bold"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	row := mustStyle(t, tbl, CommonLayout, "row")
	if len(row) != 1 {
		t.Errorf("row still holds pseudo-rules: %v", row)
	}

	count := func(index int) int {
		res, err := tbl.StyleNames(Name("row"), Index(index))
		if err != nil {
			t.Fatal(err)
		}
		return len(res) - 2
	}
	// index is zero based, rules see index+1; -n+2 accepts every index
	for index, want := range map[int]int{0: 2, 1: 1, 2: 3, 3: 1, 4: 2} {
		if got := count(index); got != want {
			t.Errorf("index %d matched %d rules, want %d", index, got, want)
		}
	}

	res, err := tbl.StyleNames(Name("row"), Index(2))
	if err != nil {
		t.Fatal(err)
	}
	var background, border bool
	for _, r := range res[1 : len(res)-1] {
		p := r.(Props)
		background = background || p["backgroundColor"] == "#eee"
		border = border || p["borderWidth"] == 2
	}
	if !background || !border {
		t.Errorf("StyleNames(row, 2) = %v", res)
	}

	if _, err := tbl.StyleNames(Index(1), Name("row")); !errors.Is(err, ErrBadQuery) {
		t.Errorf("non trailing index error = %v", err)
	}
	if _, err := tbl.StyleNames(Inline(Props{}), Inline(Props{})); !errors.Is(err, ErrBadQuery) {
		t.Errorf("double inline error = %v", err)
	}
}

func TestNthInvalidPattern(t *testing.T) {
	strict := newRuntime(t)
	in := Descriptor{"row": Props{"&:nth-child(foo)": Props{"color": "red"}}}
	if _, err := strict.CreateStyle(in); !errors.Is(err, nth.ErrInvalidPattern) {
		t.Fatalf("strict error = %v, want ErrInvalidPattern", err)
	}

	lenient := newRuntime(t, WithStrict(false))
	tbl, err := lenient.CreateStyle(in)
	if err != nil {
		t.Fatalf("lenient error = %v", err)
	}
	for i := range 5 {
		res, err := tbl.StyleNames(Name("row"), Index(i))
		if err != nil {
			t.Fatal(err)
		}
		if len(res) != 2 {
			t.Errorf("invalid rule matched index %d: %v", i, res)
		}
	}
}

func TestInlineAndFlags(t *testing.T) {
	rt := newRuntime(t)
	tbl, err := rt.CreateStyle(Descriptor{
		"a": Props{"color": "red"},
		"b": Props{"color": "green"},
		"1": Props{"color": "blue"},
	})
	if err != nil {
		t.Fatal(err)
	}

	inline := Props{"opacity": 0.3}
	res, err := tbl.StyleNames(Flags(map[string]bool{"b": true, "a": true, "c": false}), Key(1), Inline(inline))
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 4 {
		t.Fatalf("StyleNames() = %v", res)
	}
	colors := []any{res[0].(Props)["color"], res[1].(Props)["color"], res[2].(Props)["color"]}
	if !reflect.DeepEqual(colors, []any{"red", "green", "blue"}) {
		t.Errorf("colors = %v", colors)
	}
	if !reflect.DeepEqual(res[3], inline) {
		t.Errorf("inline = %v", res[3])
	}
}

func TestTransform(t *testing.T) {
	rt := newRuntime(t)
	_, err := rt.CreateStyle(Descriptor{
		"a": Props{"transform": "translate(10, 20) scale(2)", "transformOrigin": "50% 50%"},
		"b": Props{"transform": "rotate(90deg)", "transformOrigin": "left top", "width": 100, "height": 100},
		"c": Props{"transformOrigin": "center"},
	})
	if err == nil {
		t.Fatal("percentage origin without geometry accepted in strict mode")
	}
	if !errors.Is(err, transform.ErrMissingGeometry) {
		t.Fatalf("error = %v, want ErrMissingGeometry", err)
	}

	tbl, err := rt.CreateStyle(Descriptor{
		"a": Props{"transform": "translate(10, 20) scale(2)"},
		"b": Props{"transform": "rotate(90deg)", "transformOrigin": "left top", "width": 100, "height": 100},
		"c": Props{"transformOrigin": "center"},
		"d": Props{"transform": "rotate(90deg)", "transformOrigin": "10 10"},
	})
	if err != nil {
		t.Fatal(err)
	}

	want := transform.HostValue(transform.Translate3d(10, 20, 0).Mul(transform.Scale3d(2, 2, 1)))
	if got := mustStyle(t, tbl, CommonLayout, "a")["transform"]; !reflect.DeepEqual(got, want) {
		t.Errorf("a transform = %v, want %v", got, want)
	}

	b := mustStyle(t, tbl, CommonLayout, "b")
	if _, ok := b["transformOrigin"]; ok {
		t.Error("transformOrigin left in b")
	}
	m := transform.RotateZ(transform.DegToRad(90)).AtOrigin(transform.Origin{X: -50, Y: -50})
	if !reflect.DeepEqual(b["transform"], transform.HostValue(m)) {
		t.Errorf("b transform = %v", b["transform"])
	}

	if c := mustStyle(t, tbl, CommonLayout, "c"); len(c) != 0 {
		t.Errorf("c = %v", c)
	}

	// numeric origin without geometry is used as is
	m = transform.RotateZ(transform.DegToRad(90)).AtOrigin(transform.Origin{X: 10, Y: 10})
	if got := mustStyle(t, tbl, CommonLayout, "d")["transform"]; !reflect.DeepEqual(got, transform.HostValue(m)) {
		t.Errorf("d transform = %v", got)
	}
}

func TestComposeIsDeterministic(t *testing.T) {
	in := []Descriptor{
		{"row": Props{"&:nth-child(odd)": Props{"color": "red"}, "&Label": Props{"margin": "1 2"}}},
		{"layout": "wide", "row": Props{"&:nth-child(3n)": Props{"color": "blue"}, "transform": "rotate(10deg)"}},
	}

	first := newRuntime(t)
	a, err := first.CreateStyle(in)
	if err != nil {
		t.Fatal(err)
	}
	b, err := first.CreateStyle(in)
	if err != nil {
		t.Fatal(err)
	}
	second := newRuntime(t)
	c, err := second.CreateStyle(in)
	if err != nil {
		t.Fatal(err)
	}

	dumpA := strings.SplitN(Dump(a), "\n", 2)[1]
	dumpB := strings.SplitN(Dump(b), "\n", 2)[1]
	dumpC := strings.SplitN(Dump(c), "\n", 2)[1]
	if dumpA != dumpB || dumpA != dumpC {
		t.Errorf("dumps differ:\n%s\n---\n%s\n---\n%s", dumpA, dumpB, dumpC)
	}
	if !strings.Contains(dumpA, `nth row: "1=odd"`) || !strings.Contains(dumpA, `nth row: "2=3n 1=odd"`) {
		t.Errorf("dump lacks nth rules:\n%s", dumpA)
	}
}

func TestRecompute(t *testing.T) {
	device := metrics.NewDevice(metrics.DeviceConfig{
		Platform: metrics.Android,
		Window:   metrics.Size{Width: 400, Height: 800},
		Screen:   metrics.Size{Width: 400, Height: 800},
	})
	rt := newRuntime(t, WithMetrics(device))

	calls := 0
	tbl, err := rt.CreateStyle(func() any {
		calls++
		m := rt.Metrics()
		row := Props{"width": m.Width}
		if m.Orientation == metrics.Landscape {
			// landscape registers one more rule, shifting ids
			row["&:nth-child(even)"] = Props{"color": "gray"}
		}
		row["&:nth-child(3)"] = Props{"color": "red"}
		return Descriptor{"row": row}
	})
	if err != nil {
		t.Fatal(err)
	}

	gen := tbl.Generation()
	resolve := tbl.Resolver()
	before, err := resolve(Name("row"), Index(2))
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != 3 || before[1].(Props)["color"] != "red" {
		t.Fatalf("before rotation = %v", before)
	}
	if got := mustStyle(t, tbl, CommonLayout, "row:nth-child-1"); got["color"] != "red" {
		t.Errorf("selector 1 = %v", got)
	}

	device.Update(metrics.Size{Width: 800, Height: 400}, metrics.Size{Width: 800, Height: 400})

	if calls != 2 {
		t.Errorf("producer called %d times", calls)
	}
	if rt.Metrics().Orientation != metrics.Landscape {
		t.Errorf("Metrics() = %+v", rt.Metrics())
	}
	if tbl.Generation() <= gen {
		t.Errorf("generation did not grow: %d -> %d", gen, tbl.Generation())
	}
	if _, err := resolve(Name("row"), Index(2)); !errors.Is(err, ErrStaleTable) {
		t.Errorf("stale resolver error = %v, want ErrStaleTable", err)
	}

	// rules are registered in key order, "3" sorts before "even"
	if got := mustStyle(t, tbl, CommonLayout, "row:nth-child-1"); got["color"] != "red" {
		t.Errorf("selector 1 after rotation = %v", got)
	}
	if got := mustStyle(t, tbl, CommonLayout, "row:nth-child-2"); got["color"] != "gray" {
		t.Errorf("selector 2 after rotation = %v", got)
	}
	if got := mustStyle(t, tbl, CommonLayout, "row"); got["width"] != 800.0 {
		t.Errorf("row after rotation = %v", got)
	}

	after, err := tbl.Resolver()(Name("row"), Index(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 3 || after[1].(Props)["color"] != "gray" {
		t.Errorf("after rotation = %v", after)
	}

	rt.Close()
	device.Update(metrics.Size{Width: 400, Height: 800}, metrics.Size{Width: 400, Height: 800})
	if calls != 2 {
		t.Error("closed runtime recomputed")
	}
}

func TestRecomputeFailure(t *testing.T) {
	rt := newRuntime(t)

	fail := false
	tbl, err := rt.CreateStyle(func() any {
		if fail {
			return Descriptor{"a": Props{"border": "1 2"}}
		}
		return Descriptor{"a": Props{"color": "red", "&:nth-child(1)": Props{"opacity": 0}}}
	})
	if err != nil {
		t.Fatal(err)
	}
	other, err := rt.CreateStyle(Descriptor{"b": Props{"color": "blue"}})
	if err != nil {
		t.Fatal(err)
	}

	fail = true
	err = rt.Recompute()
	if !errors.Is(err, shorthand.ErrDuplicateArgument) {
		t.Fatalf("Recompute() error = %v", err)
	}

	// previous styles survive without pseudo-rules
	res, err := tbl.StyleNames(Name("a"), Index(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 || res[0].(Props)["color"] != "red" {
		t.Errorf("failed table = %v", res)
	}
	if other.Generation() != rt.Generation() {
		t.Error("healthy table was not recomposed")
	}
}

func TestQueryCache(t *testing.T) {
	calls := 0
	host := HostFunc(func(layout string, bags map[string]Props) (map[string]any, error) {
		calls++
		return PlainHost{}.CreateStyles(layout, bags)
	})
	rt := newRuntime(t, WithHost(host))

	tbl, err := rt.CreateStyle(Descriptor{"a": Props{"color": "red"}})
	if err != nil {
		t.Fatal(err)
	}
	r1, _ := tbl.StyleNames(Name("a"))
	r1[0] = "mutated"
	r2, _ := tbl.StyleNames(Name("a"))
	if _, ok := r2[0].(Props); !ok {
		t.Error("cached result was mutated through returned slice")
	}
	if len(rt.queries) != 1 {
		t.Errorf("cache size = %d", len(rt.queries))
	}
	if calls != 1 {
		t.Errorf("host called %d times", calls)
	}

	if err := rt.Recompute(); err != nil {
		t.Fatal(err)
	}
	if len(rt.queries) != 0 {
		t.Error("recompute kept query cache")
	}
}

func TestTracer(t *testing.T) {
	dir := t.TempDir()
	tracer := NewTracer(dir)
	rt := newRuntime(t, WithTracer(tracer))

	if _, err := rt.CreateStyle([]Descriptor{
		{"a": Props{"margin": "1", "&:nth-child(2)": Props{}, "&B": Props{}}},
		{"layout": "x", "@extendLayouts": "nope", "a": Props{"transform": "scale(2)"}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := rt.Recompute(); err != nil {
		t.Fatal(err)
	}

	path := tracer.Flush()
	if path == "" {
		t.Fatal("Flush() returned empty path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, op := range []string{"SNAPSHOT", "MERGE", "NEST", "NTH", "TRANSFORM", "EXPAND", "RECOMPUTE", "skipped: nope"} {
		if !strings.Contains(string(data), op) {
			t.Errorf("trace lacks %s", op)
		}
	}
	if tracer.Flush() != "" {
		t.Error("second Flush() wrote file")
	}

	var disabled *Tracer
	if disabled.IsEnabled() || NewTracer("").Flush() != "" {
		t.Error("disabled tracer is active")
	}
}
