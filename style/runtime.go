package style

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"stylec/metrics"
	"stylec/nth"
	"stylec/shorthand"
	"stylec/transform"
)

// Runtime owns every table it created together with selector ids, caches
// and metrics snapshot. All methods are safe for concurrent use, metrics
// change notifications may arrive from any goroutine.
type Runtime struct {
	mu       sync.Mutex
	log      *zap.Logger
	composer composer
	tables   []*Table
	queries  map[queryKey][]any
	gen      uint64

	provider metrics.Provider
	snap     atomic.Pointer[metrics.Snapshot]
	cancel   func()
}

type queryKey struct {
	table  uuid.UUID
	gen    uint64
	layout string
	args   string
}

// Option configures Runtime.
type Option func(*Runtime)

// WithLogger sets logger, default is no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(rt *Runtime) {
		if log != nil {
			rt.log = log
		}
	}
}

// WithHost sets host style table constructor, default is PlainHost.
func WithHost(h Host) Option {
	return func(rt *Runtime) {
		if h != nil {
			rt.composer.host = h
		}
	}
}

// WithShorthands replaces shorthand registry, default is shorthand.Default().
func WithShorthands(r *shorthand.Registry) Option {
	return func(rt *Runtime) { rt.composer.shorthands = r }
}

// WithMetrics binds runtime to metrics provider: every change notification
// recomputes all tables.
func WithMetrics(p metrics.Provider) Option {
	return func(rt *Runtime) { rt.provider = p }
}

// WithStrict selects failure policy. Strict runtime (default) fails on
// invalid nth-child patterns, unknown transform functions and transform
// origins without geometry, lenient one logs warnings and degrades to
// never matching rules and identity matrices.
func WithStrict(strict bool) Option {
	return func(rt *Runtime) { rt.composer.strict = strict }
}

// WithTracer enables composition tracing.
func WithTracer(t *Tracer) Option {
	return func(rt *Runtime) { rt.composer.tracer = t }
}

// New creates runtime.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		log:     zap.NewNop(),
		queries: make(map[queryKey][]any),
		gen:     1,
		composer: composer{
			host:       PlainHost{},
			shorthands: shorthand.Default(),
			strict:     true,
		},
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.log = rt.log.Named("style")
	rt.composer.log = rt.log.Named("composer")
	rt.composer.matcher = nth.NewMatcher(rt.log)
	rt.composer.transforms = transform.NewCompiler(rt.log, rt.composer.strict)

	var snap metrics.Snapshot
	if rt.provider != nil {
		snap = rt.provider.Current()
		rt.cancel = rt.provider.Subscribe(rt.onMetricsChange)
	}
	rt.snap.Store(&snap)
	return rt
}

func (rt *Runtime) onMetricsChange() {
	if err := rt.Recompute(); err != nil {
		rt.log.Error("Unable to recompute styles", zap.Error(err))
	}
}

// Close detaches runtime from metrics provider. Tables stay usable.
func (rt *Runtime) Close() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.cancel != nil {
		rt.cancel()
		rt.cancel = nil
	}
}

// Metrics returns snapshot taken at the last recompute. It does not lock
// runtime and may be called from producers.
func (rt *Runtime) Metrics() metrics.Snapshot {
	return *rt.snap.Load()
}

// Generation returns current generation, it grows with every recompute.
func (rt *Runtime) Generation() uint64 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.gen
}

// Tables returns tables in creation order.
func (rt *Runtime) Tables() []*Table {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return slices.Clone(rt.tables)
}

// CreateStyle composes input and registers resulting table for recompute.
// Input is anything Normalize accepts. Functions are kept and invoked again
// on every recompute, they must not call back into runtime other than
// Metrics.
func (rt *Runtime) CreateStyle(input any) (*Table, error) {
	src, err := sourceOf(input)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("unable to generate table id: %w", err)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	t := &Table{rt: rt, id: id, source: src, active: CommonLayout}
	if err := rt.compose(t); err != nil {
		return nil, err
	}
	rt.tables = append(rt.tables, t)
	rt.log.Debug("Style table created", zap.Stringer("id", t.id), zap.Strings("layouts", t.comp.order))
	return t, nil
}

// compose (re)builds table, caller holds the lock.
func (rt *Runtime) compose(t *Table) error {
	descs, err := t.source.Descriptors()
	if err != nil {
		return err
	}
	comp, err := rt.composer.compose(descs)
	if err != nil {
		return err
	}
	t.comp = comp
	t.gen = rt.gen
	return nil
}

// Recompute refreshes metrics snapshot, resets selector ids and caches and
// recomposes every registered table in creation order. Table which fails
// keeps its previous styles without pseudo-rules. Resolvers obtained before
// the call return ErrStaleTable afterwards.
func (rt *Runtime) Recompute() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.provider != nil {
		snap := rt.provider.Current()
		rt.snap.Store(&snap)
	}
	rt.composer.matcher.Reset()
	rt.composer.transforms.Reset()
	clear(rt.queries)
	rt.gen++

	var (
		errs   error
		failed int
	)
	for _, t := range rt.tables {
		if err := rt.compose(t); err != nil {
			failed++
			errs = multierr.Append(errs, fmt.Errorf("table %s: %w", t.id, err))
			t.comp.dropNth()
			t.gen = rt.gen
		}
	}
	rt.composer.tracer.TraceRecompute(rt.gen, len(rt.tables), failed)
	rt.log.Debug("Styles recomputed", zap.Uint64("generation", rt.gen), zap.Int("tables", len(rt.tables)), zap.Int("failed", failed))
	return errs
}

// resolve answers style query for table, caller holds the lock.
func (rt *Runtime) resolve(t *Table, args []Arg) ([]any, error) {
	key := queryKey{table: t.id, gen: t.gen, layout: t.active, args: cacheKey(args)}
	if res, ok := rt.queries[key]; ok {
		return slices.Clone(res), nil
	}

	q, err := parseQuery(args)
	if err != nil {
		return nil, err
	}

	active := t.comp.layouts[t.active]
	common := t.comp.layouts[CommonLayout]

	type hit struct {
		layout *compiledLayout
		name   string
	}
	var (
		out  = make([]any, 0, len(q.names)+1)
		hits []hit
	)
	for _, name := range q.names {
		l := active
		if _, ok := l.style(name); !ok {
			l = common
		}
		s, ok := l.style(name)
		if !ok {
			continue
		}
		out = append(out, s)
		hits = append(hits, hit{layout: l, name: name})
	}

	if q.hasIndex {
		for _, h := range hits {
			for _, id := range h.layout.nth[h.name] {
				rule, ok := rt.composer.matcher.Lookup(id)
				if !ok || !rule.Match(q.index+1) {
					continue
				}
				if s, ok := h.layout.style(nth.SelectorName(h.name, id)); ok {
					out = append(out, s)
				}
			}
		}
	}

	inline := q.inline
	if inline == nil {
		inline = Props{}
	}
	out = append(out, inline)

	rt.queries[key] = out
	return slices.Clone(out), nil
}

func (l *compiledLayout) style(name string) (any, bool) {
	if l == nil {
		return nil, false
	}
	s, ok := l.styles[name]
	return s, ok
}
