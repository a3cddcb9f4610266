package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"stylec/config"
	"stylec/document"
	"stylec/metrics"
	"stylec/state"
	"stylec/style"
	"stylec/transform"
)

var errUsage = errors.New("malformed command line")

// compiledTable is what compile outputs for every table.
type compiledTable struct {
	ID         string                    `yaml:"id"`
	Generation uint64                    `yaml:"generation"`
	Active     string                    `yaml:"active"`
	Layouts    map[string]map[string]any `yaml:"layouts"`
}

type compileResult struct {
	Source  string           `yaml:"source"`
	Metrics metrics.Snapshot `yaml:"metrics"`
	Tables  []compiledTable  `yaml:"tables"`
}

// loadTable compiles document named by the first argument.
func loadTable(env *state.LocalEnv, cmd *cli.Command) (*style.Table, error) {
	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return nil, fmt.Errorf("%w: no SOURCE", errUsage)
	}
	descs, err := document.Load(src)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	if err := env.Rpt.StoreCopy(config.EntryName("source", base, filepath.Ext(src)), src); err != nil {
		env.Log.Warn("Unable to put source into report", zap.Error(err))
	}

	rt, err := env.PrepareRuntime(
		metrics.Size{Width: cmd.Float64("width"), Height: cmd.Float64("height")},
		metrics.Size{Width: cmd.Float64("screen-width"), Height: cmd.Float64("screen-height")})
	if err != nil {
		return nil, err
	}
	tbl, err := rt.CreateStyle(style.Static(descs))
	if err != nil {
		return nil, fmt.Errorf("unable to compile %s: %w", src, err)
	}
	if err := tbl.SetLayouts(style.Names(cmd.StringSlice("layout")...)...); err != nil {
		return nil, err
	}
	env.Log.Debug("Compiled", zap.String("source", src), zap.Stringer("id", tbl.ID()), zap.String("active", tbl.ActiveLayout()))
	env.Rpt.StoreData(config.EntryName("tables", base, ".txt"), []byte(style.Dump(tbl)))
	return tbl, nil
}

func runCompile(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() > 2 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	tbl, err := loadTable(env, cmd)
	if err != nil {
		return err
	}

	ct := compiledTable{
		ID:         tbl.ID().String(),
		Generation: tbl.Generation(),
		Active:     tbl.ActiveLayout(),
		Layouts:    make(map[string]map[string]any),
	}
	for _, name := range tbl.Layouts() {
		if l, ok := tbl.Layout(name); ok {
			ct.Layouts[name] = l
		}
	}
	res := compileResult{
		Source:  cmd.Args().Get(0),
		Metrics: env.Runtime.Metrics(),
		Tables:  []compiledTable{ct},
	}
	if err := env.Rpt.StoreYAML("metrics.yaml", res.Metrics); err != nil {
		env.Log.Warn("Unable to put metrics into report", zap.Error(err))
	}

	var data []byte
	if cmd.Bool("spew") {
		cs := spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true}
		data = []byte(cs.Sdump(res))
	} else if data, err = yaml.Marshal(res); err != nil {
		return fmt.Errorf("unable to marshal result: %w", err)
	}

	fname := cmd.Args().Get(1)
	env.Log.Info("Outputing compiled styles", zap.String("file", destinationName(fname)), zap.Int("layouts", len(ct.Layouts)))
	return writeOutput(fname, data)
}

func runQuery(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() < 2 {
		return fmt.Errorf("%w: expected SOURCE and at least one NAME", errUsage)
	}

	tbl, err := loadTable(env, cmd)
	if err != nil {
		return err
	}

	args := style.Names(cmd.Args().Slice()[1:]...)
	if cmd.IsSet("index") {
		args = append(args, style.Index(int(cmd.Int("index"))))
	}
	res, err := tbl.StyleNames(args...)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(res)
	if err != nil {
		return fmt.Errorf("unable to marshal result: %w", err)
	}
	return writeOutput("", data)
}

func runTransform(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("%w: expected single EXPRESSION", errUsage)
	}

	var geo *transform.Geometry
	if w, h := cmd.Float64("width"), cmd.Float64("height"); w > 0 && h > 0 {
		geo = &transform.Geometry{Width: w, Height: h}
	}
	c := transform.NewCompiler(env.Log, env.Cfg.Engine.Strict)
	m, err := c.Compile(cmd.Args().First(), cmd.String("origin"), geo)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(m.String())
	buf.WriteString("\n\n")
	host, err := yaml.Marshal(map[string]any{"transform": transform.HostValue(m)})
	if err != nil {
		return fmt.Errorf("unable to marshal result: %w", err)
	}
	buf.Write(host)
	return writeOutput("", buf.Bytes())
}

func runKVGet(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("%w: expected KEY", errUsage)
	}
	s, err := env.OpenStore()
	if err != nil {
		return err
	}
	v, ok, err := s.GetItem(cmd.Args().First())
	if err != nil {
		return err
	}
	if !ok {
		env.Log.Info("No such key", zap.String("key", cmd.Args().First()))
		return nil
	}
	return writeOutput("", []byte(v+"\n"))
}

func runKVSet(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("%w: expected KEY and VALUE", errUsage)
	}
	s, err := env.OpenStore()
	if err != nil {
		return err
	}
	if cmd.IsSet("ttl") {
		return s.SetItem(cmd.Args().Get(0), cmd.Args().Get(1), cmd.Duration("ttl"))
	}
	return s.SetItem(cmd.Args().Get(0), cmd.Args().Get(1))
}

func runKVRemove(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	s, err := env.OpenStore()
	if err != nil {
		return err
	}
	for _, key := range cmd.Args().Slice() {
		if err := s.RemoveItem(key); err != nil {
			return err
		}
	}
	return nil
}

func runKVKeys(ctx context.Context, _ *cli.Command) error {
	env := state.EnvFromContext(ctx)
	s, err := env.OpenStore()
	if err != nil {
		return err
	}
	keys, err := s.Keys()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, k := range keys {
		buf.WriteString(k)
		buf.WriteByte('\n')
	}
	return writeOutput("", buf.Bytes())
}

func runKVPurge(ctx context.Context, _ *cli.Command) error {
	env := state.EnvFromContext(ctx)
	s, err := env.OpenStore()
	if err != nil {
		return err
	}
	n, err := s.Purge()
	if err != nil {
		return err
	}
	env.Log.Info("Purged expired entries", zap.Int("count", n))
	return nil
}

func runKVClear(ctx context.Context, _ *cli.Command) error {
	env := state.EnvFromContext(ctx)
	s, err := env.OpenStore()
	if err != nil {
		return err
	}
	return s.Clear()
}
