// Package state defines shared program state.
package state

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"stylec/config"
	"stylec/metrics"
	"stylec/storage"
	"stylec/style"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// created on demand by subcommands
	Device  *metrics.Device
	Runtime *style.Runtime
	Store   *storage.Store

	tracer        *style.Tracer
	traceDir      string
	start         time.Time
	restoreStdLog func()
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}

// PrepareRuntime creates device metrics provider and style runtime from
// configuration, window and screen override configured defaults when not
// zero. Tracing requires debug report.
func (e *LocalEnv) PrepareRuntime(window, screen metrics.Size) (*style.Runtime, error) {
	if e.Runtime != nil {
		return e.Runtime, nil
	}

	dc, err := e.Cfg.Metrics.DeviceConfig()
	if err != nil {
		return nil, fmt.Errorf("bad metrics configuration: %w", err)
	}
	if window.Width > 0 && window.Height > 0 {
		dc.Window = window
	}
	if screen.Width > 0 && screen.Height > 0 {
		dc.Screen = screen
	}
	e.Device = metrics.NewDevice(dc)

	opts := []style.Option{
		style.WithLogger(e.Log),
		style.WithMetrics(e.Device),
		style.WithStrict(e.Cfg.Engine.Strict),
	}
	if e.Cfg.Engine.Trace && e.Rpt != nil {
		if e.traceDir, err = os.MkdirTemp("", "stylec-trace-"); err != nil {
			return nil, fmt.Errorf("unable to create trace directory: %w", err)
		}
		e.tracer = style.NewTracer(e.traceDir)
		opts = append(opts, style.WithTracer(e.tracer))
	}
	e.Runtime = style.New(opts...)
	return e.Runtime, nil
}

// OpenStore opens configured key-value storage.
func (e *LocalEnv) OpenStore() (*storage.Store, error) {
	if e.Store != nil {
		return e.Store, nil
	}
	s, err := storage.Open(e.Cfg.Storage.StoreConfig(), e.Log)
	if err != nil {
		return nil, err
	}
	e.Store = s
	return s, nil
}

// Close releases runtime and storage, trace (if any) is moved to the report.
func (e *LocalEnv) Close() (err error) {
	if e.Runtime != nil {
		e.Runtime.Close()
		e.Runtime = nil
	}
	if e.tracer != nil {
		if name := e.tracer.Flush(); name != "" {
			err = multierr.Append(err, e.Rpt.StoreCopy("style-trace.txt", name))
		}
		err = multierr.Append(err, os.RemoveAll(e.traceDir))
		e.tracer = nil
	}
	if e.Store != nil {
		err = multierr.Append(err, e.Store.Close())
		e.Store = nil
	}
	return err
}
