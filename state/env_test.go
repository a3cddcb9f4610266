package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"stylec/config"
	"stylec/metrics"
	"stylec/style"
)

func TestContextWithEnv(t *testing.T) {
	ctx := ContextWithEnv(context.Background())
	env := EnvFromContext(ctx)
	if env == nil {
		t.Fatal("EnvFromContext() returned nil")
	}
	if env.start.IsZero() {
		t.Error("Environment start time not set")
	}
	if env.Log != nil {
		t.Error("Logger must not be set before configuration is loaded")
	}
}

func TestEnvFromContext_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when env not in context")
		}
	}()
	EnvFromContext(context.Background())
}

func TestLocalEnv_Uptime(t *testing.T) {
	env := EnvFromContext(ContextWithEnv(context.Background()))

	time.Sleep(10 * time.Millisecond)
	if uptime := env.Uptime(); uptime < 10*time.Millisecond {
		t.Errorf("Uptime() = %v, expected at least 10ms", uptime)
	}
}

func TestLocalEnv_RedirectAndRestore(t *testing.T) {
	env := &LocalEnv{
		Log: zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1))),
	}

	for i := range 3 {
		env.RedirectStdLog()
		if env.restoreStdLog == nil {
			t.Errorf("Iteration %d: restoreStdLog not set", i)
		}
		env.RestoreStdLog()
	}

	// nil logger is fine
	(&LocalEnv{}).RedirectStdLog()
	(&LocalEnv{}).RestoreStdLog()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	cfg.Storage.Path = filepath.Join(t.TempDir(), "kv.db")
	return cfg
}

func TestLocalEnv_PrepareRuntime(t *testing.T) {
	env := &LocalEnv{
		Cfg: testConfig(t),
		Log: zaptest.NewLogger(t),
	}

	rt, err := env.PrepareRuntime(metrics.Size{Width: 800, Height: 600}, metrics.Size{})
	if err != nil {
		t.Fatalf("PrepareRuntime() error = %v", err)
	}
	snap := rt.Metrics()
	if snap.Width != 800 || snap.Orientation != metrics.Landscape {
		t.Errorf("Metrics() = %+v", snap)
	}
	// screen is taken from configuration
	if snap.ScreenWidth != 360 {
		t.Errorf("ScreenWidth = %v, want 360", snap.ScreenWidth)
	}

	again, err := env.PrepareRuntime(metrics.Size{}, metrics.Size{})
	if err != nil || again != rt {
		t.Error("PrepareRuntime() must return existing runtime")
	}

	tbl, err := rt.CreateStyle(style.Descriptor{"a": map[string]any{"color": "red"}})
	if err != nil {
		t.Fatal(err)
	}
	gen := tbl.Generation()
	env.Device.Update(metrics.Size{Width: 600, Height: 800}, metrics.Size{Width: 600, Height: 800})
	if tbl.Generation() == gen {
		t.Error("Device update did not recompute tables")
	}

	if err := env.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if env.Runtime != nil {
		t.Error("Runtime not released")
	}
}

func TestLocalEnv_TraceGoesToReport(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	cfg.Engine.Trace = true
	cfg.Reporting.Destination = filepath.Join(dir, "report.zip")

	rpt, err := cfg.Reporting.Prepare()
	if err != nil {
		t.Fatal(err)
	}
	env := &LocalEnv{Cfg: cfg, Rpt: rpt}

	rt, err := env.PrepareRuntime(metrics.Size{}, metrics.Size{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rt.CreateStyle(style.Descriptor{"a": map[string]any{"margin": 4.0}}); err != nil {
		t.Fatal(err)
	}
	traceDir := env.traceDir
	if err := env.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(traceDir); !os.IsNotExist(err) {
		t.Error("trace directory was not removed")
	}
	if err := rpt.Close(); err != nil {
		t.Fatal(err)
	}
	if fi, err := os.Stat(rpt.Name()); err != nil || fi.Size() == 0 {
		t.Errorf("report not written: %v", err)
	}
}

func TestLocalEnv_OpenStore(t *testing.T) {
	env := &LocalEnv{Cfg: testConfig(t)}

	s, err := env.OpenStore()
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	if err := s.SetItem("k", "v"); err != nil {
		t.Fatal(err)
	}
	if again, _ := env.OpenStore(); again != s {
		t.Error("OpenStore() must return existing store")
	}
	if err := env.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, err := os.Stat(env.Cfg.Storage.Path); err != nil {
		t.Errorf("database file missing: %v", err)
	}
}
