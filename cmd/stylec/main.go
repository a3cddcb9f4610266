package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"stylec/config"
	"stylec/misc"
	"stylec/state"
)

// initializeAppContext prepares application context before command execution but
// after command line has been parsed
func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error

	if cmd.NArg() == 0 {
		// nothing to do, just return
		return ctx, nil
	}

	env := state.EnvFromContext(ctx)

	configFile := cmd.String("config")
	if env.Cfg, err = config.LoadConfiguration(configFile); err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	if cmd.Bool("debug") {
		if env.Rpt, err = env.Cfg.Reporting.Prepare(); err != nil {
			return ctx, fmt.Errorf("unable to prepare debug reporter: %w", err)
		}
		// save complete processed configuration if external configuration was provided
		if len(configFile) > 0 {
			if data, err := config.Dump(env.Cfg); err == nil {
				env.Rpt.StoreData(fmt.Sprintf("config/%s", filepath.Base(configFile)), data)
			}
		}
	}
	if env.Log, err = env.Cfg.Logging.Prepare(env.Rpt); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.RedirectStdLog()

	env.Log.Debug("Program started", zap.Strings("args", os.Args), zap.String("ver", misc.GetVersion()), zap.String("runtime", runtime.Version()), zap.String("hash", misc.GetGitHash()))

	if env.Rpt != nil {
		env.Log.Info("Creating debug report", zap.String("location", env.Rpt.Name()))
	}
	if len(configFile) == 0 {
		env.Log.Info("Using defaults (no configuration file)")
	}
	return ctx, nil
}

func destroyAppContext(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)

	// runtime and storage first, tracer output goes to report
	if er := env.Close(); er != nil {
		err = multierr.Append(err, fmt.Errorf("unable to release resources: %w", er))
	}

	if env.Log != nil {
		env.Log.Debug("Program ended", zap.Duration("elapsed", env.Uptime()), zap.Strings("parsed args", cmd.Args().Slice()))
	}

	// close logging
	env.RestoreStdLog()

	// log is synced now and result can be used in report if necessary, errors
	// must be reported directly to stderr from now on
	if env.Rpt != nil {
		if er := env.Rpt.Close(); er != nil {
			err = multierr.Append(err, fmt.Errorf("unable to close debug report: %w", er))
		}
	}
	// reporting is closed now - remove empty panic file if any
	if env.Cfg != nil && len(env.Cfg.Logging.FileLogger.Destination) > 0 {
		debug.SetCrashOutput(nil, debug.CrashOptions{})
		fname := env.Cfg.Logging.PanicLogName()
		if fi, er := os.Stat(fname); er == nil && fi.Size() == 0 {
			if er := os.Remove(fname); er != nil {
				err = multierr.Append(err, fmt.Errorf("unable to remove empty panic log file '%s': %w", fname, er))
			}
		}
	}
	return
}

// Subcommands return regular errors, cli.Exit is not used.
var errWasHandled bool

// this is called before appContext is destroyed, so we have a chance to
// properly log any error from subcommand
func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {

	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Error("Program ended with error", zap.Error(err))
		errWasHandled = true
	}
}

func usageErrorHandler(_ context.Context, _ *cli.Command, err error, _ bool) error {
	// do nothing special, error is reported either by exitErrHandler or on
	// exit directly to stderr.
	return err
}

func subcommandNotFoundHandler(ctx context.Context, _ *cli.Command, name string) {
	if log := state.EnvFromContext(ctx).Log; log != nil {
		log.Warn("Unknown command, nothing to do", zap.String("command", name))
	}
}

func metricsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{Name: "width", Usage: "window `WIDTH`, overrides configuration"},
		&cli.Float64Flag{Name: "height", Usage: "window `HEIGHT`, overrides configuration"},
		&cli.Float64Flag{Name: "screen-width", Usage: "screen `WIDTH`, overrides configuration"},
		&cli.Float64Flag{Name: "screen-height", Usage: "screen `HEIGHT`, overrides configuration"},
	}
}

func main() {

	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "style descriptor and transform compiler",
		Version:         misc.GetVersion() + " (" + runtime.Version() + ") : " + misc.GetGitHash(),
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		OnUsageError:    usageErrorHandler,
		ExitErrHandler:  exitErrHandler,
		CommandNotFound: subcommandNotFoundHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, DefaultText: "", Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "changes program behavior to help troubleshooting, produces report archive"},
		},
		Commands: []*cli.Command{
			{
				Name:         "compile",
				Usage:        "Compiles style descriptor document and outputs resulting tables",
				OnUsageError: usageErrorHandler,
				Action:       runCompile,
				Flags: append(metricsFlags(),
					&cli.StringSliceFlag{Name: "layout", Aliases: []string{"l"}, Usage: "activate layout `NAME` (repeat to combine)"},
					&cli.BoolFlag{Name: "spew", Usage: "output Go representation of compiled tables instead of YAML"},
				),
				ArgsUsage: "SOURCE [DESTINATION]",
				CustomHelpTemplate: fmt.Sprintf(`%s
SOURCE:
    path to descriptor document, one of .yaml, .yml, .json, .toml
    document is either single descriptor or list of descriptors

DESTINATION:
    file to write result to, if absent - STDOUT
`, cli.CommandHelpTemplate),
			},
			{
				Name:         "query",
				Usage:        "Resolves style names against compiled document",
				OnUsageError: usageErrorHandler,
				Action:       runQuery,
				Flags: append(metricsFlags(),
					&cli.StringSliceFlag{Name: "layout", Aliases: []string{"l"}, Usage: "activate layout `NAME` (repeat to combine)"},
					&cli.IntFlag{Name: "index", Aliases: []string{"i"}, Usage: "zero based item `INDEX` for nth-child rules"},
				),
				ArgsUsage: "SOURCE NAME...",
			},
			{
				Name:         "transform",
				Usage:        "Compiles transform expression into matrix",
				OnUsageError: usageErrorHandler,
				Action:       runTransform,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "origin", Aliases: []string{"o"}, Usage: "transform-origin `VALUE`"},
					&cli.Float64Flag{Name: "width", Usage: "element `WIDTH`"},
					&cli.Float64Flag{Name: "height", Usage: "element `HEIGHT`"},
				},
				ArgsUsage: "EXPRESSION",
			},
			{
				Name:  "kv",
				Usage: "Manipulates persistent key-value storage",
				Commands: []*cli.Command{
					{Name: "get", Usage: "Prints value", ArgsUsage: "KEY", Action: runKVGet, OnUsageError: usageErrorHandler},
					{Name: "set", Usage: "Stores value", ArgsUsage: "KEY VALUE", Action: runKVSet, OnUsageError: usageErrorHandler,
						Flags: []cli.Flag{
							&cli.DurationFlag{Name: "ttl", Usage: "time to live `DURATION`, configured expiry if absent"},
						},
					},
					{Name: "rm", Usage: "Removes value", ArgsUsage: "KEY...", Action: runKVRemove, OnUsageError: usageErrorHandler},
					{Name: "keys", Usage: "Lists stored keys", Action: runKVKeys, OnUsageError: usageErrorHandler},
					{Name: "purge", Usage: "Removes expired entries", Action: runKVPurge, OnUsageError: usageErrorHandler},
					{Name: "clear", Usage: "Removes everything", Action: runKVClear, OnUsageError: usageErrorHandler},
				},
			},
			{
				Name:  "dumpconfig",
				Usage: "Dumps either default or actual configuration (YAML)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
				},
				OnUsageError: usageErrorHandler,
				Action:       outputConfiguration,
				ArgsUsage:    "DESTINATION",
				CustomHelpTemplate: fmt.Sprintf(`%s

DESTINATION:
    file name to write configuration to, if absent - STDOUT

Produces file with actual "active" configuration values wich is composition of
default values and values specified in configuration file. To see default
configuration embedded into the program use --default flag.
`, cli.CommandHelpTemplate),
			},
		},
	}

	var err error
	// NOTE: os.Exit is called at the end of main to set exit code, make sure
	// there are no other deffered functions after that
	defer func() {
		stop()
		if err != nil {
			// It may happen that log is either not set yet (argument parsing) or already closed,
			// report errors to stderr directly
			if !errWasHandled {
				fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			}
			os.Exit(1)
		}
	}()
	err = app.Run(ctx, os.Args)
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) error {

	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	var (
		err   error
		data  []byte
		state string
	)
	if cmd.Bool("default") {
		state = "default"
		data, err = config.Prepare()
	} else {
		state = "actual"
		data, err = config.Dump(env.Cfg)
	}
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	fname := cmd.Args().Get(0)
	env.Log.Info("Outputing configuration", zap.String("state", state), zap.String("file", destinationName(fname)))
	return writeOutput(fname, data)
}

func destinationName(fname string) string {
	if len(fname) == 0 {
		return "STDOUT"
	}
	return fname
}

// writeOutput writes data to file or STDOUT when name is empty.
func writeOutput(fname string, data []byte) error {
	if len(fname) == 0 {
		if _, err := os.Stdout.Write(data); err != nil {
			return fmt.Errorf("unable to write output: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(fname, data, 0644); err != nil {
		return fmt.Errorf("unable to write destination file '%s': %w", fname, err)
	}
	return nil
}
