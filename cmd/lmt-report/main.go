package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/lmt.report/internal/api"
	"github.com/banshee-data/lmt.report/internal/config"
	"github.com/banshee-data/lmt.report/internal/confirm"
	"github.com/banshee-data/lmt.report/internal/db"
	"github.com/banshee-data/lmt.report/internal/fsutil"
	"github.com/banshee-data/lmt.report/internal/monitoring"
	"github.com/banshee-data/lmt.report/internal/reconstruct"
	"github.com/banshee-data/lmt.report/internal/report"
	"github.com/banshee-data/lmt.report/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run dispatches one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 2
	}

	command, rest := args[0], args[1:]
	switch command {
	case "reconstruct":
		return handleReconstruct(ctx, rest, stdout, stderr)
	case "confirm":
		return handleConfirm(ctx, rest, stdout, stderr)
	case "migrate":
		return handleMigrate(rest, stdout, stderr)
	case "serve":
		return handleServe(ctx, rest, stderr)
	case "version":
		fmt.Fprintln(stdout, version.String())
		return 0
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `lmt-report - Detection reconstruction and RFID confirmation for LMT databases

Usage: lmt-report <command> [flags] <db files or directories...>

Commands:
  reconstruct  Rebuild filtered Detection events window by window
  confirm      Write the confirmed detection intervals report
  migrate      Apply or inspect the schema steps (see: lmt-report migrate help)
  serve        Serve a read-only JSON and debug view of one database
  version      Show version
  help         Show this help message

Common Flags:
  -config <file>   JSON tuning file (defaults built in, see config/lmt.defaults.json)
  -fps <n>         Camera frame rate
  -tmin <frame>    First frame to process
  -tmax <frame>    Frame limit

Directories are expanded to the *.sqlite files they contain.
`)
}

// commonFlags holds the flags shared by the processing commands. Only flags
// set on the command line override the tuning file.
type commonFlags struct {
	fs         *flag.FlagSet
	configPath string
	fps        int
	tmin       int
	tmax       int
}

func newCommonFlags(name string, stderr io.Writer) *commonFlags {
	c := &commonFlags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	c.fs.SetOutput(stderr)
	c.fs.StringVar(&c.configPath, "config", "", "JSON tuning file")
	c.fs.IntVar(&c.fps, "fps", 30, "camera frame rate")
	c.fs.IntVar(&c.tmin, "tmin", 0, "first frame to process")
	c.fs.IntVar(&c.tmax, "tmax", 0, "frame limit (default 30 days of frames)")
	return c
}

// tuning loads the tuning file, if any, and applies the explicitly set flags
// through set.
func (c *commonFlags) tuning(set func(name string, o *config.TuningConfig)) (*config.TuningConfig, error) {
	cfg := config.EmptyTuningConfig()
	if c.configPath != "" {
		loaded, err := config.LoadTuningConfig(c.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	override := config.EmptyTuningConfig()
	c.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "fps":
			override.FrameRate = &c.fps
		case "tmin":
			override.TMin = &c.tmin
		case "tmax":
			override.TMax = &c.tmax
		default:
			if set != nil {
				set(f.Name, override)
			}
		}
	})
	if err := override.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	cfg.Merge(override)
	return cfg, nil
}

func (c *commonFlags) paths() ([]string, error) {
	if c.fs.NArg() == 0 {
		return nil, errors.New("no database files given")
	}
	paths, err := fsutil.DatabaseFiles(fsutil.OSFileSystem{}, c.fs.Args())
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.New("no .sqlite files found")
	}
	return paths, nil
}

func handleReconstruct(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := newCommonFlags("reconstruct", stderr)
	window := c.fs.Int("window", 0, "frames per reconstruction window (default 8 days of frames)")
	minSpeed := c.fs.Float64("min-speed", 0, "minimum instantaneous speed, units per second")
	maxSpeed := c.fs.Float64("max-speed", 0, "maximum instantaneous speed, units per second")
	stationaryFrames := c.fs.Int("stationary-frames", 0, "stationary test length in frames (default 1 minute)")
	stationaryDistance := c.fs.Float64("stationary-distance", 0, "movement below which a span is stationary")
	verify := c.fs.Bool("verify-windowing", false, "compare each file with a single-window reconstruction")
	if err := c.fs.Parse(args); err != nil {
		return 2
	}

	tc, err := c.tuning(func(name string, o *config.TuningConfig) {
		switch name {
		case "window":
			o.WindowFrames = window
		case "min-speed":
			o.MinSpeed = minSpeed
		case "max-speed":
			o.MaxSpeed = maxSpeed
		case "stationary-frames":
			o.StationaryFrames = stationaryFrames
		case "stationary-distance":
			o.StationaryDistance = stationaryDistance
		}
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	cfg, err := tc.Resolve()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	paths, err := c.paths()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	r := reconstruct.New(cfg, nil)
	r.Stdout = stdout
	r.Stderr = stderr
	r.VerifyWindowing = *verify
	batch := r.ProcessAll(ctx, paths)

	for _, f := range batch.Files {
		if f.Verification == nil {
			continue
		}
		status := "identical"
		if !f.Verification.Identical() {
			status = fmt.Sprintf("%d frames differ", f.Verification.DifferingFrames())
		}
		fmt.Fprintf(stdout, "Windowing check %s: %s\n", f.Path, status)
	}
	if failed := batch.Failed(); len(failed) > 0 {
		monitoring.Logf("%d of %d files failed", len(failed), len(batch.Files))
	}
	if batch.Cancelled {
		return 1
	}
	return 0
}

func handleConfirm(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := newCommonFlags("confirm", stderr)
	out := c.fs.String("out", "", "report file (default "+config.DefaultReportPath+")")
	quiet := c.fs.Bool("quiet", false, "do not echo the report to stdout")
	if err := c.fs.Parse(args); err != nil {
		return 2
	}

	tc, err := c.tuning(func(name string, o *config.TuningConfig) {
		if name == "out" {
			o.ReportPath = out
		}
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	cfg, err := tc.Resolve()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	paths, err := c.paths()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	var echo io.Writer = stdout
	if *quiet {
		echo = nil
	}
	w, err := report.Create(fsutil.OSFileSystem{}, cfg.ReportPath, echo)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	b := confirm.NewBuilder(cfg, nil)
	b.Stderr = stderr
	batchErr := b.ProcessAll(ctx, paths, w)
	if err := w.Close(); err != nil {
		fmt.Fprintf(stderr, "Error: failed to write report: %v\n", err)
		return 1
	}
	if batchErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", batchErr)
		return 1
	}
	return 0
}

func handleMigrate(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" {
		db.PrintMigrateHelp(stdout)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	action := args[:1]
	targets := args[1:]
	if args[0] == "force" {
		if len(args) < 2 {
			fmt.Fprintln(stderr, "Error: usage: lmt-report migrate force <version> <db...>")
			return 2
		}
		action, targets = args[:2], args[2:]
	}
	if len(targets) == 0 {
		fmt.Fprintln(stderr, "Error: no database files given")
		return 2
	}
	paths, err := fsutil.DatabaseFiles(fsutil.OSFileSystem{}, targets)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	code := 0
	for _, path := range paths {
		if err := migrateOne(stdout, path, action); err != nil {
			fmt.Fprintf(stderr, "Error: %s: %v\n", path, err)
			code = 1
		}
	}
	return code
}

func migrateOne(w io.Writer, path string, action []string) error {
	database, err := db.OpenDB(path)
	if err != nil {
		return err
	}
	defer database.Close()
	if action[0] == "up" {
		// METADATA is not a migration step, so 'up' adds it too.
		if err := database.EnsureEventMetadataColumn(context.Background()); err != nil && !errors.Is(err, db.ErrSchemaConflict) {
			return err
		}
	}
	return db.RunMigrateCommand(w, database, action)
}

func handleServe(ctx context.Context, args []string, stderr io.Writer) int {
	c := newCommonFlags("serve", stderr)
	listen := c.fs.String("listen", ":8080", "listen address")
	if err := c.fs.Parse(args); err != nil {
		return 2
	}
	if c.fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: serve takes exactly one database file")
		return 2
	}
	tc, err := c.tuning(nil)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	cfg, err := tc.Resolve()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	database, err := db.OpenDB(c.fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer database.Close()
	if err := database.PrepareSchema(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	mux := api.NewServer(database, confirm.NewBuilder(cfg, nil)).ServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := api.ListenAndServe(ctx, *listen, api.LoggingMiddleware(mux)); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
