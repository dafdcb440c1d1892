// terraingen generates an ASCII hills-and-plains map by wave function collapse.
//
// Usage:
//
//	go run ./cmd/terraingen -width 40 -height 12 -seed 7 -framed -legend
//	go run ./cmd/terraingen -rules rules/hills.yaml -archive -db data/terraingen.db
//	go run ./cmd/terraingen -watch :8080
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
	"time"

	"github.com/lawnchairsociety/terraingen/internal/archive"
	"github.com/lawnchairsociety/terraingen/internal/config"
	"github.com/lawnchairsociety/terraingen/internal/logger"
	"github.com/lawnchairsociety/terraingen/internal/render"
	"github.com/lawnchairsociety/terraingen/internal/ruleset"
	"github.com/lawnchairsociety/terraingen/internal/terrain"
	"github.com/lawnchairsociety/terraingen/internal/watch"
	"github.com/lawnchairsociety/terraingen/internal/wfc"
)

type options struct {
	configFile  string
	loggingFile string
	width       int
	height      int
	seed        int64
	retries     int
	rulesFile   string
	step        bool
	framed      bool
	legend      bool
	archive     bool
	dbFile      string
	list        int
	dumpRules   bool
	watchAddr   string
}

func main() {
	fs := flag.NewFlagSet("terraingen", flag.ExitOnError)
	opts := &options{}
	fs.StringVar(&opts.configFile, "config", "data/terraingen.yaml", "Path to generator config YAML file")
	fs.StringVar(&opts.loggingFile, "logging", "data/logging.yaml", "Path to logging config YAML file")
	fs.IntVar(&opts.width, "width", 0, "Map width (default from config)")
	fs.IntVar(&opts.height, "height", 0, "Map height (default from config)")
	fs.Int64Var(&opts.seed, "seed", 0, "Generation seed (default: random based on current time)")
	fs.IntVar(&opts.retries, "retries", -1, "Extra attempts after a contradiction (default from config)")
	fs.StringVar(&opts.rulesFile, "rules", "", "Path to a rule table YAML file (default: built-in terrain rules)")
	fs.BoolVar(&opts.step, "step", false, "Print the map after every collapse step")
	fs.BoolVar(&opts.framed, "framed", false, "Print the map with a border and header")
	fs.BoolVar(&opts.legend, "legend", false, "Print a symbol legend")
	fs.BoolVar(&opts.archive, "archive", false, "Record the run in the archive database")
	fs.StringVar(&opts.dbFile, "db", "", "Path to SQLite archive (default from config)")
	fs.IntVar(&opts.list, "list", 0, "List the N most recent archived runs and exit")
	fs.BoolVar(&opts.dumpRules, "dump-rules", false, "Print the active rule table as YAML and exit")
	fs.StringVar(&opts.watchAddr, "watch", "", "Serve live collapse runs over WebSocket on this address")
	fs.Parse(os.Args[1:])

	if err := run(opts, os.Stdout); err != nil {
		logger.Error("terraingen failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts *options, out io.Writer) error {
	// Initialize logger first (before any logging)
	logConfig, err := logger.LoadConfig(opts.loggingFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using default logging)\n", err)
	}
	if err := logger.Initialize(logConfig); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	cfg, err := config.LoadConfig(opts.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", opts.configFile, err)
	}
	applyFlags(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return err
	}

	rules, err := loadRules(cfg.Map.RulesFile)
	if err != nil {
		return err
	}

	if opts.dumpRules {
		data, err := ruleset.Marshal(rules)
		if err != nil {
			return fmt.Errorf("failed to encode rules: %w", err)
		}
		_, err = out.Write(data)
		return err
	}

	var arc *archive.Archive
	if cfg.Archive.Enabled || opts.list > 0 {
		arc, err = archive.OpenWithConfig(archive.ConfigFrom(cfg.Archive))
		if err != nil {
			return err
		}
		defer arc.Close()
		logger.Info("Archive opened", "driver", cfg.Archive.Driver)
	}

	if opts.list > 0 {
		return listRuns(arc, opts.list, out)
	}

	if opts.watchAddr != "" {
		cfg.Watch.Address = opts.watchAddr
		return serveWatch(cfg, rules, arc)
	}

	return generate(cfg, rules, arc, opts, out)
}

// applyFlags overrides config values with explicitly set flags
func applyFlags(cfg *config.GeneratorConfig, opts *options) {
	if opts.width > 0 {
		cfg.Map.Width = opts.width
	}
	if opts.height > 0 {
		cfg.Map.Height = opts.height
	}
	if opts.seed != 0 {
		cfg.Map.Seed = opts.seed
	}
	if opts.retries >= 0 {
		cfg.Map.MaxRetries = opts.retries
	}
	if opts.rulesFile != "" {
		cfg.Map.RulesFile = opts.rulesFile
	}
	if opts.archive {
		cfg.Archive.Enabled = true
	}
	if opts.dbFile != "" {
		cfg.Archive.Driver = "sqlite"
		cfg.Archive.SQLitePath = opts.dbFile
	}
}

func loadRules(path string) (*wfc.Rules, error) {
	if path == "" {
		return wfc.DefaultRules(), nil
	}
	rules, err := ruleset.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Info("Rules loaded", "path", path, "symbols", len(rules.Alphabet()))
	return rules, nil
}

func generate(cfg *config.GeneratorConfig, rules *wfc.Rules, arc *archive.Archive, opts *options, out io.Writer) error {
	genOpts := &terrain.Options{
		Width:      cfg.Map.Width,
		Height:     cfg.Map.Height,
		Seed:       cfg.Map.Seed,
		MaxRetries: cfg.Map.MaxRetries,
		Rules:      rules,
	}
	if opts.step {
		genOpts.OnStep = func(grid *wfc.Grid, e wfc.StepEvent) {
			fmt.Fprintf(out, "Step %d: (%d,%d) = %q\n", e.Step, e.Row, e.Col, e.Symbol.String())
			fmt.Fprint(out, render.Text(grid))
			fmt.Fprintln(out)
		}
	}

	result, genErr := terrain.NewGenerator(genOpts).Generate()
	if result == nil {
		return genErr
	}

	if opts.framed {
		fmt.Fprint(out, render.Framed(result.Grid))
	} else {
		fmt.Fprint(out, render.Text(result.Grid))
	}
	if opts.legend {
		fmt.Fprint(out, render.Legend(rules))
	}

	if arc != nil {
		run := archive.NewRun(result)
		if err := arc.SaveRun(run); err != nil {
			return err
		}
		logger.Info("Run archived", "id", run.ID.String(), "fingerprint", run.Fingerprint, "status", run.Status)

		twins, err := arc.FindByFingerprint(run.Fingerprint)
		if err != nil {
			return err
		}
		if len(twins) > 1 {
			logger.Info("Map seen before", "fingerprint", run.Fingerprint, "runs", len(twins))
		}
	}

	return genErr
}

func listRuns(arc *archive.Archive, limit int, out io.Writer) error {
	runs, err := arc.ListRuns(limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(out, "%s  %s  %dx%d  seed=%d  attempts=%d  %-12s  %s\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Width, r.Height,
			r.Seed, r.Attempts, r.Status, shortFingerprint(r.Fingerprint))
	}
	return nil
}

// shortFingerprint trims a fingerprint to 12 characters for listings
func shortFingerprint(fp string) string {
	if len(fp) <= 12 {
		return fp
	}
	return fp[:12]
}

func serveWatch(cfg *config.GeneratorConfig, rules *wfc.Rules, arc *archive.Archive) error {
	srv := watch.NewServer(cfg.Watch, cfg.Map, rules, arc)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Watch.Address)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return <-errCh
}
