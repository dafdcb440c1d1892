// Package terrain drives collapse runs: seeding, retrying contradicted
// attempts with a fresh seed, and reporting what happened.
package terrain

import (
	"errors"
	"fmt"
	"time"

	"github.com/lawnchairsociety/terraingen/internal/logger"
	"github.com/lawnchairsociety/terraingen/internal/wfc"
)

// seedStride separates the seeds of consecutive attempts
const seedStride = 1000

var (
	ErrNoSolution = errors.New("terrain: every attempt ended in a contradiction")
)

// Options contains parameters for map generation
type Options struct {
	Width, Height int
	Seed          int64 // 0 = time-based
	MaxRetries    int   // extra attempts after a contradiction
	Rules         *wfc.Rules
	OnStep        func(*wfc.Grid, wfc.StepEvent) // optional per-step hook
}

// DefaultOptions returns options for a 10x10 map with the built-in terrain rules
func DefaultOptions() *Options {
	return &Options{
		Width:      10,
		Height:     10,
		MaxRetries: 10,
		Rules:      wfc.DefaultRules(),
	}
}

// Result is the outcome of a generation
type Result struct {
	Grid     *wfc.Grid
	BaseSeed int64 // seed the caller asked for (or the time-based one)
	Seed     int64 // seed of the attempt that produced Grid
	Attempts int
	Duration time.Duration
}

// Generator runs collapse attempts until one solves or retries run out
type Generator struct {
	options *Options
	now     func() time.Time
}

// NewGenerator creates a generator; nil options mean DefaultOptions
func NewGenerator(options *Options) *Generator {
	if options == nil {
		options = DefaultOptions()
	}
	if options.Rules == nil {
		options.Rules = wfc.DefaultRules()
	}
	return &Generator{options: options, now: time.Now}
}

// AttemptSeed returns the seed used by the given zero-based attempt
func AttemptSeed(base int64, attempt int) int64 {
	return base + int64(attempt)*seedStride
}

// Generate collapses a fresh grid per attempt. A contradiction starts the
// next attempt with a new seed; any other error stops immediately. When all
// attempts fail the last contradicted grid is returned with ErrNoSolution.
func (g *Generator) Generate() (*Result, error) {
	opts := g.options
	start := g.now()

	base := opts.Seed
	if base == 0 {
		base = start.UnixNano()
		logger.Info("Seed selected", "seed", base, "random", true)
	}

	var lastErr error
	result := &Result{BaseSeed: base}

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		seed := AttemptSeed(base, attempt)

		grid, err := wfc.NewGrid(opts.Width, opts.Height, opts.Rules)
		if err != nil {
			// Construction does not depend on the seed, so retrying cannot help
			return nil, fmt.Errorf("failed to build %dx%d grid: %w", opts.Width, opts.Height, err)
		}
		if opts.OnStep != nil {
			grid.OnStep(func(e wfc.StepEvent) { opts.OnStep(grid, e) })
		}

		result.Grid = grid
		result.Seed = seed
		result.Attempts = attempt + 1

		err = grid.Collapse(seed)
		if err == nil {
			result.Duration = g.now().Sub(start)
			logger.Info("Map generated",
				"width", opts.Width,
				"height", opts.Height,
				"seed", seed,
				"attempts", result.Attempts,
				"steps", grid.Steps(),
				"duration", result.Duration)
			return result, nil
		}

		if !errors.Is(err, wfc.ErrContradiction) {
			return nil, fmt.Errorf("attempt %d (seed %d): %w", attempt+1, seed, err)
		}

		lastErr = err
		logger.Debug("Attempt contradicted",
			"attempt", attempt+1,
			"seed", seed,
			"steps", grid.Steps(),
			"error", err)
	}

	result.Duration = g.now().Sub(start)
	logger.Warning("Map generation failed",
		"width", opts.Width,
		"height", opts.Height,
		"base_seed", base,
		"attempts", result.Attempts)

	return result, fmt.Errorf("%w after %d attempts: %w", ErrNoSolution, result.Attempts, lastErr)
}
