package archive

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/lawnchairsociety/terraingen/internal/render"
	"github.com/lawnchairsociety/terraingen/internal/terrain"
)

// ErrRunNotFound is returned when no run matches the requested id.
var ErrRunNotFound = errors.New("run not found")

// ErrDuplicateRun is returned when a run with the same id was already saved.
var ErrDuplicateRun = errors.New("run already archived")

// timeLayout is fixed width so created_at sorts as text in both dialects.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one archived generation.
type Run struct {
	ID          uuid.UUID
	Seed        int64 // seed of the final attempt
	BaseSeed    int64
	Width       int
	Height      int
	Attempts    int
	Steps       int
	Status      string
	Fingerprint string
	Map         string
	CreatedAt   time.Time
}

// Fingerprint returns the hex blake2b-256 digest of a rendered map.
// Identical maps share a fingerprint regardless of the seed that produced them.
func Fingerprint(renderedMap string) string {
	sum := blake2b.Sum256([]byte(renderedMap))
	return hex.EncodeToString(sum[:])
}

// NewRun captures a generation result, solved or not.
func NewRun(result *terrain.Result) *Run {
	grid := result.Grid
	text := render.Text(grid)
	return &Run{
		ID:          uuid.New(),
		Seed:        result.Seed,
		BaseSeed:    result.BaseSeed,
		Width:       grid.Width(),
		Height:      grid.Height(),
		Attempts:    result.Attempts,
		Steps:       grid.Steps(),
		Status:      grid.State().String(),
		Fingerprint: Fingerprint(text),
		Map:         text,
		CreatedAt:   time.Now().UTC(),
	}
}

// SaveRun inserts a run.
func (a *Archive) SaveRun(run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Fingerprint == "" {
		run.Fingerprint = Fingerprint(run.Map)
	}

	_, err := a.db.Exec(a.qb.Build(`
		INSERT INTO runs (id, seed, base_seed, width, height, attempts, steps, status, fingerprint, map, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID.String(), run.Seed, run.BaseSeed, run.Width, run.Height, run.Attempts, run.Steps,
		run.Status, run.Fingerprint, run.Map, run.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		if a.dialect.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateRun, run.ID)
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

const runColumns = `id, seed, base_seed, width, height, attempts, steps, status, fingerprint, map, created_at`

// GetRun returns the run with the given id.
func (a *Archive) GetRun(id uuid.UUID) (*Run, error) {
	row := a.db.QueryRow(a.qb.Build(`SELECT `+runColumns+` FROM runs WHERE id = ?`), id.String())

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns all.
func (a *Archive) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return a.queryRuns(a.qb.Build(query), args...)
}

// FindByFingerprint returns every run that produced the same map, newest first.
func (a *Archive) FindByFingerprint(fingerprint string) ([]*Run, error) {
	return a.queryRuns(a.qb.Build(`
		SELECT `+runColumns+` FROM runs
		WHERE fingerprint = ?
		ORDER BY created_at DESC, id`), fingerprint)
}

// CountRuns returns the number of archived runs per status.
func (a *Archive) CountRuns() (map[string]int, error) {
	rows, err := a.db.Query(`SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan run count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (a *Archive) queryRuns(query string, args ...any) ([]*Run, error) {
	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run       Run
		id        string
		createdAt string
	)
	err := s.Scan(&id, &run.Seed, &run.BaseSeed, &run.Width, &run.Height, &run.Attempts, &run.Steps,
		&run.Status, &run.Fingerprint, &run.Map, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("run has malformed id %q: %w", id, err)
	}
	if run.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("run %s has malformed created_at: %w", id, err)
	}
	return &run, nil
}
