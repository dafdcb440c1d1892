package archive

import (
	"errors"
	"fmt"
)

// CopyStats reports the outcome of CopyRuns.
type CopyStats struct {
	Read    int
	Copied  int
	Skipped int // already present in the destination
}

// CopyRuns copies every run of src into dst. Runs whose id already exists
// in dst are skipped, so an interrupted copy can simply be run again.
// With dryRun set nothing is written.
func CopyRuns(src, dst *Archive, dryRun bool) (CopyStats, error) {
	var stats CopyStats

	runs, err := src.ListRuns(0)
	if err != nil {
		return stats, fmt.Errorf("failed to read source runs: %w", err)
	}
	stats.Read = len(runs)

	for _, run := range runs {
		if dryRun {
			continue
		}
		err := dst.SaveRun(run)
		switch {
		case err == nil:
			stats.Copied++
		case errors.Is(err, ErrDuplicateRun):
			stats.Skipped++
		default:
			return stats, fmt.Errorf("failed to copy run %s: %w", run.ID, err)
		}
	}
	return stats, nil
}
