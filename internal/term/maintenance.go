package term

import (
	"context"
	"log"
	"time"
)

// MaintenanceResult contains the statistics of a maintenance run.
type MaintenanceResult struct {
	PrunedInstances int
	TrimmedArchives int
	Duration        time.Duration
}

// MaintenanceOptions configures the periodic cleanup pass.
type MaintenanceOptions struct {
	Interval      time.Duration
	ArchiveDir    string
	ArchiveBudget int64 // bytes, <=0 disables trimming
}

// RunMaintenance performs one cleanup pass: exited instances are dropped
// from the registry and the scrollback archive is trimmed to budget.
func (m *Manager) RunMaintenance(opts MaintenanceOptions) MaintenanceResult {
	start := time.Now()

	pruned := m.PruneExited()

	trimmed := 0
	if opts.ArchiveDir != "" && opts.ArchiveBudget > 0 {
		n, err := trimArchiveDir(opts.ArchiveDir, opts.ArchiveBudget)
		if err != nil {
			log.Printf("[MAINTENANCE] Archive trim failed: %v", err)
		}
		trimmed = n
	}

	return MaintenanceResult{
		PrunedInstances: pruned,
		TrimmedArchives: trimmed,
		Duration:        time.Since(start),
	}
}

// RunMaintenanceWorker runs cleanup immediately and then on the configured
// interval until the context is canceled. It blocks, so callers run it on
// their own goroutine or errgroup.
func (m *Manager) RunMaintenanceWorker(ctx context.Context, opts MaintenanceOptions) error {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Minute
	}
	log.Printf("[MAINTENANCE] Starting background maintenance worker (every %v)", opts.Interval)

	runAllTasks := func() {
		result := m.RunMaintenance(opts)
		if result.PrunedInstances > 0 || result.TrimmedArchives > 0 {
			log.Printf("[MAINTENANCE] Maintenance complete in %v. Pruned: %d instances. Trimmed: %d archives.",
				result.Duration.Round(time.Millisecond), result.PrunedInstances, result.TrimmedArchives)
		}
	}

	runAllTasks()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[MAINTENANCE] Background maintenance worker stopping")
			return nil
		case <-ticker.C:
			runAllTasks()
		}
	}
}
