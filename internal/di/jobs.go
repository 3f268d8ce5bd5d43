package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/scheduler"
)

// RegisterJobs creates the maintenance jobs and schedules them. The
// scheduler is created but not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	container.Scheduler = scheduler.New(log)

	jobs := &JobInstances{
		CacheCleanup:        scheduler.NewCacheCleanupJob(container.Cache, log),
		CheckWALCheckpoints: scheduler.NewCheckWALCheckpointsJob(log, container.HistoryDB, container.CacheDB),
		DatabaseMaintenance: scheduler.NewDatabaseMaintenanceJob(cfg.DataDir, log, container.HistoryDB, container.CacheDB),
	}

	if err := container.Scheduler.AddJob(cfg.CacheCleanupSchedule, jobs.CacheCleanup); err != nil {
		return nil, fmt.Errorf("failed to register cache cleanup job: %w", err)
	}
	if err := container.Scheduler.AddJob(cfg.WALCheckSchedule, jobs.CheckWALCheckpoints); err != nil {
		return nil, fmt.Errorf("failed to register WAL checkpoint job: %w", err)
	}
	if err := container.Scheduler.AddJob(cfg.MaintenanceSchedule, jobs.DatabaseMaintenance); err != nil {
		return nil, fmt.Errorf("failed to register database maintenance job: %w", err)
	}

	log.Info().Int("jobs", container.Scheduler.Entries()).Msg("Maintenance jobs registered")
	return jobs, nil
}
