package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/aristath/frontier/internal/database"
)

// Free space thresholds for the data directory
const (
	criticalFreeBytes = 500 << 20
	lowFreeBytes      = 5 << 30
)

// DatabaseMaintenanceJob checks integrity, optimizes every database and
// watches free disk space in the data directory
type DatabaseMaintenanceJob struct {
	databases []*database.DB
	dataDir   string
	diskFree  func(path string) (uint64, error)
	log       zerolog.Logger
}

// NewDatabaseMaintenanceJob creates the job; nil databases are skipped
func NewDatabaseMaintenanceJob(dataDir string, log zerolog.Logger, databases ...*database.DB) *DatabaseMaintenanceJob {
	return &DatabaseMaintenanceJob{
		databases: databases,
		dataDir:   dataDir,
		diskFree: func(path string) (uint64, error) {
			usage, err := disk.Usage(path)
			if err != nil {
				return 0, err
			}
			return usage.Free, nil
		},
		log: log.With().Str("job", "database_maintenance").Logger(),
	}
}

// Name returns the job name
func (j *DatabaseMaintenanceJob) Name() string {
	return "database_maintenance"
}

// Run fails on a corrupt database or critically low disk space. Optimize
// failures are logged only.
func (j *DatabaseMaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	start := time.Now()

	for _, db := range j.databases {
		if db == nil {
			continue
		}
		if err := db.IntegrityCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("Integrity check failed")
			return err
		}
		if err := db.Optimize(ctx); err != nil {
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("Optimize failed")
		}
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	j.log.Info().Dur("duration_ms", time.Since(start)).Msg("Database maintenance completed")
	return nil
}

func (j *DatabaseMaintenanceJob) checkDiskSpace() error {
	if j.dataDir == "" {
		return nil
	}
	free, err := j.diskFree(j.dataDir)
	if err != nil {
		j.log.Warn().Err(err).Str("dir", j.dataDir).Msg("Failed to read disk usage")
		return nil
	}

	freeGB := float64(free) / (1 << 30)
	switch {
	case free < criticalFreeBytes:
		j.log.Error().Float64("free_gb", freeGB).Msg("Insufficient disk space")
		return fmt.Errorf("only %.2f GB free in %s", freeGB, j.dataDir)
	case free < lowFreeBytes:
		j.log.Warn().Float64("free_gb", freeGB).Msg("Disk space running low")
	default:
		j.log.Debug().Float64("free_gb", freeGB).Msg("Disk space check")
	}
	return nil
}
