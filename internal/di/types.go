package di

import (
	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/modules/analytics"
	"github.com/aristath/frontier/internal/modules/calculations"
	"github.com/aristath/frontier/internal/modules/charts"
	"github.com/aristath/frontier/internal/modules/history"
	"github.com/aristath/frontier/internal/scheduler"
)

// Container holds every wired dependency
type Container struct {
	// Databases
	HistoryDB *database.DB // daily prices
	CacheDB   *database.DB // recomputable calculation results

	// Repositories
	History *history.HistoryDB
	Cache   *calculations.Cache

	// Services
	Analytics *analytics.Service
	Renderer  *charts.Renderer

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the maintenance jobs for manual triggering
type JobInstances struct {
	CacheCleanup        scheduler.Job
	CheckWALCheckpoints scheduler.Job
	DatabaseMaintenance scheduler.Job
}

// All returns the jobs as a list
func (j *JobInstances) All() []scheduler.Job {
	if j == nil {
		return nil
	}
	return []scheduler.Job{j.CacheCleanup, j.CheckWALCheckpoints, j.DatabaseMaintenance}
}

// Close closes every open database. It is safe on a partially wired container.
func (c *Container) Close() error {
	var firstErr error
	for _, db := range []*database.DB{c.HistoryDB, c.CacheDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
