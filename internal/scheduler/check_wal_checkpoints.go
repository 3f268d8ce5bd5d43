package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/database"
)

// walFrameWarning is the WAL size, in frames, that is logged as a warning
const walFrameWarning = 1000

// CheckWALCheckpointsJob runs passive checkpoints and reports WAL growth
type CheckWALCheckpointsJob struct {
	databases []*database.DB
	log       zerolog.Logger
}

// NewCheckWALCheckpointsJob creates the job; nil databases are skipped
func NewCheckWALCheckpointsJob(log zerolog.Logger, databases ...*database.DB) *CheckWALCheckpointsJob {
	return &CheckWALCheckpointsJob{
		databases: databases,
		log:       log.With().Str("job", "check_wal_checkpoints").Logger(),
	}
}

// Name returns the job name
func (j *CheckWALCheckpointsJob) Name() string {
	return "check_wal_checkpoints"
}

// Run checkpoints every database. Individual failures are logged, not returned.
func (j *CheckWALCheckpointsJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	checkedCount := 0
	for _, db := range j.databases {
		if db == nil {
			continue
		}

		frames, checkpointed, err := db.WALStatus(ctx)
		if err != nil {
			j.log.Warn().
				Err(err).
				Str("database", db.Name()).
				Msg("Failed to check WAL checkpoint")
			continue
		}

		if frames > walFrameWarning {
			j.log.Warn().
				Str("database", db.Name()).
				Int("wal_frames", frames).
				Int("checkpointed", checkpointed).
				Msg("WAL file is large, checkpoint may be needed")
		} else {
			j.log.Debug().
				Str("database", db.Name()).
				Int("wal_frames", frames).
				Msg("WAL checkpoint status OK")
		}
		checkedCount++
	}

	j.log.Info().
		Int("checked", checkedCount).
		Msg("WAL checkpoint check completed")
	return nil
}
