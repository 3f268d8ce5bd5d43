package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ExpiredEntryRemover deletes expired cache entries
type ExpiredEntryRemover interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CacheCleanupJob purges expired calculation cache entries
type CacheCleanupJob struct {
	cache   ExpiredEntryRemover
	timeout time.Duration
	log     zerolog.Logger
}

// NewCacheCleanupJob creates a cleanup job over the given cache
func NewCacheCleanupJob(cache ExpiredEntryRemover, log zerolog.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		cache:   cache,
		timeout: 30 * time.Second,
		log:     log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

// Run deletes every expired entry
func (j *CacheCleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	removed, err := j.cache.DeleteExpired(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		j.log.Info().Int64("removed", removed).Msg("Expired cache entries removed")
	}
	return nil
}
