package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// SlowOperation is the duration above which OperationTimer warns
const SlowOperation = 10 * time.Second

// OperationTimer measures an operation; call the returned func when it ends.
//
//	defer utils.OperationTimer("optimize", log)()
func OperationTimer(operation string, log zerolog.Logger) func() {
	start := time.Now()

	return func() {
		duration := time.Since(start)

		log.Debug().
			Str("operation", operation).
			Dur("duration_ms", duration).
			Msg("Operation completed")

		if duration > SlowOperation {
			log.Warn().
				Str("operation", operation).
				Dur("duration", duration).
				Msg("Slow operation detected")
		}
	}
}
