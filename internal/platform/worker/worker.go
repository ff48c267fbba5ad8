// Package worker provides the panic-recovery helper shared by every
// long-running goroutine in the engine: the company pool, the crawler's
// intra-domain workers, and the browser service's dispatch loop.
package worker

import (
	"github.com/rs/zerolog"
)

// RecoverPanic recovers from panics and logs them.
// Use as: defer worker.RecoverPanic(logger, "operation name")
func RecoverPanic(logger *zerolog.Logger, operation string) {
	if r := recover(); r != nil {
		logger.Error().
			Interface("panic", r).
			Str("operation", operation).
			Msg("recovered from panic")
	}
}
