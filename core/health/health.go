package health

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/filedrop/core/handler"
	"github.com/dmitrymomot/filedrop/core/logger"
	"github.com/dmitrymomot/filedrop/core/response"
)

// Check reports whether one dependency is usable.
type Check struct {
	Name  string
	Probe func(context.Context) error
}

// Liveness indicates the process is running. It performs no dependency checks.
func Liveness[C handler.Context](C) handler.Response {
	return response.String("ALIVE")
}

// Readiness runs every check and answers "READY", or 503 naming the
// failed checks.
func Readiness[C handler.Context](log *slog.Logger, checks ...Check) handler.HandlerFunc[C] {
	if log == nil {
		log = logger.Nop()
	}

	return func(ctx C) handler.Response {
		var failed []string
		for _, c := range checks {
			if err := c.Probe(ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed",
					logger.Component(c.Name),
					logger.Error(err))
				failed = append(failed, c.Name)
			}
		}

		if len(failed) > 0 {
			return response.Error(response.ErrServiceUnavailable.
				WithDetails(map[string]any{"failed": failed}))
		}
		return response.String("READY")
	}
}
