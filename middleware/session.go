package middleware

import (
	"log/slog"

	"github.com/dmitrymomot/filedrop/core/handler"
	"github.com/dmitrymomot/filedrop/core/logger"
	"github.com/dmitrymomot/filedrop/core/response"
	"github.com/dmitrymomot/filedrop/core/session"
)

type sessionKey struct{}

// SessionTransport loads and stores sessions for a request.
type SessionTransport[Data any] interface {
	Load(handler.Context) (session.Session[Data], error)
	Store(handler.Context, session.Session[Data]) (session.Session[Data], error)
}

// SessionConfig configures the session middleware.
type SessionConfig[C handler.Context, Data any] struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(ctx C) bool
	// Transport loads and stores sessions (required)
	Transport SessionTransport[Data]
	// Logger for store failures (default: logger.Nop())
	Logger *slog.Logger
	// ErrorHandler builds the response when the session cannot be loaded
	// or stored (default: 503)
	ErrorHandler func(ctx C, err error) handler.Response
}

// Session loads the client session and makes it available to handlers.
func Session[C handler.Context, Data any](transport SessionTransport[Data]) handler.Middleware[C] {
	return SessionWithConfig(SessionConfig[C, Data]{Transport: transport})
}

// SessionWithConfig creates a session middleware with custom configuration.
//
// The session is persisted before the handler runs. Handlers that change
// session data go through the session manager directly, so nothing is
// written back afterwards and those updates are never overwritten by the
// copy loaded here.
func SessionWithConfig[C handler.Context, Data any](cfg SessionConfig[C, Data]) handler.Middleware[C] {
	if cfg.Transport == nil {
		panic("session middleware: transport is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(ctx C, err error) handler.Response {
			return response.Error(response.ErrServiceUnavailable.WithMessage("session storage unavailable"))
		}
	}

	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			sess, err := cfg.Transport.Load(ctx)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return response.Error(ctxErr)
				}
				cfg.Logger.ErrorContext(ctx, "failed to load session", logger.Error(err))
				return cfg.ErrorHandler(ctx, err)
			}

			sess, err = cfg.Transport.Store(ctx, sess)
			if err != nil {
				cfg.Logger.ErrorContext(ctx, "failed to store session",
					logger.SessionID(sess.ID.String()),
					logger.Error(err))
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.SetValue(sessionKey{}, sess)
			return next(ctx)
		}
	}
}

// GetSession returns the session loaded by the middleware.
func GetSession[Data any](ctx handler.Context) (session.Session[Data], bool) {
	if ctx == nil {
		return session.Session[Data]{}, false
	}
	return handler.ValueOf[session.Session[Data]](ctx, sessionKey{})
}
