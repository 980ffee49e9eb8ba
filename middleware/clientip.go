package middleware

import (
	"github.com/dmitrymomot/filedrop/core/handler"
	"github.com/dmitrymomot/filedrop/pkg/clientip"
)

type clientIPContextKey struct{}

// ClientIPConfig configures the client IP middleware.
type ClientIPConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(ctx handler.Context) bool
	// HeaderName, when set, echoes the resolved IP in this response header
	HeaderName string
}

// ClientIP resolves the client address once and stores it in the context.
func ClientIP[C handler.Context]() handler.Middleware[C] {
	return ClientIPWithConfig[C](ClientIPConfig{})
}

// ClientIPWithConfig creates a client IP middleware with custom configuration.
func ClientIPWithConfig[C handler.Context](cfg ClientIPConfig) handler.Middleware[C] {
	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			ip := clientip.GetIP(ctx.Request())
			ctx.SetValue(clientIPContextKey{}, ip)
			if cfg.HeaderName != "" {
				ctx.ResponseWriter().Header().Set(cfg.HeaderName, ip)
			}
			return next(ctx)
		}
	}
}

// GetClientIP returns the IP stored by the ClientIP middleware.
func GetClientIP(ctx handler.Context) (string, bool) {
	return handler.ValueOf[string](ctx, clientIPContextKey{})
}
