package sessiontransport

import (
	"github.com/dmitrymomot/filedrop/core/cookie"
	"github.com/dmitrymomot/filedrop/core/session"
)

// DefaultCookieName is used when no cookie name is configured.
const DefaultCookieName = "__filedrop"

// CookieConfig provides environment-based configuration for cookie transport.
type CookieConfig struct {
	CookieName string `env:"SESSION_COOKIE_NAME" envDefault:"__filedrop"`
}

// NewCookieFromConfig creates a cookie transport from configuration.
func NewCookieFromConfig[Data any](cfg CookieConfig, mgr *session.Manager[Data], cookieMgr *cookie.Manager) *Cookie[Data] {
	return NewCookie(mgr, cookieMgr, cfg.CookieName)
}
