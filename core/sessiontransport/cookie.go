package sessiontransport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrymomot/filedrop/core/cookie"
	"github.com/dmitrymomot/filedrop/core/handler"
	"github.com/dmitrymomot/filedrop/core/session"
	"github.com/dmitrymomot/filedrop/pkg/clientip"
)

// Cookie carries Session.Token in a signed cookie.
type Cookie[Data any] struct {
	manager   *session.Manager[Data]
	cookieMgr *cookie.Manager
	name      string
}

// NewCookie creates a cookie-based session transport.
func NewCookie[Data any](mgr *session.Manager[Data], cookieMgr *cookie.Manager, name string) *Cookie[Data] {
	if name == "" {
		name = DefaultCookieName
	}
	return &Cookie[Data]{manager: mgr, cookieMgr: cookieMgr, name: name}
}

// Load returns the session named by the request cookie. A missing, forged
// or expired cookie yields a fresh unsaved session, so Load only fails
// when a new session cannot be created or the store is unreachable.
func (c *Cookie[Data]) Load(ctx handler.Context) (session.Session[Data], error) {
	token, err := c.cookieMgr.GetSigned(ctx.Request(), c.name)
	if err != nil {
		return c.fresh(ctx)
	}

	sess, err := c.manager.GetByToken(ctx, token)
	switch {
	case err == nil:
		return sess, nil
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrExpired):
		return c.fresh(ctx)
	default:
		return session.Session[Data]{}, errors.Join(ErrLoad, err)
	}
}

// Store persists sess and refreshes the cookie when the stored state
// changed. Deleted sessions clear the cookie.
func (c *Cookie[Data]) Store(ctx handler.Context, sess session.Session[Data]) (session.Session[Data], error) {
	stored, err := c.manager.Store(ctx, sess)
	if err != nil {
		return sess, err
	}

	if stored.IsDeleted() {
		c.cookieMgr.Delete(ctx.ResponseWriter(), c.name)
		return stored, nil
	}

	if sess.IsModified() || !stored.UpdatedAt.Equal(sess.UpdatedAt) {
		if err := c.write(ctx.ResponseWriter(), stored); err != nil {
			return stored, err
		}
	}
	return stored, nil
}

func (c *Cookie[Data]) fresh(ctx handler.Context) (session.Session[Data], error) {
	r := ctx.Request()
	return c.manager.New(context.WithoutCancel(ctx), session.NewSessionParams{
		IP:        clientip.GetIP(r),
		UserAgent: r.UserAgent(),
	})
}

func (c *Cookie[Data]) write(w http.ResponseWriter, sess session.Session[Data]) error {
	until := time.Until(sess.ExpiresAt)
	if until <= 0 {
		return ErrExpiredSession
	}
	return c.cookieMgr.SetSigned(w, c.name, sess.Token, cookie.WithMaxAge(int(until.Seconds())))
}
