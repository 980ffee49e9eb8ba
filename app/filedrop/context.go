package filedrop

import (
	"net/http"

	"github.com/dmitrymomot/filedrop/core/router"
	"github.com/dmitrymomot/filedrop/middleware"
)

// Context is the request context passed to filedrop handlers.
type Context struct {
	*router.Context
}

func newContext(w http.ResponseWriter, r *http.Request, params map[string]string) *Context {
	return &Context{Context: router.NewContext(w, r, params)}
}

// SessionID returns the id of the client session, or "" when the session
// middleware did not run.
func (c *Context) SessionID() string {
	sess, ok := middleware.GetSession[SessionData](c)
	if !ok {
		return ""
	}
	return sess.ID.String()
}

// RequestID returns the id assigned by the request id middleware.
func (c *Context) RequestID() string {
	id, _ := middleware.GetRequestID(c)
	return id
}
