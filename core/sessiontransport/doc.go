// Package sessiontransport moves session tokens between the server and
// the client.
//
// Cookie keeps Session.Token in a signed cookie. Load never fails for a
// missing or stale cookie; it hands back a new, unsaved session instead.
// Store persists the session and refreshes the cookie when needed:
//
//	transport := sessiontransport.NewCookie(sessionMgr, cookieMgr, "__filedrop")
//	sess, err := transport.Load(ctx)
//	...
//	sess, err = transport.Store(ctx, sess)
package sessiontransport
