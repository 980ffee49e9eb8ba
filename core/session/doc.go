// Package session provides anonymous, server-side sessions with generic
// application data.
//
// The upload service keys its per-session byte counter on the session ID.
// A Manager wraps a Store (in memory here, Redis in
// integration/database/redis) and handles expiration and touch
// throttling:
//
//	type Usage struct {
//		UploadedBytes int64 `json:"uploaded_bytes"`
//	}
//
//	mgr := session.NewManager(session.NewMemoryStore[Usage](),
//		session.WithTTL(24*time.Hour),
//	)
//	sess, _ := mgr.New(ctx, session.NewSessionParams{IP: ip})
//	sess, _ = mgr.Store(ctx, sess)
//	_ = mgr.Update(ctx, sess.ID, func(u *Usage) { u.UploadedBytes += n })
//
// Transport (cookies) lives in core/sessiontransport.
package session
