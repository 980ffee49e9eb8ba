// Package redis connects to Redis and persists filedrop sessions there.
//
// Connect validates the redis:// or rediss:// URL, then pings with retries
// until the server answers or ConnectTimeout elapses:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	store := redis.NewSessionStoreFromConfig[SessionData](client, cfg)
//	mgr := session.NewManager[SessionData](store)
//
// SessionStore writes each session as JSON under "<prefix>session:<id>" and an
// index key "<prefix>token:<token>", both expiring with the session. Because a
// refreshed token leaves its old index key behind, DeleteExpired sweeps token
// keys with SCAN and removes those that no longer resolve.
//
// Healthcheck returns a ping probe for readiness endpoints.
//
// Errors: ErrEmptyConnectionURL, ErrFailedToParseRedisConnString,
// ErrRedisNotReady, ErrHealthcheckFailed and ErrSessionCodec can be matched
// with errors.Is.
package redis
