// Package quota answers two questions before bytes are committed: is there
// room on the disk, and is the client session still under its byte ceiling.
//
// Disk probes the filesystem holding the storage root. Probe failures never
// surface as errors: Info degrades to zeros and HasEnoughSpace fails closed.
//
// Tracker keeps a cumulative byte counter per session in an injected
// UsageStore, so the counter can live in an HTTP session, in Redis or in
// memory for tests:
//
//	tracker := quota.NewTracker(quota.NewMemoryStore(), 1<<30)
//	if err := tracker.Allow(ctx, sessionID, size); err != nil {
//		// errors.Is(err, quota.ErrQuotaExceeded)
//	}
//	// ... commit ...
//	_, _ = tracker.Add(ctx, sessionID, size)
package quota
