// Package pathguard confines client-supplied relative paths to a single
// storage root.
//
// A Guard canonicalizes its root once and resolves every request path against
// it, following symlinks, so the resolved location is checked where it
// actually lives on disk:
//
//	guard, err := pathguard.New("/srv/files", pathguard.WithReserved(".filedrop"))
//	if err != nil {
//		return err
//	}
//
//	dir, err := guard.Resolve("photos/2024")
//	if errors.Is(err, pathguard.ErrInvalidPath) {
//		// traversal attempt, missing directory or broken symlink
//	}
//
// Directories created while handling a request go through Guard.MkdirAll,
// which re-checks confinement after each created segment.
package pathguard
