package server

import "time"

// Upload bodies can take minutes to arrive, so read and write timeouts are
// generous while header reads stay short.
const (
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultReadTimeout       = 30 * time.Minute
	DefaultWriteTimeout      = 30 * time.Minute
	DefaultIdleTimeout       = 60 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20 // 1 MB
)
