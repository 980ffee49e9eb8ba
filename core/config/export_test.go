package config

// Reset exposes the cache reset to external tests.
var Reset = reset
