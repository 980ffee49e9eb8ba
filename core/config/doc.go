// Package config provides type-safe environment variable loading with caching
// using Go generics. Each configuration type is loaded once and cached for
// subsequent calls.
//
// The package automatically loads .env files on first use, uses the
// caarlos0/env library for parsing environment variables into struct fields,
// and validates the result with go-playground/validator `validate` tags.
//
// Basic usage:
//
//	import "github.com/dmitrymomot/filedrop/core/config"
//
//	type UploadConfig struct {
//		Root        string `env:"STORAGE_ROOT,required" validate:"required"`
//		MaxFileSize int64  `env:"UPLOAD_MAX_FILE_SIZE" envDefault:"1073741824" validate:"gt=0"`
//	}
//
//	func main() {
//		var cfg UploadConfig
//
//		// Load with error handling
//		if err := config.Load(&cfg); err != nil {
//			log.Fatal(err)
//		}
//
//		// Or panic on failure (useful for startup)
//		config.MustLoad(&cfg)
//	}
//
// # Caching Behavior
//
// Each configuration type is loaded only once per application lifetime:
//
//	var cfg1 UploadConfig
//	config.Load(&cfg1) // Loads from environment
//
//	var cfg2 UploadConfig
//	config.Load(&cfg2) // Returns cached value, cfg1 == cfg2
//
// Different types are cached independently.
package config
