// Package logger provides structured logging utilities built on Go's standard slog package.
//
// It offers environment presets, context-aware attribute extraction, and a set of
// attribute helpers shared by every component of the service so log records stay
// consistent across HTTP handling and file ingestion.
//
// # Basic Usage
//
//	import "github.com/dmitrymomot/filedrop/core/logger"
//
//	log := logger.New(
//		logger.WithEnvironment(os.Getenv("APP_ENV"), "filedrop"),
//		logger.WithLevel(slog.LevelDebug),
//	)
//
//	log.Info("upload committed",
//		logger.Component("ingest"),
//		logger.Filename("report.pdf"),
//		logger.Bytes(2048),
//	)
//
// # Context-Aware Logging
//
// Extractors run for every *Context call and can lift request-scoped values
// (request id, session id) into the record:
//
//	log := logger.New(logger.WithContextValue("request_id", requestIDKey{}))
//	log.InfoContext(ctx, "chunk received")
//
// # Attribute Helpers
//
// Helpers return the empty slog.Attr for nil errors and empty identifiers, which
// slog drops, so they can be passed unconditionally:
//
//	log.Error("merge failed", logger.Error(err), logger.UploadID(id), logger.Chunk(3, 5))
//
// # Testing
//
//	var buf bytes.Buffer
//	log := logger.New(logger.WithJSONFormatter(), logger.WithOutput(&buf))
package logger
