// Package s3 mirrors committed uploads to Amazon S3 or any S3-compatible
// service (MinIO, Wasabi, R2).
//
// The mirror plugs into the ingestion engine as a commit hook and uploads in
// background workers, so a slow bucket never delays an upload response:
//
//	mirror, err := s3.New(ctx, cfg, s3.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	engine, err := ingest.New(ingestCfg, guard, disk, tracker,
//		ingest.WithCommitHook(mirror.Hook()))
//
//	g.Go(func() error { return mirror.Run(ctx) })
//
// Object keys are the storage-root relative path under the optional Prefix.
// The local file stays authoritative: a full queue, a stopped mirror or a
// failed PutObject is reported to the engine, which logs it and keeps the
// commit. Content types are sniffed from the file with mimetype.
//
// Errors from the AWS SDK are classified into ErrAccessDenied,
// ErrBucketNotFound, ErrOperationTimeout, ErrOperationCanceled and
// ErrServiceUnavailable.
package s3
