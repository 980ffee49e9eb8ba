// Package ingest moves bytes from untrusted clients into the storage root
// with all-or-nothing semantics.
//
// Two flows are supported. Upload stores a batch of complete files, each with
// an independent outcome. ReceiveChunk stores one chunk of a resumable
// upload and merges the chunk set when the last chunk arrives; CheckStatus
// tells a reconnecting client which chunk to send next.
//
// Every byte is first written to a uniquely named staging artifact in the
// work directory and reaches its destination through a single rename, so the
// destination never holds a partial file. Artifacts belong to a per-request
// transaction and are removed on every exit path that does not commit them.
//
// Chunk sets live in "<work dir>/chunks/<upload id>/<index>.part". Sets
// without activity for Config.ChunkMaxAge are removed when a new upload
// starts (chunk index 0) or when CollectGarbage is called.
//
// Client disconnects are observed through the request context at fixed
// checkpoints: after a file is staged, after a chunk is written and after
// every chunk copied during a merge.
//
// Errors are sentinels that can be matched with errors.Is and mapped to
// stable codes with Code:
//
//	res, err := engine.ReceiveChunk(ctx, sessionID, in)
//	if err != nil {
//		return response.JSON(map[string]any{"success": false, "code": ingest.Code(err)})
//	}
package ingest
