// Package binder maps url-encoded and multipart form requests onto tagged
// Go structs.
//
//	type chunkRequest struct {
//		UploadID   string                `form:"uploadId"`
//		ChunkIndex int                   `form:"chunkIndex"`
//		Files      []string              `form:"relativePaths"` // also matches relativePaths[]
//		Chunk      *multipart.FileHeader `file:"chunk"`
//	}
//
//	var req chunkRequest
//	if err := binder.Form()(r, &req); err != nil {
//		// errors.Is(err, binder.ErrFailedToParseForm) and friends
//	}
//	defer r.MultipartForm.RemoveAll()
//
// Scalar fields accept strings, signed and unsigned integers, floats and
// booleans (on/off and yes/no included); pointers mark optional fields and
// slices collect repeated values. String values are stripped of NUL bytes,
// line breaks and control characters before assignment.
package binder
