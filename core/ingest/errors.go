package ingest

import (
	"context"
	"errors"

	"github.com/dmitrymomot/filedrop/core/quota"
)

var (
	ErrPolicyDisabled    = errors.New("uploads are disabled")
	ErrInvalidPath       = errors.New("invalid path")
	ErrInvalidName       = errors.New("invalid file name")
	ErrSizeLimit         = errors.New("file exceeds the maximum allowed size")
	ErrQuotaExceeded     = quota.ErrQuotaExceeded
	ErrDuplicate         = errors.New("file already exists")
	ErrInsufficientSpace = errors.New("insufficient disk space")
	ErrTransport         = errors.New("upload transfer failed")
	ErrIO                = errors.New("storage write failed")
	ErrClientAborted     = errors.New("upload aborted by client")
	ErrIntegrity         = errors.New("merged file size mismatch")
	ErrMissingChunk      = errors.New("missing chunk")
	ErrInvalidUploadID   = errors.New("invalid upload id")
	ErrInvalidChunk      = errors.New("invalid chunk index")
)

// Machine readable error codes returned by Code.
const (
	CodePolicyDisabled    = "policy_disabled"
	CodeInvalidPath       = "invalid_path"
	CodeInvalidName       = "invalid_name"
	CodeSizeLimit         = "size_limit_exceeded"
	CodeQuotaExceeded     = "quota_exceeded"
	CodeDuplicate         = "duplicate_exists"
	CodeInsufficientSpace = "insufficient_space"
	CodeTransport         = "transport_error"
	CodeIO                = "io_failure"
	CodeClientAborted     = "client_aborted"
	CodeIntegrity         = "integrity_mismatch"
	CodeMissingChunk      = "missing_chunk"
	CodeInvalidUploadID   = "invalid_upload_id"
	CodeInvalidChunk      = "invalid_chunk"
	CodeInternal          = "internal_error"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrPolicyDisabled, CodePolicyDisabled},
	{ErrInvalidPath, CodeInvalidPath},
	{ErrInvalidName, CodeInvalidName},
	{ErrSizeLimit, CodeSizeLimit},
	{ErrQuotaExceeded, CodeQuotaExceeded},
	{ErrDuplicate, CodeDuplicate},
	{ErrInsufficientSpace, CodeInsufficientSpace},
	{ErrClientAborted, CodeClientAborted},
	{ErrIntegrity, CodeIntegrity},
	{ErrMissingChunk, CodeMissingChunk},
	{ErrInvalidUploadID, CodeInvalidUploadID},
	{ErrInvalidChunk, CodeInvalidChunk},
	{ErrTransport, CodeTransport},
	{ErrIO, CodeIO},
}

// Code maps an error returned by the engine to a stable machine readable code.
// Unknown errors map to CodeInternal, nil maps to "".
func Code(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return CodeClientAborted
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
