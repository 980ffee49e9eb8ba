package filedrop

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/filedrop/core/binder"
	"github.com/dmitrymomot/filedrop/core/ingest"
	"github.com/dmitrymomot/filedrop/core/response"
	"github.com/dmitrymomot/filedrop/middleware"
)

var ingestStatus = map[string]int{
	ingest.CodePolicyDisabled:    http.StatusForbidden,
	ingest.CodeInvalidPath:       http.StatusBadRequest,
	ingest.CodeInvalidName:       http.StatusBadRequest,
	ingest.CodeInvalidUploadID:   http.StatusBadRequest,
	ingest.CodeInvalidChunk:      http.StatusBadRequest,
	ingest.CodeTransport:         http.StatusBadRequest,
	ingest.CodeSizeLimit:         http.StatusRequestEntityTooLarge,
	ingest.CodeQuotaExceeded:     http.StatusForbidden,
	ingest.CodeDuplicate:         http.StatusConflict,
	ingest.CodeMissingChunk:      http.StatusUnprocessableEntity,
	ingest.CodeInsufficientSpace: http.StatusInsufficientStorage,
	ingest.CodeClientAborted:     499,
	ingest.CodeIntegrity:         http.StatusInternalServerError,
	ingest.CodeIO:                http.StatusInternalServerError,
	ingest.CodeInternal:          http.StatusInternalServerError,
}

// ingestError converts an engine error into an HTTP error carrying the
// machine readable ingest code. Server side failures hide their cause.
func ingestError(err error) response.HTTPError {
	code := ingest.Code(err)
	status, ok := ingestStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusInsufficientStorage {
		msg = "upload failed due to a storage error"
	}
	return response.HTTPError{Status: status, Code: code, Message: msg}
}

// requestError converts a binding failure into a 400 or 413.
func requestError(err error) response.HTTPError {
	if middleware.IsBodyTooLarge(err) {
		return response.ErrRequestEntityTooLarge.WithMessage("request body too large")
	}
	if errors.Is(err, binder.ErrUnsupportedMediaType) || errors.Is(err, binder.ErrMissingContentType) {
		return response.ErrBadRequest.WithCode("unsupported_media_type").WithMessage(err.Error())
	}
	return response.ErrBadRequest.WithCode("invalid_request").WithMessage(err.Error())
}
