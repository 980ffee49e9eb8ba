package binder

import "errors"

var (
	// ErrUnsupportedMediaType indicates the Content-Type is neither url-encoded
	// nor multipart form data.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrFailedToParseForm indicates form data parsing failed due to malformed
	// multipart boundaries, invalid URL-encoded data, or a value that cannot be
	// converted to the field type.
	ErrFailedToParseForm = errors.New("failed to parse form data")

	// ErrMissingContentType indicates the request lacks a Content-Type header.
	ErrMissingContentType = errors.New("missing content type")
)
