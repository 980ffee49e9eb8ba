package binder

import (
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"
)

// DefaultMaxMemory is the default maximum memory used for parsing multipart forms (10MB).
// File parts beyond it are spooled to temporary files by net/http.
const DefaultMaxMemory = 10 << 20 // 10 MB

// Form creates a binder for application/x-www-form-urlencoded and
// multipart/form-data requests using DefaultMaxMemory.
//
// Supported struct tags:
//   - `form:"name"` binds to form field "name"
//   - `file:"name"` binds to uploaded file "name"
//   - `form:"-"` / `file:"-"` skip the field
//
// A field named "files" also matches the bracketed "files[]" that browser
// clients send for repeated fields.
//
// File fields accept *multipart.FileHeader or []*multipart.FileHeader.
// Client-supplied filenames are left untouched; callers sanitize them.
// The caller owns r.MultipartForm and should call RemoveAll when done.
func Form() Binder {
	return FormWithMaxMemory(DefaultMaxMemory)
}

// FormWithMaxMemory is like Form with a custom in-memory limit for multipart parsing.
func FormWithMaxMemory(maxMemory int64) Binder {
	if maxMemory <= 0 {
		maxMemory = DefaultMaxMemory
	}

	return func(r *http.Request, v any) error {
		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			return fmt.Errorf("%w: expected application/x-www-form-urlencoded or multipart/form-data", ErrMissingContentType)
		}

		mediaType, params, err := mime.ParseMediaType(contentType)
		if err != nil {
			return fmt.Errorf("%w: malformed content type", ErrFailedToParseForm)
		}

		var values map[string][]string
		var files map[string][]*multipart.FileHeader

		switch mediaType {
		case "application/x-www-form-urlencoded":
			if err := r.ParseForm(); err != nil {
				return fmt.Errorf("%w: %w", ErrFailedToParseForm, err)
			}
			values = r.Form

		case "multipart/form-data":
			if !validateBoundary(params["boundary"]) {
				return fmt.Errorf("%w: invalid boundary parameter", ErrFailedToParseForm)
			}
			if err := r.ParseMultipartForm(maxMemory); err != nil {
				// Keep the cause so callers can tell an oversized body apart.
				return fmt.Errorf("%w: %w", ErrFailedToParseForm, err)
			}
			if r.MultipartForm != nil {
				values = r.MultipartForm.Value
				files = r.MultipartForm.File
			}

		default:
			return fmt.Errorf("%w: got %s, expected application/x-www-form-urlencoded or multipart/form-data", ErrUnsupportedMediaType, mediaType)
		}

		return bindFormAndFiles(v, values, files)
	}
}

// bindFormAndFiles binds both form values and files to a struct.
func bindFormAndFiles(v any, values map[string][]string, files map[string][]*multipart.FileHeader) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: target must be a non-nil pointer", ErrFailedToParseForm)
	}

	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("%w: target must be a pointer to struct", ErrFailedToParseForm)
	}

	rt := rv.Type()

	for i := range rv.NumField() {
		field := rv.Field(i)
		fieldType := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		if name, ok := tagName(fieldType, "form"); ok {
			if fieldValues := lookup(values, name); len(fieldValues) > 0 {
				if err := setFieldValue(field, fieldType.Type, fieldValues); err != nil {
					return fmt.Errorf("%w: field %s: %v", ErrFailedToParseForm, fieldType.Name, err)
				}
			}
		}

		if name, ok := tagName(fieldType, "file"); ok {
			if headers := lookup(files, name); len(headers) > 0 {
				if err := setFileField(field, fieldType.Type, headers); err != nil {
					return fmt.Errorf("%w: field %s: %v", ErrFailedToParseForm, fieldType.Name, err)
				}
			}
		}
	}

	return nil
}

// lookup returns m[name], falling back to m[name+"[]"].
func lookup[T any](m map[string][]T, name string) []T {
	if m == nil {
		return nil
	}
	if vs, ok := m[name]; ok {
		return vs
	}
	return m[name+"[]"]
}

var fileHeaderType = reflect.TypeFor[*multipart.FileHeader]()

// setFileField sets file headers to struct fields.
func setFileField(field reflect.Value, fieldType reflect.Type, headers []*multipart.FileHeader) error {
	if fieldType.Kind() == reflect.Slice {
		if fieldType.Elem() != fileHeaderType {
			return fmt.Errorf("unsupported slice element type for file field: %v", fieldType.Elem())
		}
		slice := reflect.MakeSlice(fieldType, len(headers), len(headers))
		for i, fh := range headers {
			slice.Index(i).Set(reflect.ValueOf(fh))
		}
		field.Set(slice)
		return nil
	}

	if fieldType == fileHeaderType {
		field.Set(reflect.ValueOf(headers[0]))
		return nil
	}

	return fmt.Errorf("unsupported type for file field: %v (expected *multipart.FileHeader or []*multipart.FileHeader)", fieldType)
}

// tagName returns the parameter name from a struct tag, ignoring options.
// ok is false when the tag is missing, empty, or "-".
func tagName(field reflect.StructField, key string) (string, bool) {
	tag := field.Tag.Get(key)
	name, _, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" {
		return "", false
	}
	return name, true
}
