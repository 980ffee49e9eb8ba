package sanitizer

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

var (
	// ErrNotStructPointer is returned when SanitizeStruct receives anything
	// but a non-nil pointer to a struct.
	ErrNotStructPointer = errors.New("sanitizer: must pass a pointer to struct")

	// ErrUnknownSanitizer is returned for tag entries with no registered function.
	ErrUnknownSanitizer = errors.New("sanitizer: unknown sanitizer")
)

const tagKey = "sanitize"

var (
	registryMu sync.RWMutex
	registry   = map[string]func(string) string{
		"trim":        Trim,
		"lower":       ToLower,
		"single_line": SingleLine,
		"no_spaces":   RemoveExtraWhitespace,
		"no_control":  RemoveControlChars,
		"identifier":  KeepIdentifier,
		"filename":    Filename,
		"segment":     Segment,
		"relpath":     optionalRelativePath,
	}
)

// optionalRelativePath keeps an absent relative path absent instead of
// turning it into a generated filename.
func optionalRelativePath(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return RelativePath(s)
}

// RegisterSanitizer adds fn under name. A later registration replaces an
// earlier one.
func RegisterSanitizer(name string, fn func(string) string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// SanitizeStruct rewrites string fields of the struct v points to according
// to their `sanitize` tag, e.g. `sanitize:"trim,max:64"`. Nested structs and
// struct pointers are walked; string slices get the tag applied per element.
func SanitizeStruct(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return ErrNotStructPointer
	}
	return walk(rv.Elem())
}

func walk(rv reflect.Value) error {
	rt := rv.Type()
	for i := range rv.NumField() {
		field := rv.Field(i)
		if !field.CanSet() {
			continue
		}
		tag := rt.Field(i).Tag.Get(tagKey)
		if tag == "-" {
			continue
		}

		var err error
		switch field.Kind() {
		case reflect.String:
			err = apply(field, tag)
		case reflect.Struct:
			err = walk(field)
		case reflect.Pointer:
			if field.IsNil() {
				continue
			}
			switch elem := field.Elem(); elem.Kind() {
			case reflect.String:
				err = apply(elem, tag)
			case reflect.Struct:
				err = walk(elem)
			}
		case reflect.Slice:
			if field.Type().Elem().Kind() != reflect.String {
				continue
			}
			for j := range field.Len() {
				if err = apply(field.Index(j), tag); err != nil {
					break
				}
			}
		}
		if err != nil {
			return fmt.Errorf("field %s: %w", rt.Field(i).Name, err)
		}
	}
	return nil
}

func apply(v reflect.Value, tag string) error {
	if tag == "" {
		return nil
	}
	out, err := run(v.String(), tag)
	if err != nil {
		return err
	}
	v.SetString(out)
	return nil
}

// run applies the comma separated sanitizers of tag in order.
func run(s, tag string) (string, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for name := range strings.SplitSeq(tag, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		if raw, ok := strings.CutPrefix(name, "max:"); ok {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				return "", fmt.Errorf("%w: %q", ErrUnknownSanitizer, name)
			}
			s = MaxLength(s, n)
			continue
		}

		fn, ok := registry[name]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownSanitizer, name)
		}
		s = fn(s)
	}
	return s, nil
}
