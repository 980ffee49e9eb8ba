package sanitizer

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxNameLength is the byte ceiling applied to a single sanitized name.
// Filesystems limit names in bytes, so multibyte names get fewer runes.
const MaxNameLength = 255

// maxExtLength is the longest extension kept intact when a name is cut.
const maxExtLength = 32

// Filename reduces raw to its final path component and replaces every rune
// outside the allowed set with an underscore. It never returns an empty
// string, "." or "..": such results are replaced by a generated name.
func Filename(raw string) string {
	if i := strings.LastIndexAny(raw, `/\`); i >= 0 {
		raw = raw[i+1:]
	}

	name := clean(raw)
	if isEmptyName(name) {
		return generatedName()
	}
	return name
}

// Segment sanitizes a single directory name. Path separators are replaced
// rather than split on. An empty return value means the segment was rejected.
func Segment(raw string) string {
	name := clean(raw)
	if isEmptyName(name) {
		return ""
	}
	return name
}

// RelativePath sanitizes a slash separated path used by folder uploads.
// Interior segments go through Segment and are dropped when rejected; the
// final segment goes through Filename.
func RelativePath(raw string) string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == '/' || r == '\\' })
	if len(parts) == 0 {
		return Filename(raw)
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts[:len(parts)-1] {
		if seg := Segment(p); seg != "" {
			out = append(out, seg)
		}
	}
	out = append(out, Filename(parts[len(parts)-1]))

	return strings.Join(out, "/")
}

func clean(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.Map(func(r rune) rune {
		if allowedRune(r) {
			return r
		}
		return '_'
	}, s)
	s = strings.TrimSpace(s)
	s = truncateName(s, MaxNameLength)
	return strings.TrimSpace(s)
}

// truncateName cuts s to at most n bytes on a rune boundary. A short
// extension survives the cut.
func truncateName(s string, n int) string {
	if len(s) <= n {
		return s
	}
	ext := ""
	if i := strings.LastIndexByte(s, '.'); i > 0 && len(s)-i <= maxExtLength {
		s, ext = s[:i], s[i:]
	}
	return strings.TrimSpace(cutBytes(s, n-len(ext))) + ext
}

func cutBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func allowedRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.', '_', ' ', '-', '(', ')', '[', ']', '+':
		return true
	}
	return false
}

func isEmptyName(s string) bool {
	return s == "" || s == "." || s == ".."
}

func generatedName() string {
	return fmt.Sprintf("file_%d", time.Now().UnixNano())
}
