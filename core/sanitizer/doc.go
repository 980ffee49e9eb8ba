// Package sanitizer turns untrusted client-supplied names into filesystem-safe
// values and cleans bound request structs.
//
// Filename, Segment and RelativePath share one character policy: letters,
// digits and the punctuation set `._ -()[]+` are kept, everything else becomes
// an underscore. Input is normalized to Unicode NFC first so visually equal
// names map to the same bytes on disk.
//
//	name := sanitizer.Filename("../../etc/passwd") // "passwd"
//	seg := sanitizer.Segment("..")                 // "" (rejected)
//	rel := sanitizer.RelativePath("photos/2024/a b.jpg")
//
// Filename never returns an empty value; when nothing usable is left it falls
// back to a generated name. Segment returns an empty string instead, and
// callers must treat that as a rejection.
//
// # Struct Tags
//
// SanitizeStruct applies comma separated sanitizers from `sanitize` tags:
//
//	type chunkRequest struct {
//		UploadID string `form:"uploadId" sanitize:"trim"`
//		Filename string `form:"filename" sanitize:"trim,no_control"`
//	}
//
// Custom sanitizers can be added with RegisterSanitizer.
package sanitizer
