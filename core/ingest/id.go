package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var uploadIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// uploadNamespace scopes DeriveUploadID so ids never collide with other
// name-based UUIDs.
var uploadNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("filedrop:upload"))

// ValidateUploadID checks the upload id syntax.
func ValidateUploadID(id string) error {
	if !uploadIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidUploadID, id)
	}
	return nil
}

// DeriveUploadID returns a deterministic upload id for a logical file so
// that retries of the same file resume the same chunk set.
func DeriveUploadID(name string, size int64, modTime time.Time, targetDir, relativePath string) string {
	key := strings.Join([]string{
		name,
		strconv.FormatInt(size, 10),
		strconv.FormatInt(modTime.UnixMilli(), 10),
		targetDir,
		relativePath,
	}, "\x00")
	return uuid.NewSHA1(uploadNamespace, []byte(key)).String()
}
