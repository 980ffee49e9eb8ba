package ingest

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// FileMode is an os.FileMode parsed from an octal string such as "0644".
type FileMode os.FileMode

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *FileMode) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(string(text), 8, 32)
	if err != nil {
		return fmt.Errorf("invalid file mode %q: %w", text, err)
	}
	if v > 0o777 {
		return fmt.Errorf("invalid file mode %q: only permission bits are allowed", text)
	}
	*m = FileMode(v)
	return nil
}

// String returns the mode in octal notation.
func (m FileMode) String() string {
	return fmt.Sprintf("%04o", uint32(m))
}

// Perm returns the mode as os.FileMode.
func (m FileMode) Perm() os.FileMode {
	return os.FileMode(m).Perm()
}

// Config holds upload policy with environment variable support.
type Config struct {
	// Administrative gate
	Enabled bool `env:"UPLOAD_ENABLED" envDefault:"true"`

	// Limits
	MaxFileSize     int64 `env:"UPLOAD_MAX_FILE_SIZE" envDefault:"1073741824" validate:"gt=0"`       // 1GB
	MaxSessionBytes int64 `env:"UPLOAD_MAX_SESSION_BYTES" envDefault:"10737418240" validate:"gte=0"` // 10GB, 0 = unlimited
	MaxChunkSize    int64 `env:"UPLOAD_MAX_CHUNK_SIZE" envDefault:"104857600" validate:"gt=0"`       // 100MB
	// MaxChunks caps totalChunks of a chunked upload.
	MaxChunks int `env:"UPLOAD_MAX_CHUNKS" envDefault:"10000" validate:"gt=0"`

	// Internal work area for staging artifacts and chunk sets.
	// Empty means "<storage root>/.filedrop". It must be on the same
	// filesystem as the storage root so commits are atomic renames.
	WorkDir     string        `env:"UPLOAD_WORK_DIR"`
	ChunkMaxAge time.Duration `env:"UPLOAD_CHUNK_MAX_AGE" envDefault:"24h" validate:"gt=0"`

	// Destination ownership policy; -1 leaves the owner unchanged.
	FileMode FileMode `env:"UPLOAD_FILE_MODE" envDefault:"0644"`
	DirMode  FileMode `env:"UPLOAD_DIR_MODE" envDefault:"0755"`
	FileUID  int      `env:"UPLOAD_FILE_UID" envDefault:"-1" validate:"gte=-1"`
	FileGID  int      `env:"UPLOAD_FILE_GID" envDefault:"-1" validate:"gte=-1"`

	// Buffer used for stream copies.
	CopyBuffer int `env:"UPLOAD_COPY_BUFFER" envDefault:"1048576" validate:"gte=4096"` // 1MB
}

// DefaultConfig returns a Config with the same defaults as the environment tags.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		MaxFileSize:     1 << 30,
		MaxSessionBytes: 10 << 30,
		MaxChunkSize:    100 << 20,
		MaxChunks:       10000,
		ChunkMaxAge:     24 * time.Hour,
		FileMode:        0o644,
		DirMode:         0o755,
		FileUID:         -1,
		FileGID:         -1,
		CopyBuffer:      1 << 20,
	}
}

// DefaultWorkDirName is the work directory created inside the storage root
// when Config.WorkDir is empty.
const DefaultWorkDirName = ".filedrop"
