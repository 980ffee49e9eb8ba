package filedrop

import (
	"time"

	"github.com/dmitrymomot/filedrop/core/cookie"
	"github.com/dmitrymomot/filedrop/core/ingest"
	"github.com/dmitrymomot/filedrop/core/server"
	"github.com/dmitrymomot/filedrop/core/session"
	"github.com/dmitrymomot/filedrop/core/sessiontransport"
	"github.com/dmitrymomot/filedrop/integration/database/redis"
	"github.com/dmitrymomot/filedrop/integration/storage/s3"
)

// Config is the complete service configuration, loaded from the environment.
type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"filedrop"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:""`

	StorageRoot string `env:"STORAGE_ROOT" validate:"required"`

	// MaxRequestSize caps the body of a single /api request.
	MaxRequestSize int64 `env:"HTTP_MAX_REQUEST_SIZE" envDefault:"2147483648" validate:"gt=0"` // 2GB
	// GCInterval is how often abandoned chunk sets are swept.
	GCInterval time.Duration `env:"UPLOAD_GC_INTERVAL" envDefault:"1h" validate:"gt=0"`

	Upload        ingest.Config
	Server        server.Config
	Cookie        cookie.Config
	Session       session.Config
	SessionCookie sessiontransport.CookieConfig
	Redis         redis.Config
	S3            s3.Config
}
