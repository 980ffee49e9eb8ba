package s3

import "time"

// Config holds settings for mirroring committed files to an S3 bucket.
// An empty Bucket disables the mirror.
type Config struct {
	Bucket         string        `env:"S3_BUCKET"`
	Region         string        `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKeyID    string        `env:"S3_ACCESS_KEY_ID"`
	SecretKey      string        `env:"S3_SECRET_KEY"`
	Endpoint       string        `env:"S3_ENDPOINT"` // MinIO, Wasabi and other S3-compatible services
	ForcePathStyle bool          `env:"S3_FORCE_PATH_STYLE" envDefault:"false"`
	Prefix         string        `env:"S3_PREFIX"`
	UploadTimeout  time.Duration `env:"S3_UPLOAD_TIMEOUT" envDefault:"10m"`
	Workers        int           `env:"S3_WORKERS" envDefault:"2" validate:"gte=1"`
	QueueSize      int           `env:"S3_QUEUE_SIZE" envDefault:"256" validate:"gte=1"`
}

// Enabled reports whether a bucket was configured.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}
