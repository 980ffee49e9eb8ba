package s3

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3aws "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/filedrop/core/ingest"
	"github.com/dmitrymomot/filedrop/core/logger"
)

// Client defines the S3 operations used by Mirror.
type Client interface {
	PutObject(ctx context.Context, params *s3aws.PutObjectInput, optFns ...func(*s3aws.Options)) (*s3aws.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3aws.HeadBucketInput, optFns ...func(*s3aws.Options)) (*s3aws.HeadBucketOutput, error)
}

// Mirror copies committed files to an S3 bucket in the background.
// Mirroring is best effort: the local file stays authoritative and a failed
// or dropped upload never affects the commit.
type Mirror struct {
	client  Client
	bucket  string
	prefix  string
	timeout time.Duration
	workers int
	queue   chan ingest.Committed
	running atomic.Bool
	logger  *slog.Logger
}

// Option configures a Mirror.
type Option func(*options)

type options struct {
	client          Client
	httpClient      *http.Client
	logger          *slog.Logger
	configOptions   []func(*config.LoadOptions) error
	s3ClientOptions []func(*s3aws.Options)
}

// WithClient sets a pre-configured S3 client. Primarily used for testing.
func WithClient(client Client) Option {
	return func(o *options) { o.client = client }
}

// WithHTTPClient sets a custom HTTP client for S3 requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithLogger sets the mirror logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithConfigOption adds a custom AWS config option.
func WithConfigOption(option func(*config.LoadOptions) error) Option {
	return func(o *options) { o.configOptions = append(o.configOptions, option) }
}

// WithClientOption adds a custom S3 client option.
func WithClientOption(option func(*s3aws.Options)) Option {
	return func(o *options) { o.s3ClientOptions = append(o.s3ClientOptions, option) }
}

// New creates a Mirror. Static credentials are used when both keys are set,
// otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config, opts ...Option) (*Mirror, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	client := o.client
	if client == nil {
		awsOptions := []func(*config.LoadOptions) error{
			config.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			awsOptions = append(awsOptions, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
			))
		}
		if o.httpClient != nil {
			awsOptions = append(awsOptions, config.WithHTTPClient(o.httpClient))
		}
		awsOptions = append(awsOptions, o.configOptions...)

		awsConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		client = s3aws.NewFromConfig(awsConfig, func(so *s3aws.Options) {
			if cfg.Endpoint != "" {
				so.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			so.UsePathStyle = cfg.ForcePathStyle
			for _, opt := range o.s3ClientOptions {
				opt(so)
			}
		})
	}

	l := o.logger
	if l == nil {
		l = logger.Nop()
	}

	return &Mirror{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		timeout: cfg.UploadTimeout,
		workers: max(cfg.Workers, 1),
		queue:   make(chan ingest.Committed, max(cfg.QueueSize, 1)),
		logger:  l.With(logger.Component("s3_mirror")),
	}, nil
}

// Hook returns the commit hook that queues files for mirroring.
func (m *Mirror) Hook() ingest.CommitHook {
	return m.Enqueue
}

// Enqueue queues a committed file without blocking.
func (m *Mirror) Enqueue(_ context.Context, c ingest.Committed) error {
	if !m.running.Load() {
		return ErrMirrorClosed
	}
	select {
	case m.queue <- c:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run processes the queue until ctx is cancelled. Files still queued at that
// point are not mirrored.
func (m *Mirror) Run(ctx context.Context) error {
	m.running.Store(true)
	defer m.running.Store(false)

	g, ctx := errgroup.WithContext(ctx)
	for range m.workers {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case c := <-m.queue:
					if err := m.Upload(ctx, c); err != nil {
						m.logger.ErrorContext(ctx, "mirror upload failed",
							logger.Target(c.Path),
							logger.Error(err))
					}
				}
			}
		})
	}

	err := g.Wait()
	if n := len(m.queue); n > 0 {
		m.logger.Warn("mirror stopped with pending files", logger.Count("pending", n))
	}
	return err
}

// Upload copies one committed file to the bucket.
func (m *Mirror) Upload(ctx context.Context, c ingest.Committed) error {
	key, err := m.Key(c.Path)
	if err != nil {
		return err
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(c.Absolute); err == nil {
		contentType = mt.String()
	}

	f, err := os.Open(c.Absolute)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToOpenFile, err)
	}
	defer func() { _ = f.Close() }()

	_, err = m.client.PutObject(ctx, &s3aws.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(c.Size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return classifyS3Error(err, "upload file")
	}

	m.logger.DebugContext(ctx, "file mirrored",
		logger.Target(c.Path),
		logger.Key("key", key),
		logger.Bytes(c.Size))
	return nil
}

// Key maps a storage-root relative path to an object key.
func (m *Mirror) Key(rel string) (string, error) {
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || strings.Contains(rel, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, rel)
	}
	for seg := range strings.SplitSeq(rel, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, rel)
		}
	}
	if m.prefix == "" {
		return rel, nil
	}
	return path.Join(m.prefix, rel), nil
}

// Healthcheck verifies the bucket is reachable.
func (m *Mirror) Healthcheck(ctx context.Context) error {
	_, err := m.client.HeadBucket(ctx, &s3aws.HeadBucketInput{Bucket: aws.String(m.bucket)})
	return classifyS3Error(err, "head bucket")
}
