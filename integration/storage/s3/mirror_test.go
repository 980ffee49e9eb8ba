package s3_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	s3aws "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/filedrop/core/ingest"
	"github.com/dmitrymomot/filedrop/integration/storage/s3"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) PutObject(ctx context.Context, params *s3aws.PutObjectInput, _ ...func(*s3aws.Options)) (*s3aws.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3aws.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) HeadBucket(ctx context.Context, params *s3aws.HeadBucketInput, _ ...func(*s3aws.Options)) (*s3aws.HeadBucketOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3aws.HeadBucketOutput)
	return out, args.Error(1)
}

func newMirror(t *testing.T, client s3.Client, cfg s3.Config) *s3.Mirror {
	t.Helper()
	if cfg.Bucket == "" {
		cfg.Bucket = "backup"
	}
	if cfg.Region == "" {
		cfg.Region = "eu-west-1"
	}
	m, err := s3.New(context.Background(), cfg, s3.WithClient(client))
	require.NoError(t, err)
	return m
}

func committedFile(t *testing.T, content string) ingest.Committed {
	t.Helper()
	dir := t.TempDir()
	abs := filepath.Join(dir, "report.txt")
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	return ingest.Committed{SessionID: "s1", Path: "docs/report.txt", Absolute: abs, Size: int64(len(content))}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := s3.New(context.Background(), s3.Config{Region: "eu-west-1"}, s3.WithClient(&mockClient{}))
	assert.ErrorIs(t, err, s3.ErrInvalidConfig)

	assert.False(t, s3.Config{}.Enabled())
	assert.True(t, s3.Config{Bucket: "b"}.Enabled())
}

func TestMirror_Key(t *testing.T) {
	t.Parallel()

	plain := newMirror(t, &mockClient{}, s3.Config{})
	prefixed := newMirror(t, &mockClient{}, s3.Config{Prefix: "/uploads/"})

	key, err := plain.Key("docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "docs/a.txt", key)

	key, err = prefixed.Key("/docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "uploads/docs/a.txt", key)

	for _, bad := range []string{"", "../a", "docs/../../a", "a//b", "a\\b"} {
		_, err := plain.Key(bad)
		assert.ErrorIs(t, err, s3.ErrInvalidKey, bad)
	}
}

func TestMirror_Upload(t *testing.T) {
	t.Parallel()

	client := &mockClient{}
	m := newMirror(t, client, s3.Config{Prefix: "mirror"})
	c := committedFile(t, "hello mirror")

	var body string
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3aws.PutObjectInput) bool {
		return *in.Bucket == "backup" && *in.Key == "mirror/docs/report.txt" && *in.ContentLength == c.Size
	})).Run(func(args mock.Arguments) {
		in := args.Get(1).(*s3aws.PutObjectInput)
		raw, _ := io.ReadAll(in.Body)
		body = string(raw)
		assert.Contains(t, *in.ContentType, "text/plain")
	}).Return(&s3aws.PutObjectOutput{}, nil).Once()

	require.NoError(t, m.Upload(context.Background(), c))
	assert.Equal(t, "hello mirror", body)
	client.AssertExpectations(t)
}

func TestMirror_UploadErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		m := newMirror(t, &mockClient{}, s3.Config{})
		err := m.Upload(context.Background(), ingest.Committed{Path: "a.txt", Absolute: filepath.Join(t.TempDir(), "gone")})
		assert.ErrorIs(t, err, s3.ErrFailedToOpenFile)
	})

	t.Run("access denied", func(t *testing.T) {
		t.Parallel()
		client := &mockClient{}
		client.On("PutObject", mock.Anything, mock.Anything).
			Return(nil, &smithy.GenericAPIError{Code: "AccessDenied"}).Once()
		m := newMirror(t, client, s3.Config{})
		err := m.Upload(context.Background(), committedFile(t, "x"))
		assert.ErrorIs(t, err, s3.ErrAccessDenied)
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		client := &mockClient{}
		client.On("PutObject", mock.Anything, mock.Anything).
			Return(nil, context.DeadlineExceeded).Once()
		m := newMirror(t, client, s3.Config{})
		err := m.Upload(context.Background(), committedFile(t, "x"))
		assert.ErrorIs(t, err, s3.ErrOperationTimeout)
	})
}

func TestMirror_Run(t *testing.T) {
	t.Parallel()

	client := &mockClient{}
	m := newMirror(t, client, s3.Config{Workers: 2, QueueSize: 4})
	c := committedFile(t, "queued")

	assert.ErrorIs(t, m.Enqueue(context.Background(), c), s3.ErrMirrorClosed)

	uploaded := make(chan string, 1)
	client.On("PutObject", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			uploaded <- *args.Get(1).(*s3aws.PutObjectInput).Key
		}).
		Return(&s3aws.PutObjectOutput{}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		return m.Hook()(context.Background(), c) == nil
	}, time.Second, 5*time.Millisecond)

	select {
	case key := <-uploaded:
		assert.Equal(t, "docs/report.txt", key)
	case <-time.After(2 * time.Second):
		t.Fatal("file was not mirrored")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("mirror did not stop")
	}
	client.AssertExpectations(t)
}

func TestMirror_QueueFull(t *testing.T) {
	t.Parallel()

	client := &mockClient{}
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	client.On("PutObject", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			started <- struct{}{}
			<-block
		}).
		Return(&s3aws.PutObjectOutput{}, nil)

	m := newMirror(t, client, s3.Config{Workers: 1, QueueSize: 1})
	c := committedFile(t, "x")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return m.Enqueue(ctx, c) == nil }, time.Second, 5*time.Millisecond)
	<-started
	require.NoError(t, m.Enqueue(ctx, c))
	assert.ErrorIs(t, m.Enqueue(ctx, c), s3.ErrQueueFull)

	cancel()
	close(block)
	require.NoError(t, <-done)
}

func TestMirror_Healthcheck(t *testing.T) {
	t.Parallel()

	client := &mockClient{}
	client.On("HeadBucket", mock.Anything, mock.Anything).Return(&s3aws.HeadBucketOutput{}, nil).Once()
	client.On("HeadBucket", mock.Anything, mock.Anything).
		Return(nil, &smithy.GenericAPIError{Code: "NotFound"}).Once()
	m := newMirror(t, client, s3.Config{})

	require.NoError(t, m.Healthcheck(context.Background()))
	err := m.Healthcheck(context.Background())
	assert.True(t, errors.Is(err, s3.ErrBucketNotFound))
}
