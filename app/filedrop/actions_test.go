package filedrop

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/filedrop/core/quota"
	"github.com/dmitrymomot/filedrop/core/session"
)

func TestParseAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Action
	}{
		{"upload", ActionUpload},
		{"UPLOAD_CHECK", ActionUploadCheck},
		{" upload_chunk ", ActionUploadChunk},
		{"upload_abort", ActionUploadAbort},
		{"storage", ActionStorage},
	}
	for _, tt := range tests {
		got, err := ParseAction(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.NotEqual(t, "unknown", got.String())
	}

	for _, in := range []string{"", "delete", "upload-chunk"} {
		got, err := ParseAction(in)
		assert.ErrorIs(t, err, ErrUnknownAction, in)
		assert.Equal(t, ActionUnknown, got)
	}
	assert.Equal(t, "unknown", ActionUnknown.String())
}

func newStoredSession(t *testing.T, mgr *session.Manager[SessionData]) string {
	t.Helper()
	ctx := context.Background()
	sess, err := mgr.New(ctx, session.NewSessionParams{IP: "127.0.0.1"})
	require.NoError(t, err)
	sess, err = mgr.Store(ctx, sess)
	require.NoError(t, err)
	return sess.ID.String()
}

func TestUsageStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mgr := session.NewManager(session.NewMemoryStore[SessionData]())
	store := usageStore{sessions: mgr}
	id := newStoredSession(t, mgr)

	n, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, store.Put(ctx, id, 40))
	total, err := store.Increment(ctx, id, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)

	_, err = store.Get(ctx, "not-a-uuid")
	assert.Error(t, err)
}

func TestUsageStore_TrackerConcurrency(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mgr := session.NewManager(session.NewMemoryStore[SessionData]())
	tracker := quota.NewTracker(usageStore{sessions: mgr}, 0)
	id := newStoredSession(t, mgr)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tracker.Add(ctx, id, 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	used, err := tracker.Used(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(500), used)
}
