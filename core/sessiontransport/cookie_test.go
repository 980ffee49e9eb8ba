package sessiontransport_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/filedrop/core/cookie"
	"github.com/dmitrymomot/filedrop/core/router"
	"github.com/dmitrymomot/filedrop/core/session"
	"github.com/dmitrymomot/filedrop/core/sessiontransport"
)

type usage struct {
	Bytes int64
}

const secret = "0123456789abcdef0123456789abcdef"

func newTransport(t *testing.T, store session.Store[usage]) *sessiontransport.Cookie[usage] {
	t.Helper()
	cm, err := cookie.New([]string{secret})
	require.NoError(t, err)
	mgr := session.NewManager(store, session.WithTTL(time.Hour), session.WithTouchInterval(time.Hour))
	return sessiontransport.NewCookieFromConfig(sessiontransport.CookieConfig{}, mgr, cm)
}

func newCtx(req *http.Request) (*router.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	return router.NewContext(w, req, nil), w
}

func TestCookieLoadCreatesSession(t *testing.T) {
	t.Parallel()

	tr := newTransport(t, session.NewMemoryStore[usage]())
	ctx, w := newCtx(httptest.NewRequest(http.MethodPost, "/api", nil))

	sess, err := tr.Load(ctx)
	require.NoError(t, err)
	assert.True(t, sess.IsModified())
	assert.Equal(t, "192.0.2.1", sess.IP)

	stored, err := tr.Store(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, stored.ID)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessiontransport.DefaultCookieName, cookies[0].Name)
	assert.Positive(t, cookies[0].MaxAge)
}

func TestCookieRoundTrip(t *testing.T) {
	t.Parallel()

	tr := newTransport(t, session.NewMemoryStore[usage]())

	first, w := newCtx(httptest.NewRequest(http.MethodPost, "/api", nil))
	sess, err := tr.Load(first)
	require.NoError(t, err)
	_, err = tr.Store(first, sess)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	second, w2 := newCtx(req)

	again, err := tr.Load(second)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, again.ID)
	assert.False(t, again.IsModified())

	_, err = tr.Store(second, again)
	require.NoError(t, err)
	assert.Empty(t, w2.Result().Cookies(), "unchanged session does not rewrite the cookie")
}

func TestCookieForgedToken(t *testing.T) {
	t.Parallel()

	tr := newTransport(t, session.NewMemoryStore[usage]())

	req := httptest.NewRequest(http.MethodPost, "/api", nil)
	req.AddCookie(&http.Cookie{Name: sessiontransport.DefaultCookieName, Value: "forged.sig"})
	ctx, _ := newCtx(req)

	sess, err := tr.Load(ctx)
	require.NoError(t, err)
	assert.True(t, sess.IsModified(), "forged cookie yields a new session")
}

func TestCookieDeletedSessionClearsCookie(t *testing.T) {
	t.Parallel()

	tr := newTransport(t, session.NewMemoryStore[usage]())
	ctx, w := newCtx(httptest.NewRequest(http.MethodPost, "/api", nil))

	sess, err := tr.Load(ctx)
	require.NoError(t, err)
	sess.Logout()

	_, err = tr.Store(ctx, sess)
	require.NoError(t, err)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

type brokenStore struct {
	*session.MemoryStore[usage]
}

func (brokenStore) GetByToken(context.Context, string) (*session.Session[usage], error) {
	return nil, errors.New("connection refused")
}

func TestCookieStoreFailure(t *testing.T) {
	t.Parallel()

	tr := newTransport(t, brokenStore{session.NewMemoryStore[usage]()})
	cm, err := cookie.New([]string{secret})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	require.NoError(t, cm.SetSigned(w, sessiontransport.DefaultCookieName, uuid.NewString()))
	req := httptest.NewRequest(http.MethodPost, "/api", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	ctx, _ := newCtx(req)

	_, err = tr.Load(ctx)
	assert.ErrorIs(t, err, sessiontransport.ErrLoad)
}
