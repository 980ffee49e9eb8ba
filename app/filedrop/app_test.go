package filedrop_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/filedrop/app/filedrop"
	"github.com/dmitrymomot/filedrop/core/cookie"
	"github.com/dmitrymomot/filedrop/core/ingest"
	"github.com/dmitrymomot/filedrop/core/logger"
	"github.com/dmitrymomot/filedrop/core/server"
	"github.com/dmitrymomot/filedrop/core/session"
	"github.com/dmitrymomot/filedrop/core/sessiontransport"
)

type testEnv struct {
	root   string
	server *httptest.Server
}

func testConfig(t *testing.T) filedrop.Config {
	t.Helper()

	srv := server.DefaultConfig()
	srv.Addr = "127.0.0.1:0"

	upload := ingest.DefaultConfig()
	upload.MaxSessionBytes = 1000
	upload.MaxFileSize = 1000

	cookies := cookie.DefaultConfig()
	cookies.Secrets = strings.Repeat("s", 32)

	return filedrop.Config{
		AppName:        "filedrop-test",
		Env:            "development",
		StorageRoot:    t.TempDir(),
		MaxRequestSize: 1 << 20,
		GCInterval:     0,
		Upload:         upload,
		Server:         srv,
		Cookie:         cookies,
		Session:        session.DefaultConfig(),
		SessionCookie:  sessiontransport.CookieConfig{CookieName: sessiontransport.DefaultCookieName},
	}
}

func newTestEnv(t *testing.T, cfg filedrop.Config) *testEnv {
	t.Helper()

	app, err := filedrop.New(context.Background(), cfg, filedrop.WithLogger(logger.Nop()))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	ts := httptest.NewServer(app.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{root: cfg.StorageRoot, server: ts}
}

// newClient returns a client with its own cookie jar, i.e. its own session.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

type part struct {
	field    string
	filename string
	content  string
}

func (e *testEnv) post(t *testing.T, client *http.Client, fields map[string]string, parts ...part) (int, map[string]any) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, p := range parts {
		fw, err := mw.CreateFormFile(p.field, p.filename)
		require.NoError(t, err)
		_, err = io.WriteString(fw, p.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/api", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (e *testEnv) upload(t *testing.T, client *http.Client, dir string, files ...part) (int, map[string]any) {
	t.Helper()
	for i := range files {
		files[i].field = "files[]"
	}
	return e.post(t, client, map[string]string{"action": "upload", "path": dir}, files...)
}

func results(t *testing.T, body map[string]any) []map[string]any {
	t.Helper()
	raw, ok := body["results"].([]any)
	require.True(t, ok, "results missing: %v", body)
	out := make([]map[string]any, len(raw))
	for i, r := range raw {
		out[i] = r.(map[string]any)
	}
	return out
}

func TestAPI_Upload(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig(t))
	require.NoError(t, os.Mkdir(filepath.Join(env.root, "docs"), 0o755))

	status, body := env.upload(t, newClient(t), "docs",
		part{filename: "hello.txt", content: "hello"},
		part{filename: "../escape.txt", content: "nope"},
	)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body, "storage")

	res := results(t, body)
	require.Len(t, res, 2)
	assert.Equal(t, true, res[0]["success"])
	assert.Equal(t, "hello.txt", res[0]["filename"])
	assert.Equal(t, "escape.txt", res[1]["filename"], "directory components are stripped from names")

	content, err := os.ReadFile(filepath.Join(env.root, "docs", "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
	assert.FileExists(t, filepath.Join(env.root, "docs", "escape.txt"))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(env.root), "escape.txt"))
}

func TestAPI_UploadFolder(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig(t))

	status, body := env.post(t, newClient(t),
		map[string]string{"action": "upload", "path": "", "relativePaths[]": "album/2024/pic.jpg"},
		part{field: "files[]", filename: "pic.jpg", content: "jpeg"},
	)

	require.Equal(t, http.StatusOK, status)
	res := results(t, body)
	require.Len(t, res, 1)
	assert.Equal(t, true, res[0]["success"], res[0]["message"])
	assert.FileExists(t, filepath.Join(env.root, "album", "2024", "pic.jpg"))
}

func TestAPI_UploadDuplicate(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig(t))
	client := newClient(t)

	_, body := env.upload(t, client, "", part{filename: "a.txt", content: "one"})
	require.Equal(t, true, body["success"])

	status, body := env.upload(t, client, "", part{filename: "a.txt", content: "two"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["success"])
	res := results(t, body)
	assert.Equal(t, ingest.CodeDuplicate, res[0]["code"])

	content, err := os.ReadFile(filepath.Join(env.root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(content))
}

func TestAPI_SessionQuota(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig(t))
	client := newClient(t)

	_, body := env.upload(t, client, "", part{filename: "big.bin", content: strings.Repeat("a", 900)})
	require.Equal(t, true, body["success"], body)

	_, body = env.upload(t, client, "", part{filename: "more.bin", content: strings.Repeat("b", 150)})
	res := results(t, body)
	assert.Equal(t, false, res[0]["success"])
	assert.Equal(t, ingest.CodeQuotaExceeded, res[0]["code"])
	assert.NoFileExists(t, filepath.Join(env.root, "more.bin"))

	// A different session has its own counter.
	_, body = env.upload(t, newClient(t), "", part{filename: "more.bin", content: strings.Repeat("b", 150)})
	assert.Equal(t, true, body["success"], body)
}

func TestAPI_UploadErrors(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig(t))

	t.Run("invalid target", func(t *testing.T) {
		status, body := env.upload(t, newClient(t), "../outside", part{filename: "a.txt", content: "x"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, ingest.CodeInvalidPath, body["code"])
	})

	t.Run("missing target", func(t *testing.T) {
		status, body := env.upload(t, newClient(t), "nope", part{filename: "a.txt", content: "x"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, ingest.CodeInvalidPath, body["code"])
	})

	t.Run("no files", func(t *testing.T) {
		status, body := env.post(t, newClient(t), map[string]string{"action": "upload"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "no_files", body["code"])
	})

	t.Run("unknown action", func(t *testing.T) {
		status, body := env.post(t, newClient(t), map[string]string{"action": "format_disk"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "unknown_action", body["code"])
	})

	t.Run("file too large", func(t *testing.T) {
		_, body := env.upload(t, newClient(t), "", part{filename: "huge.bin", content: strings.Repeat("z", 1001)})
		res := results(t, body)
		assert.Equal(t, ingest.CodeSizeLimit, res[0]["code"])
	})
}

func sendChunk(t *testing.T, env *testEnv, client *http.Client, id string, index, total int, content string) (int, map[string]any) {
	t.Helper()
	return env.post(t, client, map[string]string{
		"action":       "upload_chunk",
		"uploadId":     id,
		"chunkIndex":   strconv.Itoa(index),
		"totalChunks":  strconv.Itoa(total),
		"filename":     "movie.mp4",
		"relativePath": "",
		"path":         "",
	}, part{field: "chunk", filename: "blob", content: content})
}

func TestAPI_ChunkedUpload(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig(t))
	client := newClient(t)
	chunks := []string{"aaaa", "bbbb", "cc"}

	status, body := env.post(t, client, map[string]string{"action": "upload_check", "uploadId": "movie-1"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["exists"])
	assert.Equal(t, float64(0), body["nextChunkIndex"])

	for i := range 2 {
		status, body = sendChunk(t, env, client, "movie-1", i, len(chunks), chunks[i])
		require.Equal(t, http.StatusOK, status, body)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, float64(i), body["chunkIndex"])
		assert.Equal(t, float64(3), body["totalChunks"])
	}

	_, body = env.post(t, client, map[string]string{"action": "upload_check", "uploadId": "movie-1"})
	assert.Equal(t, true, body["exists"])
	assert.Equal(t, float64(2), body["nextChunkIndex"])

	status, body = sendChunk(t, env, client, "movie-1", 2, len(chunks), chunks[2])
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "movie.mp4", body["filename"])
	assert.Equal(t, float64(10), body["size"])
	assert.Contains(t, body, "storage")

	content, err := os.ReadFile(filepath.Join(env.root, "movie.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "aaaabbbbcc", string(content))

	_, body = env.post(t, client, map[string]string{"action": "upload_check", "uploadId": "movie-1"})
	assert.Equal(t, false, body["exists"])
}

func TestAPI_ChunkedUploadErrors(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig(t))
	client := newClient(t)

	t.Run("missing chunk", func(t *testing.T) {
		_, _ = sendChunk(t, env, client, "gap-1", 0, 3, "aa")
		status, body := sendChunk(t, env, client, "gap-1", 2, 3, "cc")
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, ingest.CodeMissingChunk, body["code"])
		assert.Contains(t, body["message"], "missing chunk 1")
	})

	t.Run("invalid upload id", func(t *testing.T) {
		status, body := sendChunk(t, env, client, "../../etc", 0, 1, "x")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, ingest.CodeInvalidUploadID, body["code"])
	})

	t.Run("index out of range", func(t *testing.T) {
		status, body := sendChunk(t, env, client, "range-1", 3, 3, "x")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, ingest.CodeInvalidChunk, body["code"])
	})

	t.Run("total beyond limit", func(t *testing.T) {
		status, body := sendChunk(t, env, client, "huge-1", 1<<42-1, 1<<42, "x")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, ingest.CodeInvalidChunk, body["code"])
	})

	t.Run("missing index", func(t *testing.T) {
		status, body := env.post(t, client, map[string]string{"action": "upload_chunk", "uploadId": "x-1"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, ingest.CodeInvalidChunk, body["code"])
	})

	t.Run("abort", func(t *testing.T) {
		status, _ := sendChunk(t, env, client, "abort-1", 0, 2, "aa")
		require.Equal(t, http.StatusOK, status)

		status, body := env.post(t, client, map[string]string{"action": "upload_abort", "uploadId": "abort-1"})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, body["success"])

		_, body = env.post(t, client, map[string]string{"action": "upload_check", "uploadId": "abort-1"})
		assert.Equal(t, false, body["exists"])
	})
}

func TestAPI_UploadsDisabled(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Upload.Enabled = false
	env := newTestEnv(t, cfg)
	client := newClient(t)

	_, body := env.upload(t, client, "", part{filename: "a.txt", content: "x"})
	assert.Equal(t, false, body["success"])
	assert.Equal(t, ingest.CodePolicyDisabled, results(t, body)[0]["code"])

	status, body := sendChunk(t, env, client, "off-1", 0, 1, "x")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, ingest.CodePolicyDisabled, body["code"])
}

func TestAPI_Storage(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig(t))

	status, body := env.post(t, newClient(t), map[string]string{"action": "storage"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	storage, ok := body["storage"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, storage, "totalBytes")
	assert.Contains(t, storage, "usedPercent")
}

func TestAPI_SessionCookie(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig(t))

	resp, err := http.Post(env.server.URL+"/api", "application/x-www-form-urlencoded", strings.NewReader("action=storage"))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == sessiontransport.DefaultCookieName {
			found = true
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, found, "session cookie must be issued")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestAPI_Routing(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig(t))

	resp, err := http.Get(env.server.URL + "/api")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Allow"), http.MethodPost)

	resp, err = http.Get(env.server.URL + "/nowhere")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig(t))

	for path, want := range map[string]string{"/health/live": "ALIVE", "/health/ready": "READY"} {
		resp, err := http.Get(env.server.URL + path)
		require.NoError(t, err)
		raw, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, want, string(raw), path)
	}
}

func TestNew_RequiresCookieSecret(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Cookie.Secrets = ""

	_, err := filedrop.New(context.Background(), cfg, filedrop.WithLogger(logger.Nop()))
	assert.ErrorIs(t, err, cookie.ErrNoSecret)
}
