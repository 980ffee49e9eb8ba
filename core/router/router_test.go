package router_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/filedrop/core/handler"
	"github.com/dmitrymomot/filedrop/core/router"
)

func text(s string) handler.Response {
	return func(w http.ResponseWriter, r *http.Request) error {
		_, err := w.Write([]byte(s))
		return err
	}
}

func serve(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestRouterMethods(t *testing.T) {
	t.Parallel()

	r := router.New[*router.Context]()
	r.Get("/items", func(ctx *router.Context) handler.Response { return text("list") })
	r.Post("/items", func(ctx *router.Context) handler.Response { return text("create") })
	r.Put("/items/{id}", func(ctx *router.Context) handler.Response { return text("put " + ctx.Param("id")) })
	r.Delete("/items/{id}", func(ctx *router.Context) handler.Response { return text("delete " + ctx.Param("id")) })

	tests := []struct {
		method string
		target string
		body   string
	}{
		{http.MethodGet, "/items", "list"},
		{http.MethodPost, "/items", "create"},
		{http.MethodPut, "/items/42", "put 42"},
		{http.MethodDelete, "/items/7", "delete 7"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			t.Parallel()
			rec := serve(t, r, tt.method, tt.target)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
		})
	}

	assert.Len(t, r.Routes(), 4)
}

func TestRouterWildcardRemainder(t *testing.T) {
	t.Parallel()

	r := router.New[*router.Context]()
	r.Get("/files/{path...}", func(ctx *router.Context) handler.Response {
		return text(ctx.Param("path"))
	})

	rec := serve(t, r, http.MethodGet, "/files/a/b/c.txt")
	assert.Equal(t, "a/b/c.txt", rec.Body.String())
}

func TestRouterNotFoundAndMethodNotAllowed(t *testing.T) {
	t.Parallel()

	r := router.New[*router.Context]()
	r.Post("/upload", func(ctx *router.Context) handler.Response { return text("ok") })

	rec := serve(t, r, http.MethodGet, "/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, r, http.MethodDelete, "/upload")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Header().Get("Allow"), http.MethodPost)
}

func TestRouterMethod(t *testing.T) {
	t.Parallel()

	r := router.New[*router.Context]()
	r.Method("/both", func(ctx *router.Context) handler.Response {
		return text(ctx.Request().Method)
	}, "get", "POST", "GET")

	assert.Equal(t, "GET", serve(t, r, http.MethodGet, "/both").Body.String())
	assert.Equal(t, "POST", serve(t, r, http.MethodPost, "/both").Body.String())
	assert.Len(t, r.Routes(), 2)

	assert.Panics(t, func() {
		r.Method("/bad", func(ctx *router.Context) handler.Response { return text("") }, "FETCH")
	})
	assert.Panics(t, func() {
		r.Method("/none", func(ctx *router.Context) handler.Response { return text("") })
	})
}

func TestRouterHandleAnyMethod(t *testing.T) {
	t.Parallel()

	r := router.New[*router.Context]()
	r.Handle("/any", func(ctx *router.Context) handler.Response { return text(ctx.Request().Method) })

	assert.Equal(t, "PATCH", serve(t, r, http.MethodPatch, "/any").Body.String())
	assert.Equal(t, "GET", serve(t, r, http.MethodGet, "/any").Body.String())
}

func TestRouterInvalidPattern(t *testing.T) {
	t.Parallel()

	r := router.New[*router.Context]()
	assert.Panics(t, func() {
		r.Get("items", func(ctx *router.Context) handler.Response { return text("") })
	})
}

func TestRouterMiddlewareOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) handler.Middleware[*router.Context] {
		return func(next handler.HandlerFunc[*router.Context]) handler.HandlerFunc[*router.Context] {
			return func(ctx *router.Context) handler.Response {
				order = append(order, name)
				return next(ctx)
			}
		}
	}

	r := router.New(router.WithMiddleware(mark("option")))
	r.Use(mark("root"))
	r.Group(func(g router.Router[*router.Context]) {
		g.Use(mark("group"))
		g.With(mark("inline")).Get("/x", func(ctx *router.Context) handler.Response {
			order = append(order, "handler")
			return text("x")
		})
	})

	rec := serve(t, r, http.MethodGet, "/x")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"option", "root", "group", "inline", "handler"}, order)
}

func TestRouterUseAfterRoutesPanics(t *testing.T) {
	t.Parallel()

	r := router.New[*router.Context]()
	r.Get("/", func(ctx *router.Context) handler.Response { return text("") })
	assert.Panics(t, func() {
		r.Use(func(next handler.HandlerFunc[*router.Context]) handler.HandlerFunc[*router.Context] { return next })
	})
}

type coded struct{ code int }

func (e coded) Error() string   { return "coded" }
func (e coded) StatusCode() int { return e.code }

func TestRouterErrors(t *testing.T) {
	t.Parallel()

	r := router.New[*router.Context]()
	r.Get("/fail", func(ctx *router.Context) handler.Response {
		return func(w http.ResponseWriter, r *http.Request) error { return errors.New("boom") }
	})
	r.Get("/teapot", func(ctx *router.Context) handler.Response {
		return func(w http.ResponseWriter, r *http.Request) error { return coded{code: http.StatusTeapot} }
	})
	r.Get("/nil", func(ctx *router.Context) handler.Response { return nil })

	assert.Equal(t, http.StatusInternalServerError, serve(t, r, http.MethodGet, "/fail").Code)
	assert.Equal(t, http.StatusTeapot, serve(t, r, http.MethodGet, "/teapot").Code)

	rec := serve(t, r, http.MethodGet, "/nil")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), router.ErrNilResponse.Error())
}

func TestRouterPanicRecovery(t *testing.T) {
	t.Parallel()

	var captured error
	r := router.New(router.WithErrorHandler[*router.Context](func(ctx *router.Context, err error) {
		captured = err
		ctx.ResponseWriter().WriteHeader(http.StatusServiceUnavailable)
	}))
	r.Get("/panic", func(ctx *router.Context) handler.Response { panic("kaboom") })

	rec := serve(t, r, http.MethodGet, "/panic")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var pe router.PanicError
	require.ErrorAs(t, captured, &pe)
	assert.Equal(t, "kaboom", pe.Value())
	assert.NotEmpty(t, pe.Stack())
}

func TestRouterPanicAfterWrite(t *testing.T) {
	t.Parallel()

	called := false
	r := router.New(router.WithErrorHandler[*router.Context](func(ctx *router.Context, err error) { called = true }))
	r.Get("/late", func(ctx *router.Context) handler.Response {
		return func(w http.ResponseWriter, r *http.Request) error {
			_, _ = w.Write([]byte("partial"))
			panic("late")
		}
	})

	rec := serve(t, r, http.MethodGet, "/late")
	assert.False(t, called)
	assert.Equal(t, "partial", rec.Body.String())
}

type appContext struct {
	*router.Context
	tenant string
}

func TestRouterContextFactory(t *testing.T) {
	t.Parallel()

	r := router.New(router.WithContextFactory(func(w http.ResponseWriter, r *http.Request, params map[string]string) *appContext {
		return &appContext{Context: router.NewContext(w, r, params), tenant: "acme"}
	}))
	r.Get("/t/{name}", func(ctx *appContext) handler.Response {
		return text(ctx.tenant + ":" + ctx.Param("name"))
	})

	rec := serve(t, r, http.MethodGet, "/t/docs")
	assert.Equal(t, "acme:docs", rec.Body.String())
}

func TestRouterMissingContextFactory(t *testing.T) {
	t.Parallel()

	r := router.New[*appContext]()
	r.Get("/", func(ctx *appContext) handler.Response { return text("") })

	assert.Panics(t, func() {
		serve(t, r, http.MethodGet, "/")
	})
}

func TestContextValues(t *testing.T) {
	t.Parallel()

	type key struct{}
	req := httptest.NewRequest(http.MethodGet, "/", strings.NewReader(""))
	ctx := router.NewContext(httptest.NewRecorder(), req, map[string]string{"id": "1"})

	assert.Nil(t, ctx.Value(key{}))
	ctx.SetValue(key{}, "v")
	assert.Equal(t, "v", ctx.Value(key{}))
	assert.Equal(t, "1", ctx.Param("id"))
	assert.Empty(t, ctx.Param("missing"))
	assert.NoError(t, ctx.Err())
}
