package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/dmitrymomot/filedrop/core/handler"
	"github.com/dmitrymomot/filedrop/core/logger"
)

var methods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodConnect,
	http.MethodOptions,
	http.MethodTrace,
}

// routeTable is shared by a router and its inline groups.
type routeTable struct {
	serve  *http.ServeMux
	routes []Route
	sealed bool
}

// mux is the private implementation of Router interface.
type mux[C handler.Context] struct {
	table        *routeTable
	middlewares  []handler.Middleware[C]
	errorHandler handler.ErrorHandler[C]
	newContext   func(http.ResponseWriter, *http.Request, map[string]string) C
	logger       *slog.Logger
	parent       *mux[C] // for inline groups
	inline       bool
}

func newMux[C handler.Context](opts ...Option[C]) *mux[C] {
	m := &mux[C]{
		table:        &routeTable{serve: http.NewServeMux()},
		errorHandler: defaultErrorHandler[C],
		logger:       logger.Nop(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.newContext == nil {
		m.newContext = func(w http.ResponseWriter, r *http.Request, params map[string]string) C {
			// Only the default *Context works without a factory.
			if c, ok := any(NewContext(w, r, params)).(C); ok {
				return c
			}
			panic(ErrNoContextFactory)
		}
	}

	m.table.serve.HandleFunc("/", m.fallback)
	return m
}

// ServeHTTP implements http.Handler interface.
func (m *mux[C]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.table.serve.ServeHTTP(w, r)
}

// Get registers a handler for GET requests.
func (m *mux[C]) Get(pattern string, h handler.HandlerFunc[C]) {
	m.handle(http.MethodGet, pattern, h)
}

// Post registers a handler for POST requests.
func (m *mux[C]) Post(pattern string, h handler.HandlerFunc[C]) {
	m.handle(http.MethodPost, pattern, h)
}

// Put registers a handler for PUT requests.
func (m *mux[C]) Put(pattern string, h handler.HandlerFunc[C]) {
	m.handle(http.MethodPut, pattern, h)
}

// Delete registers a handler for DELETE requests.
func (m *mux[C]) Delete(pattern string, h handler.HandlerFunc[C]) {
	m.handle(http.MethodDelete, pattern, h)
}

// Handle registers a handler for all HTTP methods.
func (m *mux[C]) Handle(pattern string, h handler.HandlerFunc[C]) {
	m.handle("", pattern, h)
}

// Method registers a handler for one or more specific HTTP methods.
func (m *mux[C]) Method(pattern string, h handler.HandlerFunc[C], methodNames ...string) {
	if len(methodNames) == 0 {
		panic(fmt.Errorf("%w: no methods provided", ErrInvalidMethod))
	}

	seen := make(map[string]bool)
	for _, method := range methodNames {
		method = strings.ToUpper(method)
		if !slices.Contains(methods, method) {
			panic(fmt.Errorf("%w: %s", ErrInvalidMethod, method))
		}
		if seen[method] {
			continue
		}
		seen[method] = true
		m.handle(method, pattern, h)
	}
}

// Use appends middleware to the router.
func (m *mux[C]) Use(middlewares ...handler.Middleware[C]) {
	if !m.inline && m.table.sealed {
		panic("router: all middlewares must be defined before routes on a mux")
	}
	m.middlewares = append(m.middlewares, middlewares...)
}

// With creates a new inline router with additional middleware.
func (m *mux[C]) With(middlewares ...handler.Middleware[C]) Router[C] {
	return &mux[C]{
		table:        m.table,
		middlewares:  middlewares,
		errorHandler: m.errorHandler,
		newContext:   m.newContext,
		logger:       m.logger,
		parent:       m,
		inline:       true,
	}
}

// Group creates a new inline router for grouping routes.
func (m *mux[C]) Group(fn func(r Router[C])) Router[C] {
	im := m.With()
	if fn != nil {
		fn(im)
	}
	return im
}

// Routes returns all registered routes.
func (m *mux[C]) Routes() []Route {
	return slices.Clone(m.table.routes)
}

func (m *mux[C]) root() *mux[C] {
	curr := m
	for curr.inline {
		curr = curr.parent
	}
	return curr
}

// handle registers fn for method ("" for any) and pattern.
func (m *mux[C]) handle(method, pattern string, fn handler.HandlerFunc[C]) {
	if len(pattern) == 0 || pattern[0] != '/' {
		panic(fmt.Errorf("%w: '%s'", ErrInvalidPattern, pattern))
	}
	m.table.sealed = true

	// Inline groups bake their middleware in at registration time; the
	// root middleware runs at dispatch.
	h := fn
	var inlineMiddlewares []handler.Middleware[C]
	for curr := m; curr != nil && curr.inline; curr = curr.parent {
		inlineMiddlewares = append(slices.Clone(curr.middlewares), inlineMiddlewares...)
	}
	if len(inlineMiddlewares) > 0 {
		h = chain(inlineMiddlewares, fn)
	}

	keys := paramKeys(pattern)
	full := pattern
	if method != "" {
		full = method + " " + pattern
	}

	root := m.root()
	m.table.serve.HandleFunc(full, func(w http.ResponseWriter, r *http.Request) {
		var params map[string]string
		if len(keys) > 0 {
			params = make(map[string]string, len(keys))
			for _, k := range keys {
				params[k] = r.PathValue(k)
			}
		}
		root.dispatch(w, r, params, h)
	})

	m.table.routes = append(m.table.routes, Route{Method: method, Pattern: pattern})
}

func (m *mux[C]) dispatch(w http.ResponseWriter, r *http.Request, params map[string]string, h handler.HandlerFunc[C]) {
	ww := newResponseWriter(w)
	ctx := m.newContext(ww, r, params)

	// Recover from panics to prevent server crashes
	defer func() {
		if p := recover(); p != nil {
			panicErr := &panicError{value: p, stack: debug.Stack()}
			if ww.Written() {
				m.logger.Error("panic after response written",
					slog.Any("value", panicErr.value),
					slog.String("stack", string(panicErr.stack)),
					logger.Path(r.URL.Path),
					logger.Method(r.Method),
					logger.StatusCode(ww.Status()))
				return
			}
			m.errorHandler(ctx, panicErr)
		}
	}()

	fn := h
	if len(m.middlewares) > 0 {
		fn = chain(m.middlewares, h)
	}

	response := fn(ctx)
	if response == nil {
		m.errorHandler(ctx, ErrNilResponse)
		return
	}
	if err := response(ww, r); err != nil {
		m.errorHandler(ctx, err)
	}
}

// fallback handles requests no route matched. Paths registered for other
// methods answer 405 with an Allow header.
func (m *mux[C]) fallback(w http.ResponseWriter, r *http.Request) {
	ww := newResponseWriter(w)
	ctx := m.newContext(ww, r, nil)

	if allowed := m.allowedMethods(r); len(allowed) > 0 {
		ww.Header().Set("Allow", strings.Join(allowed, ", "))
		m.errorHandler(ctx, ErrMethodNotAllowed)
		return
	}
	m.errorHandler(ctx, ErrNotFound)
}

func (m *mux[C]) allowedMethods(r *http.Request) []string {
	var allowed []string
	for _, method := range methods {
		if method == r.Method {
			continue
		}
		probe := r.Clone(r.Context())
		probe.Method = method
		if _, pattern := m.table.serve.Handler(probe); pattern != "" && pattern != "/" {
			allowed = append(allowed, method)
		}
	}
	return allowed
}

// chain builds a single handler from a middleware stack and endpoint.
// The first middleware runs first.
func chain[C handler.Context](middlewares []handler.Middleware[C], endpoint handler.HandlerFunc[C]) handler.HandlerFunc[C] {
	h := endpoint
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// paramKeys extracts wildcard names from a ServeMux pattern.
func paramKeys(pattern string) []string {
	var keys []string
	for seg := range strings.SplitSeq(pattern, "/") {
		if len(seg) < 3 || seg[0] != '{' || seg[len(seg)-1] != '}' {
			continue
		}
		name := strings.TrimSuffix(seg[1:len(seg)-1], "...")
		if name != "" && name != "$" {
			keys = append(keys, name)
		}
	}
	return keys
}
