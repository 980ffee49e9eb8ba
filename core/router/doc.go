// Package router provides a generic HTTP router with middleware support and
// custom request contexts.
//
// Routes use net/http.ServeMux patterns, so path parameters are declared as
// "{name}" segments and exposed through Context.Param:
//
//	r := router.New[*router.Context]()
//	r.Get("/files/{id}", func(ctx *router.Context) handler.Response {
//		return response.JSON(map[string]string{"id": ctx.Param("id")})
//	})
//
// Applications with their own context type pass a factory:
//
//	r := router.New[*AppContext](
//		router.WithContextFactory(newAppContext),
//		router.WithErrorHandler(response.JSONErrorHandler[*AppContext]),
//	)
//
// Handler errors, nil responses and panics are routed to the error handler.
// Unknown paths produce ErrNotFound; known paths with another method produce
// ErrMethodNotAllowed together with an Allow header.
package router
