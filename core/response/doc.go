// Package response builds handler.Response values and renders errors.
//
// Every JSON body the service returns carries a boolean "success" field.
// HTTPError marshals with success=false next to a machine-readable code:
//
//	import "github.com/dmitrymomot/filedrop/core/response"
//
//	r := router.New[*router.Context](
//		router.WithErrorHandler(response.JSONErrorHandler[*router.Context]),
//	)
//	r.Get("/storage", func(ctx *router.Context) handler.Response {
//		return response.JSON(map[string]any{"success": true})
//	})
//
// Errors that are not HTTPError are converted with AsHTTPError. When they
// implement StatusCode() int that status is kept, otherwise 500 is used.
package response
