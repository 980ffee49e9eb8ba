// Package handler defines the typed handler abstractions shared by the
// router, the middleware and the HTTP actions.
//
// A handler receives a request context C and returns a Response. The
// Response is a deferred render step, so middleware can wrap both the
// decision and the write:
//
//	import "github.com/dmitrymomot/filedrop/core/handler"
//
//	func storage(ctx handler.Context) handler.Response {
//		return func(w http.ResponseWriter, r *http.Request) error {
//			w.Header().Set("Content-Type", "application/json")
//			_, err := w.Write([]byte(`{"success":true}`))
//			return err
//		}
//	}
//
// Middleware composes over HandlerFunc and sees the Response returned by
// the next handler before it is rendered:
//
//	func timing[C handler.Context](next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
//		return func(ctx C) handler.Response {
//			start := time.Now()
//			resp := next(ctx)
//			return func(w http.ResponseWriter, r *http.Request) error {
//				err := resp(w, r)
//				slog.Info("rendered", "elapsed", time.Since(start))
//				return err
//			}
//		}
//	}
//
// Errors returned by a Response are passed to the router's ErrorHandler.
package handler
