package binder

import "net/http"

// Binder binds HTTP request data to a Go value.
type Binder func(r *http.Request, v any) error
