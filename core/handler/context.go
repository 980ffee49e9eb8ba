package handler

import (
	"context"
	"net/http"
)

// Context is the request context handed to every handler.
type Context interface {
	context.Context
	Request() *http.Request
	ResponseWriter() http.ResponseWriter
	Param(key string) string
	SetValue(key, val any)
}

// ValueOf returns the request scoped value stored under key if it has type T.
func ValueOf[T any](ctx context.Context, key any) (T, bool) {
	v, ok := ctx.Value(key).(T)
	return v, ok
}
