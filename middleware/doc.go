// Package middleware provides the HTTP middleware used by the upload API:
// request ids, client IP extraction, request logging, body size limits and
// session loading. All of them are generic over the handler context type:
//
//	r := router.New[*filedrop.Context]()
//	r.Use(
//		middleware.RequestID[*filedrop.Context](),
//		middleware.ClientIP[*filedrop.Context](),
//		middleware.LoggingWithLogger[*filedrop.Context](log),
//		middleware.BodyLimitWithSize[*filedrop.Context](10*middleware.GB),
//		middleware.Session[*filedrop.Context, filedrop.SessionData](transport),
//	)
//
// Each middleware has a WithConfig variant with a Skip hook.
package middleware
