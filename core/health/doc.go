// Package health provides liveness and readiness handlers for probes.
//
//	r.Get("/health/live", health.Liveness[*filedrop.Context])
//	r.Get("/health/ready", health.Readiness[*filedrop.Context](log,
//		health.Check{Name: "storage", Probe: disk.Probe},
//		health.Check{Name: "redis", Probe: redis.Healthcheck(client)},
//	))
package health
