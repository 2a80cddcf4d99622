// Package httpserver runs the billing HTTP endpoints with graceful shutdown
// and exposes liveness and readiness probes.
//
//	srv := httpserver.New(cfg, httpserver.WithLogger(log))
//	r.Get("/healthz", httpserver.LivenessHandler())
//	r.Get("/readyz", httpserver.ReadinessHandler(log,
//	    httpserver.Probe{Name: "postgres", Check: pg.Healthcheck(pool)},
//	))
//	if err := srv.Run(ctx, r); err != nil {
//	    return err
//	}
//
// Run blocks until ctx is cancelled or the process receives SIGINT or
// SIGTERM, then drains in-flight requests for at most
// Config.ShutdownTimeout. Listen failures match ErrStart; drain failures
// match ErrShutdown.
package httpserver
