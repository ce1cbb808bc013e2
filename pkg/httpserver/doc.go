// Package httpserver runs the metering HTTP API with graceful shutdown.
//
// Run binds the listener before serving, so address errors come back
// synchronously wrapped in ErrStart, and blocks until the context is
// cancelled or Shutdown is called. Signal handling belongs to the process:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("http server", logger.Error(err))
//	}
//
// LivenessHandler and ReadinessHandler back the /healthz and /readyz endpoints.
package httpserver
