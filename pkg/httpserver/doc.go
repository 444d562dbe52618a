// Package httpserver runs the auth HTTP API with graceful shutdown and
// exposes a JSON readiness handler.
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	srv := httpserver.NewFromConfig(cfg,
//		httpserver.WithLogger(log),
//		httpserver.WithStopHook(func() { _ = redisClient.Close() }),
//	)
//	err := srv.Run(ctx, router)
//
// Run returns nil after a clean shutdown. Stop hooks run once the listener is
// closed, which is where shared clients are released.
package httpserver
