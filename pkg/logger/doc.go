// Package logger builds slog loggers with environment presets and attribute
// helpers shared by the auth packages.
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Environment, "authd"),
//	    logger.WithConfig(cfg.Log),
//	    logger.WithContextValue("request_id", middleware.RequestIDKey),
//	)
//	log.ErrorContext(ctx, "oauth exchange failed",
//	    logger.Component("oauth"),
//	    logger.Provider("google"),
//	    logger.Error(err),
//	)
//
// Attribute helpers return an empty slog.Attr for nil or empty input, which
// slog drops from the output. Values of credential keys such as
// access_token, password or code_verifier are masked by every logger New
// returns; WithRedactedKeys changes the set.
package logger
