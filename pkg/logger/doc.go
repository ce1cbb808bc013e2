// Package logger builds *slog.Logger instances with functional options and
// context-aware attribute injection.
//
// New picks a JSON or text handler and wraps it in a handler that
// runs the registered ContextExtractor callbacks on every record. FromConfig
// reads the environment-driven Config used by the service binary.
//
// Attribute helpers in attr.go keep key names consistent across packages:
//
//	log.InfoContext(ctx, "limit reached",
//		logger.TeamID(teamID),
//		logger.Action(action),
//		logger.Metric(metric),
//	)
//
// Error and Errors return an empty Attr for nil errors, so they can be passed
// unconditionally.
package logger
