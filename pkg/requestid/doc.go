// Package requestid tags every API request with a correlation ID.
//
// Middleware reuses a well-formed X-Request-ID header from the caller or
// generates a UUID, echoes it back and stores it in the request context.
// LoggerExtractor plugs into logger.WithContextExtractors so every log line
// written with the request context carries request_id.
package requestid
