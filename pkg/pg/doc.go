// Package pg bootstraps the PostgreSQL layer on top of pgx/v5.
//
// Connect opens a pool with exponential-backoff retries, Migrate applies
// embedded goose migrations, and Healthcheck exposes a readiness check.
// Stores accept a Querier so they work with both a pool and a transaction.
//
// Error helpers classify pgx errors. IsUnavailableError separates
// "database unreachable" from "database rejected the statement", which is
// the distinction retrying callers need:
//
//	if pg.IsUnavailableError(err) {
//		return retry.RetryableError(err)
//	}
package pg
