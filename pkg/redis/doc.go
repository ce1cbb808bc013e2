// Package redis connects go-redis clients with retries and exposes a
// readiness check. The usage tracker's Redis store is built on the client
// returned by Connect.
package redis
