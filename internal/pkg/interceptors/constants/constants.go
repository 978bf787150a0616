// Package constants names the metadata headers that travel on HTTP requests
// and broker messages alike.
package constants

const (
	HeaderRequestID      = "x-request-id"
	HeaderIdempotencyKey = "x-idempotency-key"
)
