// Package middleware provides the HTTP middleware chain of the Heimdall API:
// request IDs, access logging with request metrics, panic recovery, per-client
// rate limiting and execution-class enforcement of the go-live gate.
//
// The execution-class middleware is also meant to be mounted in front of the
// platform services that perform real-world effects. It classifies each path
// by prefix and refuses PROD_EXEC traffic while go-live is disabled, and all
// non-exempt traffic while the kill switch is engaged.
package middleware
