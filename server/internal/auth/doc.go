// Package auth provides API key authentication for fridgekeep-server.
//
// APIKeyInterceptor(mode, header, key) guards the gRPC health endpoint and
// HTTPMiddleware(mode, header, key, next) guards the REST API. Both pass all
// requests through when mode != "apikey" or key == "" (local development with
// auth disabled), and reject a missing or wrong key immediately.
package auth
