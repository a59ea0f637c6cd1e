// Package probe exposes the standard grpc.health.v1 service for
// fridgekeep-server so orchestrators and fridgectl can check liveness.
//
// The server binary wraps it with auth.APIKeyInterceptor when API key auth is
// enabled. Status is NOT_SERVING until MarkServing, and again after Shutdown.
package probe
