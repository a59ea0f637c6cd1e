// Package api implements the HTTP REST API for fridgekeep-server.
//
// New(store, sweeper, remover, feed) returns an http.Handler that serves:
//
//	GET    /api/v1/health                 {state, resource_count}
//	GET    /api/v1/resources[?owner=]     tracked resources, oldest first
//	POST   /api/v1/resources              register {id, owner_id, location}; 201
//	GET    /api/v1/resources/{id}         single resource; 404 if unknown
//	DELETE /api/v1/resources/{id}         204 even if unknown; ?purge=true also removes the file
//	POST   /api/v1/evict                  {max_age_hours} (default 24) returns {evicted, ids, remove_errors}
//	GET    /api/v1/activity[?limit=N]     recent events, newest first (default 10)
//
// All endpoints respond with Content-Type: application/json, return 405 for
// unsupported methods and map store.ErrInvalidArgument to 400.
// JSON types live in pkg/types. No external HTTP framework is used.
package api
