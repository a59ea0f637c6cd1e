// Package shipper delivers capture registrations to fridgekeep-server.
//
// Shipper.Ship() is non-blocking: requests are placed in an in-memory channel
// (default capacity 1000). When the buffer is full the oldest entry is evicted
// so the newest captures are always kept.
//
// Shipper.Run() drains the buffer in order. A request that fails transiently is
// retried in place with truncated exponential backoff (1s to 60s, 25% jitter)
// until the server accepts it.
// Requests the server rejects as invalid or unauthorised (4xx) are discarded
// rather than retried.
package shipper
