// Package types defines the JSON shapes exchanged between fridgekeep-server,
// fridgekeep-agent and fridgectl over the REST API.
package types
