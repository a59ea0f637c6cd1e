// Package client is a typed HTTP client for the fridgekeep-server REST API.
// It is shared by the capture agent's shipper and by fridgectl.
package client
