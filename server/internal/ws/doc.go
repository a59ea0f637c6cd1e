// Package ws implements the WebSocket resource stream for fridgekeep-server.
//
// Hub broadcasts the tracked resources to every connected client on a
// configurable interval (default 5s), and once immediately on connect.
// Clients may pass ?owner=<id> to receive only that owner's resources.
//
// Message format:
//
//	{
//	  "event": "resources",
//	  "data":  { /* same schema as GET /api/v1/resources */ }
//	}
//
// Mounted at /ws/stream by the server, behind the same API key middleware as
// the REST API.
package ws
