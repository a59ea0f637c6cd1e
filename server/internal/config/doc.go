// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `agent:` key is ignored by the server binary).
//
// Config fields:
//   - GRPCPort           : port for the gRPC health endpoint (default 50051)
//   - HTTPPort           : port for the REST API, /metrics and /ws/stream (default 8080)
//   - Auth.Mode          : "apikey" or "none"
//   - Auth.KeyEnv        : environment variable holding the expected API key
//   - Auth.Header        : HTTP header / gRPC metadata name (default "x-api-key")
//   - Sweep.Interval     : how often expired resources are evicted (default 1h)
//   - Sweep.MaxAgeHours  : eviction threshold in hours (default 24)
//   - Sweep.RemoveFiles  : also delete the files of evicted resources
//   - Sweep.RootDir      : refuse to delete files outside this directory
//   - Stream.Interval    : WebSocket broadcast interval (default 5s)
//   - Activity.Capacity  : events kept in the recent-activity feed (default 256)
//   - Analysis.Endpoint  : analyzer URL; analysis is off when empty
//   - Analysis.*         : key_env, header, workers, queue_size, timeout, delete_after
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, onChange) reloads on file writes via fsnotify.
package config
