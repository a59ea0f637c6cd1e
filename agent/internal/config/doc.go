// Package config loads and watches the agent configuration file (config.yaml).
//
// AgentConfig fields: server_endpoint (HTTP base URL of fridgekeep-server),
// owner_id, spool_dirs, extensions (default .jpg .jpeg .png .heic),
// id_strategy (filename|uuid), buffer_size (default 1000) and server_auth
// (mode apikey|none, header, key_env; Key() resolves from the environment).
//
// Load(path) reads the YAML file, applies defaults, then validates required
// fields and enums.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It re-adds the watch after each
// reload to survive the rename-then-create pattern of atomic-save editors.
package config
