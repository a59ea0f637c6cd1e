// Package capture watches spool directories for newly captured images and
// turns each one into a registration request for fridgekeep-server.
//
// Files already present when the watcher starts are emitted once, then every
// new matching file is emitted as soon as it appears. Each path is emitted at
// most once until it is removed or renamed away.
package capture
