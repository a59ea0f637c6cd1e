// Package metrics exports store and sweeper activity as Prometheus metrics:
//
//	fridgekeep_resources_registered_total
//	fridgekeep_resources_removed_total{reason="deleted|evicted|replaced"}
//	fridgekeep_resources_live
//	fridgekeep_sweep_duration_seconds
//	fridgekeep_sweep_evicted_total
//
// Metrics is attached to the store with store.WithObserver and to the sweeper
// as its Recorder. Handler() is mounted at /metrics by the server.
package metrics
