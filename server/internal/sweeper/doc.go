// Package sweeper runs age-based eviction against a store on a timer.
//
// The store never evicts on its own. Sweeper owns the threshold (max age in
// hours, default 24) and the cadence, both hot-reloadable through SetPolicy,
// and pairs each eviction with file removal when Policy.RemoveFiles is set.
package sweeper
