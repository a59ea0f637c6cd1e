// Package activity keeps a bounded, in-memory feed of recent resource events:
// registrations, deletions, evictions, replacements and analysis outcomes.
//
// Log implements store.Observer, so attaching it with store.WithObserver is
// enough to record every store mutation. The oldest events are dropped once
// the configured capacity is reached.
package activity
