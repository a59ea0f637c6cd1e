// Package store keeps in-memory metadata for transient captured resources
// (photos waiting for analysis). It provides a thread-safe keyed store with
// explicit delete and age-based bulk eviction. The store never touches the
// files its records point at and never evicts on its own.
package store
