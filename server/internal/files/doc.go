// Package files deletes the on-disk resources that store records point at.
// The store only tracks metadata; callers pair store.Delete or an eviction
// sweep with Remover.Remove when the underlying file should go too.
package files
