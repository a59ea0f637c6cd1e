// Package analysis hands newly registered captures to an external image
// analyzer, the service that recognises food items in a photo.
//
// Dispatcher implements store.Observer: every registration is queued and a
// pool of workers looks the resource up again with Store.Get before sending
// it, so captures deleted, evicted or replaced in the meantime are skipped.
// After a successful analysis the capture can be dropped from the store (and
// its file removed) since it is no longer needed.
package analysis
