// Package filestore persists records as individual encoded files under
// StoragePath/<name>/records. Writes go through an atomic temp-file rename so
// a reader never observes a half-written record, and writers to the same key
// are serialized by a reference-counted per-key lock.
package filestore
