// Package assetcache implements the get-or-fetch-and-populate protocol in
// front of a durable record store. Every call first waits on a one-time
// readiness gate (the store's Open), then serves status-200 records straight
// from storage and falls back to the network for anything else, writing the
// outcome back whether or not it succeeded. Only 200 records are ever served
// as hits; recorded failures just mark that a key was attempted.
//
// Concurrent misses for the same key each go to the network unless
// Options.Coalesce is set, in which case they share a single in-flight fetch.
package assetcache
