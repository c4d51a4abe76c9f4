// Package server hosts the Fiber HTTP service and its request middleware
// chain. It owns request IDs, panic recovery and the /assets route, and hands
// each resource key to an injected AssetHandler so the cache client stays
// out of the transport layer. Diagnostics endpoints live in the routes
// subpackage and are attached by the caller.
package server
