package assetcache

import "sync/atomic"

// Stats 是进程内累计计数，供 /-/status 输出。
type Stats struct {
	Hits            int64 `json:"hits"`
	MemoryHits      int64 `json:"memory_hits"`
	Misses          int64 `json:"misses"`
	Fetches         int64 `json:"fetches"`
	FetchFailures   int64 `json:"fetch_failures"`
	PersistFailures int64 `json:"persist_failures"`
	Coalesced       int64 `json:"coalesced"`
}

type counters struct {
	hits            atomic.Int64
	memoryHits      atomic.Int64
	misses          atomic.Int64
	fetches         atomic.Int64
	fetchFailures   atomic.Int64
	persistFailures atomic.Int64
	coalesced       atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:            c.hits.Load(),
		MemoryHits:      c.memoryHits.Load(),
		Misses:          c.misses.Load(),
		Fetches:         c.fetches.Load(),
		FetchFailures:   c.fetchFailures.Load(),
		PersistFailures: c.persistFailures.Load(),
		Coalesced:       c.coalesced.Load(),
	}
}
