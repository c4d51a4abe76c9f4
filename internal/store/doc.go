// Package store defines the durable record store that backs the asset cache.
// A record is the {key, status, payload} triple produced by one network
// attempt; engines persist records under a fixed store name and schema
// version and keep them across process restarts. The sqlitestore, filestore
// and redisstore subpackages provide the concrete engines, all of which share
// the Record type, the codecs and the error taxonomy declared here.
package store
