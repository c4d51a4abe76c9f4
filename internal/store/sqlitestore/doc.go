// Package sqlitestore is the default durable engine: one SQLite file per
// store name holding a single records table, versioned through embedded
// migrations and PRAGMA user_version.
package sqlitestore
