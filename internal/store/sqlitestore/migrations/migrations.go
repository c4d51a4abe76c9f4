// Package migrations embeds the versioned SQL that builds the records table.
package migrations

import "embed"

// FS holds NNNN_name.sql files; the numeric prefix is the schema version.
//
//go:embed *.sql
var FS embed.FS
