// Package migrations ships the SQL schema migrations with the binary.
//
// Files are applied in lexical order. A file named NNNN_name_rollback.sql
// reverts NNNN_name.sql and is never applied on the way up.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
