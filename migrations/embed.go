// Package migrations embeds the versioned SQL schema migrations so that
// the server and billingctl can apply them without a migrations directory.
package migrations

import "embed"

// FS holds every *.up.sql and *.down.sql migration file
//
//go:embed *.sql
var FS embed.FS
