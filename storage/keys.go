package storage

import (
	"strings"
	"time"
)

const (
	// LegacyKey holds the classroom collection in backend A
	LegacyKey = "classrooms"
	// TargetKey holds the classroom collection in backend B
	TargetKey = "atelier:classrooms:v2"
	// LegacyLocalKey is the older generation of backend B data, bootstrapped into A once
	LegacyLocalKey = "atelier:classrooms:v1"
	// LedgerKey holds the migration status record in backend B
	LedgerKey = "atelier:migration:idb-to-local:v1"

	backupPrefix = "atelier:backup:"
)

// Source names a data origin in export payloads and ledger records
type Source string

const (
	SourceLegacy Source = "idb"          // backend A
	SourceLocal  Source = "localStorage" // backend B
	SourceImport Source = "import"
	SourceReset  Source = "reset"
)

// backupKey builds a timestamp-suffixed key; colons and dots are replaced so
// the suffix is safe in file names too.
func backupKey(kind string, at time.Time) string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(at.UTC().Format(time.RFC3339Nano))
	return backupPrefix + kind + ":" + ts
}
