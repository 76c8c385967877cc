package inventory

import (
	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/aptsnap/pkg/deb"
)

// FileName is the audit artifact written at the repo root.
const FileName = "installed-packages.csv"

// Auditor walks the final pool and emits one CSV row per archive
// with a content hash.  The artifact exists for audit and debugging;
// the index generator never reads it.
type Auditor struct {
	l hclog.Logger

	meta        deb.MetaReader
	parallelism int
}
