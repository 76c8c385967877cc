package pool

import (
	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/aptsnap/pkg/deb"
)

// A Pool is the append-only directory of archive files backing the
// repository index.  Archives are only ever added; an add whose
// destination already exists is treated as success, which lets
// concurrent writers race safely on identical content.
type Pool struct {
	l    hclog.Logger
	dir  string
	meta deb.MetaReader
}
