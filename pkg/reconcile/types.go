package reconcile

import (
	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/aptsnap/pkg/deb"
	"github.com/the-maldridge/aptsnap/pkg/pool"
)

// Engine closes the gap between what the host has installed and what
// the pool physically contains.  Decisions for different packages
// are independent and run on a bounded worker pool; the only shared
// mutable state is the append-only pool itself.
type Engine struct {
	l hclog.Logger

	pool        *pool.Pool
	repacker    deb.Repacker
	parallelism int
}
