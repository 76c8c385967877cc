package fetch

import (
	"github.com/hashicorp/go-hclog"
)

// Fetcher pre-loads the pool from the package manager: optionally
// asking it to download pending updates, then harvesting whatever is
// sitting in its archive cache.
type Fetcher struct {
	l        hclog.Logger
	cacheDir string
}
