package upgrade

import (
	"github.com/hashicorp/go-hclog"
)

// Driver runs the destructive half of the installer pipeline.  It
// must never be invoked until the source switch has verified; the
// package manager itself is a black box that either succeeds or
// fails with log text.
type Driver struct {
	l hclog.Logger

	desktopMeta string
}

// Report summarizes what the upgrade changed, computed from the
// before and after package snapshots.
type Report struct {
	Upgraded  int
	Installed int
	Removed   int
}
