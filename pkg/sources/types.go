package sources

import (
	"context"

	"github.com/hashicorp/go-hclog"
)

// State is the position of the switch in its lifecycle.  There is no
// automatic rollback transition; recovery from FAILED is the
// operator restoring the quarantine directory by hand.
type State int

const (
	// StateActive means the host still runs on its original
	// source set.
	StateActive State = iota

	// StateQuarantined means every prior source file has been
	// moved aside and no new source exists yet.
	StateQuarantined

	// StateSwitched means the single local source has been
	// written.
	StateSwitched

	// StateVerified means a metadata refresh succeeded against
	// the sole local source and destructive work may proceed.
	StateVerified

	// StateFailed is terminal for this run.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateQuarantined:
		return "QUARANTINED"
	case StateSwitched:
		return "SWITCHED"
	case StateVerified:
		return "VERIFIED"
	case StateFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// A Refresher performs a metadata refresh against the currently
// active source set, succeeding only if the index resolves.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Switch owns the host's package source configuration.  It is the
// only component allowed to write under the apt directory, and only
// during its two defined transitions.
type Switch struct {
	l hclog.Logger

	aptDir    string
	refresher Refresher

	state      State
	quarantine string
	stagedRoot string
}
