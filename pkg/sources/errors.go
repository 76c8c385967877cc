package sources

import (
	"errors"
)

// ErrStraySource is returned by the guard when a source entry
// survives quarantine.  Proceeding would let the upgrade resolve
// against a source the operator thought was gone.
type ErrStraySource struct {
	Path string
}

func (e ErrStraySource) Error() string {
	return "stray package source survived quarantine: " + e.Path
}

// ErrVerifyFailed is returned when the metadata refresh against the
// sole local source does not resolve.  No destructive operation may
// follow it.
var ErrVerifyFailed = errors.New("metadata refresh failed against the local source")

// ErrBadTransition is returned when a transition is requested from
// the wrong state.
var ErrBadTransition = errors.New("transition not valid from current state")
