package index

import (
	"github.com/hashicorp/go-hclog"
)

// Generator wraps the external index scanner.  The scanner is a pure
// function from a pool directory to index text; everything else
// (compression, the Release stub, verification) is handled here.
type Generator struct {
	l       hclog.Logger
	root    string
	scanCmd []string
}
