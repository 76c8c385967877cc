package discover

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/aptsnap/pkg/index"
)

// ErrNoRepo is returned when no candidate repository exists under
// the search root.
var ErrNoRepo = errors.New("no offline repository found")

// Discoverer locates a transferred flat repository under a search
// root.
type Discoverer struct {
	l hclog.Logger
}

// New returns a Discoverer with the logger configured.
func New(l hclog.Logger) *Discoverer {
	return &Discoverer{l: l.Named("discover")}
}

// Discover walks the root recursively looking for directories that
// satisfy the pool+index invariant.  When more than one candidate
// exists the winner is chosen deterministically: the shallowest
// match, ties broken by lexical path order.  Unreadable paths are
// skipped rather than failing the whole search, since removable
// media roots are full of directories the installer cannot read.
func (d *Discoverer) Discover(root string) (string, error) {
	var candidates []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			d.l.Trace("Skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if index.Verify(path) == nil {
			candidates = append(candidates, path)
			// Nothing nested under a repo can be a better
			// candidate than the repo itself.
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		d.l.Error("No repository found", "root", root)
		return "", ErrNoRepo
	}

	sort.Slice(candidates, func(i, j int) bool {
		di := strings.Count(candidates[i], string(filepath.Separator))
		dj := strings.Count(candidates[j], string(filepath.Separator))
		if di != dj {
			return di < dj
		}
		return candidates[i] < candidates[j]
	})

	d.l.Info("Discovered repository", "path", candidates[0], "candidates", len(candidates))
	return candidates[0], nil
}
