package fetch

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/aptsnap/pkg/pool"
)

// New returns a Fetcher harvesting from the given archive cache.
func New(l hclog.Logger, cacheDir string) *Fetcher {
	return &Fetcher{
		l:        l.Named("fetch"),
		cacheDir: cacheDir,
	}
}

// FetchUpdates asks the package manager to download, but not
// install, everything a dist-upgrade would pull in.  The host may
// legitimately be offline, so callers treat a failure here as a
// warning and carry on with whatever the cache already holds.
func (f *Fetcher) FetchUpdates(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "apt-get", "-d", "-y", "dist-upgrade")
	out, err := cmd.CombinedOutput()
	if err != nil {
		f.l.Warn("Download-only upgrade failed", "error", err, "output", strings.TrimSpace(string(out)))
		return err
	}
	f.l.Info("Pending updates downloaded to cache")
	return nil
}

// Harvest copies every archive in the cache into the pool, returning
// how many were pooled.  Per-file failures are logged and skipped;
// only an unreadable cache directory is fatal.
func (f *Fetcher) Harvest(p *pool.Pool) (int, error) {
	entries, err := os.ReadDir(f.cacheDir)
	if err != nil {
		f.l.Error("Error reading archive cache", "dir", f.cacheDir, "error", err)
		return 0, err
	}

	count := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".deb") {
			continue
		}
		if err := p.Add(filepath.Join(f.cacheDir, e.Name())); err != nil {
			f.l.Warn("Error harvesting archive", "archive", e.Name(), "error", err)
			continue
		}
		count++
	}
	f.l.Info("Harvested archive cache", "dir", f.cacheDir, "count", count)
	return count, nil
}
