package pool

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/aptsnap/pkg/deb"
	"github.com/the-maldridge/aptsnap/pkg/types"
)

// New ensures the pool directory exists and returns a handle to it.
func New(l hclog.Logger, dir string, meta deb.MetaReader) (*Pool, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Pool{
		l:    l.Named("pool"),
		dir:  dir,
		meta: meta,
	}, nil
}

// Dir returns the pool directory.
func (p *Pool) Dir() string {
	return p.dir
}

// Add copies the archive at src into the pool under its base name.
// The copy is non-clobbering: if the destination already exists the
// add is a success and the existing file is left untouched.  The
// copy goes through a temp file and a hard link; link fails with
// EEXIST rather than replacing, so the first archive to land under a
// name stays there even when two adds race, and a concurrent reader
// never observes a partial archive.
func (p *Pool) Add(src string) error {
	dest := filepath.Join(p.dir, filepath.Base(src))
	if _, err := os.Stat(dest); err == nil {
		p.l.Trace("Archive already pooled", "archive", filepath.Base(src))
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(p.dir, ".pooltmp-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Link(tmp.Name(), dest); err != nil && !os.IsExist(err) {
		os.Remove(tmp.Name())
		return err
	}
	os.Remove(tmp.Name())
	p.l.Trace("Pooled archive", "archive", filepath.Base(src))
	return nil
}

// HasExact probes for a file named by the canonical
// name_version_architecture convention.  Both the literal version
// and the form with the epoch colon escaped as dpkg writes it are
// checked.
func (p *Pool) HasExact(rec types.PackageRecord) bool {
	for _, n := range exactNames(rec) {
		if _, err := os.Stat(filepath.Join(p.dir, n)); err == nil {
			return true
		}
	}
	return false
}

// HasVerified is the second-tier existence check.  Every pool file
// whose name begins with name_ is opened and its embedded identity
// compared against the record.  A prefix match alone is never
// sufficient: version substrings across upgrades would otherwise
// yield false positives.
func (p *Pool) HasVerified(rec types.PackageRecord) bool {
	matches, err := filepath.Glob(filepath.Join(p.dir, rec.Name+"_*.deb"))
	if err != nil || len(matches) == 0 {
		return false
	}
	for _, m := range matches {
		meta, err := p.meta.Metadata(m)
		if err != nil {
			p.l.Warn("Unreadable archive during existence check", "archive", m, "error", err)
			continue
		}
		if meta.Package == rec.Name && meta.Version == rec.Version && meta.Architecture == rec.Architecture {
			return true
		}
	}
	return false
}

// Files enumerates every archive under the pool, sorted, descending
// into nested directories since transferred pools may not be flat.
func (p *Pool) Files() ([]string, error) {
	var out []string
	err := filepath.Walk(p.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".deb") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func exactNames(rec types.PackageRecord) []string {
	names := []string{rec.String() + ".deb"}
	if strings.Contains(rec.Version, ":") {
		escaped := rec.Name + "_" + strings.ReplaceAll(rec.Version, ":", "%3a") + "_" + rec.Architecture + ".deb"
		names = append(names, escaped)
	}
	return names
}
