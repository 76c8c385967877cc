package stage

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/aptsnap/pkg/index"
)

// ErrStageCorrupt is returned when the staged copy fails the
// pool+index check.  Nothing has touched the live source
// configuration at that point.
var ErrStageCorrupt = errors.New("staged repository failed verification")

// Stager mirrors a discovered repository into the fixed staging
// location the package manager will be pointed at.
type Stager struct {
	l    hclog.Logger
	dest string
}

// New returns a Stager targeting dest.
func New(l hclog.Logger, dest string) *Stager {
	return &Stager{
		l:    l.Named("stage"),
		dest: dest,
	}
}

// Dest returns the staging location.
func (s *Stager) Dest() string {
	return s.dest
}

// Stage mirrors src into the staging location and verifies the
// result.  Mirror means mirror: anything at the destination that is
// not present at the source is deleted.  Permissions are normalized
// so the package manager's unprivileged reader can get at the files.
func (s *Stager) Stage(src string) error {
	if err := os.MkdirAll(s.dest, 0755); err != nil {
		return err
	}
	if err := s.prune(src); err != nil {
		return err
	}
	if err := s.copyTree(src); err != nil {
		return err
	}
	if err := index.Verify(s.dest); err != nil {
		s.l.Error("Staged repository failed the pool and index check", "error", err)
		return ErrStageCorrupt
	}
	s.l.Info("Repository staged", "src", src, "dest", s.dest)
	return nil
}

// prune removes destination entries with no counterpart at the
// source.
func (s *Stager) prune(src string) error {
	return filepath.Walk(s.dest, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == s.dest {
			return nil
		}
		rel, err := filepath.Rel(s.dest, path)
		if err != nil {
			return err
		}
		if _, err := os.Lstat(filepath.Join(src, rel)); os.IsNotExist(err) {
			s.l.Debug("Pruning stale staged entry", "path", rel)
			if err := os.RemoveAll(path); err != nil {
				return err
			}
			if info.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})
}

func (s *Stager) copyTree(src string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(s.dest, rel)
		if info.IsDir() {
			if err := os.MkdirAll(dest, 0755); err != nil {
				return err
			}
			return os.Chmod(dest, 0755)
		}
		return copyFile(path, dest)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dest, 0644)
}
