package sources

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// New returns a Switch owning the source configuration under aptDir,
// in the ACTIVE state.
func New(l hclog.Logger, aptDir string, r Refresher) *Switch {
	return &Switch{
		l:         l.Named("sources"),
		aptDir:    aptDir,
		refresher: r,
		state:     StateActive,
	}
}

// State reports the current state.
func (s *Switch) State() State {
	return s.state
}

// QuarantineDir returns the quarantine location, empty until the
// ACTIVE to QUARANTINED transition has run.  Every failure message
// downstream names it so the operator knows where recovery lives.
func (s *Switch) QuarantineDir() string {
	return s.quarantine
}

// Quarantine moves every existing source file, untouched, into a
// timestamped directory under aptDir.  Moving is the only way prior
// configuration is ever altered.  A file that cannot be moved is
// logged and left behind; the guard exists to catch exactly that
// before anything destructive happens.
func (s *Switch) Quarantine() error {
	if s.state != StateActive {
		return ErrBadTransition
	}

	qdir := filepath.Join(s.aptDir, "aptsnap-quarantine-"+time.Now().Format("2006-01-02T15-04-05"))
	if err := os.MkdirAll(qdir, 0755); err != nil {
		return err
	}

	files := s.listSourceFiles()
	moved := 0
	for _, f := range files {
		rel, err := filepath.Rel(s.aptDir, f)
		if err != nil {
			s.l.Warn("Could not quarantine source file", "file", f, "error", err)
			continue
		}
		dest := filepath.Join(qdir, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			s.l.Warn("Could not quarantine source file", "file", f, "error", err)
			continue
		}
		if err := moveFile(f, dest); err != nil {
			s.l.Warn("Could not quarantine source file", "file", f, "error", err)
			continue
		}
		moved++
	}

	s.quarantine = qdir
	s.state = StateQuarantined
	s.l.Info("Quarantined existing sources", "count", moved, "of", len(files), "quarantine", qdir)
	return nil
}

// SwitchTo writes the single local source entry pointing at the
// staged repository, with trust explicitly short-circuited since the
// index is unsigned.
func (s *Switch) SwitchTo(stagedRoot string) error {
	if s.state != StateQuarantined {
		return ErrBadTransition
	}

	line := "deb [trusted=yes] file:" + stagedRoot + " ./\n"
	if err := os.WriteFile(filepath.Join(s.aptDir, "sources.list"), []byte(line), 0644); err != nil {
		return err
	}

	s.stagedRoot = stagedRoot
	s.state = StateSwitched
	s.l.Info("Switched to local source", "root", stagedRoot)
	return nil
}

// Guard re-scans every source location.  Any active entry that does
// not reference the staged root means the quarantine was incomplete,
// and the only safe move is to fail before the refresh or upgrade
// can resolve against it.
func (s *Switch) Guard() error {
	if s.state != StateSwitched {
		return ErrBadTransition
	}

	for _, f := range s.listSourceFiles() {
		stray, err := s.fileHasStrayEntry(f)
		if err != nil {
			s.state = StateFailed
			s.l.Error("Could not audit source file after switch", "file", f, "error", err, "quarantine", s.quarantine)
			return ErrStraySource{Path: f}
		}
		if stray {
			s.state = StateFailed
			s.l.Error("Stray package source detected after switch", "file", f, "quarantine", s.quarantine)
			return ErrStraySource{Path: f}
		}
	}
	s.l.Info("Source guard passed, exactly one local source active")
	return nil
}

// Verify runs the refresh collaborator against the sole new source.
// Failure is terminal for this run: an unverified or empty source
// must never feed an upgrade.
func (s *Switch) Verify(ctx context.Context) error {
	if s.state != StateSwitched {
		return ErrBadTransition
	}

	if err := s.refresher.Refresh(ctx); err != nil {
		s.state = StateFailed
		s.l.Error("Refresh failed against the sole local source", "error", err, "quarantine", s.quarantine)
		return ErrVerifyFailed
	}

	s.state = StateVerified
	s.l.Info("Local source verified")
	return nil
}

// Run drives the full switch in order.  Any error leaves the switch
// in a state where the operator recovers from the quarantine
// directory by hand.
func (s *Switch) Run(ctx context.Context, stagedRoot string) error {
	if err := s.Quarantine(); err != nil {
		return err
	}
	if err := s.SwitchTo(stagedRoot); err != nil {
		return err
	}
	if err := s.Guard(); err != nil {
		return err
	}
	return s.Verify(ctx)
}

// listSourceFiles enumerates every live source configuration file:
// the main sources.list plus everything under sources.list.d.  The
// quarantine directory itself is never a source location.
func (s *Switch) listSourceFiles() []string {
	var out []string

	main := filepath.Join(s.aptDir, "sources.list")
	if _, err := os.Stat(main); err == nil {
		out = append(out, main)
	}

	entries, err := os.ReadDir(filepath.Join(s.aptDir, "sources.list.d"))
	if err != nil {
		return out
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".list") || strings.HasSuffix(e.Name(), ".sources") {
			out = append(out, filepath.Join(s.aptDir, "sources.list.d", e.Name()))
		}
	}
	return out
}

// fileHasStrayEntry reports whether any active line in f fails to
// reference the staged root.
func (s *Switch) fileHasStrayEntry(f string) (bool, error) {
	fh, err := os.Open(f)
	if err != nil {
		return false, err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !lineReferencesRoot(line, s.stagedRoot) {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// lineReferencesRoot reports whether a one-line source entry's URI is
// exactly the staged root.  The URI token is compared whole, never by
// substring: a path that merely prefix-extends the staged root is a
// foreign source and must trip the guard.  Anything that does not
// parse as a binary deb entry is likewise foreign.
func lineReferencesRoot(line, root string) bool {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "deb" {
		return false
	}

	rest := fields[1:]
	// Option blocks like [trusted=yes arch=amd64] may span fields.
	if strings.HasPrefix(rest[0], "[") {
		for len(rest) > 0 {
			done := strings.HasSuffix(rest[0], "]")
			rest = rest[1:]
			if done {
				break
			}
		}
	}
	if len(rest) == 0 {
		return false
	}

	want := "file:" + strings.TrimSuffix(root, "/")
	return strings.TrimSuffix(rest[0], "/") == want
}

// moveFile renames src to dest, falling back to a copy and remove
// when the quarantine lives on a different filesystem.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
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
	return os.Remove(src)
}

// AptRefresher is the production Refresher, shelling out to the
// package manager.
type AptRefresher struct {
	l hclog.Logger
}

// NewAptRefresher returns an AptRefresher with the logger
// configured.
func NewAptRefresher(l hclog.Logger) *AptRefresher {
	return &AptRefresher{l: l.Named("refresh")}
}

// Refresh resolves the index against the active source set.
func (r *AptRefresher) Refresh(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "apt-get", "update")
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.l.Error("apt-get update failed", "error", err, "output", strings.TrimSpace(string(out)))
		return err
	}
	r.l.Debug("apt-get update output", "output", strings.TrimSpace(string(out)))
	return nil
}
