package deb

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/aptsnap/pkg/types"
)

// New returns a Tool with the logger configured.
func New(l hclog.Logger) *Tool {
	return &Tool{l: l.Named("deb")}
}

// Metadata reads the Package, Version and Architecture control
// fields out of the archive at path.  Individual missing fields are
// left empty; only a failure to read the archive at all is an error.
func (t *Tool) Metadata(path string) (Meta, error) {
	out, err := exec.Command("dpkg-deb", "-f", path, "Package", "Version", "Architecture").Output()
	if err != nil {
		t.l.Trace("Error reading archive control data", "path", path, "error", err)
		return Meta{}, err
	}
	return parseMeta(out), nil
}

// parseMeta pulls the identity fields out of dpkg-deb field output.
// Unknown keys and continuation lines are ignored.
func parseMeta(out []byte) Meta {
	m := Meta{}
	s := bufio.NewScanner(bytes.NewReader(out))
	for s.Scan() {
		line := s.Text()
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		val := strings.TrimSpace(parts[1])
		switch parts[0] {
		case "Package":
			m.Package = val
		case "Version":
			m.Version = val
		case "Architecture":
			m.Architecture = val
		}
	}
	return m
}

// NewRepacker returns the dpkg-repack backed Repacker.
func NewRepacker(l hclog.Logger) *DpkgRepacker {
	return &DpkgRepacker{l: l.Named("repack")}
}

// Repack rebuilds the recorded installed package into an archive
// under destDir.  dpkg-repack picks the filename itself, so the new
// archive is located by globbing destDir afterwards.
func (r *DpkgRepacker) Repack(ctx context.Context, rec types.PackageRecord, destDir string) (string, error) {
	target := repackTarget(rec)
	cmd := exec.CommandContext(ctx, "dpkg-repack", target)
	cmd.Dir = destDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.l.Debug("dpkg-repack failed", "package", target, "output", strings.TrimSpace(string(out)))
		return "", errors.New("dpkg-repack " + target + ": " + strings.TrimSpace(string(out)))
	}

	matches, err := filepath.Glob(filepath.Join(destDir, rec.Name+"_*.deb"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", errors.New("dpkg-repack " + target + " produced no archive")
	}
	r.l.Trace("Repacked package", "package", target, "archive", matches[0])
	return matches[0], nil
}

// repackTarget qualifies the package name with its architecture so
// dpkg resolves the right instance on a multiarch host.  Packages of
// architecture all carry no per-arch instances and stay bare.
func repackTarget(rec types.PackageRecord) string {
	if rec.Architecture == "" || rec.Architecture == "all" {
		return rec.Name
	}
	return rec.Name + ":" + rec.Architecture
}
