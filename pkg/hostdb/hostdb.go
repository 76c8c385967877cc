package hostdb

import (
	"bufio"
	"bytes"
	"os/exec"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/aptsnap/pkg/types"
)

// New returns a DB with the logger configured.
func New(l hclog.Logger) *DB {
	return &DB{l: l.Named("hostdb")}
}

// Snapshot returns the de-duplicated, sorted set of installed
// package records.  Determinism here is what makes re-running the
// builder idempotent.
func (d *DB) Snapshot() ([]types.PackageRecord, error) {
	out, err := exec.Command("dpkg-query", "-W", "-f", "${Package}\\t${Version}\\t${Architecture}\\n").Output()
	if err != nil {
		d.l.Error("Error querying package database", "error", err)
		return nil, err
	}
	recs := parseRecords(out)
	d.l.Info("Snapshotted installed packages", "count", len(recs))
	return recs, nil
}

// parseRecords turns tab separated dpkg-query output into records.
// Lines with a missing version are config-file remnants that dpkg
// still lists; they have nothing to archive and are dropped here.
func parseRecords(out []byte) []types.PackageRecord {
	seen := make(map[types.PackageRecord]struct{})
	var recs []types.PackageRecord

	s := bufio.NewScanner(bytes.NewReader(out))
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			continue
		}
		rec := types.PackageRecord{
			Name:         strings.TrimSpace(fields[0]),
			Version:      strings.TrimSpace(fields[1]),
			Architecture: strings.TrimSpace(fields[2]),
		}
		if rec.Name == "" || rec.Version == "" {
			continue
		}
		if _, ok := seen[rec]; ok {
			continue
		}
		seen[rec] = struct{}{}
		recs = append(recs, rec)
	}

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].String() < recs[j].String()
	})
	return recs
}
