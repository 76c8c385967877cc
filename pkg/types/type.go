package types

import (
	"time"
)

// A PackageRecord is the identity of one installed package as
// reported by the host package database.  Records are immutable once
// snapshotted and are unique on the (name, version, architecture)
// triple.
type PackageRecord struct {
	Name         string
	Version      string
	Architecture string
}

// String renders the record in the canonical archive naming
// convention of name_version_architecture.
func (p PackageRecord) String() string {
	return p.Name + "_" + p.Version + "_" + p.Architecture
}

// An ArchiveFile is a physical package archive on disk.  The identity
// fields are read back out of the archive's own control data, never
// inferred from the filename.
type ArchiveFile struct {
	Path         string
	Name         string
	Version      string
	Architecture string
	SizeBytes    int64
	SHA256       string
}

// InventoryRow is one line of the audit artifact, describing exactly
// one archive file under the pool.
type InventoryRow struct {
	Package      string
	Version      string
	Architecture string
	SizeBytes    int64
	RelativePath string
	SHA256       string
}

// RepackStatus describes the outcome of reconciling a single
// PackageRecord against the pool.
type RepackStatus int

const (
	// RepackPresent means an archive backing the record already
	// existed in the pool.
	RepackPresent RepackStatus = iota

	// RepackBuilt means the repack collaborator produced a new
	// archive for the record.
	RepackBuilt

	// RepackSkipped means the record could not be backed by an
	// archive and the reason was recorded instead.
	RepackSkipped
)

func (s RepackStatus) String() string {
	switch s {
	case RepackPresent:
		return "present"
	case RepackBuilt:
		return "built"
	case RepackSkipped:
		return "skipped"
	}
	return "unknown"
}

// A RepackResult is the explicit per-record outcome of one
// reconciliation decision.  Skips carry the reason they were skipped
// so that no record is ever silently dropped.
type RepackResult struct {
	Record      PackageRecord
	Status      RepackStatus
	ArchivePath string
	Reason      string
}

// A BuildSummary aggregates the results of one builder run.  It is
// the only return value of the reconciliation engine; callers that
// want to know about individual failures consult Skipped.
type BuildSummary struct {
	StartedAt  time.Time
	FinishedAt time.Time

	Present int
	Built   int
	Skipped []RepackResult

	PoolCount int
}
