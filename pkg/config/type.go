package config

// Config represents the complete application configuration that both
// the builder and installer pipelines support.
type Config struct {
	// RepoRoot is where the builder assembles the offline
	// repository: a pool directory plus the generated index.
	RepoRoot string

	// CacheDir is the package manager's archive cache, harvested
	// into the pool before any repacking happens.
	CacheDir string

	// FetchUpdates controls whether the builder asks the package
	// manager to download (but not install) pending updates
	// before harvesting the cache.
	FetchUpdates bool

	// Parallelism bounds the reconciliation and audit worker
	// pools.  Zero means one worker per detected CPU.
	Parallelism int

	// ScanCommand is the argv of the external index generator,
	// run from RepoRoot with its stdout captured as the index.
	ScanCommand []string

	// SearchRoot is where the installer looks for a transferred
	// repository tree.
	SearchRoot string

	// StagingRoot is the fixed location the installer mirrors the
	// discovered repository into before switching sources.
	StagingRoot string

	// AptDir is the root of the package source configuration,
	// normally /etc/apt.  Overridable for testing.
	AptDir string

	// DesktopMeta optionally names a meta package to install
	// best-effort after the upgrade completes.
	DesktopMeta string

	// Store names the storage factory used to persist build
	// summaries between runs.
	Store string

	// Bind is the address the repo/status webserver listens on.
	Bind string
}
