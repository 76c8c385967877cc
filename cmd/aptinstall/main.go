package main

import (
	"context"
	"errors"
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/aptsnap/pkg/config"
	"github.com/the-maldridge/aptsnap/pkg/discover"
	"github.com/the-maldridge/aptsnap/pkg/hostdb"
	"github.com/the-maldridge/aptsnap/pkg/sources"
	"github.com/the-maldridge/aptsnap/pkg/stage"
	"github.com/the-maldridge/aptsnap/pkg/types"
	"github.com/the-maldridge/aptsnap/pkg/upgrade"
)

// Exit statuses are distinct per abort condition so wrapper scripts
// can tell what stopped the run.
const (
	exitOK          = 0
	exitGeneric     = 1
	exitNoRepo      = 2
	exitStageFailed = 3
	exitStraySource = 4
	exitUnverified  = 5
)

// The pipeline stages are consumed through narrow interfaces so the
// wiring can be exercised without touching a live host.
type repoDiscoverer interface {
	Discover(root string) (string, error)
}

type repoStager interface {
	Stage(src string) error
	Dest() string
}

type sourceSwitcher interface {
	Run(ctx context.Context, stagedRoot string) error
	QuarantineDir() string
}

type upgradeDriver interface {
	Upgrade(ctx context.Context) error
	PostUpgrade(ctx context.Context)
}

type snapshotter interface {
	Snapshot() ([]types.PackageRecord, error)
}

func main() {
	appLogger := hclog.New(&hclog.LoggerOptions{
		Name:  "aptinstall",
		Level: hclog.LevelFromString("DEBUG"),
	})
	appLogger.Info("aptinstall is initializing")

	cfg := config.NewConfig()
	if len(os.Args) > 1 {
		if err := cfg.LoadFromFile(os.Args[1]); err != nil {
			appLogger.Error("Error loading config", "path", os.Args[1], "error", err)
			os.Exit(exitGeneric)
		}
	}

	sw := sources.New(appLogger, cfg.AptDir, sources.NewAptRefresher(appLogger))
	up := upgrade.New(appLogger)
	up.SetDesktopMeta(cfg.DesktopMeta)

	os.Exit(run(context.Background(), appLogger, cfg,
		discover.New(appLogger),
		stage.New(appLogger, cfg.StagingRoot),
		sw,
		up,
		hostdb.New(appLogger)))
}

// run drives the installer pipeline in strict order.  Everything
// after the quarantine begins is fail-closed: the first safety
// failure terminates the pipeline with nothing destructive run.
func run(ctx context.Context, l hclog.Logger, cfg *config.Config, d repoDiscoverer, st repoStager, sw sourceSwitcher, up upgradeDriver, db snapshotter) int {
	repo, err := d.Discover(cfg.SearchRoot)
	if err != nil {
		l.Error("No offline repository found, nothing was changed", "root", cfg.SearchRoot, "error", err)
		return exitNoRepo
	}

	if err := st.Stage(repo); err != nil {
		l.Error("Staging failed, live source configuration untouched", "repo", repo, "error", err)
		return exitStageFailed
	}

	// The pre-upgrade snapshot feeds the report; losing it only
	// costs the report.
	before, err := db.Snapshot()
	if err != nil {
		l.Warn("Could not snapshot packages before upgrade", "error", err)
	}

	if err := sw.Run(ctx, st.Dest()); err != nil {
		var stray sources.ErrStraySource
		switch {
		case errors.As(err, &stray):
			l.Error("Aborted: a package source survived quarantine",
				"file", stray.Path,
				"recovery", sw.QuarantineDir())
			return exitStraySource
		case errors.Is(err, sources.ErrVerifyFailed):
			l.Error("Aborted: the local source did not verify, upgrade will not run",
				"recovery", sw.QuarantineDir())
			return exitUnverified
		default:
			l.Error("Source switch failed", "error", err, "recovery", sw.QuarantineDir())
			return exitGeneric
		}
	}

	if err := up.Upgrade(ctx); err != nil {
		l.Error("Upgrade failed", "error", err, "recovery", sw.QuarantineDir())
		return exitGeneric
	}
	up.PostUpgrade(ctx)

	if after, err := db.Snapshot(); err == nil && before != nil {
		rep := upgrade.Diff(before, after)
		l.Info("Upgrade complete", "upgraded", rep.Upgraded, "installed", rep.Installed, "removed", rep.Removed)
	} else {
		l.Info("Upgrade complete")
	}

	return exitOK
}
