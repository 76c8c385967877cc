package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/aptsnap/pkg/config"
	"github.com/the-maldridge/aptsnap/pkg/deb"
	"github.com/the-maldridge/aptsnap/pkg/fetch"
	"github.com/the-maldridge/aptsnap/pkg/hostdb"
	"github.com/the-maldridge/aptsnap/pkg/index"
	"github.com/the-maldridge/aptsnap/pkg/inventory"
	"github.com/the-maldridge/aptsnap/pkg/pool"
	"github.com/the-maldridge/aptsnap/pkg/reconcile"
	"github.com/the-maldridge/aptsnap/pkg/storage"
	"github.com/the-maldridge/aptsnap/pkg/web"

	_ "github.com/the-maldridge/aptsnap/pkg/storage/bc"
)

func main() {
	appLogger := hclog.New(&hclog.LoggerOptions{
		Name:  "aptsnap",
		Level: hclog.LevelFromString("DEBUG"),
	})
	appLogger.Info("aptsnap is initializing")

	if len(os.Args) < 2 {
		appLogger.Error("A verb is required: build, serve or status")
		os.Exit(1)
	}

	cfg := config.NewConfig()
	if len(os.Args) > 2 {
		if err := cfg.LoadFromFile(os.Args[2]); err != nil {
			appLogger.Error("Error loading config", "path", os.Args[2], "error", err)
			os.Exit(1)
		}
	}

	switch os.Args[1] {
	case "build":
		if err := runBuild(appLogger, cfg); err != nil {
			os.Exit(1)
		}
	case "serve":
		runServe(appLogger, cfg)
	case "status":
		if err := runStatus(appLogger, cfg); err != nil {
			os.Exit(1)
		}
	default:
		appLogger.Error("Unknown verb", "verb", os.Args[1])
		os.Exit(1)
	}
}

// runBuild drives the whole builder pipeline: snapshot, fetch,
// harvest, reconcile, index, audit.
func runBuild(l hclog.Logger, cfg *config.Config) error {
	ctx := context.Background()

	db := hostdb.New(l)
	records, err := db.Snapshot()
	if err != nil {
		return err
	}

	tool := deb.New(l)
	p, err := pool.New(l, filepath.Join(cfg.RepoRoot, "pool"), tool)
	if err != nil {
		l.Error("Error initializing pool", "error", err)
		return err
	}

	f := fetch.New(l, cfg.CacheDir)
	if cfg.FetchUpdates {
		// Best effort: an offline host builds from whatever the
		// cache already holds.
		f.FetchUpdates(ctx)
	}
	if _, err := f.Harvest(p); err != nil {
		return err
	}

	eng := reconcile.New(l, p, deb.NewRepacker(l))
	if cfg.Parallelism > 0 {
		eng.SetParallelism(cfg.Parallelism)
	}
	summary, err := eng.Reconcile(ctx, records)
	if err != nil {
		l.Error("Error reconciling packages", "error", err)
		return err
	}

	gen := index.New(l, cfg.RepoRoot)
	gen.SetScanCommand(cfg.ScanCommand)
	if err := gen.Generate(ctx); err != nil {
		return err
	}

	aud := inventory.New(l, tool)
	if cfg.Parallelism > 0 {
		aud.SetParallelism(cfg.Parallelism)
	}
	files, err := p.Files()
	if err != nil {
		return err
	}
	if _, err := aud.Audit(ctx, cfg.RepoRoot, files); err != nil {
		l.Error("Error writing inventory", "error", err)
		return err
	}

	persistSummary(l, cfg, summary)
	l.Info("Build complete", "root", cfg.RepoRoot, "pool", summary.PoolCount, "skipped", len(summary.Skipped))
	return nil
}

func persistSummary(l hclog.Logger, cfg *config.Config, summary interface{}) {
	store, err := initStore(l, cfg)
	if err != nil {
		l.Warn("Storage unavailable, summary will not be persisted", "error", err)
		return
	}
	defer store.Close()

	blob, err := json.Marshal(summary)
	if err != nil {
		l.Warn("Error serializing summary", "error", err)
		return
	}
	if err := store.Put([]byte("build/last"), blob); err != nil {
		l.Warn("Error persisting summary", "error", err)
	}
}

func runServe(l hclog.Logger, cfg *config.Config) {
	srv, err := web.New(l)
	if err != nil {
		l.Error("Error initializing webserver", "error", err)
		return
	}

	store, err := initStore(l, cfg)
	if err != nil {
		l.Error("Couldn't initialize storage", "error", err)
		return
	}

	srv.ServeRepo("/repo", cfg.RepoRoot)
	srv.Mount("/api/build", web.NewStatusRouter(l, store))
	go srv.Serve(cfg.Bind)

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, os.Interrupt)

	<-stop

	l.Info("Shutting down")
	store.Close()
	l.Info("Goodbye!")
}

func runStatus(l hclog.Logger, cfg *config.Config) error {
	store, err := initStore(l, cfg)
	if err != nil {
		l.Error("Couldn't initialize storage", "error", err)
		return err
	}
	defer store.Close()

	blob, err := store.Get([]byte("build/last"))
	if err != nil {
		l.Error("Error reading last summary", "error", err)
		return err
	}
	if blob == nil {
		fmt.Println("no build has run yet")
		return nil
	}
	fmt.Println(string(blob))
	return nil
}

func initStore(l hclog.Logger, cfg *config.Config) (storage.Storage, error) {
	storage.SetLogger(l)
	storage.DoCallbacks()
	return storage.Initialize(cfg.Store)
}
