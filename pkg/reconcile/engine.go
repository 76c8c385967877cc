package reconcile

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/aptsnap/pkg/deb"
	"github.com/the-maldridge/aptsnap/pkg/pool"
	"github.com/the-maldridge/aptsnap/pkg/types"
)

// New returns an engine bound to the given pool and repack
// collaborator, defaulting to one worker per CPU.
func New(l hclog.Logger, p *pool.Pool, r deb.Repacker) *Engine {
	return &Engine{
		l:           l.Named("reconcile"),
		pool:        p,
		repacker:    r,
		parallelism: runtime.NumCPU(),
	}
}

// SetParallelism bounds the worker pool.  Values below one are
// clamped to one.
func (e *Engine) SetParallelism(n int) {
	if n < 1 {
		n = 1
	}
	e.parallelism = n
}

// Reconcile decides, for every record, whether the pool already
// backs it or the repack collaborator must produce an archive for
// it.  A single package failing to repack downgrades to a skip with
// a recorded reason; the batch never aborts and sibling workers are
// never cancelled.
func (e *Engine) Reconcile(ctx context.Context, records []types.PackageRecord) (*types.BuildSummary, error) {
	summary := &types.BuildSummary{StartedAt: time.Now()}

	scratch, err := os.MkdirTemp("", "aptsnap-repack-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratch)

	workCh := make(chan types.PackageRecord, 200)
	resCh := make(chan types.RepackResult, 200)

	wg := new(sync.WaitGroup)
	for i := 0; i < e.parallelism; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for rec := range workCh {
				resCh <- e.reconcileOne(ctx, rec, scratch)
			}
			e.l.Debug("Reconcile worker shutting down", "ID", id)
		}(i)
	}

	go func() {
		for _, rec := range records {
			workCh <- rec
		}
		close(workCh)
		wg.Wait()
		close(resCh)
	}()

	for res := range resCh {
		switch res.Status {
		case types.RepackPresent:
			summary.Present++
		case types.RepackBuilt:
			summary.Built++
		case types.RepackSkipped:
			summary.Skipped = append(summary.Skipped, res)
		}
	}

	files, err := e.pool.Files()
	if err != nil {
		return nil, err
	}
	summary.PoolCount = len(files)
	summary.FinishedAt = time.Now()

	e.l.Info("Reconciliation complete",
		"present", summary.Present,
		"built", summary.Built,
		"skipped", len(summary.Skipped),
		"pool", summary.PoolCount)
	return summary, nil
}

// reconcileOne applies the two-tier matching policy to one record.
// The exact filename probe is the cheap fast path; the verified
// probe opens candidate archives and compares embedded identity
// before concluding the record is already backed.
func (e *Engine) reconcileOne(ctx context.Context, rec types.PackageRecord, scratch string) types.RepackResult {
	if e.pool.HasExact(rec) {
		e.l.Trace("Archive present by exact name", "package", rec.Name)
		return types.RepackResult{Record: rec, Status: types.RepackPresent}
	}
	if e.pool.HasVerified(rec) {
		e.l.Trace("Archive present by verified metadata", "package", rec.Name)
		return types.RepackResult{Record: rec, Status: types.RepackPresent}
	}

	// Each repack gets its own scratch dir so concurrent workers
	// never glob each other's output.
	dir, err := os.MkdirTemp(scratch, rec.Name+"-")
	if err != nil {
		return types.RepackResult{Record: rec, Status: types.RepackSkipped, Reason: err.Error()}
	}

	archive, err := e.repacker.Repack(ctx, rec, dir)
	if err != nil {
		e.l.Warn("Unable to repack package", "package", rec.Name, "error", err)
		return types.RepackResult{Record: rec, Status: types.RepackSkipped, Reason: err.Error()}
	}
	if err := e.pool.Add(archive); err != nil {
		e.l.Warn("Error pooling repacked archive", "package", rec.Name, "error", err)
		return types.RepackResult{Record: rec, Status: types.RepackSkipped, Reason: err.Error()}
	}

	e.l.Debug("Repacked package", "package", rec.Name, "version", rec.Version)
	return types.RepackResult{Record: rec, Status: types.RepackBuilt, ArchivePath: archive}
}
