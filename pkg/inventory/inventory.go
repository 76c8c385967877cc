package inventory

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/aptsnap/pkg/deb"
	"github.com/the-maldridge/aptsnap/pkg/types"
)

// New returns an Auditor defaulting to one worker per CPU.
func New(l hclog.Logger, meta deb.MetaReader) *Auditor {
	return &Auditor{
		l:           l.Named("inventory"),
		meta:        meta,
		parallelism: runtime.NumCPU(),
	}
}

// SetParallelism bounds the hashing pool, clamped to a minimum of
// one.
func (a *Auditor) SetParallelism(n int) {
	if n < 1 {
		n = 1
	}
	a.parallelism = n
}

// Audit hashes every archive concurrently and writes the CSV at the
// repo root, returning the number of data rows.  Rows are assembled
// whole by the workers and written only by this goroutine, so fields
// of different files can never interleave within a row.  Row order
// follows completion order, which is explicitly not significant.
func (a *Auditor) Audit(ctx context.Context, root string, files []string) (int, error) {
	out, err := os.Create(filepath.Join(root, FileName))
	if err != nil {
		return 0, err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write([]string{"Package", "Version", "Architecture", "Size", "Filename", "SHA256"}); err != nil {
		return 0, err
	}

	workCh := make(chan string, 200)
	rowCh := make(chan types.InventoryRow, 200)

	wg := new(sync.WaitGroup)
	for i := 0; i < a.parallelism; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for path := range workCh {
				row, err := a.rowFor(root, path)
				if err != nil {
					// Per-file isolation: one unhashable
					// archive costs one row, never the
					// whole audit.
					a.l.Warn("Error auditing archive", "archive", path, "error", err)
					continue
				}
				rowCh <- row
			}
		}(i)
	}

	go func() {
		for _, f := range files {
			workCh <- f
		}
		close(workCh)
		wg.Wait()
		close(rowCh)
	}()

	count, err := a.writeRows(w, rowCh)
	if err != nil {
		return count, err
	}

	a.l.Info("Inventory written", "rows", count)
	return count, nil
}

// writeRows copies finished rows into the CSV writer.  On a write
// failure the channel is still consumed to the end so the hashing
// workers, which block sending into it, can all exit before the
// error is reported.
func (a *Auditor) writeRows(w *csv.Writer, rowCh <-chan types.InventoryRow) (int, error) {
	count := 0
	var writeErr error
	for row := range rowCh {
		if writeErr != nil {
			continue
		}
		rec := []string{
			row.Package,
			row.Version,
			row.Architecture,
			strconv.FormatInt(row.SizeBytes, 10),
			row.RelativePath,
			row.SHA256,
		}
		if err := w.Write(rec); err != nil {
			writeErr = err
			continue
		}
		count++
	}
	if writeErr != nil {
		return count, writeErr
	}
	w.Flush()
	return count, w.Error()
}

// rowFor computes a complete, internally consistent row for one
// archive.  Metadata reads fail soft to empty fields; only an
// unreadable file aborts the row.
func (a *Auditor) rowFor(root, path string) (types.InventoryRow, error) {
	st, err := os.Stat(path)
	if err != nil {
		return types.InventoryRow{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return types.InventoryRow{}, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return types.InventoryRow{}, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return types.InventoryRow{}, err
	}

	meta, err := a.meta.Metadata(path)
	if err != nil {
		a.l.Warn("Unreadable control data, emitting row with empty fields", "archive", path, "error", err)
		meta = deb.Meta{}
	}

	return types.InventoryRow{
		Package:      meta.Package,
		Version:      meta.Version,
		Architecture: meta.Architecture,
		SizeBytes:    st.Size(),
		RelativePath: rel,
		SHA256:       hex.EncodeToString(h.Sum(nil)),
	}, nil
}
