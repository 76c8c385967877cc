package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/the-maldridge/aptsnap/pkg/deb"
	"github.com/the-maldridge/aptsnap/pkg/pool"
	"github.com/the-maldridge/aptsnap/pkg/types"
)

// filenameMeta derives archive identity from the canonical filename,
// standing in for dpkg-deb against fixture files.
type filenameMeta struct{}

func (filenameMeta) Metadata(path string) (deb.Meta, error) {
	base := strings.TrimSuffix(filepath.Base(path), ".deb")
	parts := strings.SplitN(base, "_", 3)
	if len(parts) != 3 {
		return deb.Meta{}, errors.New("malformed fixture name")
	}
	return deb.Meta{Package: parts[0], Version: parts[1], Architecture: parts[2]}, nil
}

// fakeRepacker writes canonical archives for known packages and
// fails for everything in fail, recording every invocation.
type fakeRepacker struct {
	mu    sync.Mutex
	calls []types.PackageRecord
	fail  map[string]string
}

func (f *fakeRepacker) Repack(ctx context.Context, r types.PackageRecord, destDir string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, r)
	f.mu.Unlock()

	if reason, ok := f.fail[r.Name]; ok {
		return "", errors.New(reason)
	}
	path := filepath.Join(destDir, r.String()+".deb")
	if err := os.WriteFile(path, []byte("repacked "+r.String()), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeRepacker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func rec(name string) types.PackageRecord {
	return types.PackageRecord{Name: name, Version: "1.0", Architecture: "amd64"}
}

func newTestEngine(t *testing.T, r deb.Repacker) (*Engine, *pool.Pool) {
	t.Helper()
	p, err := pool.New(hclog.NewNullLogger(), filepath.Join(t.TempDir(), "pool"), filenameMeta{})
	require.NoError(t, err)
	e := New(hclog.NewNullLogger(), p, r)
	e.SetParallelism(4)
	return e, p
}

func TestReconcileMissingOnly(t *testing.T) {
	// Host has A (already cached) and B (not cached); only B gets
	// repacked and afterwards both archives exist.
	r := &fakeRepacker{}
	e, p := newTestEngine(t, r)

	require.NoError(t, os.WriteFile(filepath.Join(p.Dir(), "pkga_1.0_amd64.deb"), []byte("cached"), 0644))

	summary, err := e.Reconcile(context.Background(), []types.PackageRecord{rec("pkga"), rec("pkgb")})
	require.NoError(t, err)

	require.Equal(t, 1, summary.Present)
	require.Equal(t, 1, summary.Built)
	require.Empty(t, summary.Skipped)
	require.Equal(t, 2, summary.PoolCount)
	require.Equal(t, []types.PackageRecord{rec("pkgb")}, r.calls)

	_, err = os.Stat(filepath.Join(p.Dir(), "pkgb_1.0_amd64.deb"))
	require.NoError(t, err)
}

func TestReconcileIdempotent(t *testing.T) {
	r := &fakeRepacker{}
	e, _ := newTestEngine(t, r)
	records := []types.PackageRecord{rec("one"), rec("two"), rec("three")}

	first, err := e.Reconcile(context.Background(), records)
	require.NoError(t, err)
	require.Equal(t, 3, first.Built)

	second, err := e.Reconcile(context.Background(), records)
	require.NoError(t, err)
	require.Equal(t, 0, second.Built)
	require.Equal(t, 3, second.Present)
	require.Equal(t, first.PoolCount, second.PoolCount)
	require.Equal(t, 3, r.callCount())
}

func TestReconcilePartialFailure(t *testing.T) {
	// A virtual package failing to repack must not abort the
	// batch or suppress work on its siblings.
	r := &fakeRepacker{fail: map[string]string{"virtual-pkg": "package is virtual"}}
	e, _ := newTestEngine(t, r)

	records := []types.PackageRecord{rec("real-a"), rec("virtual-pkg"), rec("real-b")}
	summary, err := e.Reconcile(context.Background(), records)
	require.NoError(t, err)

	require.Equal(t, 2, summary.Built)
	require.Len(t, summary.Skipped, 1)
	require.Equal(t, "virtual-pkg", summary.Skipped[0].Record.Name)
	require.Equal(t, "package is virtual", summary.Skipped[0].Reason)
}

func TestReconcileMultiarch(t *testing.T) {
	// Two instances of one name on a multiarch host each reach the
	// repack collaborator with their architecture intact, and both
	// archives land in the pool.
	r := &fakeRepacker{}
	e, p := newTestEngine(t, r)

	records := []types.PackageRecord{
		{Name: "libc6", Version: "2.31-13", Architecture: "amd64"},
		{Name: "libc6", Version: "2.31-13", Architecture: "i386"},
	}
	summary, err := e.Reconcile(context.Background(), records)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Built)

	archs := make(map[string]bool)
	for _, c := range r.calls {
		require.Equal(t, "libc6", c.Name)
		archs[c.Architecture] = true
	}
	require.True(t, archs["amd64"])
	require.True(t, archs["i386"])

	_, err = os.Stat(filepath.Join(p.Dir(), "libc6_2.31-13_amd64.deb"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(p.Dir(), "libc6_2.31-13_i386.deb"))
	require.NoError(t, err)
}

func TestReconcileCompleteness(t *testing.T) {
	// Every record lands in exactly one bucket.
	r := &fakeRepacker{fail: map[string]string{"bad1": "x", "bad2": "y"}}
	e, p := newTestEngine(t, r)
	require.NoError(t, os.WriteFile(filepath.Join(p.Dir(), "have_1.0_amd64.deb"), []byte("x"), 0644))

	records := []types.PackageRecord{rec("have"), rec("bad1"), rec("bad2"), rec("new1"), rec("new2")}
	summary, err := e.Reconcile(context.Background(), records)
	require.NoError(t, err)

	require.Equal(t, len(records), summary.Present+summary.Built+len(summary.Skipped))
}

// mapMeta serves fixed metadata keyed on base filename.
type mapMeta map[string]deb.Meta

func (m mapMeta) Metadata(path string) (deb.Meta, error) {
	meta, ok := m[filepath.Base(path)]
	if !ok {
		return deb.Meta{}, errors.New("unreadable archive")
	}
	return meta, nil
}

func TestReconcileVerifiedTier(t *testing.T) {
	// An archive under an unconventional name still counts as
	// present once its embedded identity checks out, so nothing
	// is repacked and no duplicate is added.
	meta := mapMeta{
		"odd_custom.deb": {Package: "odd", Version: "1.0", Architecture: "amd64"},
	}
	p, err := pool.New(hclog.NewNullLogger(), filepath.Join(t.TempDir(), "pool"), meta)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(p.Dir(), "odd_custom.deb"), []byte("x"), 0644))

	r := &fakeRepacker{}
	e := New(hclog.NewNullLogger(), p, r)
	e.SetParallelism(2)

	summary, err := e.Reconcile(context.Background(), []types.PackageRecord{rec("odd")})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Present)
	require.Equal(t, 0, r.callCount())
	require.Equal(t, 1, summary.PoolCount)
}
