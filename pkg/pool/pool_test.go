package pool

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/the-maldridge/aptsnap/pkg/deb"
	"github.com/the-maldridge/aptsnap/pkg/types"
)

// fakeMeta serves archive identity keyed on base filename, standing
// in for dpkg-deb.
type fakeMeta struct {
	metas map[string]deb.Meta
}

func (f *fakeMeta) Metadata(path string) (deb.Meta, error) {
	m, ok := f.metas[filepath.Base(path)]
	if !ok {
		return deb.Meta{}, os.ErrNotExist
	}
	return m, nil
}

func newTestPool(t *testing.T, metas map[string]deb.Meta) *Pool {
	t.Helper()
	p, err := New(hclog.NewNullLogger(), filepath.Join(t.TempDir(), "pool"), &fakeMeta{metas: metas})
	require.NoError(t, err)
	return p
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestAddNonClobbering(t *testing.T) {
	p := newTestPool(t, nil)
	src := writeFile(t, filepath.Join(t.TempDir(), "a_1.0_amd64.deb"), "original")

	require.NoError(t, p.Add(src))

	// A second add of the same name must succeed and must leave
	// the first copy untouched.
	src2 := writeFile(t, filepath.Join(t.TempDir(), "a_1.0_amd64.deb"), "imposter")
	require.NoError(t, p.Add(src2))

	got, err := os.ReadFile(filepath.Join(p.Dir(), "a_1.0_amd64.deb"))
	require.NoError(t, err)
	require.Equal(t, "original", string(got))
}

func TestAddConcurrent(t *testing.T) {
	p := newTestPool(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			src := writeFile(t, filepath.Join(t.TempDir(), "b_2.0_amd64.deb"), "same content")
			if err := p.Add(src); err != nil {
				t.Errorf("Add: %v", err)
			}
		}(i)
	}
	wg.Wait()

	files, err := p.Files()
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestAddRacingDistinctContent(t *testing.T) {
	p := newTestPool(t, nil)

	// Racing adds of differing bytes under one name: exactly one
	// copy survives, whole, and stays put.
	var wg sync.WaitGroup
	contents := make([]string, 8)
	for i := 0; i < 8; i++ {
		contents[i] = strings.Repeat("deadbeef", i+1)
		wg.Add(1)
		go func(body string) {
			defer wg.Done()
			src := writeFile(t, filepath.Join(t.TempDir(), "c_3.0_amd64.deb"), body)
			if err := p.Add(src); err != nil {
				t.Errorf("Add: %v", err)
			}
		}(contents[i])
	}
	wg.Wait()

	files, err := p.Files()
	require.NoError(t, err)
	require.Len(t, files, 1)

	got, err := os.ReadFile(files[0])
	require.NoError(t, err)
	require.Contains(t, contents, string(got))

	// A later add never disturbs the winner.
	src := writeFile(t, filepath.Join(t.TempDir(), "c_3.0_amd64.deb"), "latecomer")
	require.NoError(t, p.Add(src))
	after, err := os.ReadFile(files[0])
	require.NoError(t, err)
	require.Equal(t, string(got), string(after))
}

func TestHasExact(t *testing.T) {
	p := newTestPool(t, nil)
	writeFile(t, filepath.Join(p.Dir(), "bash_5.1-2_amd64.deb"), "x")
	writeFile(t, filepath.Join(p.Dir(), "vim_2%3a8.2-1_amd64.deb"), "x")

	require.True(t, p.HasExact(types.PackageRecord{Name: "bash", Version: "5.1-2", Architecture: "amd64"}))
	require.False(t, p.HasExact(types.PackageRecord{Name: "bash", Version: "5.1-3", Architecture: "amd64"}))

	// Epoch colons are escaped in dpkg filenames; the probe must
	// still find them.
	require.True(t, p.HasExact(types.PackageRecord{Name: "vim", Version: "2:8.2-1", Architecture: "amd64"}))
}

func TestHasVerified(t *testing.T) {
	metas := map[string]deb.Meta{
		"libc6_2.31-13+deb11u5_amd64.deb": {Package: "libc6", Version: "2.31-13+deb11u5", Architecture: "amd64"},
		"libc6_2.31-13_amd64.deb":         {Package: "libc6", Version: "2.31-13", Architecture: "amd64"},
	}
	p := newTestPool(t, metas)
	writeFile(t, filepath.Join(p.Dir(), "libc6_2.31-13+deb11u5_amd64.deb"), "x")
	writeFile(t, filepath.Join(p.Dir(), "libc6_2.31-13_amd64.deb"), "x")

	// The embedded identity decides, not the filename prefix: the
	// shorter version is a substring of the longer one and must
	// not match it.
	require.True(t, p.HasVerified(types.PackageRecord{Name: "libc6", Version: "2.31-13", Architecture: "amd64"}))
	require.True(t, p.HasVerified(types.PackageRecord{Name: "libc6", Version: "2.31-13+deb11u5", Architecture: "amd64"}))
	require.False(t, p.HasVerified(types.PackageRecord{Name: "libc6", Version: "2.31-14", Architecture: "amd64"}))
	require.False(t, p.HasVerified(types.PackageRecord{Name: "libc6", Version: "2.31-13", Architecture: "i386"}))
}

func TestHasVerifiedUnreadable(t *testing.T) {
	// Files the metadata reader cannot open are skipped, not
	// treated as matches.
	p := newTestPool(t, map[string]deb.Meta{})
	writeFile(t, filepath.Join(p.Dir(), "zsh_5.8-6_amd64.deb"), "x")

	require.False(t, p.HasVerified(types.PackageRecord{Name: "zsh", Version: "5.8-6", Architecture: "amd64"}))
}

func TestFilesNested(t *testing.T) {
	p := newTestPool(t, nil)
	writeFile(t, filepath.Join(p.Dir(), "a_1_all.deb"), "x")
	writeFile(t, filepath.Join(p.Dir(), "main", "b_1_all.deb"), "x")
	writeFile(t, filepath.Join(p.Dir(), "notes.txt"), "x")

	files, err := p.Files()
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, "a_1_all.deb", filepath.Base(files[0]))
	require.Equal(t, "b_1_all.deb", filepath.Base(files[1]))
}
