package upgrade

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/the-maldridge/aptsnap/pkg/types"
)

func TestDiff(t *testing.T) {
	before := []types.PackageRecord{
		{Name: "bash", Version: "5.1-2", Architecture: "amd64"},
		{Name: "old-tool", Version: "1.0", Architecture: "amd64"},
		{Name: "tzdata", Version: "2021a-1", Architecture: "all"},
	}
	after := []types.PackageRecord{
		{Name: "bash", Version: "5.1-6", Architecture: "amd64"},
		{Name: "tzdata", Version: "2021a-1", Architecture: "all"},
		{Name: "new-tool", Version: "2.0", Architecture: "amd64"},
	}

	rep := Diff(before, after)
	require.Equal(t, Report{Upgraded: 1, Installed: 1, Removed: 1}, rep)
}

func TestDiffMultiArch(t *testing.T) {
	// The same package on a second architecture is an install,
	// not an upgrade.
	before := []types.PackageRecord{
		{Name: "libgcc-s1", Version: "10.2.1-6", Architecture: "amd64"},
	}
	after := []types.PackageRecord{
		{Name: "libgcc-s1", Version: "10.2.1-6", Architecture: "amd64"},
		{Name: "libgcc-s1", Version: "10.2.1-6", Architecture: "i386"},
	}

	rep := Diff(before, after)
	require.Equal(t, Report{Installed: 1}, rep)
}

func TestDiffEmpty(t *testing.T) {
	require.Equal(t, Report{}, Diff(nil, nil))
}
