package hostdb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/the-maldridge/aptsnap/pkg/types"
)

func TestParseRecords(t *testing.T) {
	out := "zsh\t5.8-6\tamd64\n" +
		"bash\t5.1-2\tamd64\n" +
		"bash\t5.1-2\tamd64\n" + // duplicate
		"old-config-pkg\t\tamd64\n" + // removed, config files only
		"\n" +
		"garbage line without tabs\n" +
		"tzdata\t2021a-1\tall\n"

	recs := parseRecords([]byte(out))

	require.Equal(t, []types.PackageRecord{
		{Name: "bash", Version: "5.1-2", Architecture: "amd64"},
		{Name: "tzdata", Version: "2021a-1", Architecture: "all"},
		{Name: "zsh", Version: "5.8-6", Architecture: "amd64"},
	}, recs)
}

func TestParseRecordsMultiArch(t *testing.T) {
	// The same name at the same version on two architectures is
	// two distinct records.
	out := "libgcc-s1\t10.2.1-6\tamd64\nlibgcc-s1\t10.2.1-6\ti386\n"
	recs := parseRecords([]byte(out))
	require.Len(t, recs, 2)
}

func TestParseRecordsEmpty(t *testing.T) {
	require.Empty(t, parseRecords(nil))
}
