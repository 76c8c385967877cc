package config

import (
	"encoding/json"
	"os"
)

// NewConfig returns a config object with default structures
// initialized.  The config can be loaded from other sources to
// override the defaults.
func NewConfig() *Config {
	return &Config{
		RepoRoot:     "offline-repo",
		CacheDir:     "/var/cache/apt/archives",
		FetchUpdates: false,
		Parallelism:  0,
		ScanCommand:  []string{"dpkg-scanpackages", "-m", "pool", "/dev/null"},
		SearchRoot:   "/media",
		StagingRoot:  "/srv/aptsnap/repo",
		AptDir:       "/etc/apt",
		Store:        "bitcask",
		Bind:         ":8080",
	}
}

// LoadFromFile does as the name suggests, and loads the config from a
// file
func (c *Config) LoadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	return dec.Decode(c)
}
