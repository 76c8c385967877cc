package index

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	kgzip "github.com/klauspost/compress/gzip"
)

var (
	// ErrNoPool is returned when a repo root lacks a pool
	// directory.
	ErrNoPool = errors.New("repository has no pool directory")

	// ErrNoIndex is returned when a repo root lacks a non-empty
	// Packages or Packages.gz.
	ErrNoIndex = errors.New("repository has no usable index")
)

// New returns a Generator for the given repo root with the default
// scanner command configured.
func New(l hclog.Logger, root string) *Generator {
	return &Generator{
		l:       l.Named("index"),
		root:    root,
		scanCmd: []string{"dpkg-scanpackages", "-m", "pool", "/dev/null"},
	}
}

// SetScanCommand overrides the scanner argv.
func (g *Generator) SetScanCommand(argv []string) {
	if len(argv) == 0 {
		return
	}
	g.scanCmd = argv
}

// Generate runs the scanner from the repo root, writes its stdout as
// the plain-text index, then the compressed form, then a minimal
// unsigned Release.
func (g *Generator) Generate(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, g.scanCmd[0], g.scanCmd[1:]...)
	cmd.Dir = g.root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		g.l.Error("Index scanner failed", "error", err, "stderr", strings.TrimSpace(stderr.String()))
		return err
	}

	if err := os.WriteFile(filepath.Join(g.root, "Packages"), stdout.Bytes(), 0644); err != nil {
		return err
	}
	if err := g.writeGzip(stdout.Bytes()); err != nil {
		return err
	}
	if err := g.writeRelease(); err != nil {
		return err
	}

	g.l.Info("Index generated", "bytes", stdout.Len())
	return nil
}

func (g *Generator) writeGzip(index []byte) error {
	f, err := os.Create(filepath.Join(g.root, "Packages.gz"))
	if err != nil {
		return err
	}
	zw := kgzip.NewWriter(f)
	if _, err := zw.Write(index); err != nil {
		zw.Close()
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (g *Generator) writeRelease() error {
	rel := "Origin: aptsnap\n" +
		"Label: aptsnap offline snapshot\n" +
		"Date: " + time.Now().UTC().Format(time.RFC1123) + "\n"
	return os.WriteFile(filepath.Join(g.root, "Release"), []byte(rel), 0644)
}

// Verify checks the pool+index invariant every consumer of a repo
// root relies on: a pool directory plus a non-empty index in either
// accepted form.
func Verify(root string) error {
	st, err := os.Stat(filepath.Join(root, "pool"))
	if err != nil || !st.IsDir() {
		return ErrNoPool
	}
	for _, n := range []string{"Packages", "Packages.gz"} {
		if st, err := os.Stat(filepath.Join(root, n)); err == nil && st.Size() > 0 {
			return nil
		}
	}
	return ErrNoIndex
}
