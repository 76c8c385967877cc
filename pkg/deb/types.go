package deb

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/aptsnap/pkg/types"
)

// Meta holds the identity fields embedded in an archive's control
// data.  Fields that could not be read are left empty rather than
// failing the whole archive.
type Meta struct {
	Package      string
	Version      string
	Architecture string
}

// A MetaReader can recover the embedded identity of an archive file.
type MetaReader interface {
	Metadata(path string) (Meta, error)
}

// A Repacker turns one installed package back into an archive file
// written under destDir, returning the path of the new archive.  The
// whole record is passed so multiarch hosts repack the right
// instance of a name installed for several architectures.  Failure
// is expected for virtual and meta packages and must be treated as a
// skip by callers, never as a batch abort.
type Repacker interface {
	Repack(ctx context.Context, rec types.PackageRecord, destDir string) (string, error)
}

// Tool shells out to dpkg-deb to interrogate archives on disk.
type Tool struct {
	l hclog.Logger
}

// DpkgRepacker drives dpkg-repack as the production repack
// collaborator.
type DpkgRepacker struct {
	l hclog.Logger
}
