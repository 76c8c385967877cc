package hostdb

import (
	"github.com/hashicorp/go-hclog"
)

// DB interrogates the host package database via dpkg-query.  The
// snapshot it returns is taken once per run and never refreshed
// mid-pipeline.
type DB struct {
	l hclog.Logger
}
