package upgrade

import (
	"context"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/aptsnap/pkg/types"
)

// New returns a Driver with the logger configured.
func New(l hclog.Logger) *Driver {
	return &Driver{l: l.Named("upgrade")}
}

// SetDesktopMeta names a meta package to install best-effort after
// the upgrade.
func (d *Driver) SetDesktopMeta(pkg string) {
	d.desktopMeta = pkg
}

// Upgrade runs the full upgrade followed by an autoremove against
// the active source set.  The upgrade failing is fatal; autoremove
// failing costs nothing but disk space and downgrades to a warning.
func (d *Driver) Upgrade(ctx context.Context) error {
	if err := d.run(ctx, "apt-get", "-y", "dist-upgrade"); err != nil {
		d.l.Error("Upgrade failed", "error", err)
		return err
	}
	if err := d.run(ctx, "apt-get", "-y", "autoremove"); err != nil {
		d.l.Warn("Autoremove failed", "error", err)
	}
	return nil
}

// PostUpgrade performs the best-effort tail of the pipeline.  None
// of these can corrupt repository or source state, so each failure
// is logged and swallowed.
func (d *Driver) PostUpgrade(ctx context.Context) {
	if d.desktopMeta != "" {
		if err := d.run(ctx, "apt-get", "-y", "install", d.desktopMeta); err != nil {
			d.l.Warn("Desktop meta install failed", "package", d.desktopMeta, "error", err)
		}
	}
	if err := d.run(ctx, "update-initramfs", "-u"); err != nil {
		d.l.Warn("initramfs refresh failed", "error", err)
	}
	if err := d.run(ctx, "update-grub"); err != nil {
		d.l.Warn("Bootloader refresh failed", "error", err)
	}
}

func (d *Driver) run(ctx context.Context, argv ...string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	d.l.Debug("Command finished", "argv", strings.Join(argv, " "), "error", err)
	d.l.Trace("Command output", "output", strings.TrimSpace(string(out)))
	return err
}

// Diff computes the upgrade report from package snapshots taken
// before and after.  Packages are keyed on name and architecture so
// a version change counts as an upgrade, not a remove plus install.
func Diff(before, after []types.PackageRecord) Report {
	key := func(r types.PackageRecord) string {
		return r.Name + ":" + r.Architecture
	}

	bm := make(map[string]string, len(before))
	for _, r := range before {
		bm[key(r)] = r.Version
	}
	am := make(map[string]string, len(after))
	for _, r := range after {
		am[key(r)] = r.Version
	}

	rep := Report{}
	for k, v := range am {
		bv, ok := bm[k]
		switch {
		case !ok:
			rep.Installed++
		case bv != v:
			rep.Upgraded++
		}
	}
	for k := range bm {
		if _, ok := am[k]; !ok {
			rep.Removed++
		}
	}
	return rep
}
