package disks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gopsdisk "github.com/shirou/gopsutil/v3/disk"

	"blockplan/internal/layout"
)

var (
	ErrDeviceMissing = errors.New("declared device not present")
	ErrDeviceBusy    = errors.New("device appears to be mounted/in use")
)

// Seams for tests.
var (
	collectDevices = Collect
	listMounts     = func(ctx context.Context) ([]string, error) {
		parts, err := gopsdisk.PartitionsWithContext(ctx, true)
		if err != nil {
			return nil, err
		}
		devs := make([]string, 0, len(parts))
		for _, p := range parts {
			devs = append(devs, p.Device)
		}
		return devs, nil
	}
)

// Preflight verifies that every declared disk exists as a whole-disk block
// device and that neither it nor any of its partitions is currently
// mounted. It runs before planning so no destructive step can target a
// live filesystem.
func Preflight(ctx context.Context, spec *layout.LayoutSpec) error {
	present, err := collectDevices(ctx)
	if err != nil {
		return fmt.Errorf("device discovery: %w", err)
	}
	wholeDisks := map[string]bool{}
	for _, d := range present {
		if d.Type == "disk" {
			wholeDisks[d.Path] = true
		}
	}
	for _, d := range spec.Disks {
		if !wholeDisks[d.Device] {
			return fmt.Errorf("%w: %s (disk %q)", ErrDeviceMissing, d.Device, d.ID)
		}
	}

	mounted, err := listMounts(ctx)
	if err != nil {
		return fmt.Errorf("mount table: %w", err)
	}
	for _, d := range spec.Disks {
		for _, m := range mounted {
			if belongsTo(m, d.Device) {
				return fmt.Errorf("%w: %s is mounted as %s", ErrDeviceBusy, d.Device, m)
			}
		}
	}
	return nil
}

// belongsTo reports whether mount device m is disk dev itself or one of
// its partition nodes (sda1, nvme0n1p2), without matching sibling disks
// that share a name prefix (sda vs sdaa).
func belongsTo(m, dev string) bool {
	if m == dev {
		return true
	}
	if !strings.HasPrefix(m, dev) {
		return false
	}
	rest := strings.TrimPrefix(m, dev)
	rest = strings.TrimPrefix(rest, "p")
	if rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
