package executor

import (
	"strings"
	"testing"

	"blockplan/internal/layout"
)

func TestFstabSuggestions(t *testing.T) {
	spec := layout.LayoutSpec{
		Disks: []layout.Disk{
			{ID: "boot", Device: "/dev/sda"},
			{ID: "d1", Device: "/dev/nvme0n1"},
		},
		Partitions: []layout.Partition{
			{ID: "esp", Disk: "boot", Index: 1, Start: "1MiB", End: "513MiB"},
			{ID: "sw", Disk: "boot", Index: 2, Start: "513MiB", End: "4GiB"},
			{ID: "p1", Disk: "d1", Index: 1, Start: "1MiB", End: "100%"},
		},
		Filesystems: []layout.FilesystemSpec{
			{ID: "espfs", Kind: layout.FSVfat, Partitions: []string{"esp"}},
			{ID: "swap0", Kind: layout.FSSwap, Partitions: []string{"sw"}, UUID: "7b41ffeb-a3f0-4f6a-a1f3-1f7c06e1ba10"},
			{ID: "data", Kind: layout.FSBtrfs, Partitions: []string{"p1"}},
		},
		Mounts: []layout.MountSpec{
			{ID: "m1", Filesystem: "data", Target: "/mnt/data", Options: []string{"compress=zstd:3", "noatime"}},
			{ID: "m2", Filesystem: "espfs", Target: "/boot/efi"},
		},
	}
	out := spec.WithDefaults()
	lines := FstabSuggestions(&out)
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %v", len(lines), lines)
	}
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "/dev/nvme0n1p1 /mnt/data btrfs compress=zstd:3,noatime 0 0") {
		t.Fatalf("btrfs line missing: %s", joined)
	}
	if !strings.Contains(joined, "/dev/sda1 /boot/efi vfat defaults 0 2") {
		t.Fatalf("vfat line missing: %s", joined)
	}
	if !strings.Contains(joined, "UUID=7b41ffeb-a3f0-4f6a-a1f3-1f7c06e1ba10 none swap defaults 0 0") {
		t.Fatalf("swap line missing: %s", joined)
	}
}
