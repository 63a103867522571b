package executor

import (
	"fmt"
	"strings"

	"blockplan/internal/layout"
)

// FstabSuggestions renders advisory fstab lines for every mount and swap
// filesystem in the spec. They are printed in the report, never written
// to /etc/fstab by this tool.
func FstabSuggestions(spec *layout.LayoutSpec) []string {
	lines := make([]string, 0, len(spec.Mounts))
	for _, m := range spec.Mounts {
		fs := spec.FilesystemByID(m.Filesystem)
		if fs == nil {
			continue
		}
		opts := "defaults"
		if len(m.Options) > 0 {
			opts = strings.Join(m.Options, ",")
		}
		pass := 0
		if fs.Kind == layout.FSVfat {
			pass = 2
		}
		lines = append(lines, fmt.Sprintf("%s %s %s %s 0 %d", fsSource(spec, fs), m.Target, fs.Kind, opts, pass))
	}
	for i := range spec.Filesystems {
		fs := &spec.Filesystems[i]
		if fs.Kind == layout.FSSwap {
			lines = append(lines, fmt.Sprintf("%s none swap defaults 0 0", fsSource(spec, fs)))
		}
	}
	return lines
}

func fsSource(spec *layout.LayoutSpec, fs *layout.FilesystemSpec) string {
	if fs.UUID != "" {
		return "UUID=" + fs.UUID
	}
	if p := spec.PartitionByID(fs.Partitions[0]); p != nil {
		if d := spec.DiskByID(p.Disk); d != nil {
			return layout.PartitionDevice(d.Device, p.Index)
		}
	}
	return fs.ID
}
