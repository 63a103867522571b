package plan

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"blockplan/internal/layout"
)

// ErrPlanning marks a dependency graph defect: a cycle or a reference to
// an undeclared entity. Unreachable when Validate passed, but checked
// anyway — planning bugs must never reach the executor.
var ErrPlanning = errors.New("planning error")

// Build expands the spec into a dependency-ordered plan. sizes maps disk
// IDs to their capacity in bytes (from discovery); known sizes let the
// wipe step zero the device tail as well as the head. A nil map is fine.
func Build(spec *layout.LayoutSpec, sizes map[string]int64) (*Plan, error) {
	steps := make([]Step, 0, 2*len(spec.Disks)+3*len(spec.Filesystems)+len(spec.Mounts))
	add := func(s Step) {
		s.seq = len(steps)
		steps = append(steps, s)
	}

	partsByDisk := map[string][]layout.Partition{}
	for _, p := range spec.Partitions {
		partsByDisk[p.Disk] = append(partsByDisk[p.Disk], p)
	}

	// Wipe and Partition, one chain per disk in declaration order.
	for _, d := range spec.Disks {
		add(Step{
			ID:          "wipe:" + d.ID,
			Kind:        KindWipe,
			Description: fmt.Sprintf("wipe signatures and superblocks on %s", d.Device),
			Commands:    wipeCommands(d.Device, sizes[d.ID]),
			Destructive: true,
			Disks:       []string{d.ID},
		})
		parts := partsByDisk[d.ID]
		if len(parts) == 0 {
			continue
		}
		sort.Slice(parts, func(i, j int) bool { return parts[i].Index < parts[j].Index })
		add(Step{
			ID:          "partition:" + d.ID,
			Kind:        KindPartition,
			Description: fmt.Sprintf("partition %s (gpt, %d partitions)", d.Device, len(parts)),
			Commands:    partitionCommands(d, parts),
			Destructive: true,
			Disks:       []string{d.ID},
			DependsOn:   []string{"wipe:" + d.ID},
		})
	}

	// Format, then Label and AssignUUID, per filesystem.
	for _, fs := range spec.Filesystems {
		memberDisks, devices, err := fsMembers(spec, fs)
		if err != nil {
			return nil, err
		}
		deps := make([]string, 0, len(memberDisks))
		for _, d := range memberDisks {
			deps = append(deps, "partition:"+d)
		}
		add(Step{
			ID:          "format:" + fs.ID,
			Kind:        KindFormat,
			Description: fmt.Sprintf("format %s as %s", strings.Join(devices, "+"), fs.Kind),
			Commands:    formatCommands(fs, devices),
			Destructive: true,
			Disks:       memberDisks,
			DependsOn:   deps,
		})
		if fs.Label != "" {
			add(Step{
				ID:          "label:" + fs.ID,
				Kind:        KindLabel,
				Description: fmt.Sprintf("label %s as %q", fs.ID, fs.Label),
				Commands:    labelCommands(fs, devices[0]),
				Disks:       memberDisks,
				DependsOn:   []string{"format:" + fs.ID},
			})
		}
		if fs.UUID != "" {
			add(Step{
				ID:          "uuid:" + fs.ID,
				Kind:        KindUUID,
				Description: fmt.Sprintf("assign uuid %s to %s", fs.UUID, fs.ID),
				Commands:    uuidCommands(fs, devices[0]),
				Disks:       memberDisks,
				DependsOn:   []string{"format:" + fs.ID},
			})
		}
	}

	// Mounts last; a mount depends on its filesystem being fully set up
	// and on any mount whose target is an ancestor directory.
	for _, m := range spec.Mounts {
		fs := spec.FilesystemByID(m.Filesystem)
		if fs == nil {
			return nil, fmt.Errorf("%w: missing-dependency: mount %q references filesystem %q", ErrPlanning, m.ID, m.Filesystem)
		}
		memberDisks, devices, err := fsMembers(spec, *fs)
		if err != nil {
			return nil, err
		}
		deps := []string{"format:" + fs.ID}
		if fs.Label != "" {
			deps = append(deps, "label:"+fs.ID)
		}
		if fs.UUID != "" {
			deps = append(deps, "uuid:"+fs.ID)
		}
		for _, other := range spec.Mounts {
			if other.ID != m.ID && isAncestorPath(other.Target, m.Target) {
				deps = append(deps, "mount:"+other.ID)
			}
		}
		add(Step{
			ID:          "mount:" + m.ID,
			Kind:        KindMount,
			Description: fmt.Sprintf("mount %s at %s", fs.ID, m.Target),
			Commands:    mountCommands(m, devices[0]),
			Disks:       memberDisks,
			DependsOn:   deps,
		})
	}

	ordered, err := topoSort(spec, steps)
	if err != nil {
		return nil, err
	}
	return &Plan{RunID: uuid.NewString(), Steps: ordered}, nil
}

// fsMembers resolves a filesystem's member disk IDs (in disk declaration
// order, deduplicated) and partition device nodes (in partition list
// order).
func fsMembers(spec *layout.LayoutSpec, fs layout.FilesystemSpec) ([]string, []string, error) {
	diskSet := map[string]bool{}
	devices := make([]string, 0, len(fs.Partitions))
	for _, pid := range fs.Partitions {
		p := spec.PartitionByID(pid)
		if p == nil {
			return nil, nil, fmt.Errorf("%w: missing-dependency: filesystem %q references partition %q", ErrPlanning, fs.ID, pid)
		}
		d := spec.DiskByID(p.Disk)
		if d == nil {
			return nil, nil, fmt.Errorf("%w: missing-dependency: partition %q references disk %q", ErrPlanning, pid, p.Disk)
		}
		diskSet[d.ID] = true
		devices = append(devices, layout.PartitionDevice(d.Device, p.Index))
	}
	disks := make([]string, 0, len(diskSet))
	for _, d := range spec.Disks {
		if diskSet[d.ID] {
			disks = append(disks, d.ID)
		}
	}
	return disks, devices, nil
}

func isAncestorPath(parent, child string) bool {
	p := filepath.Clean(parent)
	c := filepath.Clean(child)
	return p != c && strings.HasPrefix(c, p+string(filepath.Separator))
}
