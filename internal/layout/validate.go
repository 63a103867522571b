package layout

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidLayout = errors.New("invalid layout")
	// ErrUnsupportedOperation marks a request the target filesystem kind
	// cannot honor (manual UUID assignment on vfat, RAID on vfat/swap).
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrForbiddenRAID        = errors.New("raid5/raid6 are forbidden")
)

var allowedProfiles = map[string]bool{"single": true, "raid0": true, "raid1": true, "raid10": true}
var forbiddenProfiles = map[string]bool{"raid5": true, "raid6": true}

// uuidAssignable reports which kinds support setting an explicit UUID after
// format. vfat has no supported tool for it; asking is an error, not a
// silent no-op.
var uuidAssignable = map[FSKind]bool{FSBtrfs: true, FSSwap: true, FSVfat: false}

// WithDefaults returns a normalized copy: trimmed identifiers, RAID
// profiles defaulted (btrfs multi-device defaults to raid0 data / raid1
// metadata), partition type hints filled from the owning filesystem, and
// "auto" UUIDs resolved to generated ones.
func (s LayoutSpec) WithDefaults() LayoutSpec {
	out := s
	out.Disks = append([]Disk(nil), s.Disks...)
	out.Partitions = append([]Partition(nil), s.Partitions...)
	out.Filesystems = append([]FilesystemSpec(nil), s.Filesystems...)
	out.Mounts = append([]MountSpec(nil), s.Mounts...)

	for i := range out.Disks {
		out.Disks[i].ID = strings.TrimSpace(out.Disks[i].ID)
		out.Disks[i].Device = strings.TrimSpace(out.Disks[i].Device)
		if out.Disks[i].Role == "" {
			out.Disks[i].Role = RoleData
		}
	}
	for i := range out.Filesystems {
		fs := &out.Filesystems[i]
		fs.ID = strings.TrimSpace(fs.ID)
		if fs.Kind == FSBtrfs {
			if strings.TrimSpace(fs.Raid.Data) == "" {
				if len(fs.Partitions) >= 2 {
					fs.Raid.Data = "raid0"
				} else {
					fs.Raid.Data = "single"
				}
			}
			if strings.TrimSpace(fs.Raid.Meta) == "" {
				if len(fs.Partitions) >= 2 {
					fs.Raid.Meta = "raid1"
				} else {
					fs.Raid.Meta = "single"
				}
			}
		}
		if strings.EqualFold(strings.TrimSpace(fs.UUID), UUIDAuto) {
			fs.UUID = uuid.NewString()
		}
		if len(fs.Options) > 0 {
			seen := map[string]bool{}
			opts := make([]string, 0, len(fs.Options))
			for _, o := range fs.Options {
				o = strings.TrimSpace(o)
				if o == "" || seen[o] {
					continue
				}
				seen[o] = true
				opts = append(opts, o)
			}
			sort.Strings(opts)
			fs.Options = opts
		}
		for _, pid := range fs.Partitions {
			if p := partByID(out.Partitions, pid); p != nil && p.Type == "" {
				p.Type = partedTypeHint(fs.Kind)
			}
		}
	}
	return out
}

func partByID(parts []Partition, id string) *Partition {
	for i := range parts {
		if parts[i].ID == id {
			return &parts[i]
		}
	}
	return nil
}

func partedTypeHint(kind FSKind) string {
	switch kind {
	case FSVfat:
		return "fat32"
	case FSSwap:
		return "linux-swap"
	default:
		return string(kind)
	}
}

// Validate checks the whole spec and returns the first violation wrapped
// in ErrInvalidLayout (or ErrUnsupportedOperation for per-kind capability
// mismatches). Side-effect free.
func (s *LayoutSpec) Validate() error {
	if len(s.Disks) == 0 {
		return fmt.Errorf("%w: at least one disk required", ErrInvalidLayout)
	}
	diskIDs := map[string]bool{}
	devices := map[string]bool{}
	for _, d := range s.Disks {
		if d.ID == "" {
			return fmt.Errorf("%w: disk with empty id", ErrInvalidLayout)
		}
		if diskIDs[d.ID] {
			return fmt.Errorf("%w: duplicate disk id %q", ErrInvalidLayout, d.ID)
		}
		diskIDs[d.ID] = true
		if !strings.HasPrefix(d.Device, "/dev/") {
			return fmt.Errorf("%w: disk %q device %q is not a /dev path", ErrInvalidLayout, d.ID, d.Device)
		}
		if devices[d.Device] {
			return fmt.Errorf("%w: device %q declared twice", ErrInvalidLayout, d.Device)
		}
		devices[d.Device] = true
		if d.Role != RoleData && d.Role != RoleBoot {
			return fmt.Errorf("%w: disk %q has unknown role %q", ErrInvalidLayout, d.ID, d.Role)
		}
	}

	if err := s.validatePartitions(diskIDs); err != nil {
		return err
	}
	if err := s.validateFilesystems(); err != nil {
		return err
	}
	return s.validateMounts()
}

func (s *LayoutSpec) validatePartitions(diskIDs map[string]bool) error {
	partIDs := map[string]bool{}
	byDisk := map[string][]Partition{}
	for _, p := range s.Partitions {
		if p.ID == "" {
			return fmt.Errorf("%w: partition with empty id", ErrInvalidLayout)
		}
		if partIDs[p.ID] {
			return fmt.Errorf("%w: duplicate partition id %q", ErrInvalidLayout, p.ID)
		}
		partIDs[p.ID] = true
		if !diskIDs[p.Disk] {
			return fmt.Errorf("%w: partition %q references unknown disk %q", ErrInvalidLayout, p.ID, p.Disk)
		}
		if p.Index < 1 {
			return fmt.Errorf("%w: partition %q index must be >= 1", ErrInvalidLayout, p.ID)
		}
		byDisk[p.Disk] = append(byDisk[p.Disk], p)
	}

	for disk, parts := range byDisk {
		sort.Slice(parts, func(i, j int) bool { return parts[i].Index < parts[j].Index })
		var prevEnd int64 = -1
		prevIdx := 0
		for _, p := range parts {
			if p.Index == prevIdx {
				return fmt.Errorf("%w: disk %q has two partitions with index %d", ErrInvalidLayout, disk, p.Index)
			}
			prevIdx = p.Index
			start, err := parseOffset(p.Start, false)
			if err != nil {
				return fmt.Errorf("%w: partition %q start: %v", ErrInvalidLayout, p.ID, err)
			}
			end, err := parseOffset(p.End, true)
			if err != nil {
				return fmt.Errorf("%w: partition %q end: %v", ErrInvalidLayout, p.ID, err)
			}
			if end <= start {
				return fmt.Errorf("%w: partition %q ends at or before its start", ErrInvalidLayout, p.ID)
			}
			if start < prevEnd {
				return fmt.Errorf("%w: partition %q overlaps the previous partition on disk %q", ErrInvalidLayout, p.ID, disk)
			}
			prevEnd = end
		}
	}
	return nil
}

func (s *LayoutSpec) validateFilesystems() error {
	fsIDs := map[string]bool{}
	claimed := map[string]string{}
	for _, fs := range s.Filesystems {
		if fs.ID == "" {
			return fmt.Errorf("%w: filesystem with empty id", ErrInvalidLayout)
		}
		if fsIDs[fs.ID] {
			return fmt.Errorf("%w: duplicate filesystem id %q", ErrInvalidLayout, fs.ID)
		}
		fsIDs[fs.ID] = true
		switch fs.Kind {
		case FSVfat, FSBtrfs, FSSwap:
		default:
			return fmt.Errorf("%w: filesystem %q has unsupported kind %q", ErrInvalidLayout, fs.ID, fs.Kind)
		}
		if len(fs.Partitions) == 0 {
			return fmt.Errorf("%w: filesystem %q references no partitions", ErrInvalidLayout, fs.ID)
		}
		if fs.Kind != FSBtrfs && len(fs.Partitions) > 1 {
			return fmt.Errorf("%w: %s filesystem %q cannot span multiple partitions", ErrUnsupportedOperation, fs.Kind, fs.ID)
		}
		memberDisks := map[string]bool{}
		for _, pid := range fs.Partitions {
			p := s.PartitionByID(pid)
			if p == nil {
				return fmt.Errorf("%w: filesystem %q references unknown partition %q", ErrInvalidLayout, fs.ID, pid)
			}
			if owner, ok := claimed[pid]; ok {
				return fmt.Errorf("%w: partition %q claimed by both %q and %q", ErrInvalidLayout, pid, owner, fs.ID)
			}
			claimed[pid] = fs.ID
			memberDisks[p.Disk] = true
		}
		if fs.Kind == FSBtrfs {
			data := strings.ToLower(strings.TrimSpace(fs.Raid.Data))
			meta := strings.ToLower(strings.TrimSpace(fs.Raid.Meta))
			if forbiddenProfiles[data] || forbiddenProfiles[meta] {
				return fmt.Errorf("%w: filesystem %q", ErrForbiddenRAID, fs.ID)
			}
			if !allowedProfiles[data] || !allowedProfiles[meta] {
				return fmt.Errorf("%w: filesystem %q has unsupported raid profile %q/%q", ErrInvalidLayout, fs.ID, fs.Raid.Data, fs.Raid.Meta)
			}
			if len(fs.Partitions) >= 2 && len(memberDisks) < 2 {
				return fmt.Errorf("%w: raid filesystem %q needs partitions on at least two distinct disks", ErrInvalidLayout, fs.ID)
			}
			if data != "single" && len(fs.Partitions) < 2 {
				return fmt.Errorf("%w: raid filesystem %q needs at least two partitions", ErrInvalidLayout, fs.ID)
			}
		}
		if len(fs.Options) > 0 && fs.Kind != FSBtrfs {
			return fmt.Errorf("%w: %s filesystem %q does not take mkfs options", ErrUnsupportedOperation, fs.Kind, fs.ID)
		}
		if fs.UUID != "" {
			if !uuidAssignable[fs.Kind] {
				return fmt.Errorf("%w: %s filesystem %q does not support manual UUID assignment", ErrUnsupportedOperation, fs.Kind, fs.ID)
			}
			if _, err := uuid.Parse(fs.UUID); err != nil {
				return fmt.Errorf("%w: filesystem %q has invalid uuid %q", ErrInvalidLayout, fs.ID, fs.UUID)
			}
		}
	}
	return nil
}

func (s *LayoutSpec) validateMounts() error {
	targets := map[string]bool{}
	for _, m := range s.Mounts {
		if m.ID == "" {
			return fmt.Errorf("%w: mount with empty id", ErrInvalidLayout)
		}
		if s.FilesystemByID(m.Filesystem) == nil {
			return fmt.Errorf("%w: mount %q references unknown filesystem %q", ErrInvalidLayout, m.ID, m.Filesystem)
		}
		fs := s.FilesystemByID(m.Filesystem)
		if fs.Kind == FSSwap {
			return fmt.Errorf("%w: swap filesystem %q cannot be mounted", ErrUnsupportedOperation, fs.ID)
		}
		if !filepath.IsAbs(m.Target) {
			return fmt.Errorf("%w: mount %q target %q is not absolute", ErrInvalidLayout, m.ID, m.Target)
		}
		clean := filepath.Clean(m.Target)
		if targets[clean] {
			return fmt.Errorf("%w: mount target %q declared twice", ErrInvalidLayout, clean)
		}
		targets[clean] = true
	}
	return nil
}
