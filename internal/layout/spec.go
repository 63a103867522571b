// Package layout models the desired end-state of a set of disks:
// partitions, filesystems and mounts, declared once and validated before
// anything touches hardware.
package layout

import (
	"strconv"
	"strings"
)

type DiskRole string

const (
	RoleData DiskRole = "data"
	RoleBoot DiskRole = "boot"
)

// Disk is one physical block device. Immutable once declared.
type Disk struct {
	ID     string   `json:"id" yaml:"id"`
	Device string   `json:"device" yaml:"device"`
	Role   DiskRole `json:"role,omitempty" yaml:"role,omitempty"`
}

// Partition is one slice of a Disk. Offsets are parted-style strings
// ("1MiB", "513MiB", "100%"); Index is the 1-based on-disk ordinal.
type Partition struct {
	ID    string `json:"id" yaml:"id"`
	Disk  string `json:"disk" yaml:"disk"`
	Index int    `json:"index" yaml:"index"`
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
	// Type is the parted filesystem-type hint (fat32, btrfs, linux-swap).
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
	Boot bool   `json:"boot,omitempty" yaml:"boot,omitempty"`
}

type FSKind string

const (
	FSVfat  FSKind = "vfat"
	FSBtrfs FSKind = "btrfs"
	FSSwap  FSKind = "swap"
)

// UUIDAuto asks the planner to generate the target UUID.
const UUIDAuto = "auto"

type RaidSpec struct {
	Data string `json:"data,omitempty" yaml:"data,omitempty"`
	Meta string `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// FilesystemSpec formats one partition, or several when the kind supports
// multi-device profiles (btrfs RAID).
type FilesystemSpec struct {
	ID         string   `json:"id" yaml:"id"`
	Kind       FSKind   `json:"kind" yaml:"kind"`
	Partitions []string `json:"partitions" yaml:"partitions"`
	Label      string   `json:"label,omitempty" yaml:"label,omitempty"`
	UUID       string   `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	Raid       RaidSpec `json:"raid,omitempty" yaml:"raid,omitempty"`
	Options    []string `json:"options,omitempty" yaml:"options,omitempty"`
}

type MountSpec struct {
	ID         string   `json:"id" yaml:"id"`
	Filesystem string   `json:"filesystem" yaml:"filesystem"`
	Target     string   `json:"target" yaml:"target"`
	Options    []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// LayoutSpec is the immutable declarative input for one run.
type LayoutSpec struct {
	Disks       []Disk           `json:"disks" yaml:"disks"`
	Partitions  []Partition      `json:"partitions" yaml:"partitions"`
	Filesystems []FilesystemSpec `json:"filesystems" yaml:"filesystems"`
	Mounts      []MountSpec      `json:"mounts,omitempty" yaml:"mounts,omitempty"`
}

// DiskByID returns the declared disk or nil.
func (s *LayoutSpec) DiskByID(id string) *Disk {
	for i := range s.Disks {
		if s.Disks[i].ID == id {
			return &s.Disks[i]
		}
	}
	return nil
}

func (s *LayoutSpec) PartitionByID(id string) *Partition {
	for i := range s.Partitions {
		if s.Partitions[i].ID == id {
			return &s.Partitions[i]
		}
	}
	return nil
}

func (s *LayoutSpec) FilesystemByID(id string) *FilesystemSpec {
	for i := range s.Filesystems {
		if s.Filesystems[i].ID == id {
			return &s.Filesystems[i]
		}
	}
	return nil
}

// PartitionDevice maps a disk device plus ordinal to the kernel partition
// node: nvme and mmcblk devices take a "p" separator, everything else
// appends the ordinal directly.
func PartitionDevice(device string, index int) string {
	if strings.HasPrefix(device, "/dev/nvme") || strings.HasPrefix(device, "/dev/mmcblk") || strings.HasPrefix(device, "/dev/loop") {
		return device + "p" + strconv.Itoa(index)
	}
	return device + strconv.Itoa(index)
}
