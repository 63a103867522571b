// Package plan expands a validated layout into an ordered list of steps,
// each mapping to one external command or a small fixed sequence.
package plan

import (
	"strconv"
	"strings"

	"blockplan/internal/layout"
)

type Kind string

const (
	KindWipe      Kind = "wipe"
	KindPartition Kind = "partition"
	KindFormat    Kind = "format"
	KindLabel     Kind = "label"
	KindUUID      Kind = "uuid"
	KindMount     Kind = "mount"
)

// kindPriority orders step kinds when several steps are runnable at once.
var kindPriority = map[Kind]int{
	KindWipe:      0,
	KindPartition: 1,
	KindFormat:    2,
	KindLabel:     3,
	KindUUID:      4,
	KindMount:     5,
}

// Command is one external invocation: argv only, never a shell string.
type Command struct {
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
	// BestEffort commands may fail without failing the step; used for
	// superblock clears of stacks that may not be present on the device.
	BestEffort bool `json:"bestEffort,omitempty"`
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Step is one unit of work. Created once by the planner, consumed once by
// the executor, discarded after the run.
type Step struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Description string    `json:"description"`
	Commands    []Command `json:"commands"`
	Destructive bool      `json:"destructive"`
	// Disks is the set of disk IDs this step touches; failures are
	// contained to chains sharing a disk with the failed step.
	Disks     []string `json:"disks"`
	DependsOn []string `json:"dependsOn,omitempty"`

	seq int // declaration order, tie-break of last resort
}

// SharesDisk reports whether two steps touch a common disk.
func (s *Step) SharesDisk(other *Step) bool {
	for _, a := range s.Disks {
		for _, b := range other.Disks {
			if a == b {
				return true
			}
		}
	}
	return false
}

// Plan is the topologically ordered output of Build.
type Plan struct {
	RunID string `json:"runId"`
	Steps []Step `json:"steps"`
}

func (p *Plan) StepByID(id string) *Step {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}

// DiskCount returns how many distinct disks the plan touches.
func (p *Plan) DiskCount() int {
	seen := map[string]bool{}
	for i := range p.Steps {
		for _, d := range p.Steps[i].Disks {
			seen[d] = true
		}
	}
	return len(seen)
}

const wipeChunkMiB = 16

// wipeCommands zeroes the device head (and tail when the size is known)
// and clears every superblock kind the original layout might have left
// behind: generic signatures, md RAID, LVM and ZFS labels.
func wipeCommands(device string, sizeBytes int64) []Command {
	cmds := []Command{
		{Name: "wipefs", Args: []string{"-af", device}},
		{Name: "dd", Args: []string{"if=/dev/zero", "of=" + device, "bs=1M", "count=16", "conv=fsync"}},
	}
	if blocks := sizeBytes / (1 << 20); blocks > 2*wipeChunkMiB {
		cmds = append(cmds, Command{
			Name: "dd",
			Args: []string{"if=/dev/zero", "of=" + device, "bs=1M", "count=16", "seek=" + strconv.FormatInt(blocks-wipeChunkMiB, 10), "conv=fsync"},
		})
	}
	cmds = append(cmds,
		Command{Name: "mdadm", Args: []string{"--zero-superblock", "--force", device}, BestEffort: true},
		Command{Name: "pvremove", Args: []string{"-ff", "-y", device}, BestEffort: true},
		Command{Name: "zpool", Args: []string{"labelclear", "-f", device}, BestEffort: true},
	)
	return cmds
}

func partitionCommands(disk layout.Disk, parts []layout.Partition) []Command {
	cmds := []Command{{Name: "parted", Args: []string{"-s", disk.Device, "mklabel", "gpt"}}}
	for _, p := range parts {
		args := []string{"-s", disk.Device, "mkpart", p.ID}
		if p.Type != "" {
			args = append(args, p.Type)
		}
		args = append(args, p.Start, p.End)
		cmds = append(cmds, Command{Name: "parted", Args: args})
	}
	for _, p := range parts {
		if p.Boot {
			cmds = append(cmds, Command{Name: "parted", Args: []string{"-s", disk.Device, "set", strconv.Itoa(p.Index), "esp", "on"}})
		}
	}
	// let the kernel create the partition nodes before anyone formats
	cmds = append(cmds, Command{Name: "udevadm", Args: []string{"settle"}})
	return cmds
}

func formatCommands(fs layout.FilesystemSpec, devices []string) []Command {
	switch fs.Kind {
	case layout.FSVfat:
		return []Command{{Name: "mkfs.vfat", Args: []string{"-F32", devices[0]}}}
	case layout.FSSwap:
		return []Command{{Name: "mkswap", Args: []string{devices[0]}}}
	default: // btrfs
		args := []string{"-f", "-d", fs.Raid.Data, "-m", fs.Raid.Meta}
		if len(fs.Options) > 0 {
			args = append(args, "-O", strings.Join(fs.Options, ","))
		}
		args = append(args, devices...)
		return []Command{{Name: "mkfs.btrfs", Args: args}}
	}
}

func labelCommands(fs layout.FilesystemSpec, device string) []Command {
	switch fs.Kind {
	case layout.FSVfat:
		return []Command{{Name: "fatlabel", Args: []string{device, fs.Label}}}
	case layout.FSSwap:
		return []Command{{Name: "swaplabel", Args: []string{"-L", fs.Label, device}}}
	default:
		return []Command{{Name: "btrfs", Args: []string{"filesystem", "label", device, fs.Label}}}
	}
}

func uuidCommands(fs layout.FilesystemSpec, device string) []Command {
	switch fs.Kind {
	case layout.FSSwap:
		return []Command{{Name: "swaplabel", Args: []string{"-U", fs.UUID, device}}}
	default: // btrfs; vfat is rejected at validation
		return []Command{{Name: "btrfstune", Args: []string{"-f", "-U", fs.UUID, device}}}
	}
}

func mountCommands(m layout.MountSpec, device string) []Command {
	cmds := []Command{{Name: "mkdir", Args: []string{"-p", m.Target}}}
	args := []string{}
	if len(m.Options) > 0 {
		args = append(args, "-o", strings.Join(m.Options, ","))
	}
	args = append(args, device, m.Target)
	cmds = append(cmds, Command{Name: "mount", Args: args})
	return cmds
}

