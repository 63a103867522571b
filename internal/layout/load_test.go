package layout

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const yamlLayout = `disks:
  - id: d1
    device: /dev/sdb
  - id: d2
    device: /dev/sdc
partitions:
  - id: p1
    disk: d1
    index: 1
    start: 1MiB
    end: 100%
  - id: p2
    disk: d2
    index: 1
    start: 1MiB
    end: 100%
filesystems:
  - id: pool
    kind: btrfs
    partitions: [p1, p2]
    label: pool
mounts:
  - id: mnt
    filesystem: pool
    target: /mnt/pool
    options: [noatime]
`

const jsonLayout = `{
  "disks": [{"id": "d1", "device": "/dev/sdb"}],
  "partitions": [{"id": "p1", "disk": "d1", "index": 1, "start": "1MiB", "end": "100%"}],
  "filesystems": [{"id": "fs1", "kind": "btrfs", "partitions": ["p1"], "label": "data"}]
}`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileYAML(t *testing.T) {
	spec, err := LoadFile(writeFile(t, "layout.yaml", yamlLayout))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(spec.Disks) != 2 || len(spec.Partitions) != 2 {
		t.Fatalf("unexpected shape: %+v", spec)
	}
	if spec.Filesystems[0].Raid.Data != "raid0" {
		t.Fatalf("defaults not applied: %+v", spec.Filesystems[0].Raid)
	}
}

func TestLoadFileJSON(t *testing.T) {
	spec, err := LoadFile(writeFile(t, "layout.json", jsonLayout))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if spec.Filesystems[0].Raid.Data != "single" {
		t.Fatalf("single-device default not applied: %+v", spec.Filesystems[0].Raid)
	}
}

func TestLoadFileRejectsUnknownYAMLField(t *testing.T) {
	_, err := LoadFile(writeFile(t, "layout.yaml", yamlLayout+"bogus: true\n"))
	if !errors.Is(err, ErrInvalidLayout) {
		t.Fatalf("err = %v, want ErrInvalidLayout", err)
	}
}

func TestLoadFileRejectsSchemaViolation(t *testing.T) {
	bad := `{"disks": [{"id": "d1", "device": "sdb"}], "partitions": [], "filesystems": []}`
	_, err := LoadFile(writeFile(t, "layout.json", bad))
	if !errors.Is(err, ErrInvalidLayout) {
		t.Fatalf("err = %v, want ErrInvalidLayout", err)
	}
}

func TestLoadFileRejectsUnknownExtension(t *testing.T) {
	_, err := LoadFile(writeFile(t, "layout.toml", "x = 1"))
	if !errors.Is(err, ErrInvalidLayout) {
		t.Fatalf("err = %v, want ErrInvalidLayout", err)
	}
}
