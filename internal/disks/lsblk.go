package disks

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"blockplan/pkg/shell"
)

type lsblkJSON struct {
	Blockdevices []lsblkDevice `json:"blockdevices"`
}

type lsblkDevice struct {
	Name       string        `json:"name"`
	KName      string        `json:"kname"`
	Path       string        `json:"path"`
	Size       any           `json:"size"`
	Rota       *bool         `json:"rota"`
	Type       string        `json:"type"`
	Tran       string        `json:"tran"`
	Vendor     string        `json:"vendor"`
	Model      string        `json:"model"`
	Serial     string        `json:"serial"`
	Mountpoint *string       `json:"mountpoint"`
	FSType     string        `json:"fstype"`
	Children   []lsblkDevice `json:"children"`
}

func parseSizeToBytes(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// Collect lists disks and partitions via lsblk JSON output.
func Collect(ctx context.Context) ([]Device, error) {
	args := []string{"-J", "-b", "-o", "NAME,KNAME,PATH,SIZE,ROTA,TYPE,TRAN,VENDOR,MODEL,SERIAL,MOUNTPOINT,FSTYPE"}
	res, err := shell.Run(ctx, 5*time.Second, "lsblk", args...)
	if err != nil {
		return nil, err
	}
	return parseLsblk(res.Stdout)
}

func parseLsblk(raw []byte) ([]Device, error) {
	var tree lsblkJSON
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	out := []Device{}
	var walk func(d lsblkDevice)
	walk = func(d lsblkDevice) {
		if d.Type == "disk" || d.Type == "part" {
			out = append(out, Device{
				Name:       d.Name,
				KName:      d.KName,
				Path:       d.Path,
				SizeBytes:  parseSizeToBytes(d.Size),
				Rota:       d.Rota,
				Type:       d.Type,
				Tran:       d.Tran,
				Vendor:     d.Vendor,
				Model:      d.Model,
				Serial:     d.Serial,
				Mountpoint: d.Mountpoint,
				FSType:     d.FSType,
			})
		}
		for _, c := range d.Children {
			walk(c)
		}
	}
	for _, d := range tree.Blockdevices {
		walk(d)
	}
	return out, nil
}
