package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Offsets are parted-style strings. An absolute offset is a number with a
// binary unit suffix; a percentage is only legal as a partition end and
// means "up to that fraction of the disk".

var units = []struct {
	suffix string
	bytes  int64
}{
	{"KIB", 1 << 10},
	{"MIB", 1 << 20},
	{"GIB", 1 << 30},
	{"TIB", 1 << 40},
	{"B", 1},
}

// parseOffset returns the offset in bytes. Percent ends return a sentinel
// beyond any absolute offset so ordering checks still work: "100%" maps
// near MaxInt64, "50%" to half that. Integer math only; float conversion
// of MaxInt64 rounds up to 2^63 and the conversion back overflows.
func parseOffset(s string, allowPercent bool) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty offset")
	}
	if strings.HasSuffix(s, "%") {
		if !allowPercent {
			return 0, fmt.Errorf("percentage offset %q only allowed as partition end", s)
		}
		pct, err := strconv.Atoi(strings.TrimSuffix(s, "%"))
		if err != nil || pct < 1 || pct > 100 {
			return 0, fmt.Errorf("invalid percentage offset %q", s)
		}
		return math.MaxInt64 / 100 * int64(pct), nil
	}
	upper := strings.ToUpper(s)
	for _, u := range units {
		if !strings.HasSuffix(upper, u.suffix) {
			continue
		}
		num := strings.TrimSpace(strings.TrimSuffix(upper, u.suffix))
		n, err := strconv.ParseInt(num, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid offset %q", s)
		}
		if n > math.MaxInt64/u.bytes {
			return 0, fmt.Errorf("offset %q overflows", s)
		}
		return n * u.bytes, nil
	}
	return 0, fmt.Errorf("offset %q needs a unit (B, KiB, MiB, GiB, TiB) or %%", s)
}
