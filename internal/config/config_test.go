package config

import "testing"

func TestEffectiveWorkers(t *testing.T) {
	cases := []struct {
		name    string
		workers int
		disks   int
		want    int
	}{
		{"default follows disk count", 0, 3, 3},
		{"default capped at max", 0, 20, MaxWorkers},
		{"explicit wins", 2, 6, 2},
		{"explicit capped at max", 16, 2, MaxWorkers},
		{"never below one", 0, 0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Workers = tc.workers
			if got := cfg.EffectiveWorkers(tc.disks); got != tc.want {
				t.Fatalf("EffectiveWorkers(%d) = %d, want %d", tc.disks, got, tc.want)
			}
		})
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("BLOCKPLAN_WORKERS", "4")
	t.Setenv("BLOCKPLAN_RETRIES", "0")
	t.Setenv("BLOCKPLAN_LOG", "debug")
	cfg := FromEnv()
	if cfg.Workers != 4 {
		t.Fatalf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.Retries != 0 {
		t.Fatalf("Retries = %d, want 0", cfg.Retries)
	}
	if cfg.LogLevel.String() != "debug" {
		t.Fatalf("LogLevel = %s, want debug", cfg.LogLevel)
	}
}
