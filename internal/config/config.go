package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the knobs for one provisioning run.
type Config struct {
	// Workers bounds how many independent disk chains execute at once.
	// Zero means "one per involved disk", capped at MaxWorkers.
	Workers int
	// Retries is the retry budget for non-destructive steps.
	Retries      int
	RetryBackoff time.Duration
	// DestructiveTimeout bounds wipe/partition/format commands;
	// CommandTimeout bounds everything else.
	DestructiveTimeout time.Duration
	CommandTimeout     time.Duration
	// StopOnFailure aborts the whole run on any step failure instead of
	// containing the failure to one disk chain.
	StopOnFailure bool
	LogLevel      zerolog.Level
}

const MaxWorkers = 8

func Defaults() Config {
	return Config{
		Workers:            0,
		Retries:            1,
		RetryBackoff:       500 * time.Millisecond,
		DestructiveTimeout: 300 * time.Second,
		CommandTimeout:     30 * time.Second,
		StopOnFailure:      true,
		LogLevel:           zerolog.InfoLevel,
	}
}

// FromEnv applies BLOCKPLAN_* overrides on top of the defaults.
func FromEnv() Config {
	cfg := Defaults()
	if v := os.Getenv("BLOCKPLAN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("BLOCKPLAN_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Retries = n
		}
	}
	if v := os.Getenv("BLOCKPLAN_LOG"); v != "" {
		if l, err := zerolog.ParseLevel(v); err == nil {
			cfg.LogLevel = l
		}
	}
	return cfg
}

// EffectiveWorkers resolves the worker count for a run touching n disks.
func (c Config) EffectiveWorkers(disks int) int {
	w := c.Workers
	if w <= 0 {
		w = disks
	}
	if w > MaxWorkers {
		w = MaxWorkers
	}
	if w < 1 {
		w = 1
	}
	return w
}
