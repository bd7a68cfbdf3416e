package sched

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	yaml "github.com/goccy/go-yaml"
)

// Config mirrors the scheduler section of config.yml.
type Config struct {
	TickMS         int    `yaml:"tick_ms"`          // 10 (by default)
	PriorityLevels int    `yaml:"priority_levels"`  // 8, at most 64
	MaxTasks       int    `yaml:"max_tasks"`        // 32, idle not included
	ArenaBytes     int    `yaml:"arena_bytes"`      // 64 KiB
	MinStackBytes  int    `yaml:"min_stack_bytes"`  // 256
	IdleStackBytes int    `yaml:"idle_stack_bytes"` // 512
	GuardBytes     int    `yaml:"guard_bytes"`      // 16
	StopAfterTicks uint64 `yaml:"stop_after_ticks"` // 0 = run until halted
	EventBuffer    int    `yaml:"event_buffer"`     // 256
	Audit          bool   `yaml:"audit"`            // re-check queue partition on every decision
}

// DefaultConfig is used when no config file is given.
func DefaultConfig() Config {
	return Config{
		TickMS:         10,
		PriorityLevels: 8,
		MaxTasks:       32,
		ArenaBytes:     64 << 10,
		MinStackBytes:  256,
		IdleStackBytes: 512,
		GuardBytes:     16,
		EventBuffer:    256,
	}
}

// Load reads YAML and overrides defaults; empty path or a missing file means
// defaults only.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg.sanitized(), nil
}

// sanitized applies the sanity clamps.
func (c Config) sanitized() Config {
	def := DefaultConfig()
	if c.TickMS <= 0 {
		c.TickMS = def.TickMS
	}
	if c.PriorityLevels <= 0 {
		c.PriorityLevels = def.PriorityLevels
	} else if c.PriorityLevels > MaxPriorityLevels {
		c.PriorityLevels = MaxPriorityLevels
	}
	if c.MaxTasks <= 0 {
		c.MaxTasks = def.MaxTasks
	}
	if c.GuardBytes < 0 {
		c.GuardBytes = 0
	}
	if c.MinStackBytes < c.GuardBytes+stackAlign {
		c.MinStackBytes = c.GuardBytes + stackAlign
	}
	if c.IdleStackBytes < c.MinStackBytes {
		c.IdleStackBytes = c.MinStackBytes
	}
	if c.ArenaBytes <= 0 {
		c.ArenaBytes = def.ArenaBytes
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	return c
}

// TickInterval is the hardware timer period.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickMS) * time.Millisecond
}

// MsToTicks converts a delay in milliseconds to ticks, rounding up so that a
// non-zero delay never becomes zero ticks.
func (c Config) MsToTicks(ms int) uint64 {
	if ms <= 0 {
		return 0
	}
	tick := c.TickMS
	if tick <= 0 {
		tick = DefaultConfig().TickMS
	}
	return uint64((ms + tick - 1) / tick)
}
