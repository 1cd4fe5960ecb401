// Package config resolves the memory engine's configuration from the
// process environment, once, at coordinator construction — the teacher's
// internal/config package reads a JSON file instead, but the domain this
// spec describes is environment-driven (ALOOP_HOME, MEMORY_*), so this
// package swaps the source for github.com/spf13/viper's env binding and
// keeps everything else (explicit struct, no package-level singleton).
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the resolved set of knobs §6 of the specification names.
// It is a plain value: callers pass it explicitly into the coordinator
// rather than reaching for a global.
type Config struct {
	// Home is the runtime root directory (ALOOP_HOME), containing
	// sessions/ and memory/.
	Home string

	// MemoryEnabled is the master switch for short-term compression.
	// When false, urgency is always "none".
	MemoryEnabled bool

	// CompressionThreshold is the hard token threshold H.
	CompressionThreshold int

	// SoftThresholdRatio is r in (0,1); the soft threshold is r*H.
	SoftThresholdRatio float64

	// CompressionRatio is the fraction of current tokens to target after
	// compression; the actual target is floored at 500.
	CompressionRatio float64

	// ShortTermSize is the working buffer's emergency cap N_cap.
	ShortTermSize int

	// LongTermEnabled is the master switch for the long-term store.
	LongTermEnabled bool

	// LongTermConsolidationThreshold is the chars/3.5-estimated token
	// budget that triggers long-term consolidation.
	LongTermConsolidationThreshold int
}

const (
	defaultCompressionThreshold           = 40000
	defaultSoftThresholdRatio             = 0.6
	defaultCompressionRatio               = 0.3
	defaultShortTermSize                  = 500
	defaultLongTermConsolidationThreshold = 8000
)

// Load resolves configuration from the environment. It never panics on a
// missing or malformed variable. A missing variable falls back to the
// documented default; a set variable that does not parse as the field's
// type (e.g. MEMORY_COMPRESSION_THRESHOLD=abc) does not fall back to the
// default and reads as that type's zero value (0 or false).
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()

	bindEnv(v, "ALOOP_HOME")
	bindEnv(v, "MEMORY_ENABLED")
	bindEnv(v, "MEMORY_COMPRESSION_THRESHOLD")
	bindEnv(v, "MEMORY_SOFT_THRESHOLD_RATIO")
	bindEnv(v, "MEMORY_COMPRESSION_RATIO")
	bindEnv(v, "MEMORY_SHORT_TERM_SIZE")
	bindEnv(v, "LONG_TERM_MEMORY_ENABLED")
	bindEnv(v, "LONG_TERM_MEMORY_CONSOLIDATION_THRESHOLD")

	v.SetDefault("MEMORY_ENABLED", true)
	v.SetDefault("MEMORY_COMPRESSION_THRESHOLD", defaultCompressionThreshold)
	v.SetDefault("MEMORY_SOFT_THRESHOLD_RATIO", defaultSoftThresholdRatio)
	v.SetDefault("MEMORY_COMPRESSION_RATIO", defaultCompressionRatio)
	v.SetDefault("MEMORY_SHORT_TERM_SIZE", defaultShortTermSize)
	v.SetDefault("LONG_TERM_MEMORY_ENABLED", true)
	v.SetDefault("LONG_TERM_MEMORY_CONSOLIDATION_THRESHOLD", defaultLongTermConsolidationThreshold)

	home := v.GetString("ALOOP_HOME")
	if home == "" {
		home = defaultHome()
	}

	return &Config{
		Home:                           home,
		MemoryEnabled:                  v.GetBool("MEMORY_ENABLED"),
		CompressionThreshold:           v.GetInt("MEMORY_COMPRESSION_THRESHOLD"),
		SoftThresholdRatio:             v.GetFloat64("MEMORY_SOFT_THRESHOLD_RATIO"),
		CompressionRatio:               v.GetFloat64("MEMORY_COMPRESSION_RATIO"),
		ShortTermSize:                  v.GetInt("MEMORY_SHORT_TERM_SIZE"),
		LongTermEnabled:                v.GetBool("LONG_TERM_MEMORY_ENABLED"),
		LongTermConsolidationThreshold: v.GetInt("LONG_TERM_MEMORY_CONSOLIDATION_THRESHOLD"),
	}
}

func bindEnv(v *viper.Viper, key string) {
	// BindEnv with a single argument only fails if called with zero
	// arguments; safe to ignore here.
	_ = v.BindEnv(key)
}

func defaultHome() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".aloop")
	}
	return ".aloop"
}

// SessionsDir returns the directory holding session subdirectories.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.Home, "sessions")
}

// MemoryDir returns the directory holding the long-term category files
// and its git metadata.
func (c *Config) MemoryDir() string {
	return filepath.Join(c.Home, "memory")
}
