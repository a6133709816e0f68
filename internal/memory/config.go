package memory

import (
	"math"
	"runtime/debug"
	"strconv"

	"github.com/caarlos0/env/v11"

	"media-ingest/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. The rest is left for libvips, ffmpeg children and goroutine stacks.
const DefaultMemoryRatio = 0.85

type envConfig struct {
	GoMemLimit  string  `env:"GOMEMLIMIT"`
	MemoryLimit int64   `env:"MEMORY_LIMIT"`
	MemoryRatio float64 `env:"MEMORY_RATIO" envDefault:"0.85"`
}

// ConfigResult holds the result of memory configuration
type ConfigResult struct {
	// Configured indicates whether GOMEMLIMIT was set
	Configured bool

	// Source is "GOMEMLIMIT", "MEMORY_LIMIT" or "none"
	Source string

	// ContainerLimit is the container memory limit in bytes (0 if not set)
	ContainerLimit int64

	// GoMemLimit is the configured GOMEMLIMIT in bytes (0 if not set)
	GoMemLimit int64

	// Ratio is the memory ratio used (0 if not applicable)
	Ratio float64
}

// ConfigureFromEnv sets GOMEMLIMIT from the container memory limit.
// Call this early in main() before significant allocations.
//
// Environment variables:
//   - GOMEMLIMIT: If set, this takes precedence (standard Go env var)
//   - MEMORY_LIMIT: Container memory limit in bytes (Kubernetes Downward API)
//   - MEMORY_RATIO: Share of MEMORY_LIMIT for the Go heap (default: 0.85)
func ConfigureFromEnv() ConfigResult {
	result := ConfigResult{Source: "none"}

	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		logging.Warn("Failed to parse memory settings: %v", err)
		return result
	}

	if cfg.GoMemLimit != "" {
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.Source = "GOMEMLIMIT"
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", cfg.GoMemLimit)
		return result
	}

	if cfg.MemoryLimit <= 0 {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured automatically")
		return result
	}

	ratio := cfg.MemoryRatio
	if ratio <= 0 || ratio > 1.0 {
		logging.Warn("MEMORY_RATIO %.2f out of range (0.0-1.0), using default %.2f", ratio, DefaultMemoryRatio)
		ratio = DefaultMemoryRatio
	}

	goMemLimit := int64(float64(cfg.MemoryLimit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	result.Configured = true
	result.Source = "MEMORY_LIMIT"
	result.ContainerLimit = cfg.MemoryLimit
	result.GoMemLimit = goMemLimit
	result.Ratio = ratio

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		FormatBytes(goMemLimit), ratio*100, FormatBytes(cfg.MemoryLimit))

	return result
}

// FormatBytes formats bytes into a human-readable string.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
