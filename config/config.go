// Package config holds the header store daemon's configuration, grounded
// on the teacher's node/config.go (Config struct, DefaultConfig, Validate,
// data-directory layout) trimmed to the concerns this module actually has:
// no P2P/RPC/Engine ports, since networking and RPC wiring are out of
// scope (spec.md §1); added multi-chain and store-tuning fields instead.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chainweb-go/chainweb/spectrum"
)

// Config holds all configuration for a chainweb-headerd instance.
type Config struct {
	// DataDir is the root directory for all persistent data.
	DataDir string

	// Name is a human-readable instance identifier (used in logs).
	Name string

	// ChainwebVersion identifies the header set this instance serves
	// (mirrors BlockHeader.ChainwebVersion). It is not compared against
	// the ChainwebVersion of inserted headers.
	ChainwebVersion string

	// ChainIDs lists the chain identifiers this instance maintains a
	// header store for (component multichain.Registry).
	ChainIDs []uint32

	// ForkDepthLimit bounds how far reconcile will walk before failing
	// with ErrForkTooDeep. Zero uses reconcile.DefaultMaxDepth.
	ForkDepthLimit int

	// SpectrumRecentsWindow and SpectrumPowerBase are the spectrum tuning
	// parameters (spec.md §9): changing them after headers exist changes
	// on-disk layout for newly inserted headers.
	SpectrumRecentsWindow uint64
	SpectrumPowerBase     uint64

	// HeaderCacheBytes sizes the per-chain decoded-header cache.
	HeaderCacheBytes int

	// LogLevel controls log verbosity (debug, info, warn, error).
	LogLevel string

	// Verbosity is the numeric log level 0-5, mapped to LogLevel by
	// VerbosityToLogLevel (0-1 error, 2 warn, 3 info, 4-5 debug). The
	// daemon always derives LogLevel from it at startup.
	Verbosity int

	// Metrics enables the Prometheus metrics exporter.
	Metrics bool

	// MetricsAddr is the HTTP listen address for the metrics exporter.
	MetricsAddr string
}

// defaultDataDir returns the platform-specific default data directory,
// falling back to a relative path if the home directory can't be
// determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chainweb-headerd"
	}
	return filepath.Join(home, ".chainweb-headerd")
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:               defaultDataDir(),
		Name:                  "chainweb-headerd",
		ChainwebVersion:       "development",
		ChainIDs:              []uint32{0},
		ForkDepthLimit:        1_000_000,
		SpectrumRecentsWindow: spectrum.DefaultRecentsWindow,
		SpectrumPowerBase:     spectrum.DefaultPowerBase,
		HeaderCacheBytes:      32 * 1024 * 1024,
		LogLevel:              "info",
		Verbosity:             3,
		Metrics:               false,
		MetricsAddr:           "127.0.0.1:9100",
	}
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: datadir must not be empty")
	}
	if len(c.ChainIDs) == 0 {
		return errors.New("config: at least one chain id is required")
	}
	seen := make(map[uint32]struct{}, len(c.ChainIDs))
	for _, id := range c.ChainIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("config: duplicate chain id %d", id)
		}
		seen[id] = struct{}{}
	}
	if c.ForkDepthLimit < 0 {
		return fmt.Errorf("config: invalid fork depth limit: %d", c.ForkDepthLimit)
	}
	if _, err := spectrum.NewParams(c.SpectrumRecentsWindow, c.SpectrumPowerBase); err != nil {
		return fmt.Errorf("config: invalid spectrum params: %w", err)
	}
	if c.Verbosity < 0 || c.Verbosity > 5 {
		return fmt.Errorf("config: verbosity must be 0-5, got %d", c.Verbosity)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}

// VerbosityToLogLevel converts a numeric verbosity level to a log level
// string, kept from the teacher's node/config.go mapping.
func VerbosityToLogLevel(v int) string {
	switch {
	case v <= 1:
		return "error"
	case v == 2:
		return "warn"
	case v == 3:
		return "info"
	default:
		return "debug"
	}
}

// ChainDataDir returns the per-chain data directory (one CAOS + refdb pair
// per chain id, per the multichain registry's layout).
func (c *Config) ChainDataDir(chainID uint32) string {
	return filepath.Join(c.DataDir, "chains", fmt.Sprintf("%d", chainID))
}

// InitDataDir creates the data directory and the per-chain subdirectories
// for every configured chain id, grounded on the teacher's
// node/config.go InitDataDir + node/lifecycle.go's directory bootstrap.
func (c *Config) InitDataDir() error {
	if c.DataDir == "" {
		return errors.New("config: datadir must not be empty")
	}
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("config: create datadir: %w", err)
	}
	for _, id := range c.ChainIDs {
		dir := c.ChainDataDir(id)
		if err := os.MkdirAll(filepath.Join(dir, "objects"), 0o700); err != nil {
			return fmt.Errorf("config: create chain %d objects dir: %w", id, err)
		}
		if err := os.MkdirAll(filepath.Join(dir, "refs"), 0o700); err != nil {
			return fmt.Errorf("config: create chain %d refs dir: %w", id, err)
		}
	}
	return nil
}
