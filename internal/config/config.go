package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// TTLNever marks entries that never expire.
const TTLNever time.Duration = -1

// Default configuration values
const (
	DefaultTTL     = "never"
	DefaultCWDMode = CWDAuto

	// cacheSubdir is the fixed folder below the platform cache home
	cacheSubdir = "runcache"
)

// Working-directory inclusion modes. The mode decides whether the cache
// key binds the working directory or the home directory.
const (
	CWDYes  = "yes"
	CWDNo   = "no"
	CWDAuto = "auto"
)

// Config holds the fully-resolved options for one invocation. It is
// built once and owned by the command for the lifetime of the process.
type Config struct {
	// Bypass cache lookup and re-execute unconditionally
	Force bool

	// Entry time-to-live. TTLNever disables expiry; zero disables
	// caching entirely.
	TTL time.Duration

	// Root directory holding one subdirectory per cache key
	CacheRoot string

	// Working-directory inclusion mode: yes, no or auto
	CWDMode string

	// Free-form context string folded into the cache key
	Context string

	// Hold a per-key advisory lock across run and persist
	Lock bool

	// Enable verbose output
	Verbose bool

	// Command to memoize, with its argument vector
	Command string
	Args    []string
}

func Load(args []string) (*Config, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no command supplied")
	}

	ttl, err := ParseTTL(viper.GetString("ttl"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Force:     viper.GetBool("force"),
		TTL:       ttl,
		CacheRoot: viper.GetString("cache_dir"),
		CWDMode:   viper.GetString("cwd"),
		Context:   viper.GetString("context"),
		Lock:      viper.GetBool("lock"),
		Verbose:   viper.GetBool("verbose"),
		Command:   args[0],
		Args:      args[1:],
	}

	// Apply defaults if not set
	if cfg.CacheRoot == "" {
		root, err := DefaultCacheRoot()
		if err != nil {
			return nil, err
		}

		cfg.CacheRoot = root
	}

	if cfg.CWDMode == "" {
		cfg.CWDMode = DefaultCWDMode
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.CWDMode {
	case CWDYes, CWDNo, CWDAuto:
	default:
		return fmt.Errorf("invalid cwd mode: %s", c.CWDMode)
	}

	if abs, err := filepath.Abs(c.CacheRoot); err == nil {
		c.CacheRoot = abs
	}

	return nil
}

// ParseTTL parses a TTL value: "never" (or empty) means entries never
// expire, otherwise a non-negative number of seconds. Zero disables
// caching entirely.
func ParseTTL(s string) (time.Duration, error) {
	if s == "" || s == "never" {
		return TTLNever, nil
	}

	secs, err := strconv.Atoi(s)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("invalid ttl: %s", s)
	}

	return time.Duration(secs) * time.Second, nil
}

// DefaultCacheRoot resolves the platform cache home joined with the
// fixed runcache subfolder.
func DefaultCacheRoot() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve cache directory: %w", err)
	}

	return filepath.Join(dir, cacheSubdir), nil
}
