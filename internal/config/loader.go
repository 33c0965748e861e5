package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForRun loads configuration for a memoized run. Precedence, lowest
// first: defaults, global config file, local config file, RUNCACHE_*
// environment variables, flags.
func (l *Loader) LoadForRun(cmd *cobra.Command, args []string) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig()
	l.bindEnvironment()
	l.bindCommandFlags(cmd)

	return Load(args)
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("ttl", DefaultTTL)
	viper.SetDefault("cwd", DefaultCWDMode)
	viper.SetDefault("force", false)
	viper.SetDefault("lock", false)
	viper.SetDefault("verbose", false)
}

// loadGlobalConfig loads global configuration from the user config dir
func (l *Loader) loadGlobalConfig() {
	configHome, err := os.UserConfigDir()
	if err != nil {
		return
	}

	globalDir := filepath.Join(configHome, "runcache")

	for _, ext := range []string{"yml", "yaml", "json", "toml"} {
		globalPath := filepath.Join(globalDir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			viper.SetConfigFile(globalPath)

			if err := viper.ReadInConfig(); err == nil {
				break
			}
		}
	}
}

// loadLocalConfig loads local configuration by walking up from the
// working directory
func (l *Loader) loadLocalConfig() {
	cwd, err := os.Getwd()
	if err != nil {
		return // silently ignore, Load() will handle validation
	}

	localPath := FindLocalConfig(cwd)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
	}
}

// bindEnvironment binds RUNCACHE_* environment variables
func (l *Loader) bindEnvironment() {
	_ = viper.BindEnv("ttl", "RUNCACHE_TTL")
	_ = viper.BindEnv("cache_dir", "RUNCACHE_DIR")
	_ = viper.BindEnv("cwd", "RUNCACHE_CWD")
	_ = viper.BindEnv("context", "RUNCACHE_CONTEXT")
	_ = viper.BindEnv("force", "RUNCACHE_FORCE")
	_ = viper.BindEnv("lock", "RUNCACHE_LOCK")
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	_ = viper.BindPFlag("force", cmd.Flags().Lookup("force"))
	_ = viper.BindPFlag("ttl", cmd.Flags().Lookup("ttl"))
	_ = viper.BindPFlag("cache_dir", cmd.Flags().Lookup("cache-dir"))
	_ = viper.BindPFlag("cwd", cmd.Flags().Lookup("cwd"))
	_ = viper.BindPFlag("context", cmd.Flags().Lookup("context"))
	_ = viper.BindPFlag("lock", cmd.Flags().Lookup("lock"))
	_ = viper.BindPFlag("verbose", cmd.Flags().Lookup("verbose"))
}
