package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Norgate-AV/runcache/internal/cache"
	"github.com/Norgate-AV/runcache/internal/config"
)

var clearCmd = &cobra.Command{
	Use:          "clear",
	Short:        "Remove all cache entries",
	Long:         `Delete every cached entry and reset the metadata index.`,
	RunE:         runClear,
	SilenceUsage: true,
}

func runClear(cmd *cobra.Command, _ []string) error {
	root, err := resolveCacheRoot(cmd)
	if err != nil {
		return err
	}

	if err := cache.Clear(root); err != nil {
		return err
	}

	fmt.Printf("Cleared cache at %s\n", root)

	return nil
}

// resolveCacheRoot resolves the cache root for the management
// subcommands: flag, then RUNCACHE_DIR, then the platform default.
func resolveCacheRoot(cmd *cobra.Command) (string, error) {
	_ = viper.BindPFlag("cache_dir", cmd.Flags().Lookup("cache-dir"))
	_ = viper.BindEnv("cache_dir", "RUNCACHE_DIR")

	if root := viper.GetString("cache_dir"); root != "" {
		return root, nil
	}

	return config.DefaultCacheRoot()
}
