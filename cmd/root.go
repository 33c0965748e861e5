package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/runcache/internal/config"
	"github.com/Norgate-AV/runcache/internal/log"
	"github.com/Norgate-AV/runcache/internal/runner"
	"github.com/Norgate-AV/runcache/internal/version"
)

// exitCode carries the memoized command's exit status out of RunE so
// Execute can propagate it as the process status.
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "runcache [flags] command [args...]",
	Short: "Memoize the output of external commands",
	Long: `runcache runs a command once and replays its captured stdout, stderr
and exit status on later identical invocations, until a TTL expires or
--force re-executes it.

Identity covers the rendered command line, the invoking user's UID and
GID, the working or home directory (per --cwd) and an optional
--context string. Entries never expire by default; set --ttl to a
number of seconds to bound their age, or to 0 to disable caching.`,
	RunE:         runRoot,
	SilenceUsage: true,
	Args:         cobra.ArbitraryArgs,
}

func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}

	if exitCode < 0 {
		// Child terminated by a signal; there is no real exit status.
		exitCode = 1
	}

	os.Exit(exitCode)
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)

	// The first non-flag token starts the memoized command, so its own
	// flags pass through untouched.
	rootCmd.Flags().SetInterspersed(false)

	rootCmd.PersistentFlags().BoolP("force", "f", false, "Re-execute even if a fresh entry exists")
	rootCmd.PersistentFlags().StringP("ttl", "t", config.DefaultTTL, `Entry time-to-live in seconds, or "never"`)
	rootCmd.PersistentFlags().String("cache-dir", "", "Cache root directory (default: user cache dir + /runcache)")
	rootCmd.PersistentFlags().String("cwd", config.DefaultCWDMode, "Bind the working directory into the cache key (yes|no|auto)")
	rootCmd.PersistentFlags().StringP("context", "c", "", "Extra context string folded into the cache key")
	rootCmd.PersistentFlags().Bool("lock", false, "Hold a per-key advisory lock across run and persist")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(lsCmd)
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().LoadForRun(cmd, args)
	if err != nil {
		return err
	}

	log.Init(cfg.Verbose)

	engine := &runner.Engine{Stdout: os.Stdout, Stderr: os.Stderr}

	rc, err := engine.Run(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	exitCode = rc

	return nil
}
