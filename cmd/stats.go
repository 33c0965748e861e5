package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/runcache/internal/cache"
)

var statsCmd = &cobra.Command{
	Use:          "stats",
	Short:        "Show cache statistics",
	RunE:         runStats,
	SilenceUsage: true,
}

func runStats(cmd *cobra.Command, _ []string) error {
	root, err := resolveCacheRoot(cmd)
	if err != nil {
		return err
	}

	ix, err := cache.OpenIndex(root)
	if err != nil {
		return err
	}
	defer ix.Close()

	count, err := ix.Count()
	if err != nil {
		return err
	}

	size, err := cache.Size(root)
	if err != nil {
		return err
	}

	fmt.Printf("Cache root: %s\nEntries: %d\nSize: %s\n", root, count, humanize.Bytes(uint64(size)))

	return nil
}
