package cmd

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/runcache/internal/cache"
)

var lsCmd = &cobra.Command{
	Use:          "ls",
	Short:        "List cached entries",
	Long:         `List indexed cache entries, most recent first.`,
	RunE:         runLs,
	SilenceUsage: true,
}

func runLs(cmd *cobra.Command, _ []string) error {
	root, err := resolveCacheRoot(cmd)
	if err != nil {
		return err
	}

	ix, err := cache.OpenIndex(root)
	if err != nil {
		return err
	}
	defer ix.Close()

	records, err := ix.List()
	if err != nil {
		return err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	for _, rec := range records {
		fmt.Printf("%.12s  %-14s  rc=%-3d  %s\n", rec.Key, humanize.Time(rec.CreatedAt), rec.RC, rec.Cmdline)
	}

	return nil
}
