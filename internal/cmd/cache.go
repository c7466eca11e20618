package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the execution cache",
	}

	root.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print execution cache occupancy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openCache(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "entries: %d\ntotal bytes: %d\n", stats.Entries, stats.TotalBytes)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every entry from the execution cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openCache(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "gc",
		Short: "Evict entries over the configured byte budget",
		Long:  `gc re-applies the byte-budget LRU eviction a Put would trigger, without writing a new entry. Useful after lowering max_bytes in config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openCache(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			before, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Evict(cmd.Context()); err != nil {
				return err
			}
			after, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "entries: %d -> %d\ntotal bytes: %d -> %d\n", before.Entries, after.Entries, before.TotalBytes, after.TotalBytes)
			return nil
		},
	})

	return root
}
