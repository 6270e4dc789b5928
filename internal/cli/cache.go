package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the evidence and verdict cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached corpus lookup and verdict",
	Long: `Clear empties the cache shared by corpus lookups and verdicts. With
cache.redisAddr set this clears the shared Redis keyspace used by citecheck.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, services, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			_ = services.Close()
			_ = log.Sync()
		}()

		if err := services.Validator.ClearCache(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}

		if cfg.Cache.RedisAddr != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared cache (redis %s)\n", cfg.Cache.RedisAddr)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Cleared in-process cache (no redis configured, nothing persisted)")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
