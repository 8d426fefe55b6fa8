package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataloom-cli/internal/artifact"
)

var (
	clnOlderThan time.Duration
	clnOutputDir string
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old plot files from the output directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if clnOlderThan < 0 {
			return fmt.Errorf("--older-than must not be negative")
		}
		dir := effectiveConfig().OutputDir
		if clnOutputDir != "" {
			dir = clnOutputDir
		}
		store := artifact.Store{Dir: dir}
		n, err := store.Prune(clnOlderThan)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d plot file(s) from %s\n", n, dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().DurationVar(&clnOlderThan, "older-than", 24*time.Hour, "only remove plots older than this (0 removes all)")
	cleanCmd.Flags().StringVar(&clnOutputDir, "output-dir", "", "directory to clean (default from config)")
}
