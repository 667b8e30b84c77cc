package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"graft/internal/driver"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the graft cache directory",
	Long: `Remove the per-user graft cache: cached diagnostics rounds and the
repl history.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func runClean(_ *cobra.Command, _ []string) error {
	cache, err := driver.OpenRoundCache("graft")
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	if err := cache.DropAll(); err != nil {
		return fmt.Errorf("failed to drop cache: %w", err)
	}
	_, _ = fmt.Fprintln(os.Stdout, "cache dropped")
	return nil
}
