package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"graft/internal/lsp"
)

// setupDebugLogging builds the debug logger when --debug is set and
// points the tool client's package logger at it. The returned logger is
// nil when debug logging is off; the cleanup is always safe to call.
func setupDebugLogging(cmd *cobra.Command) (*zap.Logger, func(), error) {
	debug, err := cmd.Root().PersistentFlags().GetBool("debug")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get debug flag: %w", err)
	}
	if !debug {
		return nil, func() {}, nil
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, fmt.Errorf("debug logger: %w", err)
	}
	lsp.SetLogger(log.Named("lsp"))
	return log, func() { _ = log.Sync() }, nil
}
