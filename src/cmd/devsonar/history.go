package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"devsonar/src/logger"
	"devsonar/src/mcp"
	"devsonar/src/store"
	"devsonar/src/tui"
)

var viewLimit int

// mcpCmd exposes the history store to MCP clients over stdio
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the error history as MCP tools over stdio",
	Long: `Start an MCP server on stdin/stdout exposing the forwarded error history.

Tools:
  list_errors  recent errors grouped by fingerprint with recurrence counts
  get_error    one error with its full (compressed) stack trace`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		st, err := store.Open(context.Background(), appConfig.Store.Driver, appConfig.Store.DSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open history store: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		if err := mcp.NewServer(st, log).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
			os.Exit(1)
		}
	},
}

// viewCmd opens the terminal viewer over the history store
var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Browse forwarded errors in a terminal viewer",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		st, err := store.Open(context.Background(), appConfig.Store.Driver, appConfig.Store.DSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open history store: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		// Log lines would corrupt the alternate screen.
		log = logger.NewSilentLogger()

		loader := func(ctx context.Context) ([]store.Record, error) {
			return st.Recent(ctx, viewLimit)
		}
		if err := tui.Start(loader); err != nil {
			fmt.Fprintf(os.Stderr, "Viewer error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	viewCmd.Flags().IntVarP(&viewLimit, "limit", "n", 500, "number of recent records to load")
}
