package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bundlecost/bundlecost/cli/client"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the daemon's size cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the daemon's size cache",
	Long: `Clear every cached measurement on a running daemon. In-flight
measurements finish but their results are discarded; the bundling
capability is re-discovered on the next request.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		url := daemonURL()
		if url == "" {
			return fmt.Errorf("no daemon URL: pass --server or set BUNDLECOST_SERVER")
		}

		api := client.NewClient(url, client.WithDebug(debug))
		if err := api.ClearCache(cmd.Context()); err != nil {
			return err
		}
		formatter.PrintSuccess("Cache cleared")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}
