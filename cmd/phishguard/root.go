package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "phishguard",
		Short:         "phishguard: URL phishing risk scoring",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: search configs/, ./, /etc/phishguard/)")

	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newScanCmd(&configPath))
	cmd.AddCommand(newBatchCmd(&configPath))

	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
