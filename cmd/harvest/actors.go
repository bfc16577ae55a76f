package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/use-agent/harvest/actors"
)

func newActorsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "actors",
		Short: "Print the registered actors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(actors.Registry(c.cfg).List())
		},
	}
}
