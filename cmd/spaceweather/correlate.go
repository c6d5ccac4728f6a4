package main

import (
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/space-weather-etl/internal/correlate"
	"github.com/spf13/cobra"
)

func newCorrelateCmd(c *cli) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "correlate",
		Short: "Rebuild the flare and storm severity series for the trailing window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.close()

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}
			return a.reconstructor.Render(cmd.Context(), correlate.JSONRenderer{W: w})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the chart JSON to this file instead of stdout")
	return cmd
}
