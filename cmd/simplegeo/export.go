package main

import (
	"fmt"

	"github.com/alexivanou/simple-geo/internal/export"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var exportDir string

var exportPostalCodesCmd = &cobra.Command{
	Use:   "export-postal-codes",
	Short: "Export postal codes and their cities to CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		path, count, err := export.NewExporter(s.repos.PostalCode, logger).ToDir(ctx, exportDir)
		if err != nil {
			return eris.Wrap(err, "export postal codes")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d postal codes written to %s\n", count, path)
		return nil
	},
}

func init() {
	exportPostalCodesCmd.Flags().StringVar(&exportDir, "dir", ".", "directory to write the export file into")
	rootCmd.AddCommand(exportPostalCodesCmd)
}
