package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/alexivanou/simple-geo/internal/importer"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var importCitiesCmd = &cobra.Command{
	Use:   "import-cities FILE...",
	Short: "Import cities from GeoNames extracts",
	Long:  "Reads GeoNames tab-separated extracts (plain .txt or the distributed .zip) and creates or updates populated places.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args, func(ctx context.Context, im *importer.Importer) (*importer.Summary, error) {
			return im.ImportCities(ctx, args)
		})
	},
}

var importPostalCodesCmd = &cobra.Command{
	Use:   "import-postal-codes FILE...",
	Short: "Import postal codes from CSV files",
	Long:  "Reads CSV files with a code and country column, linking postal codes to cities and geocoding rows without coordinates.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args, func(ctx context.Context, im *importer.Importer) (*importer.Summary, error) {
			return im.ImportPostalCodes(ctx, args)
		})
	},
}

func runImport(
	cmd *cobra.Command,
	args []string,
	run func(context.Context, *importer.Importer) (*importer.Summary, error),
) error {
	country, err := cmd.Flags().GetString("country")
	if err != nil {
		return err
	}
	regions, err := cmd.Flags().GetString("regions")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	geocoder, err := newGeocoder()
	if err != nil {
		return err
	}
	defer geocoder.Close()

	svc := newService(s, geocoder)
	im := importer.New(svc, s.repos.PostalCode, geocoder, importer.NewFilter(country, regions), logger)

	summary, err := run(ctx, im)
	if errors.Is(err, importer.ErrMissingColumns) || errors.Is(err, importer.ErrNoFiles) {
		_ = cmd.Usage()
		return err
	}
	if err != nil {
		return eris.Wrap(err, cmd.Name())
	}

	fmt.Fprintln(cmd.OutOrStdout(), summary.String())
	return nil
}

func init() {
	for _, c := range []*cobra.Command{importCitiesCmd, importPostalCodesCmd} {
		c.Flags().String("country", "", "only import rows for this country code")
		c.Flags().String("regions", "", "only import rows for these comma-separated region codes")
		rootCmd.AddCommand(c)
	}
}
