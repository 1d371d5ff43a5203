package main

import (
	"encoding/json"

	"github.com/alexivanou/simple-geo/internal/geocode"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var geocodeQuery geocode.Query

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Look up an address with the geocoding API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if geocodeQuery == (geocode.Query{}) {
			_ = cmd.Usage()
			return eris.New("at least one of --address, --country, --region, --city or --code is required")
		}

		client, err := newGeocoder()
		if err != nil {
			return err
		}
		defer client.Close()

		result, err := client.Geocode(cmd.Context(), geocodeQuery)
		if err != nil {
			return eris.Wrap(err, "geocode")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	f := geocodeCmd.Flags()
	f.StringVar(&geocodeQuery.Address, "address", "", "free-text address")
	f.StringVar(&geocodeQuery.Country, "country", "", "country code component")
	f.StringVar(&geocodeQuery.Region, "region", "", "administrative area component")
	f.StringVar(&geocodeQuery.City, "city", "", "locality component")
	f.StringVar(&geocodeQuery.PostalCode, "code", "", "postal code component")
	rootCmd.AddCommand(geocodeCmd)
}
