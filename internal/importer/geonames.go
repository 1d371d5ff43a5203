package importer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/alexivanou/simple-geo/internal/model"
	"github.com/alexivanou/simple-geo/internal/service"
	"go.uber.org/zap"
)

// GeoNames column positions, see https://download.geonames.org/export/dump/readme.txt
const (
	colName         = 1
	colLatitude     = 4
	colLongitude    = 5
	colFeatureCode  = 7
	colCountry      = 8
	colAdmin1       = 10
	colModification = 18
	geonamesColumns = 19
)

const geonamesDateLayout = "2006-01-02"

// populatedPlaces are the feature codes of towns and cities
var populatedPlaces = map[string]bool{
	"PPL":   true,
	"PPLC":  true,
	"PPLA":  true,
	"PPLA2": true,
	"PPLA3": true,
	"PPLA4": true,
}

// regionCodes maps GeoNames' numeric admin1 codes to province abbreviations
var regionCodes = map[string]string{
	"CA.01": "AB",
	"CA.02": "BC",
	"CA.03": "MB",
	"CA.04": "NB",
	"CA.05": "NL",
	"CA.07": "NS",
	"CA.08": "ON",
	"CA.09": "PE",
	"CA.10": "QC",
	"CA.11": "SK",
	"CA.12": "YT",
	"CA.13": "NT",
	"CA.14": "NU",
}

// MapRegion returns the province abbreviation for a GeoNames admin1 code,
// or the code itself when it is not mapped
func MapRegion(country, admin1 string) string {
	if r, ok := regionCodes[country+"."+admin1]; ok {
		return r
	}
	return admin1
}

// ImportCities reads GeoNames extracts (.txt or .zip) and creates or
// updates the populated places they list
func (im *Importer) ImportCities(ctx context.Context, paths []string) (*Summary, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}

	summary, logger := im.newRun()
	logger.Info("Starting city import", zap.Strings("files", paths))

	for _, p := range paths {
		dir, err := isDir(p)
		if err != nil {
			return summary, err
		}
		if dir {
			logger.Info("Skipping directory", zap.String("path", p))
			continue
		}

		if err := im.importCityFile(ctx, p, summary, logger); err != nil {
			return summary, err
		}
	}

	logger.Info("City import finished", summary.fields()...)
	return summary, nil
}

func (im *Importer) importCityFile(ctx context.Context, p string, summary *Summary, logger *zap.Logger) error {
	rc, err := openInput(p, ".txt")
	if err != nil {
		return err
	}
	defer rc.Close()

	logger = logger.With(zap.String("file", p))
	logger.Info("Importing cities")

	return im.importCities(ctx, rc, summary, logger)
}

func (im *Importer) importCities(ctx context.Context, r io.Reader, summary *Summary, logger *zap.Logger) error {
	buf := make([]byte, 0, 64*1024)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		summary.RowsProcessed++

		parts := strings.Split(scanner.Text(), "\t")
		if len(parts) < geonamesColumns {
			continue
		}

		country := strings.ToUpper(strings.TrimSpace(parts[colCountry]))
		region := MapRegion(country, strings.ToUpper(strings.TrimSpace(parts[colAdmin1])))

		if !im.filter.Allows(country, region) {
			continue
		}
		if !populatedPlaces[strings.ToUpper(parts[colFeatureCode])] {
			continue
		}

		name := normalizeName(parts[colName])
		point := parseGeoNamesPoint(parts[colLatitude], parts[colLongitude])

		modified, err := time.Parse(geonamesDateLayout, strings.TrimSpace(parts[colModification]))
		if err != nil {
			logger.Warn("Skipping row with bad modification date",
				zap.Int("row", summary.RowsProcessed),
				zap.String("value", parts[colModification]),
			)
			continue
		}

		if err := im.reconcileCity(ctx, name, region, country, point, modified, summary, logger); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to scan cities: %w", err)
	}
	return nil
}

func (im *Importer) reconcileCity(
	ctx context.Context,
	name, region, country string,
	point *model.Point,
	modified time.Time,
	summary *Summary,
	logger *zap.Logger,
) error {
	city, created, err := im.svc.GetOrCreateCity(ctx, service.CityInput{
		Name:     name,
		Province: region,
		Country:  country,
		Point:    point,
		Updated:  &modified,
	})
	if err != nil {
		return err
	}
	if city == nil {
		return nil
	}
	if created {
		summary.CreatedCities++
		logger.Debug("Created city", zap.String("city", city.String()))
		return nil
	}

	updated, err := im.svc.UpdateCityPoint(ctx, city, point, modified)
	if err != nil {
		return err
	}
	if updated {
		summary.UpdatedCities++
		logger.Debug("Updated city point", zap.String("city", city.String()))
	}
	return nil
}

func parseGeoNamesPoint(latStr, lonStr string) *model.Point {
	latStr, lonStr = strings.TrimSpace(latStr), strings.TrimSpace(lonStr)
	if latStr == "" || lonStr == "" {
		return nil
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil
	}
	return model.NewPoint(lon, lat)
}
