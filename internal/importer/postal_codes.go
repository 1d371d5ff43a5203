package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/alexivanou/simple-geo/internal/geocode"
	"github.com/alexivanou/simple-geo/internal/model"
	"github.com/alexivanou/simple-geo/internal/service"
	"github.com/jszwec/csvutil"
	"go.uber.org/zap"
)

// Recognized CSV columns
const (
	ColumnCode          = "code"
	ColumnCity          = "city"
	ColumnRegion        = "region"
	ColumnCountry       = "country"
	ColumnCodeUpdated   = "code_updated"
	ColumnCityUpdated   = "city_updated"
	ColumnCodeLatitude  = "code_latitude"
	ColumnCodeLongitude = "code_longitude"
	ColumnCityLatitude  = "city_latitude"
	ColumnCityLongitude = "city_longitude"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// postalCodeRecord is one raw CSV row. Columns absent from the header stay empty.
type postalCodeRecord struct {
	Code          string `csv:"code"`
	City          string `csv:"city"`
	Region        string `csv:"region"`
	Country       string `csv:"country"`
	CodeUpdated   string `csv:"code_updated"`
	CityUpdated   string `csv:"city_updated"`
	CodeLatitude  string `csv:"code_latitude"`
	CodeLongitude string `csv:"code_longitude"`
	CityLatitude  string `csv:"city_latitude"`
	CityLongitude string `csv:"city_longitude"`
}

// postalCodeRow is a normalized row
type postalCodeRow struct {
	Code        string
	City        string
	Region      string
	Country     string
	CodeUpdated time.Time
	CityUpdated time.Time
	CodePoint   *model.Point
	CityPoint   *model.Point
}

// NormalizeCode uppercases a postal code and strips spaces and hyphens,
// so "m5v 2t6" and "M5V-2T6" both become "M5V2T6"
func NormalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.NewReplacer(" ", "", "-", "").Replace(code)
}

// errFileAborted stops the current file without failing the run
var errFileAborted = errors.New("file aborted")

// ImportPostalCodes reads CSV files (or .zip archives holding one) with a
// header row and creates or updates the postal codes and cities they list.
// A geocoding error stops the current file; the remaining files still run.
func (im *Importer) ImportPostalCodes(ctx context.Context, paths []string) (*Summary, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}

	summary, logger := im.newRun()
	logger.Info("Starting postal code import", zap.Strings("files", paths))

	for _, p := range paths {
		dir, err := isDir(p)
		if err != nil {
			return summary, err
		}
		if dir {
			logger.Info("Skipping directory", zap.String("path", p))
			continue
		}

		err = im.importPostalCodeFile(ctx, p, summary, logger)
		if errors.Is(err, errFileAborted) {
			summary.AbortedFiles++
			continue
		}
		if err != nil {
			return summary, err
		}
	}

	logger.Info("Postal code import finished", summary.fields()...)
	return summary, nil
}

func (im *Importer) importPostalCodeFile(ctx context.Context, p string, summary *Summary, logger *zap.Logger) error {
	rc, err := openInput(p, ".csv", ".txt")
	if err != nil {
		return err
	}
	defer rc.Close()

	logger = logger.With(zap.String("file", p))
	logger.Info("Importing postal codes")

	return im.importPostalCodes(ctx, rc, summary, logger)
}

func (im *Importer) importPostalCodes(ctx context.Context, r io.Reader, summary *Summary, logger *zap.Logger) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := readHeader(cr)
	if err != nil {
		return err
	}

	dec, err := csvutil.NewDecoder(cr, header...)
	if err != nil {
		return fmt.Errorf("failed to read csv header: %w", err)
	}

	importTime := im.svc.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var rec postalCodeRecord
		err := dec.Decode(&rec)
		if err == io.EOF {
			break
		}
		summary.RowsProcessed++
		if err != nil {
			logger.Warn("Skipping unreadable row", zap.Int("row", summary.RowsProcessed), zap.Error(err))
			continue
		}

		row := normalizeRecord(rec, importTime, logger)
		if !im.filter.Allows(row.Country, row.Region) {
			continue
		}

		if err := im.reconcilePostalCode(ctx, row, summary, logger); err != nil {
			return err
		}
	}

	return nil
}

// readHeader reads the first record and returns the lowercased column
// names. The code and country columns are required.
func readHeader(cr *csv.Reader) ([]string, error) {
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: file is empty", ErrMissingColumns)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	seen := make(map[string]bool, len(header))
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		header[i] = col
		seen[col] = true
	}
	if !seen[ColumnCode] || !seen[ColumnCountry] {
		return nil, ErrMissingColumns
	}
	return header, nil
}

func normalizeRecord(rec postalCodeRecord, importTime time.Time, logger *zap.Logger) postalCodeRow {
	return postalCodeRow{
		Code:        NormalizeCode(rec.Code),
		City:        normalizeName(rec.City),
		Region:      strings.ToUpper(strings.TrimSpace(rec.Region)),
		Country:     strings.ToUpper(strings.TrimSpace(rec.Country)),
		CodeUpdated: parseTimestamp(rec.CodeUpdated, importTime, logger),
		CityUpdated: parseTimestamp(rec.CityUpdated, importTime, logger),
		CodePoint:   parseCSVPoint(rec.CodeLongitude, rec.CodeLatitude, logger),
		CityPoint:   parseCSVPoint(rec.CityLongitude, rec.CityLatitude, logger),
	}
}

// ParseTimestamp reads an RFC3339, "2006-01-02 15:04:05" or "2006-01-02"
// timestamp. Zone-less values are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func parseTimestamp(s string, fallback time.Time, logger *zap.Logger) time.Time {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		logger.Warn("Unreadable timestamp, using import time", zap.String("value", s))
		return fallback
	}
	return t
}

func parseCSVPoint(lonStr, latStr string, logger *zap.Logger) *model.Point {
	lonStr, latStr = strings.TrimSpace(lonStr), strings.TrimSpace(latStr)
	if lonStr == "" && latStr == "" {
		return nil
	}
	lon, lonErr := strconv.ParseFloat(lonStr, 64)
	lat, latErr := strconv.ParseFloat(latStr, 64)
	if lonErr != nil || latErr != nil {
		logger.Warn("Unreadable coordinate, treating row as point-less",
			zap.String("longitude", lonStr),
			zap.String("latitude", latStr),
		)
		return nil
	}
	return model.NewPoint(lon, lat)
}

func (im *Importer) findPostalCode(ctx context.Context, code, country string) (*model.PostalCode, error) {
	pc, err := im.postalRepo.FindByCodeInCountry(ctx, code, country)
	if err != nil {
		return nil, fmt.Errorf("failed to look up postal code %s: %w", code, err)
	}
	if pc != nil {
		return pc, nil
	}

	// a postal code may exist without a city yet
	pc, err = im.postalRepo.FindUnassigned(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to look up postal code %s: %w", code, err)
	}
	return pc, nil
}

func (im *Importer) reconcilePostalCode(ctx context.Context, row postalCodeRow, summary *Summary, logger *zap.Logger) error {
	var (
		pc  *model.PostalCode
		err error
	)
	if row.Code != "" {
		if pc, err = im.findPostalCode(ctx, row.Code, row.Country); err != nil {
			return err
		}
	}

	city, created, err := im.svc.GetOrCreateCity(ctx, service.CityInput{
		Name:     row.City,
		Province: row.Region,
		Country:  row.Country,
		Point:    row.CityPoint,
		Updated:  &row.CityUpdated,
	})
	if err != nil {
		return err
	}
	if created {
		summary.CreatedCities++
		logger.Debug("Created city", zap.String("city", city.String()))
	} else if city != nil {
		updated, err := im.svc.UpdateCityPoint(ctx, city, row.CityPoint, row.CityUpdated)
		if err != nil {
			return err
		}
		if updated {
			summary.UpdatedCities++
			logger.Debug("Updated city point", zap.String("city", city.String()))
		}
	}

	switch {
	case pc != nil:
		return im.updatePostalCode(ctx, pc, city, row, summary, logger)
	case row.Code == "":
		return nil
	case row.CodePoint != nil && city != nil:
		pc = &model.PostalCode{CityID: &city.ID, Code: row.Code, Point: row.CodePoint, City: city}
		if err := im.svc.SavePostalCode(ctx, pc, &row.CodeUpdated); err != nil {
			return err
		}
		summary.CreatedPostalCodes++
		logger.Debug("Created postal code", zap.String("postal_code", pc.String()))
		return nil
	default:
		return im.createGeocodedPostalCode(ctx, row, summary, logger)
	}
}

func (im *Importer) updatePostalCode(
	ctx context.Context,
	pc *model.PostalCode,
	city *model.City,
	row postalCodeRow,
	summary *Summary,
	logger *zap.Logger,
) error {
	changed := false
	if city != nil && (pc.CityID == nil || *pc.CityID != city.ID) {
		pc.CityID = &city.ID
		pc.City = city
		changed = true
		logger.Debug("Relinking postal code", zap.String("postal_code", pc.String()))
	}
	if service.ShouldUpdatePoint(pc.Point, pc.Updated, row.CodePoint, row.CodeUpdated) {
		pc.Point = row.CodePoint
		changed = true
		logger.Debug("Moving postal code point", zap.String("postal_code", pc.String()))
	}
	if !changed {
		return nil
	}

	if err := im.svc.SavePostalCode(ctx, pc, &row.CodeUpdated); err != nil {
		return err
	}
	summary.UpdatedPostalCodes++
	return nil
}

func (im *Importer) createGeocodedPostalCode(ctx context.Context, row postalCodeRow, summary *Summary, logger *zap.Logger) error {
	if im.geocoder == nil {
		logger.Warn("No geocoder configured, skipping postal code without a point", zap.String("code", row.Code))
		return nil
	}

	res, err := im.geocoder.Geocode(ctx, geocode.Query{
		City:       row.City,
		Region:     row.Region,
		Country:    row.Country,
		PostalCode: row.Code,
	})
	if err != nil {
		logger.Error("Geocoding failed, abandoning the rest of the file",
			zap.String("code", row.Code),
			zap.Bool("quota", geocode.IsQuotaError(err)),
			zap.Error(err),
		)
		return errFileAborted
	}
	if res.Empty() {
		logger.Info("Geocoder found nothing, skipping", zap.String("code", row.Code))
		return nil
	}

	city, created, err := im.svc.GetOrCreateCity(ctx, service.CityInput{
		Name:     res.CityName(),
		Province: strings.ToUpper(res.Component(geocode.AdministrativeAreaLevel1)),
		Country:  strings.ToUpper(res.Component(geocode.Country)),
	})
	if err != nil {
		return err
	}
	if created {
		summary.CreatedCities++
	}

	code := NormalizeCode(res.Component(geocode.PostalCode))
	if code == "" {
		code = row.Code
	}

	pc := &model.PostalCode{Code: code, City: city}
	if city != nil {
		pc.CityID = &city.ID
	}
	if res.Point != nil {
		pc.Point = model.NewPoint(res.Point.Lng, res.Point.Lat)
	}

	if err := im.svc.SavePostalCode(ctx, pc, &row.CodeUpdated); err != nil {
		return err
	}
	summary.CreatedPostalCodes++
	logger.Debug("Created geocoded postal code", zap.String("postal_code", pc.String()))
	return nil
}
