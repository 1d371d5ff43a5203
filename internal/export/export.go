// Package export writes postal codes and their cities to CSV in the layout
// the postal code importer reads back.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/alexivanou/simple-geo/internal/model"
	"github.com/alexivanou/simple-geo/internal/repository"
	"github.com/jszwec/csvutil"
	"go.uber.org/zap"
)

// pointPattern pulls the coordinates out of the stored WKT text so the
// exported digits are exactly the stored ones
var pointPattern = regexp.MustCompile(`POINT ?\((-?\d*\.?\d*) (-?\d*\.?\d*)\)`)

// Record is one exported row
type Record struct {
	Code          string `csv:"code"`
	City          string `csv:"city"`
	Region        string `csv:"region"`
	Country       string `csv:"country"`
	CodeUpdated   string `csv:"code_updated"`
	CityUpdated   string `csv:"city_updated"`
	CodeLongitude string `csv:"code_longitude"`
	CodeLatitude  string `csv:"code_latitude"`
	CityLongitude string `csv:"city_longitude"`
	CityLatitude  string `csv:"city_latitude"`
}

// Exporter streams postal codes out of the repository
type Exporter struct {
	repo   repository.PostalCodeRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewExporter creates an exporter
func NewExporter(repo repository.PostalCodeRepository, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{repo: repo, logger: logger, now: time.Now}
}

// FileName returns the export file name for t, e.g. export-20240601-1530.csv
func FileName(t time.Time) string {
	return fmt.Sprintf("export-%s.csv", t.Format("20060102-1504"))
}

// ExtractCoordinates returns the longitude and latitude text of a WKT point
func ExtractCoordinates(wkt string) (lon, lat string, ok bool) {
	m := pointPattern.FindStringSubmatch(wkt)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// NewRecord flattens an export row. Missing city fields and points are empty.
func NewRecord(row model.PostalCodeExportRow) Record {
	rec := Record{
		Code:        row.Code,
		City:        deref(row.CityName),
		Region:      deref(row.Province),
		Country:     deref(row.Country),
		CodeUpdated: row.Updated.UTC().Format(time.RFC3339),
	}
	if row.CityUpdated != nil {
		rec.CityUpdated = row.CityUpdated.UTC().Format(time.RFC3339)
	}
	if row.Point != nil {
		rec.CodeLongitude, rec.CodeLatitude, _ = ExtractCoordinates(*row.Point)
	}
	if row.CityPoint != nil {
		rec.CityLongitude, rec.CityLatitude, _ = ExtractCoordinates(*row.CityPoint)
	}
	return rec
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Write encodes the header and every postal code to w and returns the
// number of rows written
func (e *Exporter) Write(ctx context.Context, w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	if err := enc.EncodeHeader(Record{}); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	count := 0
	err := e.repo.ExportRows(ctx, func(row model.PostalCodeExportRow) error {
		if err := enc.Encode(NewRecord(row)); err != nil {
			return fmt.Errorf("failed to encode %s: %w", row.Code, err)
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return count, fmt.Errorf("failed to flush csv: %w", err)
	}
	return count, nil
}

// ToDir writes a timestamped export file into dir and returns its path
func (e *Exporter) ToDir(ctx context.Context, dir string) (string, int, error) {
	p := filepath.Join(dir, FileName(e.now()))

	f, err := os.Create(p)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create export file: %w", err)
	}

	count, err := e.Write(ctx, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close export file: %w", cerr)
	}
	if err != nil {
		return p, count, err
	}

	e.logger.Info("Exported postal codes", zap.String("path", p), zap.Int("rows", count))
	return p, count, nil
}
