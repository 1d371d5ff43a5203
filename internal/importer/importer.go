// Package importer loads cities and postal codes from GeoNames extracts and
// CSV files, reconciling every row against the stored records by natural key.
package importer

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/alexivanou/simple-geo/internal/repository"
	"github.com/alexivanou/simple-geo/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNoFiles is returned when an import is started without input files
	ErrNoFiles = errors.New("no input files given")
	// ErrMissingColumns is returned when a CSV header lacks a required column
	ErrMissingColumns = errors.New("the first row must label both 'country' and 'code' columns")
)

// Filter restricts an import to one country and/or a set of regions.
// An empty field in a row is never filtered out.
type Filter struct {
	Country string
	Regions map[string]bool
}

// NewFilter builds a filter from a country code and a comma separated
// region list, e.g. NewFilter("ca", "on,qc")
func NewFilter(country, regions string) Filter {
	f := Filter{Country: strings.ToUpper(strings.TrimSpace(country))}
	for _, r := range strings.Split(regions, ",") {
		r = strings.ToUpper(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		if f.Regions == nil {
			f.Regions = make(map[string]bool)
		}
		f.Regions[r] = true
	}
	return f
}

// Allows reports whether a row from country and region passes the filter
func (f Filter) Allows(country, region string) bool {
	if country != "" && f.Country != "" && country != f.Country {
		return false
	}
	if region != "" && len(f.Regions) > 0 && !f.Regions[region] {
		return false
	}
	return true
}

// Summary counts what an import run did
type Summary struct {
	RunID              string `json:"run_id"`
	RowsProcessed      int    `json:"rows_processed"`
	CreatedCities      int    `json:"created_cities"`
	UpdatedCities      int    `json:"updated_cities"`
	CreatedPostalCodes int    `json:"created_postal_codes"`
	UpdatedPostalCodes int    `json:"updated_postal_codes"`
	AbortedFiles       int    `json:"aborted_files"`
}

func (s Summary) String() string {
	return fmt.Sprintf("%d new cities created, %d cities updated, %d new postal codes created, %d postal codes updated. %d rows processed.",
		s.CreatedCities, s.UpdatedCities, s.CreatedPostalCodes, s.UpdatedPostalCodes, s.RowsProcessed)
}

func (s Summary) fields() []zap.Field {
	return []zap.Field{
		zap.Int("rows_processed", s.RowsProcessed),
		zap.Int("created_cities", s.CreatedCities),
		zap.Int("updated_cities", s.UpdatedCities),
		zap.Int("created_postal_codes", s.CreatedPostalCodes),
		zap.Int("updated_postal_codes", s.UpdatedPostalCodes),
		zap.Int("aborted_files", s.AbortedFiles),
	}
}

// Importer runs GeoNames and postal code imports
type Importer struct {
	svc        *service.Service
	postalRepo repository.PostalCodeRepository
	geocoder   service.Geocoder
	filter     Filter
	logger     *zap.Logger
}

// New creates an importer. geocoder fills in postal codes that arrive
// without a coordinate; it may be nil for city imports.
func New(
	svc *service.Service,
	postalRepo repository.PostalCodeRepository,
	geocoder service.Geocoder,
	filter Filter,
	logger *zap.Logger,
) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		svc:        svc,
		postalRepo: postalRepo,
		geocoder:   geocoder,
		filter:     filter,
		logger:     logger,
	}
}

func (im *Importer) newRun() (*Summary, *zap.Logger) {
	s := &Summary{RunID: uuid.NewString()}
	return s, im.logger.With(zap.String("run_id", s.RunID))
}

// normalizeName trims a free-text name and collapses inner whitespace
func normalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// isDir reports whether path names a directory. Directories in the argument
// list are skipped.
func isDir(p string) (bool, error) {
	fi, err := os.Stat(p)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", p, err)
	}
	return fi.IsDir(), nil
}

type zipEntry struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (z *zipEntry) Close() error {
	err := z.ReadCloser.Close()
	if cerr := z.archive.Close(); err == nil {
		err = cerr
	}
	return err
}

// openInput opens a plain file, or the first entry with one of exts inside
// a .zip archive
func openInput(p string, exts ...string) (io.ReadCloser, error) {
	if !strings.EqualFold(filepath.Ext(p), ".zip") {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", p, err)
		}
		return f, nil
	}

	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip %s: %w", p, err)
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !hasExt(f.Name, exts) {
			continue
		}
		if strings.EqualFold(path.Base(f.Name), "readme.txt") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			zr.Close()
			return nil, fmt.Errorf("failed to open %s in zip: %w", f.Name, err)
		}
		return &zipEntry{ReadCloser: rc, archive: zr}, nil
	}

	zr.Close()
	return nil, fmt.Errorf("no %s file found in zip %s", strings.Join(exts, "/"), p)
}

func hasExt(name string, exts []string) bool {
	ext := path.Ext(name)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
