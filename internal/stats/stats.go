// Package stats reports on the process and on how complete the directory is.
package stats

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/alexivanou/simple-geo/internal/config"
	"github.com/alexivanou/simple-geo/internal/model"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/singleflight"
)

// Stats is a point-in-time snapshot of the process and its database
type Stats struct {
	Timestamp time.Time     `json:"timestamp"`
	Memory    MemoryStats   `json:"memory"`
	Database  DatabaseStats `json:"database"`
	Runtime   RuntimeStats  `json:"runtime"`
}

type MemoryStats struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
	HeapInuse  uint64 `json:"heap_inuse"`
}

type DatabaseStats struct {
	Type         string         `json:"type"`
	TotalRecords int64          `json:"total_records"`
	SizeBytes    int64          `json:"size_bytes"`
	TableStats   []TableStat    `json:"table_stats"`
	Directory    DirectoryStats `json:"directory"`
}

// DirectoryStats describes how complete the city and postal code data is
type DirectoryStats struct {
	Cities                  int64            `json:"cities"`
	CitiesWithoutPoint      int64            `json:"cities_without_point"`
	CitiesByStatus          map[string]int64 `json:"cities_by_status"`
	PostalCodes             int64            `json:"postal_codes"`
	PostalCodesWithoutCity  int64            `json:"postal_codes_without_city"`
	PostalCodesWithoutPoint int64            `json:"postal_codes_without_point"`
}

type TableStat struct {
	Name      string `json:"name"`
	RowCount  int64  `json:"row_count"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

type RuntimeStats struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	NumCPU        int    `json:"num_cpu"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// dialect holds the size queries for one database type.
// tableSize takes the table name as its only argument.
type dialect struct {
	databaseSize string
	tableSize    string
}

var (
	postgresDialect = dialect{
		databaseSize: "SELECT pg_database_size(current_database())",
		tableSize:    "SELECT COALESCE(pg_total_relation_size(?::regclass), 0)",
	}
	// dbstat is only present when sqlite is built with SQLITE_ENABLE_DBSTAT_VTAB
	sqliteDialect = dialect{
		databaseSize: "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()",
		tableSize:    "SELECT COALESCE(SUM(pgsize), 0) FROM dbstat WHERE name = ?",
	}
)

// Collector gathers Stats for the configured city and postal code tables
type Collector struct {
	db        *sqlx.DB
	dbType    config.DBType
	dialect   dialect
	tables    config.TableConfig
	startTime time.Time
	group     singleflight.Group
}

// NewCollector creates a collector over the configured city and postal code tables
func NewCollector(db *sqlx.DB, cfg config.DBConfig, tables config.TableConfig) *Collector {
	d := sqliteDialect
	if cfg.Type == config.DBTypePostgreSQL {
		d = postgresDialect
	}
	return &Collector{
		db:        db,
		dbType:    cfg.Type,
		dialect:   d,
		tables:    tables,
		startTime: time.Now(),
	}
}

// collectTimeout bounds a shared collection once it is detached from its caller
const collectTimeout = 30 * time.Second

// Collect takes a snapshot. Concurrent callers share a single collection,
// which runs on a context detached from whichever caller started it.
func (c *Collector) Collect(ctx context.Context) (*Stats, error) {
	v, err, _ := c.group.Do("collect", func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), collectTimeout)
		defer cancel()
		return c.collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Stats), nil
}

func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	directory, err := c.directory(ctx)
	if err != nil {
		return nil, err
	}

	db := DatabaseStats{
		Type:       string(c.dbType),
		TableStats: c.tableStats(ctx),
		Directory:  *directory,
	}
	// size is best effort; not every build exposes it
	_ = c.db.GetContext(ctx, &db.SizeBytes, c.dialect.databaseSize)
	for _, ts := range db.TableStats {
		db.TotalRecords += ts.RowCount
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return &Stats{
		Timestamp: time.Now().UTC(),
		Memory: MemoryStats{
			Alloc:      m.Alloc,
			TotalAlloc: m.TotalAlloc,
			Sys:        m.Sys,
			NumGC:      m.NumGC,
			HeapInuse:  m.HeapInuse,
		},
		Database: db,
		Runtime: RuntimeStats{
			GoVersion:     runtime.Version(),
			NumGoroutines: runtime.NumGoroutine(),
			NumCPU:        runtime.NumCPU(),
			UptimeSeconds: int64(time.Since(c.startTime).Seconds()),
		},
	}, nil
}

func (c *Collector) directory(ctx context.Context) (*DirectoryStats, error) {
	d := &DirectoryStats{CitiesByStatus: make(map[string]int64)}
	city, pc := c.tables.City, c.tables.PostalCode

	counts := []struct {
		dest  *int64
		query string
	}{
		{&d.Cities, "SELECT COUNT(*) FROM " + city},
		{&d.CitiesWithoutPoint, "SELECT COUNT(*) FROM " + city + " WHERE point IS NULL"},
		{&d.PostalCodes, "SELECT COUNT(*) FROM " + pc},
		{&d.PostalCodesWithoutCity, "SELECT COUNT(*) FROM " + pc + " WHERE city_id IS NULL"},
		{&d.PostalCodesWithoutPoint, "SELECT COUNT(*) FROM " + pc + " WHERE point IS NULL"},
	}
	for _, q := range counts {
		if err := c.db.GetContext(ctx, q.dest, q.query); err != nil {
			return nil, fmt.Errorf("failed to count directory records: %w", err)
		}
	}

	var byStatus []struct {
		Status model.CityStatus `db:"status"`
		Count  int64            `db:"count"`
	}
	query := "SELECT status, COUNT(*) AS count FROM " + city + " GROUP BY status"
	if err := c.db.SelectContext(ctx, &byStatus, query); err != nil {
		return nil, fmt.Errorf("failed to count cities by status: %w", err)
	}
	for _, row := range byStatus {
		d.CitiesByStatus[row.Status.String()] = row.Count
	}

	return d, nil
}

// tableStats skips tables it cannot count, e.g. schema_migrations before
// the first migration
func (c *Collector) tableStats(ctx context.Context) []TableStat {
	names := []string{c.tables.City, c.tables.PostalCode, "schema_migrations"}

	stats := make([]TableStat, 0, len(names))
	for _, name := range names {
		ts := TableStat{Name: name}
		if err := c.db.GetContext(ctx, &ts.RowCount, "SELECT COUNT(*) FROM "+name); err != nil {
			continue
		}
		_ = c.db.GetContext(ctx, &ts.SizeBytes, c.db.Rebind(c.dialect.tableSize), name)
		stats = append(stats, ts)
	}
	return stats
}
