package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/alexivanou/simple-geo/internal/config"
	"github.com/alexivanou/simple-geo/internal/database"
	"github.com/alexivanou/simple-geo/internal/stats"
	"go.uber.org/zap"
)

func main() {
	format := flag.String("format", os.Getenv("OUTPUT_FORMAT"), "Output format: json or text")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// a fresh in-memory database has no tables yet
	if cfg.DB.IsMemory() {
		if err := database.Migrate(db, cfg.DB); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	logger.Debug("Collecting statistics", zap.String("db_type", string(cfg.DB.Type)))
	snapshot, err := stats.NewCollector(db, cfg.DB, cfg.Tables).Collect(ctx)
	if err != nil {
		logger.Fatal("Failed to collect statistics", zap.Error(err))
	}

	switch *format {
	case "", "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(snapshot)
	case "text", "human":
		err = printText(os.Stdout, snapshot)
	default:
		logger.Fatal("Unknown output format", zap.String("format", *format))
	}
	if err != nil {
		logger.Fatal("Failed to write statistics", zap.Error(err))
	}
}

func printText(out io.Writer, s *stats.Stats) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	d := s.Database.Directory

	fmt.Fprintf(w, "Collected\t%s\n", s.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Database\t%s, %s, %d records\n", s.Database.Type, formatBytes(uint64(s.Database.SizeBytes)), s.Database.TotalRecords)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Cities\t%d\t%d without point\n", d.Cities, d.CitiesWithoutPoint)
	statuses := make([]string, 0, len(d.CitiesByStatus))
	for status := range d.CitiesByStatus {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Fprintf(w, "  %s\t%d\t\n", status, d.CitiesByStatus[status])
	}
	fmt.Fprintf(w, "Postal codes\t%d\t%d without city, %d without point\n",
		d.PostalCodes, d.PostalCodesWithoutCity, d.PostalCodesWithoutPoint)
	fmt.Fprintln(w)

	for _, ts := range s.Database.TableStats {
		fmt.Fprintf(w, "Table %s\t%d rows\t%s\n", ts.Name, ts.RowCount, formatBytes(uint64(ts.SizeBytes)))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Memory\t%s allocated\t%s from system\n", formatBytes(s.Memory.Alloc), formatBytes(s.Memory.Sys))
	fmt.Fprintf(w, "Runtime\t%s, %d goroutines\tup %ds\n", s.Runtime.GoVersion, s.Runtime.NumGoroutines, s.Runtime.UptimeSeconds)

	return w.Flush()
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
