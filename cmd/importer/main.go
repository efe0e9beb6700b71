package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"contract-risk-eval/backend/internal/extract"
	"contract-risk-eval/backend/internal/market"
	"contract-risk-eval/backend/internal/pipeline"
	"contract-risk-eval/backend/internal/store"
	"contract-risk-eval/backend/internal/vendors"
)

func main() {
	var (
		dbPath        = flag.String("db", filepath.FromSlash("data/contract-risk.db"), "Path to SQLite database")
		vendorPath    = flag.String("vendors", "", "Vendor master CSV (name, category, metric columns)")
		benchmarkPath = flag.String("benchmarks", "", "Benchmark price CSV (description, unit_price, source)")
		minPrice      = flag.Float64("min-price", 1.0, "Minimum unit price for benchmark rows")
	)
	flag.Parse()

	if *vendorPath == "" && *benchmarkPath == "" {
		logrus.Fatal("nothing to import: pass -vendors and/or -benchmarks")
	}

	db, err := store.Open(*dbPath, true)
	if err != nil {
		logrus.Fatalf("open database: %v", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close database")
		}
	}()

	if *vendorPath != "" {
		start := time.Now()
		count, err := importVendors(db, *vendorPath)
		if err != nil {
			logrus.Fatalf("import vendors: %v", err)
		}
		logrus.WithFields(logrus.Fields{
			"path":     *vendorPath,
			"vendors":  count,
			"duration": time.Since(start).Round(time.Millisecond),
		}).Info("vendor master import complete")
	}

	if *benchmarkPath != "" {
		start := time.Now()
		index := market.NewIndex(db)
		count, err := index.LoadFromCSV(*benchmarkPath, *minPrice)
		if err != nil {
			logrus.Fatalf("import benchmarks: %v", err)
		}
		logrus.WithFields(logrus.Fields{
			"path":     *benchmarkPath,
			"records":  count,
			"duration": time.Since(start).Round(time.Millisecond),
		}).Info("benchmark price import complete")
	}
}

// importVendors loads vendor master rows and stores each with its baseline
// score and grade. Metric columns are matched by header name; missing
// metrics default to zero.
func importVendors(db *store.Database, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for idx, value := range header {
		columns[strings.ToLower(strings.TrimSpace(value))] = idx
	}
	if _, ok := columns["name"]; !ok {
		return 0, errors.New("vendor csv requires a name column")
	}

	field := func(record []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}
	metric := func(record []string, name string) float64 {
		v, _ := strconv.ParseFloat(field(record, name), 64)
		return pipeline.Clamp(v, 0, 100)
	}

	imported := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read csv: %w", err)
		}

		name := field(record, "name")
		if name == "" {
			continue
		}

		metrics := vendors.Metrics{
			OnTimeDelivery: metric(record, "on_time_delivery"),
			Quality:        metric(record, "quality"),
			ResponseTime:   metric(record, "response_time"),
			CostEfficiency: metric(record, "cost_efficiency"),
			Compliance:     metric(record, "compliance"),
		}
		baseline := metrics.Baseline()

		now := time.Now().UTC()
		row := store.VendorRecord{
			Name:         name,
			NameKey:      extract.NormalizeKey(name),
			Category:     field(record, "category"),
			OverallScore: baseline,
			Grade:        pipeline.GradeBands.Classify(baseline),
			LastScoredAt: &now,
		}
		row.SetMetrics(map[string]float64{
			"on_time_delivery": metrics.OnTimeDelivery,
			"quality":          metrics.Quality,
			"response_time":    metrics.ResponseTime,
			"cost_efficiency":  metrics.CostEfficiency,
			"compliance":       metrics.Compliance,
		})

		if err := db.UpsertVendorRecord(&row); err != nil {
			return imported, fmt.Errorf("upsert vendor %s: %w", name, err)
		}
		imported++
	}
	return imported, nil
}
