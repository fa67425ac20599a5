// Package importer loads CSV files into database tables in parallel batches.
// Header names are matched against table columns so exports from other tools
// can be loaded without reshaping the file first.
package importer

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"
)

const (
	DefaultBatchSize   = 1000
	DefaultWorkerCount = 4
)

// ImportConfig holds the configuration for a data import.
type ImportConfig struct {
	Table        string
	BatchSize    int
	WorkerCount  int
	ValidateOnly bool
}

// ImportStats tracks progress and failures across workers.
type ImportStats struct {
	mu        sync.Mutex
	Total     int
	Succeeded int
	Failed    int
	Errors    map[string]int
	start     time.Time
}

func NewImportStats() *ImportStats {
	return &ImportStats{
		Errors: make(map[string]int),
		start:  time.Now(),
	}
}

func (s *ImportStats) addBatch(size int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Total += size
	if err != nil {
		s.Failed += size
		s.Errors[err.Error()]++
		return
	}
	s.Succeeded += size
}

// PrintSummary logs the final counts and timing.
func (s *ImportStats) PrintSummary() {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Printf("Import finished in %s: %d rows, %d succeeded, %d failed",
		time.Since(s.start).Round(time.Millisecond), s.Total, s.Succeeded, s.Failed)
	for msg, count := range s.Errors {
		log.Printf("  %dx %s", count, msg)
	}
}

// DataImporter streams CSV batches into a table through a worker pool.
type DataImporter struct {
	db     *sql.DB
	config ImportConfig
	stats  *ImportStats
}

func NewDataImporter(db *sql.DB, config ImportConfig) *DataImporter {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultWorkerCount
	}
	return &DataImporter{db: db, config: config, stats: NewImportStats()}
}

// ImportData reads the header then fans batches out to workers. The header
// names must match columns on the destination table.
func (d *DataImporter) ImportData(ctx context.Context, reader *csv.Reader) error {
	headers, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	columns, err := d.matchColumns(ctx, headers)
	if err != nil {
		return err
	}
	if d.config.ValidateOnly {
		log.Printf("Validation passed: %d columns matched on %s", len(columns), d.config.Table)
		return nil
	}

	batches := make(chan [][]string, d.config.WorkerCount)
	var wg sync.WaitGroup
	for i := 0; i < d.config.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batches {
				err := d.insertBatch(ctx, columns, batch)
				d.stats.addBatch(len(batch), err)
			}
		}()
	}

	batch := make([][]string, 0, d.config.BatchSize)
	var readErr error
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			readErr = fmt.Errorf("read csv: %w", err)
			break
		}
		if len(record) != len(headers) {
			d.stats.addBatch(1, fmt.Errorf("row has %d fields, want %d", len(record), len(headers)))
			continue
		}
		batch = append(batch, record)
		if len(batch) >= d.config.BatchSize {
			batches <- batch
			batch = make([][]string, 0, d.config.BatchSize)
		}
		if ctx.Err() != nil {
			readErr = ctx.Err()
			break
		}
	}
	if len(batch) > 0 && readErr == nil {
		batches <- batch
	}
	close(batches)
	wg.Wait()

	d.stats.PrintSummary()
	if readErr != nil {
		return readErr
	}
	if d.stats.Failed > 0 {
		return fmt.Errorf("%d of %d rows failed to import", d.stats.Failed, d.stats.Total)
	}
	return nil
}

// Stats exposes the counters after an import.
func (d *DataImporter) Stats() *ImportStats {
	return d.stats
}

// matchColumns verifies every CSV header exists as a column on the table and
// returns the normalized column list in header order.
func (d *DataImporter) matchColumns(ctx context.Context, headers []string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1`, d.config.Table)
	if err != nil {
		return nil, fmt.Errorf("describe table %s: %w", d.config.Table, err)
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		known[name] = true
	}
	if len(known) == 0 {
		return nil, fmt.Errorf("table %s does not exist", d.config.Table)
	}

	columns := make([]string, 0, len(headers))
	for _, h := range headers {
		col := normalizeColumn(h)
		if !known[col] {
			return nil, fmt.Errorf("csv column %q has no match on table %s", h, d.config.Table)
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// buildInsert renders the multi-row insert for one batch. Empty fields become
// NULL.
func buildInsert(table string, columns []string, batch [][]string) (string, []any) {
	placeholders := make([]string, 0, len(batch))
	args := make([]any, 0, len(batch)*len(columns))
	i := 1
	for _, record := range batch {
		row := make([]string, len(columns))
		for j, field := range record {
			row[j] = fmt.Sprintf("$%d", i)
			i++
			if strings.TrimSpace(field) == "" {
				args = append(args, nil)
			} else {
				args = append(args, field)
			}
		}
		placeholders = append(placeholders, "("+strings.Join(row, ", ")+")")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	return query, args
}

// insertBatch writes one batch inside a transaction.
func (d *DataImporter) insertBatch(ctx context.Context, columns []string, batch [][]string) error {
	query, args := buildInsert(d.config.Table, columns, batch)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// normalizeColumn maps a CSV header to its database column form.
func normalizeColumn(header string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(header), " ", "_"))
}

// ImportData is the convenience entry point used by the CLI.
func ImportData(ctx context.Context, db *sql.DB, config ImportConfig, reader *csv.Reader) error {
	return NewDataImporter(db, config).ImportData(ctx, reader)
}
