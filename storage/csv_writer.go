package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"myhome-publisher/models"
)

// CSVWriter writes submission results to a CSV report.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	// Write header
	if err := w.Write([]string{
		"run_id", "folder", "product_id", "address", "status", "attempts",
		"photos", "error", "started_at", "finished_at", "duration_s",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// Write appends one row per result.
func (c *CSVWriter) Write(results []*models.SubmissionResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range results {
		row := []string{
			r.RunID,
			r.Folder,
			r.ProductID,
			r.Address,
			string(r.Status),
			strconv.Itoa(r.Attempts),
			strconv.Itoa(r.Photos),
			r.Error,
			r.StartedAt.Format(time.RFC3339),
			r.FinishedAt.Format(time.RFC3339),
			strconv.FormatFloat(r.Duration().Seconds(), 'f', 1, 64),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
