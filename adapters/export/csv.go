// Package export writes finished sessions to files and fans a save out to
// several sinks.
package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"

	"emgreach/domain/session"
	apperrors "emgreach/internal/errors"
)

// CSVSink writes one CSV file per session into a directory.
type CSVSink struct {
	dir string
}

// NewCSVSink creates a CSV sink writing into dir
func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{dir: dir}
}

func (s *CSVSink) Name() string { return "csv" }

// Save writes the header and every record to <dir>/<name>.csv.
func (s *CSVSink) Save(ctx context.Context, export *session.Export) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := outputPath(s.dir, export, ".csv")
	if err != nil {
		return "", err
	}
	if err := writeCSV(path, export); err != nil {
		return "", apperrors.PersistenceFailure(s.Name(), err)
	}
	return path, nil
}

func writeCSV(path string, export *session.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(headerOf(export)); err != nil {
		return err
	}
	for _, rec := range export.Records {
		if err := w.Write(rec.Row()); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func headerOf(export *session.Export) []string {
	if len(export.Header) > 0 {
		return export.Header
	}
	return session.Header
}

func outputPath(dir string, export *session.Export, ext string) (string, error) {
	if export.Name.IsEmpty() {
		return "", apperrors.InvalidInput("export has no name")
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.PersistenceFailure("output directory", err)
	}
	return filepath.Join(dir, export.Name.String()+ext), nil
}
