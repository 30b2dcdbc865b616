package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tabviz/internal/dataset"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	BOMPrefix  bool   // Add UTF-8 BOM for Excel compatibility
	NullToken  string // Written for missing cells, empty by default
	DateLayout string // Layout for date cells, dataset.DateLabelLayout by default
}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	baseDir string
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(baseDir string) *CSVWriter {
	return &CSVWriter{baseDir: baseDir}
}

// WriteFrame writes the frame to a file, creating parent directories
func (w *CSVWriter) WriteFrame(filePath string, frame *dataset.Frame, options WriteOptions) error {
	fullPath := w.resolvePath(filePath)

	slog.Debug("Writing CSV file",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("record_count", frame.NumRows()))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := WriteFrame(file, frame, options); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// resolvePath resolves relative paths against the base directory
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.baseDir == "" {
		return filePath
	}
	return filepath.Join(w.baseDir, filePath)
}

// WriteFrame streams the frame to out
func WriteFrame(out io.Writer, frame *dataset.Frame, options WriteOptions) error {
	stream, err := NewStreamWriter(out, frame.Names(), options.BOMPrefix)
	if err != nil {
		return err
	}
	cols := frame.Columns()
	record := make([]string, len(cols))
	for r := 0; r < frame.NumRows(); r++ {
		for j, col := range cols {
			record[j] = cell(col, r, options)
		}
		if err := stream.WriteRecord(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", r, err)
		}
	}
	return stream.Flush()
}

func cell(col *dataset.Column, r int, options WriteOptions) string {
	if col.IsNull(r) {
		return options.NullToken
	}
	if col.Kind == dataset.Date && options.DateLayout != "" {
		return col.Times[r].Format(options.DateLayout)
	}
	return col.Label(r)
}

// StreamWriter provides streaming CSV writing for large datasets
type StreamWriter struct {
	writer *csv.Writer
	closer io.Closer
}

// NewStreamWriter writes the optional BOM and the header line to out
func NewStreamWriter(out io.Writer, headers []string, bom bool) (*StreamWriter, error) {
	if bom {
		if _, err := out.Write(utf8BOM); err != nil {
			return nil, fmt.Errorf("failed to write BOM: %w", err)
		}
	}
	writer := csv.NewWriter(out)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}
	s := &StreamWriter{writer: writer}
	if c, ok := out.(io.Closer); ok {
		s.closer = c
	}
	return s, nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Flush flushes buffered records
func (s *StreamWriter) Flush() error {
	s.writer.Flush()
	return s.writer.Error()
}

// Close flushes and closes the underlying writer when it is closable
func (s *StreamWriter) Close() error {
	if err := s.Flush(); err != nil {
		if s.closer != nil {
			s.closer.Close()
		}
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// ExportFileName builds a timestamped export file name for a source
func ExportFileName(source string, at time.Time) string {
	base := filepath.Base(source)
	base = base[:len(base)-len(filepath.Ext(base))]
	if base == "" || base == "." {
		base = "dataset"
	}
	return fmt.Sprintf("%s_cleaned_%s.csv", base, at.UTC().Format("20060102_150405"))
}
