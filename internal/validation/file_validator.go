package validation

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrFileNotFound is returned when the dataset path does not exist
	ErrFileNotFound = errors.New("file not found")
	// ErrNotAFile is returned for directories and other non-regular files
	ErrNotAFile = errors.New("not a regular file")
	// ErrUnsupportedExtension is returned for extensions no data source reads
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	// ErrFileTooLarge is returned when a file exceeds the size limit
	ErrFileTooLarge = errors.New("file too large")
	// ErrEmptyFile is returned for zero byte inputs
	ErrEmptyFile = errors.New("file is empty")
)

// DatasetExtensions are the extensions the data sources can read
var DatasetExtensions = []string{".csv", ".tsv", ".txt", ".xlsx", ".xlsm"}

// FileValidator checks dataset files and uploads before they are parsed
type FileValidator struct {
	logger     *slog.Logger
	maxSize    int64
	extensions map[string]struct{}
}

// NewFileValidator creates a validator. maxSize <= 0 disables the size check.
func NewFileValidator(logger *slog.Logger, maxSize int64) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	exts := make(map[string]struct{}, len(DatasetExtensions))
	for _, e := range DatasetExtensions {
		exts[e] = struct{}{}
	}
	return &FileValidator{
		logger:     logger.With("component", "file_validator"),
		maxSize:    maxSize,
		extensions: exts,
	}
}

// MaxSize returns the configured size limit
func (v *FileValidator) MaxSize() int64 {
	return v.maxSize
}

// ValidateFile checks that path is an existing, readable regular file
// within the size limit.
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return v.reject(fmt.Errorf("%w: %s", ErrFileNotFound, path))
	case err != nil:
		return v.reject(fmt.Errorf("failed to stat file %s: %w", path, err))
	case !info.Mode().IsRegular():
		return v.reject(fmt.Errorf("%w: %s", ErrNotAFile, path))
	}

	f, err := os.Open(path)
	if err != nil {
		return v.reject(fmt.Errorf("file %s is not readable: %w", path, err))
	}
	_ = f.Close()

	return v.checkSize(path, info.Size())
}

func (v *FileValidator) reject(err error) error {
	v.logger.Warn("dataset file rejected", slog.String("error", err.Error()))
	return err
}

// ValidateDatasetFile checks a dataset on disk: existence, readability,
// extension and size
func (v *FileValidator) ValidateDatasetFile(path string) error {
	if err := v.ValidateExtension(path); err != nil {
		return err
	}
	return v.ValidateFile(path)
}

// ValidateUpload checks an uploaded file by name and declared size
func (v *FileValidator) ValidateUpload(name string, size int64) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: missing file name", ErrUnsupportedExtension)
	}
	if err := v.ValidateExtension(name); err != nil {
		return err
	}
	return v.checkSize(name, size)
}

// ValidateExtension checks the extension against the readable formats.
// Office lock files (~$name.xlsx) are rejected too.
func (v *FileValidator) ValidateExtension(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := v.extensions[ext]; !ok {
		return v.reject(fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext))
	}
	if strings.HasPrefix(filepath.Base(name), "~$") {
		return fmt.Errorf("%w: %s is a temporary Excel file", ErrUnsupportedExtension, name)
	}
	return nil
}

func (v *FileValidator) checkSize(name string, size int64) error {
	if size == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, name)
	}
	if v.maxSize > 0 && size > v.maxSize {
		return v.reject(fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrFileTooLarge, size, v.maxSize))
	}
	return nil
}

// ValidateOutputDirectory creates dir when missing and proves it writable
// with a throwaway temp file.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return v.reject(fmt.Errorf("failed to create output directory %s: %w", dir, err))
	}
	probe, err := os.CreateTemp(dir, ".tabviz-write-*")
	if err != nil {
		return v.reject(fmt.Errorf("output directory %s is not writable: %w", dir, err))
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
