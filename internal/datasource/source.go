package datasource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/xxh3"

	"tabviz/internal/dataset"
)

// Format identifies the on-disk layout of a dataset
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var (
	// ErrUnreadable is returned when the input cannot be read or parsed as a table
	ErrUnreadable = errors.New("dataset unreadable")
	// ErrUnsupportedFormat is returned for extensions other than csv, tsv, txt and xlsx
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
)

// Payload is a parsed raw dataset together with the fingerprint of its bytes
type Payload struct {
	Name        string
	Format      Format
	Frame       *dataset.Frame
	Fingerprint uint64
	Size        int64
}

// Options controls parsing
type Options struct {
	// Delimiter for delimited text, 0 means sniff from the header line
	Delimiter rune
	// Sheet selects an XLSX sheet, empty means the first sheet with data
	Sheet string
}

// DetectFormat maps a file name to a format by extension
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv", ".txt", "":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// LoadFile reads and parses the dataset at path
func LoadFile(ctx context.Context, path string, opts Options) (*Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()
	return Load(ctx, filepath.Base(path), f, opts)
}

// Load parses a dataset from a stream. The name is only used to pick the format.
func Load(ctx context.Context, name string, r io.Reader, opts Options) (*Payload, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var frame *dataset.Frame
	switch format {
	case FormatXLSX:
		frame, err = parseXLSX(bytes.NewReader(data), opts.Sheet)
	default:
		frame, err = parseCSV(data, opts.Delimiter)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	return &Payload{
		Name:        name,
		Format:      format,
		Frame:       frame,
		Fingerprint: xxh3.Hash(data),
		Size:        int64(len(data)),
	}, nil
}
