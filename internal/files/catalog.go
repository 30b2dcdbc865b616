package files

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrOutsideRoot is returned when a relative name escapes the catalog root
var ErrOutsideRoot = errors.New("path escapes the data directory")

// maxDepth limits how far below the root List descends
const maxDepth = 2

// DatasetFile describes a readable dataset below the catalog root
type DatasetFile struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Format   string    `json:"format"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Catalog lists and resolves dataset files under a root directory
type Catalog struct {
	root       string
	extensions map[string]struct{}
}

// NewCatalog creates a catalog rooted at root. Only files whose extension
// is in extensions are listed.
func NewCatalog(root string, extensions []string) *Catalog {
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	return &Catalog{root: root, extensions: exts}
}

// Root returns the catalog directory
func (c *Catalog) Root() string {
	return c.root
}

// List returns the dataset files under the root, newest first. Hidden
// files and directories are skipped.
func (c *Catalog) List() ([]DatasetFile, error) {
	files := []DatasetFile{}

	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == c.root {
				return err
			}
			// Unreadable entries below the root are skipped
			return nil
		}

		rel, relErr := filepath.Rel(c.root, path)
		if relErr != nil {
			return nil
		}
		if rel != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if rel != "." && strings.Count(rel, string(filepath.Separator)) >= maxDepth-1 {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		if _, ok := c.extensions[ext]; !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, DatasetFile{
			Name:     filepath.ToSlash(rel),
			Path:     path,
			Format:   strings.TrimPrefix(ext, "."),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", c.root, err)
	}

	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].Modified.Equal(files[j].Modified) {
			return files[i].Modified.After(files[j].Modified)
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// Resolve maps name to a filesystem path. Absolute paths are returned
// cleaned; relative names are joined to the root and may not escape it.
func (c *Catalog) Resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("empty file name")
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) {
		return clean, nil
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, name)
	}
	return filepath.Join(c.root, clean), nil
}
