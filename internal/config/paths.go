package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths are the default locations, all anchored at the executable directory
// rather than the working directory:
//
//	tabviz.yaml
//	data/
//	  cache/charts.db
//	  history.db
//	  uploads/
//	logs/
type Paths struct {
	ExecutableDir string
	DataDir       string
	CacheDir      string
	UploadsDir    string
	LogsDir       string
}

// GetPaths returns the application paths relative to the executable location
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}

	return pathsFor(filepath.Dir(exe)), nil
}

func pathsFor(exeDir string) *Paths {
	dataDir := filepath.Join(exeDir, "data")
	return &Paths{
		ExecutableDir: exeDir,
		DataDir:       dataDir,
		CacheDir:      filepath.Join(dataDir, "cache"),
		UploadsDir:    filepath.Join(dataDir, "uploads"),
		LogsDir:       filepath.Join(exeDir, "logs"),
	}
}

// EnsureDirectories creates the data, cache, uploads and logs directories
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.CacheDir, p.UploadsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// EnsureParent creates the directory holding path
func EnsureParent(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return nil
}

// FileExists checks if a regular file exists
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// LogPathResolution logs where each configured file lives
func (c *Config) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("path resolution summary",
		slog.String("data_dir", c.Data.DataDir),
		slog.String("default_dataset", c.Data.DefaultDataset),
		slog.String("history", c.Data.HistoryPath),
		slog.String("chart_cache", c.Charts.CachePath),
		slog.String("log_file", c.Logging.FilePath),
	)
}
