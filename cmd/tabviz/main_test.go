package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ventasCSV = `fecha,region,monto,notas
2024-01-05,Norte,100,
2024-01-17,Sur,250.5,
2024-02-03,Norte,,
2024-02-21,Este,80,
2024-03-10,Sur,120,revisar
2024-03-28,Norte,95,
`

// isolate points the config loader and data directory at a temp dir
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TABVIZ_CONFIG", filepath.Join(dir, "missing.yaml"))
	t.Setenv("TABVIZ_DATA_DIR", dir)
	path := filepath.Join(dir, "ventas.csv")
	require.NoError(t, os.WriteFile(path, []byte(ventasCSV), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCleanCommand(t *testing.T) {
	path := isolate(t)

	t.Run("stdout", func(t *testing.T) {
		stdout, stderr, err := execute(t, "clean", path)
		require.NoError(t, err, stderr)

		lines := strings.Split(strings.TrimSpace(stdout), "\n")
		assert.Len(t, lines, 7, "header plus six rows")
		assert.NotContains(t, lines[0], "notas", "mostly empty column is dropped")
		assert.Contains(t, stderr, "6 rows")
	})

	t.Run("file with BOM", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "limpio.csv")
		_, stderr, err := execute(t, "clean", path, "--out", out, "--bom", "--quiet")
		require.NoError(t, err)
		assert.Empty(t, stderr)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("\xEF\xBB\xBF")))
	})

	t.Run("invalid strategy", func(t *testing.T) {
		_, _, err := execute(t, "clean", path, "--numeric", "median")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := execute(t, "clean", filepath.Join(t.TempDir(), "nope.csv"))
		assert.Error(t, err)
	})
}

func TestProfileCommand(t *testing.T) {
	path := isolate(t)

	t.Run("table", func(t *testing.T) {
		stdout, _, err := execute(t, "profile", path, "--log")
		require.NoError(t, err)
		assert.Contains(t, stdout, "COLUMN")
		assert.Contains(t, stdout, "region")
		assert.Contains(t, stdout, "monto")
	})

	t.Run("json", func(t *testing.T) {
		stdout, _, err := execute(t, "profile", path, "--json")
		require.NoError(t, err)

		var report map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(stdout), &report), stdout)
		assert.EqualValues(t, 6, report["rows"])
		assert.NotEmpty(t, report["columns"])
		assert.NotEmpty(t, report["describe"])
	})
}

func TestChartCommand(t *testing.T) {
	path := isolate(t)

	t.Run("bar", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "ventas.png")
		stdout, stderr, err := execute(t, "chart", path,
			"--kind", "bar", "--x", "region", "--y", "monto", "--agg", "sum",
			"--width", "640", "--height", "480", "--out", out)
		require.NoError(t, err, stderr)
		assert.Contains(t, stdout, "wrote bar chart")

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
	})

	t.Run("kind is required", func(t *testing.T) {
		_, _, err := execute(t, "chart", path)
		assert.Error(t, err)
	})

	t.Run("unknown column", func(t *testing.T) {
		_, _, err := execute(t, "chart", path, "--kind", "histogram", "--x", "precio",
			"--out", filepath.Join(t.TempDir(), "h.png"))
		assert.Error(t, err)
	})
}

func TestChartRequestFromFlags(t *testing.T) {
	opts := &chartOptions{kind: "line", x: "fecha", y: "monto", agg: "mean",
		group: "region", xBucket: "monthly", groupValues: []string{"Norte", "Sur"}}

	req := opts.request()
	assert.Equal(t, "line", req.Kind)
	assert.Equal(t, "monthly", req.XBucket)
	assert.Equal(t, []any{"Norte", "Sur"}, req.GroupValues)
}
