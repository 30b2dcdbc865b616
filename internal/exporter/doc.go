// Package exporter writes cleaned frames as CSV.
//
// CSVWriter resolves relative paths against a base directory and writes
// whole frames; StreamWriter writes row by row to any io.Writer, which is
// how the HTTP export endpoint streams the current dataset.
//
// Example usage:
//
//	w := exporter.NewCSVWriter("/var/lib/tabviz/exports")
//	err := w.WriteFrame("cleaned.csv", frame, exporter.WriteOptions{BOMPrefix: true})
package exporter
