// Package files lists and resolves the dataset files kept in the data
// directory.
//
// A Catalog walks its root (and one level of subdirectories, such as
// uploads/) for files the data sources can read:
//
//	catalog := files.NewCatalog(cfg.Data.DataDir, validation.DatasetExtensions)
//	available, err := catalog.List()
//
// Resolve turns a name from an API request into a path. Relative names are
// anchored at the root and rejected with ErrOutsideRoot if they climb out
// of it.
package files
