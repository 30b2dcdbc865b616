// Package config loads the tabviz server configuration.
//
// # Sources
//
// Values are layered, later sources winning:
//
//	1. Default()
//	2. a YAML file: $TABVIZ_CONFIG, ./tabviz.yaml, ./configs/tabviz.yaml
//	   or tabviz.yaml next to the executable
//	3. TABVIZ_* environment variables
//
// Environment variables follow the section and field tags:
//
//	TABVIZ_SERVER_PORT=8080
//	TABVIZ_CLEANING_NUMERIC_STRATEGY=zero
//	TABVIZ_CLEANING_DATE_PATTERNS=date,fecha,Start_Time
//	TABVIZ_CHARTS_CACHE_ENABLED=false
//	TABVIZ_DATA_DEFAULT_DATASET=/srv/ventas.csv
//	TABVIZ_DATA_WATCH=true
//	TABVIZ_SECURITY_API_KEYS=s3cret:notebook
//
// # Paths
//
// Relative data paths (history database, chart cache, default dataset) are
// anchored at the data directory, which itself defaults to data/ next to
// the executable. See Paths.
//
// # Validation
//
// Load validates every section with go-playground/validator and a few
// cross-field rules; a server never starts with an invalid configuration.
package config
