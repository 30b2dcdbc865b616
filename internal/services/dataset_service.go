package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"tabviz/internal/charts"
	"tabviz/internal/dataprocessing"
	"tabviz/internal/dataset"
	"tabviz/internal/datasource"
	"tabviz/internal/exporter"
	"tabviz/internal/files"
	"tabviz/internal/infrastructure"
	"tabviz/internal/session"
	"tabviz/internal/storage"
	"tabviz/internal/validation"
	"tabviz/pkg/contracts/events"
)

// Load origins recorded in metrics, history and events
const (
	OriginPath   = "path"
	OriginUpload = "upload"
	OriginWatch  = "watch"
	OriginCast   = "cast"
)

// PreviewRows is the number of rows returned with a load summary
const PreviewRows = 10

// EventBroadcaster pushes dataset events to connected clients
type EventBroadcaster interface {
	Broadcast(messageType string, data interface{})
}

// LoadHistory persists one record per published load
type LoadHistory interface {
	Record(ctx context.Context, rec storage.LoadRecord) error
	Recent(ctx context.Context, limit int) ([]storage.LoadRecord, error)
}

// DatasetDeps are the collaborators of a DatasetService. Catalog, History,
// Events and Metrics are optional.
type DatasetDeps struct {
	Store    *session.Store
	Cleaner  *dataprocessing.Cleaner
	Profiler *dataprocessing.Profiler
	Caster   *dataprocessing.TypeCaster
	Resolver *charts.Resolver
	Files    *validation.FileValidator
	Catalog  *files.Catalog
	History  LoadHistory
	Events   EventBroadcaster
	Metrics  *infrastructure.BusinessMetrics
	Source   datasource.Options
	Export   exporter.WriteOptions
	Logger   *slog.Logger
}

// DatasetService loads, cleans and publishes datasets and answers
// introspection queries against the current snapshot
type DatasetService struct {
	store    *session.Store
	cleaner  *dataprocessing.Cleaner
	profiler *dataprocessing.Profiler
	caster   *dataprocessing.TypeCaster
	resolver *charts.Resolver
	files    *validation.FileValidator
	catalog  *files.Catalog
	history  LoadHistory
	events   EventBroadcaster
	metrics  *infrastructure.BusinessMetrics
	source   datasource.Options
	export   exporter.WriteOptions
	settings []byte
	logger   *slog.Logger
}

// DatasetSummary is returned after every load and by GET /api/dataset
type DatasetSummary struct {
	ID            string                     `json:"id"`
	ParentID      string                     `json:"parent_id,omitempty"`
	Source        string                     `json:"source"`
	Fingerprint   string                     `json:"fingerprint"`
	Rows          int                        `json:"rows"`
	Columns       int                        `json:"columns"`
	ColumnNames   []string                   `json:"column_names"`
	DTypes        map[string]string          `json:"dtypes"`
	SemanticTypes map[string]string          `json:"semantic_types"`
	Preview       []map[string]any           `json:"preview"`
	Log           dataprocessing.CleaningLog `json:"log"`
	Messages      []string                   `json:"messages"`
	LoadedAt      time.Time                  `json:"loaded_at"`
}

// CleaningReport is the structured log of the current snapshot
type CleaningReport struct {
	Entries  dataprocessing.CleaningLog `json:"entries"`
	Messages []string                   `json:"messages"`
	Warnings int                        `json:"warnings"`
}

// CSVExport streams the frame of one snapshot as CSV
type CSVExport struct {
	FileName string
	frame    *dataset.Frame
	opts     exporter.WriteOptions
}

// NewCSVExport prepares an export of frame under fileName
func NewCSVExport(fileName string, frame *dataset.Frame, opts exporter.WriteOptions) *CSVExport {
	return &CSVExport{FileName: fileName, frame: frame, opts: opts}
}

// Write writes the CSV document to w
func (e *CSVExport) Write(w io.Writer) error {
	return exporter.WriteFrame(w, e.frame, e.opts)
}

// SaveTo writes the CSV document to path through w
func (e *CSVExport) SaveTo(w *exporter.CSVWriter, path string) error {
	if path == "" {
		path = e.FileName
	}
	return w.WriteFrame(path, e.frame, e.opts)
}

// NewDatasetService creates a dataset service
func NewDatasetService(deps DatasetDeps) (*DatasetService, error) {
	if deps.Store == nil || deps.Cleaner == nil {
		return nil, fmt.Errorf("%w: store and cleaner are required", ErrInvalidInput)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	profiler := deps.Profiler
	if profiler == nil {
		profiler = dataprocessing.NewProfiler(deps.Cleaner.Classifier(), logger)
	}
	caster := deps.Caster
	if caster == nil {
		caster = dataprocessing.NewTypeCaster()
	}
	resolver := deps.Resolver
	if resolver == nil {
		resolver = charts.NewResolver(charts.DefaultResolverConfig(), deps.Cleaner.Classifier(), logger)
	}
	validator := deps.Files
	if validator == nil {
		validator = validation.NewFileValidator(logger, 0)
	}

	return &DatasetService{
		store:    deps.Store,
		cleaner:  deps.Cleaner,
		profiler: profiler,
		caster:   caster,
		resolver: resolver,
		files:    validator,
		catalog:  deps.Catalog,
		history:  deps.History,
		events:   deps.Events,
		metrics:  deps.Metrics,
		source:   deps.Source,
		export:   deps.Export,
		settings: settingsKey(deps.Cleaner.Config(), deps.Source),
		logger:   logger.With("component", "dataset_service"),
	}, nil
}

// settingsKey serializes what shapes a snapshot besides the source bytes
func settingsKey(cleaning dataprocessing.CleaningConfig, source datasource.Options) []byte {
	b, _ := json.Marshal(struct {
		Cleaning dataprocessing.CleaningConfig `json:"cleaning"`
		Source   datasource.Options            `json:"source"`
	}{cleaning, source})
	return b
}

// LoadPath reads, cleans and publishes the dataset at path
func (s *DatasetService) LoadPath(ctx context.Context, path string) (*DatasetSummary, error) {
	return s.loadFile(ctx, path, OriginPath)
}

// Reload is the file watcher callback for the default dataset
func (s *DatasetService) Reload(ctx context.Context, path string) error {
	_, err := s.loadFile(ctx, path, OriginWatch)
	return err
}

func (s *DatasetService) loadFile(ctx context.Context, path, origin string) (*DatasetSummary, error) {
	start := time.Now()
	if s.catalog != nil {
		resolved, err := s.catalog.Resolve(path)
		if err != nil {
			return nil, s.loadFailed(ctx, path, origin, start, fmt.Errorf("%w: %w", ErrDatasetUnreadable, err))
		}
		path = resolved
	}
	if err := s.files.ValidateDatasetFile(path); err != nil {
		return nil, s.loadFailed(ctx, path, origin, start, fmt.Errorf("%w: %w", ErrDatasetUnreadable, err))
	}
	payload, err := datasource.LoadFile(ctx, path, s.source)
	if err != nil {
		return nil, s.loadFailed(ctx, path, origin, start, fmt.Errorf("%w: %w", ErrDatasetUnreadable, err))
	}
	return s.ingest(ctx, path, origin, start, payload)
}

// Upload reads, cleans and publishes an uploaded dataset. size is the
// declared size of the upload.
func (s *DatasetService) Upload(ctx context.Context, name string, size int64, r io.Reader) (*DatasetSummary, error) {
	start := time.Now()
	if err := s.files.ValidateUpload(name, size); err != nil {
		return nil, s.loadFailed(ctx, name, OriginUpload, start, fmt.Errorf("%w: %w", ErrDatasetUnreadable, err))
	}
	payload, err := datasource.Load(ctx, name, r, s.source)
	if err != nil {
		return nil, s.loadFailed(ctx, name, OriginUpload, start, fmt.Errorf("%w: %w", ErrDatasetUnreadable, err))
	}
	return s.ingest(ctx, name, OriginUpload, start, payload)
}

// ingest cleans a parsed payload and swaps it in. A failed cleaning run
// leaves the previous snapshot in place.
func (s *DatasetService) ingest(ctx context.Context, source, origin string, start time.Time, payload *datasource.Payload) (*DatasetSummary, error) {
	snap, err := s.store.Update(func(*session.Snapshot) (*session.Snapshot, error) {
		res, err := s.cleaner.Clean(ctx, payload.Frame)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCleaningFailed, err)
		}
		fingerprint := session.Fingerprint(payload.Fingerprint, s.settings)
		return session.NewSnapshot(source, fingerprint, res.Frame, res.Log), nil
	})
	if err != nil {
		return nil, s.loadFailed(ctx, source, origin, start, err)
	}

	elapsed := time.Since(start)
	warnings := countWarnings(snap.Log)
	infrastructure.RecordDatasetLoad(ctx, s.metrics, origin, elapsed, snap.Frame.NumRows(), warnings, nil)
	s.recordHistory(ctx, snap, elapsed)
	s.publish(events.MessageTypeDatasetLoaded, snap, origin, warnings)

	s.logger.InfoContext(ctx, "dataset published",
		slog.String("snapshot_id", snap.ID.String()),
		slog.String("source", source),
		slog.String("origin", origin),
		slog.String("format", string(payload.Format)),
		slog.Int64("bytes", payload.Size),
		slog.Int("rows_in", payload.Frame.NumRows()),
		slog.Int("rows", snap.Frame.NumRows()),
		slog.Int("columns", snap.Frame.NumColumns()),
		slog.Int("warnings", warnings),
		slog.Duration("duration", elapsed))

	return s.summarize(snap), nil
}

func (s *DatasetService) loadFailed(ctx context.Context, source, origin string, start time.Time, err error) error {
	infrastructure.RecordDatasetLoad(ctx, s.metrics, origin, time.Since(start), 0, 0, err)
	s.logger.ErrorContext(ctx, "dataset load failed",
		slog.String("source", source),
		slog.String("origin", origin),
		slog.String("error", err.Error()))
	if s.events != nil {
		s.events.Broadcast(string(events.MessageTypeDatasetFailed), events.DatasetFailure{
			Source: source,
			Origin: origin,
			Error:  err.Error(),
		})
	}
	return err
}

func (s *DatasetService) recordHistory(ctx context.Context, snap *session.Snapshot, elapsed time.Duration) {
	if s.history == nil {
		return
	}
	rec := storage.LoadRecord{
		ID:          snap.ID.String(),
		Source:      snap.Source,
		Fingerprint: snap.Fingerprint,
		Rows:        snap.Frame.NumRows(),
		Columns:     snap.Frame.NumColumns(),
		LogEntries:  len(snap.Log),
		Warnings:    countWarnings(snap.Log),
		Duration:    elapsed.Milliseconds(),
		LoadedAt:    snap.LoadedAt,
	}
	if err := s.history.Record(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "failed to record load history",
			slog.String("snapshot_id", rec.ID),
			slog.String("error", err.Error()))
	}
}

func (s *DatasetService) publish(kind events.MessageType, snap *session.Snapshot, origin string, warnings int) {
	if s.events == nil {
		return
	}
	evt := events.DatasetEvent{
		SnapshotID: snap.ID.String(),
		Source:     snap.Source,
		Origin:     origin,
		Rows:       snap.Frame.NumRows(),
		Columns:    snap.Frame.NumColumns(),
		Warnings:   warnings,
		Messages:   snap.Log.Messages(),
		LoadedAt:   snap.LoadedAt,
	}
	if snap.Parent != uuid.Nil {
		evt.ParentID = snap.Parent.String()
	}
	s.events.Broadcast(string(kind), evt)
}

// Snapshot returns the current snapshot or ErrNoDataset
func (s *DatasetService) Snapshot() (*session.Snapshot, error) {
	snap, err := s.store.Require()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoDataset, err)
	}
	return snap, nil
}

// Summary describes the current snapshot
func (s *DatasetService) Summary(ctx context.Context) (*DatasetSummary, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.summarize(snap), nil
}

func (s *DatasetService) summarize(snap *session.Snapshot) *DatasetSummary {
	sum := &DatasetSummary{
		ID:            snap.ID.String(),
		Source:        snap.Source,
		Fingerprint:   strconv.FormatUint(snap.Fingerprint, 16),
		Rows:          snap.Frame.NumRows(),
		Columns:       snap.Frame.NumColumns(),
		ColumnNames:   snap.Frame.Names(),
		DTypes:        s.profiler.DTypes(snap.Frame),
		SemanticTypes: s.profiler.SemanticTypes(snap.Frame),
		Preview:       snap.Frame.Head(PreviewRows).Records(),
		Log:           snap.Log,
		Messages:      snap.Log.Messages(),
		LoadedAt:      snap.LoadedAt,
	}
	if snap.Parent != uuid.Nil {
		sum.ParentID = snap.Parent.String()
	}
	if sum.Log == nil {
		sum.Log = dataprocessing.CleaningLog{}
	}
	if sum.Messages == nil {
		sum.Messages = []string{}
	}
	return sum
}

// Columns lists column name, non-null count, dtype and semantic type
func (s *DatasetService) Columns(ctx context.Context) ([]dataprocessing.ColumnInfo, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.profiler.Info(snap.Frame), nil
}

// DTypes returns the storage type per column
func (s *DatasetService) DTypes(ctx context.Context) (map[string]string, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.profiler.DTypes(snap.Frame), nil
}

// NullPercentages returns the percent of missing cells per column
func (s *DatasetService) NullPercentages(ctx context.Context) (map[string]float64, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.profiler.NullPercentages(snap.Frame), nil
}

// UniqueCounts returns the number of distinct values per column
func (s *DatasetService) UniqueCounts(ctx context.Context) (map[string]int, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.profiler.UniqueCounts(snap.Frame), nil
}

// UniqueValues returns the first n distinct values per column
func (s *DatasetService) UniqueValues(ctx context.Context, n int) (map[string][]any, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: n must be positive", ErrInvalidInput)
	}
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.profiler.UniqueValues(snap.Frame, n), nil
}

// Describe returns summary statistics per column
func (s *DatasetService) Describe(ctx context.Context) ([]dataprocessing.ColumnSummary, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.profiler.Describe(ctx, snap.Frame)
}

// Preview returns the first n rows
func (s *DatasetService) Preview(ctx context.Context, n int) ([]map[string]any, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: n must be positive", ErrInvalidInput)
	}
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Frame.Head(n).Records(), nil
}

// ColumnValues returns the sorted distinct values of a column after
// bucketing, used to populate group selections
func (s *DatasetService) ColumnValues(ctx context.Context, column, bucket string) ([]string, error) {
	b, err := charts.ParseBucket(bucket)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	if !snap.Frame.Has(column) {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, column)
	}
	values, err := s.resolver.GroupValues(snap.Frame, column, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

// CleaningLog returns the log of the current snapshot
func (s *DatasetService) CleaningLog(ctx context.Context) (*CleaningReport, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	report := &CleaningReport{
		Entries:  snap.Log,
		Messages: snap.Log.Messages(),
		Warnings: countWarnings(snap.Log),
	}
	if report.Entries == nil {
		report.Entries = dataprocessing.CleaningLog{}
	}
	if report.Messages == nil {
		report.Messages = []string{}
	}
	return report, nil
}

// CastTypes converts columns per the dtype map and publishes the result as a
// child snapshot. Unknown columns or type names reject the whole mapping;
// values that fail to convert leave their column untouched and are logged.
func (s *DatasetService) CastTypes(ctx context.Context, dtypes map[string]string) (*DatasetSummary, error) {
	if len(dtypes) == 0 {
		return nil, fmt.Errorf("%w: empty dtype map", ErrInvalidCast)
	}

	start := time.Now()
	var added dataprocessing.CleaningLog
	snap, err := s.store.Update(func(prev *session.Snapshot) (*session.Snapshot, error) {
		if prev == nil {
			return nil, ErrNoDataset
		}
		if err := validateCast(prev.Frame, dtypes); err != nil {
			return nil, err
		}
		frame, log := s.caster.Cast(prev.Frame, dtypes)
		added = log
		return prev.Derive(frame, log), nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "type cast rejected", slog.String("error", err.Error()))
		return nil, err
	}

	warnings := countWarnings(added)
	infrastructure.RecordDatasetLoad(ctx, s.metrics, OriginCast, time.Since(start), snap.Frame.NumRows(), warnings, nil)
	s.recordHistory(ctx, snap, time.Since(start))
	s.publish(events.MessageTypeDatasetUpdated, snap, OriginCast, warnings)

	s.logger.InfoContext(ctx, "types converted",
		slog.String("snapshot_id", snap.ID.String()),
		slog.String("parent_id", snap.Parent.String()),
		slog.Int("columns", len(dtypes)),
		slog.Int("failures", warnings))

	return s.summarize(snap), nil
}

func validateCast(frame *dataset.Frame, dtypes map[string]string) error {
	names := make([]string, 0, len(dtypes))
	for name := range dtypes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !frame.Has(name) {
			return fmt.Errorf("%w: %q", ErrColumnNotFound, name)
		}
		if _, err := dataprocessing.ParseTargetKind(dtypes[name]); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCast, err)
		}
	}
	return nil
}

// Export prepares a CSV export of the current snapshot. bom overrides the
// configured byte order mark setting when non-nil.
func (s *DatasetService) Export(ctx context.Context, bom *bool) (*CSVExport, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	opts := s.export
	if bom != nil {
		opts.BOMPrefix = *bom
	}
	return NewCSVExport(exporter.ExportFileName(snap.Source, time.Now()), snap.Frame, opts), nil
}

// AvailableFiles lists the dataset files in the data directory, newest first
func (s *DatasetService) AvailableFiles(ctx context.Context) ([]files.DatasetFile, error) {
	if s.catalog == nil {
		return []files.DatasetFile{}, nil
	}
	list, err := s.catalog.List()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
	return list, nil
}

// History returns the most recent loads, newest first
func (s *DatasetService) History(ctx context.Context, limit int) ([]storage.LoadRecord, error) {
	if s.history == nil {
		return []storage.LoadRecord{}, nil
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}
	records, err := s.history.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
	if records == nil {
		records = []storage.LoadRecord{}
	}
	return records, nil
}

func countWarnings(log dataprocessing.CleaningLog) int {
	n := 0
	for _, e := range log {
		if e.IsWarning() {
			n++
		}
	}
	return n
}

// IsNoDataset reports whether err means nothing has been loaded yet
func IsNoDataset(err error) bool {
	return errors.Is(err, ErrNoDataset) || errors.Is(err, session.ErrNoDataset)
}
