package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "tabviz/internal/errors"
	custommw "tabviz/internal/middleware"
	api "tabviz/pkg/contracts/api/v1"
)

// Query parameter bounds
const (
	DefaultUniqueValues = 20
	DefaultPreviewRows  = 10
	DefaultHistoryLimit = 20
	maxQueryRows        = 1000
	multipartMemory     = 32 << 20
)

// DatasetHandler serves the dataset endpoints under /api/dataset
type DatasetHandler struct {
	service      DatasetServiceInterface
	validator    *custommw.ValidationMiddleware
	query        *custommw.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	maxUpload    int64
}

// NewDatasetHandler creates a dataset handler. maxUpload bounds multipart
// request bodies in bytes.
func NewDatasetHandler(service DatasetServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler, maxUpload int64) *DatasetHandler {
	return &DatasetHandler{
		service:      service,
		validator:    custommw.NewValidationMiddleware(logger, errorHandler),
		query:        custommw.NewQueryParamValidator(logger, errorHandler),
		logger:       logger.With(slog.String("component", "dataset_handler")),
		errorHandler: errorHandler,
		maxUpload:    maxUpload,
	}
}

// Routes returns the dataset routes
func (h *DatasetHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(custommw.ContentTypeValidator("application/json"))
		r.Use(h.validator.ValidateRequest)
		r.Post("/load", h.Load)
		r.Post("/types", h.CastTypes)
	})
	r.Post("/upload", h.Upload)

	r.Get("/", h.Summary)
	r.Get("/columns", h.Columns)
	r.Get("/columns/{column}/values", h.ColumnValues)
	r.Get("/dtypes", h.DTypes)
	r.Get("/nulls", h.Nulls)
	r.Get("/unique-counts", h.UniqueCounts)
	r.Get("/unique-values", h.UniqueValues)
	r.Get("/describe", h.Describe)
	r.Get("/preview", h.Preview)
	r.Get("/log", h.CleaningLog)
	r.Get("/export", h.Export)
	r.Get("/history", h.History)
	r.Get("/files", h.Files)

	return r
}

// Load handles POST /api/dataset/load
func (h *DatasetHandler) Load(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	var req api.LoadDatasetRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "loading dataset",
		slog.String("request_id", reqID),
		slog.String("path", req.Path),
	)

	summary, err := h.service.LoadPath(r.Context(), req.Path)
	if err != nil {
		h.fail(w, r, "failed to load dataset", err)
		return
	}

	writeSuccess(w, r, summary)
}

// Upload handles POST /api/dataset/upload with a multipart "file" field
func (h *DatasetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartMemory/32)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			h.errorHandler.HandleError(w, r, apierrors.ErrPayloadTooLarge)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "a file field is required"))
		return
	}
	defer file.Close()

	h.logger.InfoContext(r.Context(), "uploading dataset",
		slog.String("request_id", reqID),
		slog.String("filename", header.Filename),
		slog.Int64("size", header.Size),
	)

	summary, err := h.service.Upload(r.Context(), header.Filename, header.Size, file)
	if err != nil {
		h.fail(w, r, "failed to upload dataset", err)
		return
	}

	writeSuccess(w, r, summary)
}

// Summary handles GET /api/dataset
func (h *DatasetHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.fail(w, r, "failed to get dataset summary", err)
		return
	}
	writeSuccess(w, r, summary)
}

// Columns handles GET /api/dataset/columns
func (h *DatasetHandler) Columns(w http.ResponseWriter, r *http.Request) {
	columns, err := h.service.Columns(r.Context())
	if err != nil {
		h.fail(w, r, "failed to list columns", err)
		return
	}
	render.JSON(w, r, envelope{
		"status": "success",
		"data":   columns,
		"count":  len(columns),
	})
}

// DTypes handles GET /api/dataset/dtypes
func (h *DatasetHandler) DTypes(w http.ResponseWriter, r *http.Request) {
	dtypes, err := h.service.DTypes(r.Context())
	if err != nil {
		h.fail(w, r, "failed to get dtypes", err)
		return
	}
	writeSuccess(w, r, dtypes)
}

// Nulls handles GET /api/dataset/nulls
func (h *DatasetHandler) Nulls(w http.ResponseWriter, r *http.Request) {
	nulls, err := h.service.NullPercentages(r.Context())
	if err != nil {
		h.fail(w, r, "failed to get null percentages", err)
		return
	}
	writeSuccess(w, r, nulls)
}

// UniqueCounts handles GET /api/dataset/unique-counts
func (h *DatasetHandler) UniqueCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.UniqueCounts(r.Context())
	if err != nil {
		h.fail(w, r, "failed to get unique counts", err)
		return
	}
	writeSuccess(w, r, counts)
}

// UniqueValues handles GET /api/dataset/unique-values?n=20
func (h *DatasetHandler) UniqueValues(w http.ResponseWriter, r *http.Request) {
	n, ok := h.query.ValidateInt(w, r, "n", 1, maxQueryRows, DefaultUniqueValues)
	if !ok {
		return
	}
	values, err := h.service.UniqueValues(r.Context(), n)
	if err != nil {
		h.fail(w, r, "failed to get unique values", err)
		return
	}
	render.JSON(w, r, envelope{
		"status": "success",
		"data":   values,
		"n":      n,
	})
}

// Describe handles GET /api/dataset/describe
func (h *DatasetHandler) Describe(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.Describe(r.Context())
	if err != nil {
		h.fail(w, r, "failed to describe dataset", err)
		return
	}
	writeSuccess(w, r, summaries)
}

// Preview handles GET /api/dataset/preview?n=10
func (h *DatasetHandler) Preview(w http.ResponseWriter, r *http.Request) {
	n, ok := h.query.ValidateInt(w, r, "n", 1, maxQueryRows, DefaultPreviewRows)
	if !ok {
		return
	}
	rows, err := h.service.Preview(r.Context(), n)
	if err != nil {
		h.fail(w, r, "failed to preview dataset", err)
		return
	}
	render.JSON(w, r, envelope{
		"status": "success",
		"data":   rows,
		"count":  len(rows),
	})
}

// ColumnValues handles GET /api/dataset/columns/{column}/values?bucket=monthly.
// It lists the values a chart group filter can select.
func (h *DatasetHandler) ColumnValues(w http.ResponseWriter, r *http.Request) {
	column, err := url.PathUnescape(chi.URLParam(r, "column"))
	if err != nil || column == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("column", "a column name is required"))
		return
	}
	bucket := r.URL.Query().Get("bucket")

	values, err := h.service.ColumnValues(r.Context(), column, bucket)
	if err != nil {
		h.fail(w, r, "failed to list column values", err)
		return
	}
	render.JSON(w, r, envelope{
		"status": "success",
		"data":   values,
		"column": column,
		"count":  len(values),
	})
}

// CleaningLog handles GET /api/dataset/log
func (h *DatasetHandler) CleaningLog(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.CleaningLog(r.Context())
	if err != nil {
		h.fail(w, r, "failed to get cleaning log", err)
		return
	}
	writeSuccess(w, r, report)
}

// CastTypes handles POST /api/dataset/types
func (h *DatasetHandler) CastTypes(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	var req api.CastTypesRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "casting column types",
		slog.String("request_id", reqID),
		slog.Int("columns", len(req.DTypeMap)),
	)

	summary, err := h.service.CastTypes(r.Context(), req.DTypeMap)
	if err != nil {
		h.fail(w, r, "failed to cast column types", err)
		return
	}
	writeSuccess(w, r, summary)
}

// Export handles GET /api/dataset/export?bom=true and streams the current
// snapshot as CSV
func (h *DatasetHandler) Export(w http.ResponseWriter, r *http.Request) {
	var bom *bool
	if raw := r.URL.Query().Get("bom"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("bom", "bom must be true or false"))
			return
		}
		bom = &v
	}

	export, err := h.service.Export(r.Context(), bom)
	if err != nil {
		h.fail(w, r, "failed to export dataset", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName))
	w.WriteHeader(http.StatusOK)
	if err := export.Write(w); err != nil {
		// Headers are gone; all that is left is the log
		h.logger.ErrorContext(r.Context(), "export interrupted",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
}

// History handles GET /api/dataset/history?limit=20
func (h *DatasetHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, maxQueryRows, DefaultHistoryLimit)
	if !ok {
		return
	}
	records, err := h.service.History(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "failed to read load history", err)
		return
	}
	render.JSON(w, r, envelope{
		"status": "success",
		"data":   records,
		"count":  len(records),
	})
}

// Files handles GET /api/dataset/files, the datasets in the data directory
func (h *DatasetHandler) Files(w http.ResponseWriter, r *http.Request) {
	available, err := h.service.AvailableFiles(r.Context())
	if err != nil {
		h.fail(w, r, "failed to list dataset files", err)
		return
	}
	render.JSON(w, r, envelope{
		"status": "success",
		"data":   available,
		"count":  len(available),
	})
}

func (h *DatasetHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.WarnContext(r.Context(), msg,
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("error", err.Error()),
	)
	h.errorHandler.HandleError(w, r, serviceError(err))
}
