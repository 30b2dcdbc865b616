package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "tabviz/internal/errors"
)

// maxJSONBody caps request bodies checked by ValidateRequest. Uploads are
// multipart and bounded by the dataset handler instead.
const maxJSONBody = 1 << 20

// maxColumnName is the longest header accepted in chart and cast requests
const maxColumnName = 256

// ValidationMiddleware validates JSON bodies and request contracts tagged
// for go-playground/validator. Error messages use the JSON field names.
type ValidationMiddleware struct {
	validator    *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewValidationMiddleware creates a validation middleware with the tabviz
// rules registered
func NewValidationMiddleware(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ValidationMiddleware {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	// column: any printable spreadsheet header, accents and spaces included
	_ = v.RegisterValidation("column", func(fl validator.FieldLevel) bool {
		return isColumnName(fl.Field().String())
	})

	return &ValidationMiddleware{
		validator:    v,
		logger:       logger.With(slog.String("component", "validation")),
		errorHandler: errorHandler,
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func isColumnName(name string) bool {
	if name == "" || utf8.RuneCountInString(name) > maxColumnName {
		return false
	}
	return !strings.ContainsFunc(name, func(r rune) bool {
		return r == utf8.RuneError || r < 0x20 || r == 0x7f
	})
}

// ValidateRequest rejects oversized or malformed JSON bodies before the
// handler decodes them. Bodyless methods pass through.
func (m *ValidationMiddleware) ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				m.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
					http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
					"Request body exceeds the size limit",
					map[string]any{"max_size": tooLarge.Limit}))
				return
			}
			m.logger.ErrorContext(r.Context(), "failed to read request body",
				slog.String("error", err.Error()),
				slog.String("request_id", GetReqID(r.Context())))
			m.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}

		if len(body) > 0 && !json.Valid(body) {
			m.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusBadRequest, "INVALID_JSON", "Request body contains invalid JSON"))
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// ValidateStruct checks v against its validate tags. Failures come back as
// a VALIDATION_FAILED API error listing every offending field.
func (m *ValidationMiddleware) ValidateStruct(v any) error {
	err := m.validator.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return apierrors.InvalidRequestWithError(err)
	}
	out := make([]apierrors.ValidationError, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		out = append(out, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return apierrors.NewValidationErrors(out)
}

var fieldMessages = map[string]string{
	"required": "%s is required",
	"min":      "%s must be at least %s",
	"max":      "%s must be at most %s",
	"gte":      "%s must be greater than or equal to %s",
	"lte":      "%s must be less than or equal to %s",
	"oneof":    "%s must be one of: %s",
	"column":   "%s must be a printable column name",
}

func fieldMessage(fe validator.FieldError) string {
	tmpl, ok := fieldMessages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
	if strings.Count(tmpl, "%s") == 1 {
		return fmt.Sprintf(tmpl, fe.Field())
	}
	param := fe.Param()
	if fe.Tag() == "oneof" {
		param = strings.ReplaceAll(param, " ", ", ")
	}
	return fmt.Sprintf(tmpl, fe.Field(), param)
}

// ContentTypeValidator rejects bodies whose media type is not one of
// allowed. GET, HEAD and DELETE requests are not checked.
func ContentTypeValidator(allowed ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodDelete:
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Content-Type")
			if header == "" {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, apierrors.New(http.StatusBadRequest,
					"MISSING_CONTENT_TYPE", "Content-Type header is required"))
				return
			}

			mediaType, _, err := mime.ParseMediaType(header)
			if err != nil || !slices.Contains(allowed, mediaType) {
				render.Status(r, http.StatusUnsupportedMediaType)
				render.JSON(w, r, apierrors.NewWithDetails(http.StatusUnsupportedMediaType,
					"UNSUPPORTED_MEDIA_TYPE", "Unsupported content type",
					map[string]any{"content_type": header, "allowed": allowed}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// QueryParamValidator parses optional query parameters and answers
// VALIDATION_FAILED for out of range values
type QueryParamValidator struct {
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewQueryParamValidator creates a new query parameter validator
func NewQueryParamValidator(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *QueryParamValidator {
	return &QueryParamValidator{
		logger:       logger.With(slog.String("component", "query_validator")),
		errorHandler: errorHandler,
	}
}

// ValidateInt reads param as an integer in [min, max], defaulting when it is
// absent. On failure the error response is already written.
func (v *QueryParamValidator) ValidateInt(w http.ResponseWriter, r *http.Request, param string, min, max int, defaultValue int) (int, bool) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return defaultValue, true
	}

	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param, param+" must be a valid integer"))
		return 0, false
	}
	if n < min || n > max {
		v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param,
			fmt.Sprintf("%s must be between %d and %d", param, min, max)))
		return 0, false
	}
	return n, true
}
