package http

import (
	"errors"

	"tabviz/internal/charts"
	apierrors "tabviz/internal/errors"
	"tabviz/internal/services"
	"tabviz/internal/validation"
)

// serviceError translates service sentinels into API errors. Anything
// unrecognized is passed through for the error handler to classify.
func serviceError(err error) error {
	var verr *charts.ValidationError
	switch {
	case services.IsNoDataset(err):
		return apierrors.NoDatasetError()
	case errors.As(err, &verr):
		return apierrors.InvalidChartError(verr.Field, verr.Message)
	case errors.Is(err, services.ErrInvalidChart):
		return apierrors.InvalidChartError("", err.Error())
	case errors.Is(err, services.ErrRenderFailed):
		return apierrors.RenderFailedError(err)
	case errors.Is(err, validation.ErrFileTooLarge):
		return apierrors.NewWithDetails(apierrors.ErrPayloadTooLarge.StatusCode,
			apierrors.ErrPayloadTooLarge.ErrorCode, apierrors.ErrPayloadTooLarge.Message, err.Error())
	case errors.Is(err, services.ErrDatasetUnreadable):
		return apierrors.DatasetUnreadableError(err)
	case errors.Is(err, services.ErrCleaningFailed):
		return apierrors.CleaningFailedError(err)
	case errors.Is(err, services.ErrColumnNotFound):
		return apierrors.ColumnNotFoundError(err)
	case errors.Is(err, services.ErrInvalidCast):
		return apierrors.InvalidCastError(err)
	case errors.Is(err, services.ErrInvalidInput):
		return apierrors.NewWithDetails(apierrors.ErrInvalidParameter.StatusCode,
			apierrors.ErrInvalidParameter.ErrorCode, apierrors.ErrInvalidParameter.Message, err.Error())
	case errors.Is(err, services.ErrServiceUnavailable):
		return apierrors.ErrServiceUnavailable
	}
	return err
}
