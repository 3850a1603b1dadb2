package apierr

import (
	"errors"
	"net/http"

	govalidator "github.com/go-playground/validator/v10"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/saga"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/validator"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/zerror"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// StepFailure describes a multi-step command that stopped part way.
type StepFailure struct {
	Operation string   `json:"operation"`
	Step      string   `json:"step"`
	Completed []string `json:"completed"`
}

// ErrorResponse is the error response for the API.
type ErrorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details *[]FieldError `json:"details,omitempty"`
	Failure *StepFailure  `json:"failure,omitempty"`

	// StatusCode is the status code for the error response.
	StatusCode int `json:"-"`
}

func New(err error) ErrorResponse {
	res := errorToErrorResponse(err)

	var stepErr *saga.StepError
	if errors.As(err, &stepErr) {
		res.Failure = &StepFailure{
			Operation: stepErr.Saga,
			Step:      stepErr.Step,
			Completed: stepErr.Completed,
		}
	}
	return res
}

var InternalServerErr = ErrorResponse{
	Code:       "INTERNAL_SERVER_ERROR",
	Message:    "an unknown error occurred",
	StatusCode: http.StatusInternalServerError,
}

func errorToErrorResponse(err error) ErrorResponse {
	validationErrs, hasFieldErrs := validator.FieldErrors(err)

	var zErr zerror.ZError
	if errors.As(err, &zErr) {
		res := ErrorResponse{
			Code:       zErr.Code(),
			Message:    zErr.Msg(),
			StatusCode: ZErrorStatusToHTTPStatus(zErr.Status()),
		}
		if hasFieldErrs {
			res.Details = fieldErrors(validationErrs)
		}
		return res
	}

	if hasFieldErrs {
		return ErrorResponse{
			Code:       apperr.ValidationErrorCode,
			Message:    "validation error",
			Details:    fieldErrors(validationErrs),
			StatusCode: http.StatusBadRequest,
		}
	}

	return InternalServerErr
}

func fieldErrors(validationErrs govalidator.ValidationErrors) *[]FieldError {
	details := make([]FieldError, len(validationErrs))
	for i, fe := range validationErrs {
		details[i] = FieldError{
			Field:   fe.Field(),
			Message: validator.ValidationErrorMessage(fe),
		}
	}
	return &details
}

func ZErrorStatusToHTTPStatus(status zerror.Status) int {
	switch status {
	case zerror.StatusNotFound:
		return http.StatusNotFound
	case zerror.StatusValidationFailed:
		return http.StatusBadRequest
	case zerror.StatusConflict:
		return http.StatusConflict
	case zerror.StatusUnprocessableEntity:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
