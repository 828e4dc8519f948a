// Package handler holds the JSON response helpers shared by the HTTP handlers.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/dukerupert/cartwright/internal/middleware"
	"github.com/dukerupert/cartwright/internal/telemetry"
)

const internalMessage = "An internal error occurred. Please try again later."

// codedError is implemented by package errors that cannot import domain
// (tax, shipping) but still carry a domain error code.
type codedError interface {
	error
	ErrorCode() string
	ErrorMessage() string
}

// errorBody is the JSON envelope for every error response.
type errorBody struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	FailedSKUs []string          `json:"failed_skus,omitempty"`
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized // 401
	case domain.EPAYMENT:
		return http.StatusPaymentRequired // 402
	case domain.EFORBIDDEN:
		return http.StatusForbidden // 403
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT:
		return http.StatusConflict // 409
	case domain.EGONE:
		return http.StatusGone // 410
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge // 413
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests // 429
	case domain.ENOTIMPL:
		return http.StatusNotImplemented // 501
	default:
		return http.StatusInternalServerError // 500
	}
}

// ErrorResponse writes err as a JSON error. Validation errors carry their
// field map, stock admission failures carry the SKUs that could not be
// reserved, and internal errors are logged, reported and hidden.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsValidationError(err) {
		ValidationErrorResponse(w, r, err)
		return
	}

	body := errorBody{
		Code:    domain.ErrorCode(err),
		Message: domain.ErrorMessage(err),
	}

	var coded codedError
	var domainErr *domain.Error
	if errors.As(err, &coded) && !errors.As(err, &domainErr) {
		body.Code = coded.ErrorCode()
		body.Message = coded.ErrorMessage()
		if body.Code == domain.EINTERNAL {
			body.Message = internalMessage
		}
	}

	var admission *domain.StockAdmissionError
	if errors.As(err, &admission) {
		body.FailedSKUs = admission.SKUs
	}

	status := ErrorCodeToHTTPStatus(body.Code)
	logError(r, err, body.Code, status)

	writeJSON(w, status, map[string]errorBody{"error": body})
}

// ValidationErrorResponse writes a 400 with the per-field messages. Errors
// that are not validation errors fall back to ErrorResponse.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	fields := domain.GetValidationFields(err)
	if fields == nil {
		ErrorResponse(w, r, err)
		return
	}

	logError(r, err, domain.EINVALID, http.StatusBadRequest)
	writeJSON(w, http.StatusBadRequest, map[string]errorBody{
		"error": {
			Code:    domain.EINVALID,
			Message: "Validation failed",
			Fields:  fields,
		},
	})
}

// NotFoundResponse writes a generic 404.
func NotFoundResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found"))
}

// UnauthorizedResponse writes a generic 401.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Unauthorized("", "Authentication required"))
}

// ForbiddenResponse writes a generic 403.
func ForbiddenResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Forbidden("", "You do not have permission to perform this action"))
}

// InternalErrorResponse wraps err as an internal error and writes a 500.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	ErrorResponse(w, r, domain.Internal(err, "", "An unexpected error occurred"))
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func logError(r *http.Request, err error, code string, status int) {
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"status", status,
		"method", r.Method,
		"path", r.URL.Path,
	}
	if op := domain.ErrorOp(err); op != "" {
		attrs = append(attrs, "op", op)
	}

	logger := middleware.GetLogger(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", attrs...)
		telemetry.CaptureErrorFromContext(r.Context(), err, map[string]interface{}{
			"code": code,
			"op":   domain.ErrorOp(err),
		})
		return
	}
	logger.Info("request failed", attrs...)
}
