package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/smallbiznis/mutrapro/internal/customer/domain"
	"github.com/smallbiznis/mutrapro/internal/idempotency"
	paymentdomain "github.com/smallbiznis/mutrapro/internal/payment/domain"
	"github.com/smallbiznis/mutrapro/internal/providers/pdf"
	"github.com/smallbiznis/mutrapro/internal/recordstore"
	srdomain "github.com/smallbiznis/mutrapro/internal/servicerequest/domain"
	"github.com/smallbiznis/mutrapro/internal/transcription"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrUnavailable    = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if errors.Is(err, idempotency.ErrKeyMismatch) {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "validation_error",
			Message: "idempotency key was used with a different request",
			Code:    idempotency.ErrKeyMismatch.Error(),
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var invalidTransition *srdomain.InvalidTransitionError
	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.As(err, &invalidTransition):
		return http.StatusConflict, errorPayload{
			Type:    "invalid_transition",
			Message: invalidTransition.Error(),
			Code:    "invalid_transition",
		}
	case errors.Is(err, srdomain.ErrInvalidTransition):
		return http.StatusConflict, errorPayload{
			Type:    "invalid_transition",
			Message: "status change not permitted",
			Code:    "invalid_transition",
		}
	case errors.Is(err, paymentdomain.ErrAlreadyPaid):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "service request is already paid",
			Code:    paymentdomain.ErrAlreadyPaid.Error(),
		}
	case errors.Is(err, idempotency.ErrInFlight):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "a request with this idempotency key is in progress",
			Code:    "idempotency_in_flight",
		}
	case errors.Is(err, idempotency.ErrOutcomeUnknown):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "an earlier attempt with this idempotency key may have succeeded",
			Code:    idempotency.ErrOutcomeUnknown.Error(),
		}
	case errors.Is(err, paymentdomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many payment attempts",
			Code:    paymentdomain.ErrRateLimited.Error(),
		}
	case recordstore.IsTimeout(err), errors.Is(err, transcription.ErrExtractorTimeout):
		return http.StatusGatewayTimeout, errorPayload{
			Type:    "upstream_timeout",
			Message: "upstream did not answer in time",
			Code:    "upstream_timeout",
		}
	case errors.Is(err, transcription.ErrExtractorUnavailable):
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_error",
			Message: "note extraction failed",
			Code:    "extractor_unavailable",
		}
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	}

	if upstream, ok := recordstore.AsUpstreamError(err); ok {
		if upstream.Rejected() {
			return http.StatusUnprocessableEntity, errorPayload{
				Type:    "upstream_rejected",
				Message: "record store rejected the request",
				Code:    upstream.Code(),
			}
		}
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_error",
			Message: "record store failure",
			Code:    upstream.Code(),
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

// classifyErrorForLog feeds the request logger the same type and code the
// client sees.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Code
	if code == "" && len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if code == "" {
		code = fmt.Sprintf("http_%d", status)
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, idempotency.ErrInvalidKey),
		errors.Is(err, pdf.ErrInvalidReceipt):
		return true
	case isCustomerValidationError(err),
		srdomain.IsValidationError(err),
		paymentdomain.IsValidationError(err),
		transcription.IsValidationError(err):
		return true
	default:
		return false
	}
}

func isCustomerValidationError(err error) bool {
	switch {
	case errors.Is(err, customerdomain.ErrInvalidName),
		errors.Is(err, customerdomain.ErrInvalidEmail),
		errors.Is(err, customerdomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, srdomain.ErrNotFound),
		errors.Is(err, srdomain.ErrCustomerNotFound),
		errors.Is(err, paymentdomain.ErrNotFound),
		errors.Is(err, transcription.ErrNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, transcription.ErrUnsupportedAudio):
		return transcription.ErrUnsupportedAudio.Error()
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "unsupported_audio", "empty_audio", "invalid_attachment":
		return "file"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "unsupported_audio":
		return "only audio files are supported (.wav .mp3 .flac .ogg .aiff)"
	case "invalid_attachment":
		return "unsupported attachment type"
	default:
		return "invalid value"
	}
}
