// Package transport contains the HTTP router, middleware chain, and all
// request handlers for the BFF API.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pitabwire/staffdesk/internal/backend"
	"github.com/pitabwire/staffdesk/model"
)

// statusForCode maps ErrorEnvelope codes to HTTP status codes.
var statusForCode = map[string]int{
	model.ErrBadRequest:         http.StatusBadRequest,
	model.ErrUnauthorized:       http.StatusUnauthorized,
	model.ErrForbidden:          http.StatusForbidden,
	model.ErrNotFound:           http.StatusNotFound,
	model.ErrConflict:           http.StatusConflict,
	model.ErrSuperseded:         http.StatusConflict,
	model.ErrInternalError:      http.StatusInternalServerError,
	model.ErrBackendError:       http.StatusBadGateway,
	model.ErrBackendRejected:    http.StatusUnprocessableEntity,
	model.ErrBackendUnavailable: http.StatusServiceUnavailable,
	model.ErrBackendTimeout:     http.StatusGatewayTimeout,
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// WriteError writes err as a JSON error response with the matching HTTP
// status code. Errors are normalized through ToEnvelope first.
func WriteError(w http.ResponseWriter, err error) {
	ee := ToEnvelope(err)

	status := statusForCode[ee.Code]
	if status == 0 {
		status = http.StatusInternalServerError
	}

	type errorResponse struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	WriteJSON(w, status, errorResponse{Error: ee})
}

// ToEnvelope converts any handler error into the envelope sent to the UI.
// Backend failures keep their normalized user-facing message; anything
// unrecognized becomes INTERNAL_ERROR.
func ToEnvelope(err error) *model.ErrorEnvelope {
	var ee *model.ErrorEnvelope
	if errors.As(err, &ee) {
		return ee
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return model.NewBackendTimeoutError()
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return model.NewInternalError()
	}

	switch apiErr.Kind {
	case model.KindNetwork:
		if errors.Is(apiErr.Err, backend.ErrCircuitOpen) {
			return model.NewBackendUnavailableError()
		}
		return &model.ErrorEnvelope{Code: model.ErrBackendUnavailable, Message: apiErr.Message}
	case model.KindHTTP:
		msg := backend.HTTPErrorMessage(apiErr.Code)
		switch apiErr.Code {
		case http.StatusBadRequest:
			return model.NewBadRequestError(msg)
		case http.StatusUnauthorized:
			return model.NewUnauthorizedError(msg)
		case http.StatusForbidden:
			return model.NewForbiddenError(msg)
		case http.StatusNotFound:
			return model.NewNotFoundError(msg)
		case http.StatusConflict:
			return &model.ErrorEnvelope{Code: model.ErrConflict, Message: msg}
		case http.StatusGatewayTimeout:
			return &model.ErrorEnvelope{Code: model.ErrBackendTimeout, Message: msg}
		}
		return &model.ErrorEnvelope{Code: model.ErrBackendError, Message: msg}
	case model.KindApplication:
		return &model.ErrorEnvelope{Code: model.ErrBackendRejected, Message: apiErr.Message}
	default:
		return &model.ErrorEnvelope{Code: model.ErrBackendError, Message: apiErr.Message}
	}
}

// WriteNotFound writes a 404 error response.
func WriteNotFound(w http.ResponseWriter, msg string) {
	WriteError(w, model.NewNotFoundError(msg))
}

// WriteBadRequest writes a 400 error response.
func WriteBadRequest(w http.ResponseWriter, msg string) {
	WriteError(w, model.NewBadRequestError(msg))
}
