package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "business-inventory/internal/common/errors"
)

// handlerFunc is an http handler that reports failure by returning an error.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (s *server) handle(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			stdErr := apperrors.AsStandard(err)
			if statusFor(stdErr.Code) >= http.StatusInternalServerError {
				s.log.Error("request failed", map[string]interface{}{
					"path":      r.URL.Path,
					"errorCode": string(stdErr.Code),
					"details":   stdErr.Details,
				})
			}
			writeError(w, stdErr)
		}
	}
}

type errorBody struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	Details string              `json:"details,omitempty"`
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeNotAuthenticated:
		return http.StatusUnauthorized
	case apperrors.ErrCodeAuthentication:
		return http.StatusUnauthorized
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeImageInvalid, apperrors.ErrCodeInvalidEvent, ErrCodeBadRequest:
		return http.StatusBadRequest
	case apperrors.ErrCodeRemoteWriteFailed, apperrors.ErrCodeImageUploadFailed:
		return http.StatusBadGateway
	case apperrors.ErrCodeSearchQueryFailed:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// ErrCodeBadRequest marks a malformed request body or query.
const ErrCodeBadRequest apperrors.ErrorCode = "BAD_REQUEST"

func badRequest(details string) error {
	return &apperrors.StandardError{Code: ErrCodeBadRequest, Message: "Solicitud inválida", Details: details}
}

func writeError(w http.ResponseWriter, err error) {
	stdErr := apperrors.AsStandard(err)
	writeJSON(w, statusFor(stdErr.Code), errorBody{
		Code:    stdErr.Code,
		Message: stdErr.Message,
		Details: stdErr.Details,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("empty body")
		}
		return badRequest(err.Error())
	}
	return nil
}
