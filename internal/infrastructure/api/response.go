package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"

	"github.com/rs/zerolog"
)

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the coded error
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON encodes payload with the given status
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError maps err to its HTTP status and public message
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := apperrors.As(err)
	if typed == nil {
		typed = apperrors.Wrap(apperrors.CodeInternal, err, "unexpected error")
	}
	meta := apperrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case apperrors.CodeValidation,
		apperrors.CodeUnauthorized,
		apperrors.CodePaymentRequired,
		apperrors.CodeNotFound,
		apperrors.CodeStateConflict,
		apperrors.CodeRateLimit:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	body := ErrorBody{Error: ErrorDetail{Code: string(typed.Code()), Message: msg}}
	if meta.DetailsAllowed {
		body.Error.Details = typed.Details()
	}

	logger := zerolog.Ctx(r.Context())
	event := logger.Warn()
	if meta.HTTPStatus >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Str("code", string(typed.Code())).Str("path", r.URL.Path).Msg("Request failed")

	WriteJSON(w, meta.HTTPStatus, body)
}

// wantsJSON reports whether the client expects a JSON response rather than a redirect
func wantsJSON(r *http.Request) bool {
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	if strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		return true
	}
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
