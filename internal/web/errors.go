// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/pixelvault/pixelvault/internal/auth"
	"github.com/pixelvault/pixelvault/pkg/errutil"
)

// CodeInternal is reported for any error without a mapped code.
const CodeInternal = "INTERNAL"

// CodeNotFound is reported for requests that match no handler.
const CodeNotFound = "NOT_FOUND"

const maxBodyBytes = 64 << 10

var statusByCode = map[string]int{
	auth.CodeInvalidCredentials:    http.StatusUnauthorized,
	auth.CodeWeakPassword:          http.StatusBadRequest,
	auth.CodeAdminExists:           http.StatusBadRequest,
	auth.CodeEmailTaken:            http.StatusBadRequest,
	auth.CodeUnauthenticated:       http.StatusUnauthorized,
	auth.CodeForbidden:             http.StatusForbidden,
	auth.CodeSessionExpired:        http.StatusUnauthorized,
	auth.CodeSessionInvalid:        http.StatusUnauthorized,
	auth.CodeStoreUnavailable:      http.StatusServiceUnavailable,
	auth.CodeMalformedInput:        http.StatusBadRequest,
	auth.CodePasswordLoginDisabled: http.StatusUnauthorized,
	auth.CodeSessionNotFound:       http.StatusNotFound,
	CodeNotFound:                   http.StatusNotFound,
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	StatusCode    int               `json:"statusCode"`
	Code          string            `json:"code"`
	Message       string            `json:"message"`
	Details       map[string]string `json:"details,omitempty"`
	CorrelationID string            `json:"correlationId,omitempty"`
}

// StatusFor returns the HTTP status for an error code.
func StatusFor(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// writeError maps err to a status and JSON body. Unmapped errors become a
// generic 500 and are logged with their full context.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := auth.ErrorCode(err)
	status := StatusFor(code)

	body := ErrorResponse{
		StatusCode:    status,
		Code:          code,
		CorrelationID: middleware.GetReqID(r.Context()),
	}

	switch status {
	case http.StatusInternalServerError:
		errutil.LogError(r.Context(), logger, "request failed", err)
		body.Code = CodeInternal
		body.Message = "internal server error"
	case http.StatusServiceUnavailable:
		logger.WarnContext(r.Context(), "store unavailable", errutil.Attrs(err)...)
		w.Header().Set("Retry-After", "1")
		body.Message = "service temporarily unavailable, retry later"
	default:
		body.Message = publicMessage(err)
		if code == auth.CodeMalformedInput {
			body.Details = auth.FieldErrors(err)
		}
	}

	writeJSON(w, status, body)
}

// publicMessage returns the message of a coded error without its cause chain.
func publicMessage(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if msg := oopsErr.Error(); msg != "" {
			return msg
		}
	}
	return http.StatusText(StatusFor(auth.ErrorCode(err)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded JSON body into dst. Any read or syntax failure
// is reported as malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		reason := "invalid JSON body"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			reason = "request body too large"
		}
		return oops.Code(auth.CodeMalformedInput).
			With("fields", map[string]string{"body": reason}).
			Errorf("malformed input")
	}
	return nil
}
