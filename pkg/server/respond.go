// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/jbuican14/parentPal-06-16/pkg/document"
	"github.com/jbuican14/parentPal-06-16/pkg/gateway"
	"github.com/jbuican14/parentPal-06-16/pkg/job"
	"github.com/jbuican14/parentPal-06-16/pkg/ratelimit"
	"github.com/jbuican14/parentPal-06-16/pkg/remoteagent"
	"github.com/jbuican14/parentPal-06-16/pkg/usage"
	"github.com/jbuican14/parentPal-06-16/pkg/voice"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps a core error to its HTTP status.
func statusFor(err error) int {
	var tooBig *http.MaxBytesError
	switch {
	case ratelimit.IsRateLimitError(err):
		return http.StatusTooManyRequests
	case errors.Is(err, usage.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, gateway.ErrInvalidPayload),
		errors.Is(err, gateway.ErrUnknownOperation),
		errors.Is(err, document.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, document.ErrTooLarge), errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, job.ErrNotFound), errors.Is(err, voice.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, remoteagent.ErrNoEndpoint),
		errors.Is(err, remoteagent.ErrPlaceholderEndpoint),
		errors.Is(err, remoteagent.ErrInvalidEndpoint):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure writes err with its mapped status. Rate limit errors carry
// Retry-After in whole seconds.
func writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	if status == http.StatusTooManyRequests {
		secs := int(math.Ceil(ratelimit.RetryAfter(err).Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		resp.RetryAfter = secs
	}
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a JSON body into v. An empty body is allowed when
// optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, io.EOF) && optional:
		return true
	case errors.Is(err, io.EOF):
		writeError(w, http.StatusBadRequest, "request body is required")
	default:
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
	}
	return false
}
