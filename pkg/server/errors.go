// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
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
	stderrors "errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/NVIDIA/cmts-monitor/pkg/errors"
	"github.com/NVIDIA/cmts-monitor/pkg/serializer"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"requestId"`
	Timestamp time.Time      `json:"timestamp"`
	Retryable bool           `json:"retryable"`
}

// WriteError writes an error response
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int,
	code errors.ErrorCode, message string, retryable bool, details map[string]any) {

	id := requestID(r)
	if id == "" {
		id = uuid.New().String()
	}

	errResp := ErrorResponse{
		Code:      string(code),
		Message:   message,
		Details:   details,
		RequestID: id,
		Timestamp: time.Now().UTC(),
		Retryable: retryable,
	}

	serializer.RespondJSON(w, statusCode, errResp)
}

// WriteErrorFromErr maps a structured error onto an HTTP error response.
// Errors without a code are reported as internal.
func WriteErrorFromErr(w http.ResponseWriter, r *http.Request, err error, message string) {
	var se *errors.StructuredError
	if !stderrors.As(err, &se) {
		WriteError(w, r, http.StatusInternalServerError, errors.ErrCodeInternal, message, true, nil)
		return
	}

	status, retryable := statusFor(se.Code)
	details := make(map[string]any, len(se.Context)+1)
	for k, v := range se.Context {
		details[k] = v
	}
	details["error"] = se.Error()

	WriteError(w, r, status, se.Code, message, retryable, details)
}

// statusFor returns the HTTP status and retry hint for an error code.
func statusFor(code errors.ErrorCode) (int, bool) {
	switch code {
	case errors.ErrCodeNotFound, errors.ErrCodeSectionNotFound:
		return http.StatusNotFound, false
	case errors.ErrCodeInvalidRequest, errors.ErrCodeColumnMissing, errors.ErrCodeColumnConflict:
		return http.StatusBadRequest, false
	case errors.ErrCodeDuplicateCaptureTime:
		return http.StatusConflict, false
	case errors.ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed, false
	case errors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests, true
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout, true
	case errors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable, true
	default:
		return http.StatusInternalServerError, true
	}
}
