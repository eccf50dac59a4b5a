package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"extgov/core/governance"
)

const (
	// ActorHeader names the caller recorded in the audit log.
	ActorHeader  = "X-Extgov-Actor"
	defaultActor = "api"
	maxBodyBytes = 1 << 20
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError maps governance error codes to HTTP statuses. Internal details
// are only exposed for client errors.
func writeError(w http.ResponseWriter, err error) {
	code := governance.CodeInternal
	if de, ok := governance.AsDomainError(err); ok {
		code = de.Code
	}
	status := statusFor(code)
	body := errorBody{Error: code}
	if status < http.StatusInternalServerError {
		body.Message = err.Error()
	}
	writeJSON(w, status, body)
}

func statusFor(code string) int {
	switch code {
	case governance.CodeNotFound:
		return http.StatusNotFound
	case governance.CodeInvalidInput:
		return http.StatusBadRequest
	case governance.CodeAssessmentRequired, governance.CodeBlocked, governance.CodeConflict:
		return http.StatusConflict
	case governance.CodeCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: governance.CodeInvalidInput, Message: msg})
}

// decodeBody reads an optional JSON body into dst. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func actor(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(ActorHeader)); v != "" {
		return v
	}
	return defaultActor
}

func parseLimit(raw string, def, max int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, part := range parts {
		val := strings.TrimSpace(part)
		if val == "" {
			continue
		}
		out = append(out, val)
	}
	return out
}
