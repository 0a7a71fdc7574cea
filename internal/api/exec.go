package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"medsales/m/internal/apperr"
	"medsales/m/internal/rpc"
	"medsales/m/internal/store"
)

// Envelope codes.
const (
	CodeBadRequest     = "BAD_REQUEST"
	CodeSessionInvalid = rpc.CodeSessionInvalid
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeInternal       = "INTERNAL"
)

type function func(ctx context.Context, data json.RawMessage) (any, error)

type envelope struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// funcError is a rejection with a wire code.
type funcError struct {
	code    string
	message string
}

func (e *funcError) Error() string { return e.message }

func badRequest(format string, args ...any) error {
	return &funcError{code: CodeBadRequest, message: fmt.Sprintf(format, args...)}
}

var errSessionInvalid = &funcError{code: CodeSessionInvalid, message: "Invalid session. Please log in again."}

type execRequest struct {
	FunctionName string          `json:"functionName"`
	Data         json.RawMessage `json:"data"`
}

func (h *Handler) execPost(w http.ResponseWriter, r *http.Request) {
	var req execRequest
	if err := decodeJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes), &req); err != nil {
		respondJSON(w, http.StatusOK, envelope{Error: "invalid request body: " + err.Error(), Code: CodeBadRequest})
		return
	}
	respondJSON(w, http.StatusOK, h.dispatch(r.Context(), req))
}

// execGet serves the JSONP form. Without a callback it answers plain JSON.
func (h *Handler) execGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	callback := q.Get("callback")
	if callback != "" && !rpc.ValidCallbackName(callback) {
		respondJSON(w, http.StatusBadRequest, envelope{Error: "invalid callback name", Code: CodeBadRequest})
		return
	}
	req := execRequest{FunctionName: q.Get("functionName")}
	if raw := q.Get("data"); raw != "" {
		req.Data = json.RawMessage(raw)
	}
	env := h.dispatch(r.Context(), req)
	if callback == "" {
		respondJSON(w, http.StatusOK, env)
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		payload = []byte(`{"error":"unable to encode response","code":"INTERNAL"}`)
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rpc.WrapJSONP(callback, payload))
}

// dispatch runs one remote function. Rejections travel in the envelope with
// HTTP 200, so the client sees the message instead of a transport failure.
func (h *Handler) dispatch(ctx context.Context, req execRequest) envelope {
	started := time.Now()
	name := strings.TrimSpace(req.FunctionName)
	fn, ok := h.functions[name]
	if !ok {
		h.metrics.Observe("unknown", CodeBadRequest, time.Since(started))
		return envelope{Error: fmt.Sprintf("Unknown function %q", req.FunctionName), Code: CodeBadRequest}
	}
	data := req.Data
	if len(data) == 0 || string(data) == "null" {
		data = json.RawMessage("{}")
	}
	if !json.Valid(data) {
		h.metrics.Observe(name, CodeBadRequest, time.Since(started))
		return envelope{Error: "data is not valid JSON", Code: CodeBadRequest}
	}

	result, err := fn(ctx, data)
	if err != nil {
		env := h.errorEnvelope(name, err)
		h.metrics.Observe(name, env.Code, time.Since(started))
		return env
	}
	h.metrics.Observe(name, "ok", time.Since(started))
	return envelope{Data: result}
}

func (h *Handler) errorEnvelope(name string, err error) envelope {
	var fe *funcError
	var stockErr *store.StockError
	switch {
	case errors.As(err, &fe):
		return envelope{Error: fe.message, Code: fe.code}
	case errors.As(err, &stockErr):
		return envelope{Error: stockErr.Error(), Code: CodeConflict}
	case errors.Is(err, store.ErrDuplicate):
		return envelope{Error: "Item already exists.", Code: CodeConflict}
	case errors.Is(err, store.ErrNotFound):
		return envelope{Error: capitalize(err.Error()), Code: CodeNotFound}
	case apperr.Is(err, apperr.KindValidation):
		return envelope{Error: apperr.UserMessage(err, ""), Code: CodeBadRequest}
	default:
		h.log.Error("rpc function failed", zap.String("function", name), zap.Error(err))
		return envelope{Error: "Internal error", Code: CodeInternal}
	}
}

func decodeJSON(body io.Reader, dest interface{}) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func decodeData(data json.RawMessage, dest any) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return badRequest("Invalid data: %v", err)
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
