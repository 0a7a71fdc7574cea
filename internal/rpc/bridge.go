// Package rpc turns a backend function call into one blocking call with a
// deadline and a uniform error surface, whatever transport carries it.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"medsales/m/internal/apperr"
	"medsales/m/internal/metrics"
)

// DefaultTimeout bounds every call unless the bridge is configured otherwise.
const DefaultTimeout = 10 * time.Second

// CodeSessionInvalid is the envelope code the backend uses for rejected sessions.
const CodeSessionInvalid = "SESSION_INVALID"

// Request is what a transport sends: the remote function and its JSON payload.
type Request struct {
	FunctionName string          `json:"functionName"`
	Data         json.RawMessage `json:"data"`
}

// Transport carries one request and returns the raw response envelope. It
// must honour ctx; any side channel it opens must be released once ctx is
// done at the latest.
type Transport interface {
	Call(ctx context.Context, req Request) ([]byte, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req Request) ([]byte, error)

// Call implements Transport.
func (f TransportFunc) Call(ctx context.Context, req Request) ([]byte, error) {
	return f(ctx, req)
}

// Bridge is the single entry point for backend calls.
type Bridge struct {
	transport Transport
	timeout   time.Duration
	log       *zap.Logger
	metrics   *metrics.RPC
	now       func() time.Time
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithTimeout sets the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithLogger sets the logger used for call outcomes.
func WithLogger(log *zap.Logger) Option {
	return func(b *Bridge) {
		if log != nil {
			b.log = log
		}
	}
}

// WithMetrics records every call on m.
func WithMetrics(m *metrics.RPC) Option {
	return func(b *Bridge) { b.metrics = m }
}

// NewBridge wraps t. The transport is fixed for the bridge's lifetime.
func NewBridge(t Transport, opts ...Option) *Bridge {
	b := &Bridge{
		transport: t,
		timeout:   DefaultTimeout,
		log:       zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Timeout returns the per-call deadline.
func (b *Bridge) Timeout() time.Duration {
	return b.timeout
}

// Invoke calls functionName with data and returns the envelope's data field.
// Errors are *apperr.Error of kind Transport, Malformed, Timeout, Backend or
// SessionInvalid.
func (b *Bridge) Invoke(ctx context.Context, functionName string, data any) (json.RawMessage, error) {
	started := b.now()
	result, err := b.invoke(ctx, functionName, data)
	outcome := "ok"
	if err != nil {
		outcome = apperr.KindOf(err).String()
		b.log.Warn("rpc call failed",
			zap.String("function", functionName),
			zap.String("kind", outcome),
			zap.Error(err))
	} else {
		b.log.Debug("rpc call succeeded", zap.String("function", functionName))
	}
	b.metrics.Observe(functionName, outcome, b.now().Sub(started))
	return result, err
}

// InvokeInto is Invoke followed by decoding the data field into out.
func (b *Bridge) InvokeInto(ctx context.Context, functionName string, data any, out any) error {
	raw, err := b.Invoke(ctx, functionName, data)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Malformed(functionName, err)
	}
	return nil
}

type callResult struct {
	body []byte
	err  error
}

func (b *Bridge) invoke(ctx context.Context, functionName string, data any) (json.RawMessage, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.KindValidation, Op: functionName, Field: "data", Message: "request cannot be encoded", Cause: err}
	}
	req := Request{FunctionName: functionName, Data: payload}

	// Cancelling on return is what releases transport side channels on every
	// path, including a transport that never answers.
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		body, err := b.transport.Call(ctx, req)
		done <- callResult{body: body, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, classify(ctx, functionName, res.err)
		}
		return decodeEnvelope(functionName, res.body)
	case <-ctx.Done():
		return nil, classify(ctx, functionName, ctx.Err())
	}
}

// classify maps a transport failure to its kind. Anything that fails once the
// deadline has passed is a timeout.
func classify(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout(op)
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Transport(op, err)
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error json.RawMessage `json:"error"`
	Code  string          `json:"code"`
}

func (e envelope) errorMessage() string {
	raw := strings.TrimSpace(string(e.Error))
	switch raw {
	case "", "null", "false", `""`:
		return ""
	}
	var msg string
	if err := json.Unmarshal(e.Error, &msg); err == nil {
		return msg
	}
	return raw
}

func decodeEnvelope(op string, body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperr.Malformed(op, err)
	}
	if msg := env.errorMessage(); msg != "" {
		if env.Code == CodeSessionInvalid || looksLikeSessionError(msg) {
			return nil, apperr.SessionInvalid(op, msg)
		}
		return nil, apperr.Backend(op, msg)
	}
	if len(env.Data) == 0 {
		return json.RawMessage("null"), nil
	}
	return env.Data, nil
}

func looksLikeSessionError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "invalid session") || strings.Contains(lower, "session expired")
}
