package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medsales/m/internal/apperr"
	"medsales/m/internal/metrics"
)

func respond(body string) TransportFunc {
	return func(context.Context, Request) ([]byte, error) {
		return []byte(body), nil
	}
}

func TestInvokeReturnsData(t *testing.T) {
	b := NewBridge(respond(`{"data":{"success":true}}`))

	raw, err := b.Invoke(context.Background(), "addMedicine", map[string]any{"name": "Aspirin"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(raw))
}

func TestInvokeSendsFunctionAndPayload(t *testing.T) {
	var got Request
	b := NewBridge(TransportFunc(func(_ context.Context, req Request) ([]byte, error) {
		got = req
		return []byte(`{"data":null}`), nil
	}))

	_, err := b.Invoke(context.Background(), "validateUser", map[string]string{"username": "ama"})
	require.NoError(t, err)
	assert.Equal(t, "validateUser", got.FunctionName)
	assert.JSONEq(t, `{"username":"ama"}`, string(got.Data))
}

func TestInvokeMissingDataIsNull(t *testing.T) {
	b := NewBridge(respond(`{}`))

	raw, err := b.Invoke(context.Background(), "deleteLastSale", nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))
}

func TestInvokeBackendError(t *testing.T) {
	b := NewBridge(respond(`{"error":"bad"}`))

	_, err := b.Invoke(context.Background(), "submitSale", nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBackend))
	assert.Equal(t, "bad", err.Error())
}

func TestInvokeSessionInvalid(t *testing.T) {
	cases := map[string]string{
		"code":    `{"error":"session rejected","code":"SESSION_INVALID"}`,
		"message": `{"error":"Invalid session. Please log in again."}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewBridge(respond(body)).Invoke(context.Background(), "getInventoryData", nil)
			assert.True(t, apperr.Is(err, apperr.KindSessionInvalid))
		})
	}
}

func TestInvokeMalformedBody(t *testing.T) {
	b := NewBridge(respond(`<html>oops</html>`))

	_, err := b.Invoke(context.Background(), "getInventoryData", nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindMalformed))
}

func TestInvokeTransportError(t *testing.T) {
	b := NewBridge(TransportFunc(func(context.Context, Request) ([]byte, error) {
		return nil, errors.New("connection refused")
	}))

	_, err := b.Invoke(context.Background(), "getInventoryData", nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindTransport))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestInvokeTimesOutOnce(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	var calls atomic.Int32
	b := NewBridge(TransportFunc(func(context.Context, Request) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte(`{"data":1}`), nil
	}), WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := b.Invoke(context.Background(), "getSalesReport", nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindTimeout))
	assert.Equal(t, "Request timed out", err.Error())
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.EqualValues(t, 1, calls.Load())
}

func TestInvokeLateTransportFailureIsTimeout(t *testing.T) {
	b := NewBridge(TransportFunc(func(ctx context.Context, req Request) ([]byte, error) {
		<-ctx.Done()
		return nil, apperr.Transport(req.FunctionName, ErrCallbackExpired)
	}), WithTimeout(5*time.Millisecond))

	for i := 0; i < 20; i++ {
		_, err := b.Invoke(context.Background(), "getInventoryData", nil)
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindTimeout), "attempt %d: %v", i, err)
	}
}

func TestInvokeCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := NewBridge(TransportFunc(func(ctx context.Context, _ Request) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	cancel()

	_, err := b.Invoke(ctx, "getInventoryData", nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindTransport))
}

func TestInvokeUnencodableData(t *testing.T) {
	var called bool
	b := NewBridge(TransportFunc(func(context.Context, Request) ([]byte, error) {
		called = true
		return nil, nil
	}))

	_, err := b.Invoke(context.Background(), "addMedicine", make(chan int))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.False(t, called)
}

func TestInvokeInto(t *testing.T) {
	b := NewBridge(respond(`{"data":{"role":"Admin","sessionId":"abc"}}`))

	var out struct {
		Role      string `json:"role"`
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, b.InvokeInto(context.Background(), "validateUser", nil, &out))
	assert.Equal(t, "Admin", out.Role)
	assert.Equal(t, "abc", out.SessionID)

	var wrong []int
	err := b.InvokeInto(context.Background(), "validateUser", nil, &wrong)
	assert.True(t, apperr.Is(err, apperr.KindMalformed))
}

func TestInvokeRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRPC(reg, "medsales", "rpc_client")
	ok := NewBridge(respond(`{"data":true}`), WithMetrics(m))
	failing := NewBridge(respond(`{"error":"nope"}`), WithMetrics(m))

	_, _ = ok.Invoke(context.Background(), "getInventoryData", nil)
	_, _ = ok.Invoke(context.Background(), "getInventoryData", nil)
	_, _ = failing.Invoke(context.Background(), "getInventoryData", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Calls().WithLabelValues("getInventoryData", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Calls().WithLabelValues("getInventoryData", "backend")))
}

func TestErrorMessageShapes(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`null`, ""},
		{`false`, ""},
		{`""`, ""},
		{`"Not enough stock"`, "Not enough stock"},
		{`{"detail":"x"}`, `{"detail":"x"}`},
	}
	for _, tc := range cases {
		env := envelope{Error: json.RawMessage(tc.raw)}
		assert.Equal(t, tc.want, env.errorMessage(), tc.raw)
	}
}
