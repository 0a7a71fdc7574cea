package rpc

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medsales/m/internal/apperr"
)

func jsonpServer(t *testing.T, envelope string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		cb := r.URL.Query().Get("callback")
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write(WrapJSONP(cb, []byte(envelope)))
	}))
}

func TestCallbackRegistryNames(t *testing.T) {
	r := NewCallbackRegistry()
	a, _, err := r.Register()
	require.NoError(t, err)
	b, _, err := r.Register()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, CallbackPrefix))
	assert.True(t, ValidCallbackName(a))
	assert.Equal(t, 2, r.Pending())
}

func TestCallbackRegistryRemoveOnce(t *testing.T) {
	r := NewCallbackRegistry()
	name, _, err := r.Register()
	require.NoError(t, err)

	assert.True(t, r.Remove(name))
	assert.False(t, r.Remove(name))
	assert.EqualValues(t, 1, r.Removed())
	assert.False(t, r.Deliver(name, []byte(`{}`)), "late payloads are dropped")
}

func TestJSONPRoundTrip(t *testing.T) {
	srv := jsonpServer(t, `{"data":{"success":true}}`)
	defer srv.Close()
	tr := NewJSONPTransport(srv.URL, srv.Client(), nil)

	raw, err := NewBridge(tr).Invoke(context.Background(), "deleteMedicine", map[string]int{"row": 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(raw))
	assert.Zero(t, tr.Registry().Pending())
	assert.EqualValues(t, 1, tr.Registry().Removed())
}

func TestJSONPSendsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "getSalesReport", q.Get("functionName"))
		assert.JSONEq(t, `{"startDate":"2025-01-01"}`, q.Get("data"))
		_, _ = w.Write(WrapJSONP(q.Get("callback"), []byte(`{"data":null}`)))
	}))
	defer srv.Close()

	_, err := NewBridge(NewJSONPTransport(srv.URL, nil, nil)).
		Invoke(context.Background(), "getSalesReport", map[string]string{"startDate": "2025-01-01"})
	require.NoError(t, err)
}

func TestJSONPBackendErrorReleasesCallback(t *testing.T) {
	srv := jsonpServer(t, `{"error":"bad"}`)
	defer srv.Close()
	tr := NewJSONPTransport(srv.URL, nil, nil)

	_, err := NewBridge(tr).Invoke(context.Background(), "submitSale", nil)
	assert.True(t, apperr.Is(err, apperr.KindBackend))
	assert.Zero(t, tr.Registry().Pending())
	assert.EqualValues(t, 1, tr.Registry().Removed())
}

func TestJSONPTimeoutReleasesCallbackOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()
	tr := NewJSONPTransport(srv.URL, srv.Client(), nil)

	_, err := NewBridge(tr, WithTimeout(30*time.Millisecond)).Invoke(context.Background(), "getInventoryData", nil)
	assert.True(t, apperr.Is(err, apperr.KindTimeout))
	assert.Eventually(t, func() bool { return tr.Registry().Pending() == 0 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, tr.Registry().Removed())
}

func TestJSONPCallbackMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `someoneElse({"data":1});`)
	}))
	defer srv.Close()

	_, err := NewBridge(NewJSONPTransport(srv.URL, nil, nil)).Invoke(context.Background(), "getInventoryData", nil)
	assert.True(t, apperr.Is(err, apperr.KindMalformed))
	assert.ErrorIs(t, err, ErrCallbackMismatch)
}

func TestParseJSONP(t *testing.T) {
	name, payload, err := ParseJSONP([]byte("/**/cb_1({\"data\":[1,\n2]});\n"))
	require.NoError(t, err)
	assert.Equal(t, "cb_1", name)
	assert.Equal(t, "{\"data\":[1,\n2]}", string(payload))

	_, _, err = ParseJSONP([]byte(`alert(1)//`))
	assert.Error(t, err)
	_, _, err = ParseJSONP([]byte(`{"data":1}`))
	assert.Error(t, err)
}

func TestValidCallbackName(t *testing.T) {
	assert.True(t, ValidCallbackName("cb_abc"))
	assert.True(t, ValidCallbackName("$jq123"))
	assert.False(t, ValidCallbackName("1abc"))
	assert.False(t, ValidCallbackName("alert(1)"))
	assert.False(t, ValidCallbackName(""))
}

// lateAnswer answers only after the caller's deadline has released the callback.
type lateAnswer struct {
	registry *CallbackRegistry
}

func (l lateAnswer) RoundTrip(req *http.Request) (*http.Response, error) {
	<-req.Context().Done()
	for i := 0; i < 200 && l.registry.Pending() > 0; i++ {
		time.Sleep(time.Millisecond)
	}
	body := WrapJSONP(req.URL.Query().Get("callback"), []byte(`{"data":{"success":true}}`))
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(string(body))),
		Request:    req,
	}, nil
}

func TestJSONPAnswerAfterDeadline(t *testing.T) {
	registry := NewCallbackRegistry()
	tr := NewJSONPTransport("http://backend.invalid/exec", &http.Client{Transport: lateAnswer{registry: registry}}, registry)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := tr.Call(ctx, Request{FunctionName: "getInventoryData", Data: []byte(`{}`)})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, registry.Pending())
	assert.EqualValues(t, 1, registry.Removed())
}
