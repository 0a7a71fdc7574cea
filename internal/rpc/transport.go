package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"medsales/m/internal/apperr"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 8 << 20

// ErrBackendUnavailable is returned by NullTransport.
var ErrBackendUnavailable = errors.New("backend unavailable")

// Transport modes accepted by NewTransport.
const (
	ModePost  = "post"
	ModeJSONP = "jsonp"
)

// HTTPTransport posts the request as JSON to a single endpoint.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
}

// NewHTTPTransport posts to endpoint using client, or http.DefaultClient.
func NewHTTPTransport(endpoint string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{endpoint: endpoint, client: client}
}

// Call implements Transport.
func (t *HTTPTransport) Call(ctx context.Context, req Request) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperr.Transport(req.FunctionName, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Transport(req.FunctionName, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return readBody(req.FunctionName, resp)
}

func readBody(op string, resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(data))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, apperr.Transport(op, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet))
	}
	return data, nil
}

// NullTransport fails every call. It stands in when no backend is configured.
type NullTransport struct{}

// Call implements Transport.
func (NullTransport) Call(_ context.Context, req Request) ([]byte, error) {
	return nil, apperr.Transport(req.FunctionName, ErrBackendUnavailable)
}

// NewTransport picks a transport for mode. An empty endpoint yields
// NullTransport.
func NewTransport(mode, endpoint string, client *http.Client, registry *CallbackRegistry) (Transport, error) {
	if strings.TrimSpace(endpoint) == "" {
		return NullTransport{}, nil
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModePost:
		return NewHTTPTransport(endpoint, client), nil
	case ModeJSONP:
		return NewJSONPTransport(endpoint, client, registry), nil
	default:
		return nil, fmt.Errorf("unknown rpc transport %q", mode)
	}
}
