package rpc

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"medsales/m/internal/apperr"
)

// CallbackPrefix starts every generated callback name.
const CallbackPrefix = "cb_"

var (
	// ErrCallbackMismatch means the script invoked a callback other than the one requested.
	ErrCallbackMismatch = errors.New("response invoked an unexpected callback")
	// ErrCallbackExpired means the callback was already released.
	ErrCallbackExpired = errors.New("callback already released")

	callbackName = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
	jsonpBody    = regexp.MustCompile(`(?s)^\s*(?:/\*\*/)?\s*([A-Za-z_$][A-Za-z0-9_$]*)\s*\((.*)\)\s*;?\s*$`)
)

// ValidCallbackName reports whether name is safe to echo back as a function name.
func ValidCallbackName(name string) bool {
	return callbackName.MatchString(name)
}

// CallbackRegistry holds the pending callbacks of in-flight JSONP calls.
// Each name is registered once and removed once.
type CallbackRegistry struct {
	mu      sync.Mutex
	pending map[string]chan []byte
	removed atomic.Int64
}

// NewCallbackRegistry returns an empty registry.
func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{pending: make(map[string]chan []byte)}
}

// Register reserves a fresh callback name and the channel its payload arrives on.
func (r *CallbackRegistry) Register() (string, <-chan []byte, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", nil, err
	}
	name := CallbackPrefix + strings.ReplaceAll(id.String(), "-", "")
	ch := make(chan []byte, 1)

	r.mu.Lock()
	r.pending[name] = ch
	r.mu.Unlock()
	return name, ch, nil
}

// Deliver hands payload to name's waiter. It returns false when name is
// unknown or already released; such payloads are dropped.
func (r *CallbackRegistry) Deliver(name string, payload []byte) bool {
	r.mu.Lock()
	ch, ok := r.pending[name]
	r.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- payload:
		return true
	default:
		return false
	}
}

// Remove releases name. It returns false if name was not pending.
func (r *CallbackRegistry) Remove(name string) bool {
	r.mu.Lock()
	_, ok := r.pending[name]
	delete(r.pending, name)
	r.mu.Unlock()
	if ok {
		r.removed.Add(1)
	}
	return ok
}

// Pending is the number of registered, unreleased callbacks.
func (r *CallbackRegistry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Removed counts releases since the registry was created.
func (r *CallbackRegistry) Removed() int64 {
	return r.removed.Load()
}

// JSONPTransport issues GET requests carrying functionName, data and callback
// as query parameters and expects a script of the form name(envelope);.
type JSONPTransport struct {
	endpoint string
	client   *http.Client
	registry *CallbackRegistry
}

// NewJSONPTransport builds a JSONP transport. A nil registry gets a private one.
func NewJSONPTransport(endpoint string, client *http.Client, registry *CallbackRegistry) *JSONPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	if registry == nil {
		registry = NewCallbackRegistry()
	}
	return &JSONPTransport{endpoint: endpoint, client: client, registry: registry}
}

// Registry exposes the callback registry.
func (t *JSONPTransport) Registry() *CallbackRegistry {
	return t.registry
}

// Call implements Transport. The callback is released exactly once: when the
// call returns or when ctx is done, whichever happens first.
func (t *JSONPTransport) Call(ctx context.Context, req Request) ([]byte, error) {
	name, ch, err := t.registry.Register()
	if err != nil {
		return nil, apperr.Transport(req.FunctionName, err)
	}
	release := sync.OnceFunc(func() { t.registry.Remove(name) })
	stop := context.AfterFunc(ctx, release)
	defer func() {
		stop()
		release()
	}()

	target, err := t.buildURL(req, name)
	if err != nil {
		return nil, apperr.Transport(req.FunctionName, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, apperr.Transport(req.FunctionName, err)
	}
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	script, err := readBody(req.FunctionName, resp)
	if err != nil {
		return nil, err
	}
	invoked, payload, err := ParseJSONP(script)
	if err != nil {
		return nil, apperr.Malformed(req.FunctionName, err)
	}
	if invoked != name {
		return nil, apperr.Malformed(req.FunctionName, ErrCallbackMismatch)
	}
	if !t.registry.Deliver(name, payload) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperr.Transport(req.FunctionName, ErrCallbackExpired)
	}

	select {
	case body := <-ch:
		return body, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *JSONPTransport) buildURL(req Request, callback string) (string, error) {
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("functionName", req.FunctionName)
	q.Set("data", string(req.Data))
	q.Set("callback", callback)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseJSONP splits a script of the form name(payload); into its parts.
func ParseJSONP(script []byte) (string, []byte, error) {
	m := jsonpBody.FindSubmatch(script)
	if m == nil {
		return "", nil, errors.New("response is not a callback invocation")
	}
	return string(m[1]), m[2], nil
}

// WrapJSONP renders payload as a call to callback.
func WrapJSONP(callback string, payload []byte) []byte {
	out := make([]byte, 0, len(callback)+len(payload)+8)
	out = append(out, "/**/"...)
	out = append(out, callback...)
	out = append(out, '(')
	out = append(out, payload...)
	out = append(out, ");"...)
	return out
}
