// Package offline keeps the front end usable without a network. Transport
// is an http.RoundTripper that answers from a bounded cache when the
// network cannot.
package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"medsales/m/domain"
	"medsales/m/internal/rpc"
)

// DefaultSize is the number of responses kept when no size is configured.
const DefaultSize = 256

// HeaderCache marks responses served from the cache.
const HeaderCache = "X-Offline-Cache"

// readOnly lists the RPC functions whose answers may be replayed offline.
// Mutations and logins always go to the network.
var readOnly = map[string]bool{
	domain.FnGetInventoryData: true,
	domain.FnGetSalesReport:   true,
}

type entry struct {
	status int
	header http.Header
	body   []byte
}

// Transport applies one policy: network first for read-only calls to the RPC
// endpoint, no caching for other RPC calls, cache first for everything else.
// Only GET responses with status 200 are stored.
type Transport struct {
	next     http.RoundTripper
	cache    *lru.Cache
	endpoint *url.URL
	log      *zap.Logger
}

// New wraps next. rpcEndpoint identifies backend calls; it may be empty when
// no backend is configured.
func New(next http.RoundTripper, rpcEndpoint string, size int, log *zap.Logger) (*Transport, error) {
	if next == nil {
		next = http.DefaultTransport
	}
	if size <= 0 {
		size = DefaultSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	t := &Transport{next: next, cache: cache, log: log}
	if rpcEndpoint != "" {
		u, err := url.Parse(rpcEndpoint)
		if err != nil {
			return nil, fmt.Errorf("parse rpc endpoint: %w", err)
		}
		t.endpoint = u
	}
	return t, nil
}

// Client returns an http.Client using t.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// Len is the number of cached responses.
func (t *Transport) Len() int {
	return t.cache.Len()
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return t.next.RoundTrip(req)
	}
	if t.isRPC(req.URL) {
		if !readOnly[req.URL.Query().Get("functionName")] {
			return t.next.RoundTrip(req)
		}
		return t.networkFirst(req)
	}
	return t.cacheFirst(req)
}

func (t *Transport) networkFirst(req *http.Request) (*http.Response, error) {
	key := cacheKey(req.URL)
	resp, err := t.next.RoundTrip(req)
	if err == nil {
		return t.store(key, resp)
	}
	if cached, ok := t.lookup(key); ok {
		t.log.Info("serving rpc response from cache", zap.String("url", key), zap.Error(err))
		return cached.response(req, req.URL.Query().Get("callback")), nil
	}
	return nil, err
}

func (t *Transport) cacheFirst(req *http.Request) (*http.Response, error) {
	key := cacheKey(req.URL)
	if cached, ok := t.lookup(key); ok {
		return cached.response(req, ""), nil
	}
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	return t.store(key, resp)
}

// Precache fetches urls from the network and stores them.
func (t *Transport) Precache(ctx context.Context, urls []string) error {
	var errs []error
	for _, raw := range urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			errs = append(errs, fmt.Errorf("precache %s: %w", raw, err))
			continue
		}
		resp, err = t.store(cacheKey(req.URL), resp)
		if err != nil {
			errs = append(errs, fmt.Errorf("precache %s: %w", raw, err))
			continue
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			errs = append(errs, fmt.Errorf("precache %s: status %d", raw, resp.StatusCode))
		}
	}
	return errors.Join(errs...)
}

// store buffers a 200 response into the cache and hands back an equivalent
// response with a fresh body.
func (t *Transport) store(key string, resp *http.Response) (*http.Response, error) {
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	t.cache.Add(key, entry{status: resp.StatusCode, header: resp.Header.Clone(), body: body})
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return resp, nil
}

func (t *Transport) lookup(key string) (entry, bool) {
	v, ok := t.cache.Get(key)
	if !ok {
		return entry{}, false
	}
	e, ok := v.(entry)
	return e, ok
}

func (t *Transport) isRPC(u *url.URL) bool {
	if t.endpoint == nil {
		return false
	}
	return strings.EqualFold(u.Scheme, t.endpoint.Scheme) &&
		strings.EqualFold(u.Host, t.endpoint.Host) &&
		strings.TrimSuffix(u.Path, "/") == strings.TrimSuffix(t.endpoint.Path, "/")
}

// response rebuilds a cached entry. A cached JSONP body is re-addressed to
// callback so it reaches the waiting caller.
func (e entry) response(req *http.Request, callback string) *http.Response {
	body := e.body
	if callback != "" {
		if _, payload, err := rpc.ParseJSONP(body); err == nil {
			body = rpc.WrapJSONP(callback, payload)
		}
	}
	header := e.header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set(HeaderCache, "hit")
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.status, http.StatusText(e.status)),
		StatusCode:    e.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// cacheKey drops the per-call JSONP callback so repeated calls share an entry.
func cacheKey(u *url.URL) string {
	c := *u
	q := c.Query()
	if q.Has("callback") {
		q.Del("callback")
		c.RawQuery = q.Encode()
	}
	c.Fragment = ""
	return c.String()
}
