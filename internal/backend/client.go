// Package backend adapts the Elasticsearch client: the document index call used
// by event callbacks and the named API methods exposed as bus services.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"esbridge/internal/document"
)

// Method is a backend API call driven by keyword arguments.
type Method func(ctx context.Context, kwargs map[string]any) (any, error)

// Client wraps an Elasticsearch client. Calls are synchronous and are not
// retried.
type Client struct {
	es *elasticsearch.Client
}

type options struct {
	transport http.RoundTripper
}

type Option func(*options)

// WithTransport replaces the HTTP transport built from the server settings.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// New builds a client for the given servers.
func New(servers []Server, opts ...Option) (*Client, error) {
	if len(servers) == 0 {
		return nil, errors.New("backend: at least one server is required")
	}
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	addrs := make([]string, 0, len(servers))
	for _, s := range servers {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("backend: server %q: %w", s.Host, err)
		}
		addrs = append(addrs, s.URL())
	}
	if o.transport == nil {
		tr, err := newTransport(servers)
		if err != nil {
			return nil, fmt.Errorf("backend: %w", err)
		}
		o.transport = tr
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    addrs,
		Transport:    o.transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}
	return &Client{es: es}, nil
}

// Index submits one document write. Params are passed as keyword arguments of
// the index method, so both paths accept the same parameters.
func (c *Client) Index(ctx context.Context, op document.Operation) (any, error) {
	kwargs := make(map[string]any, len(op.Params)+3)
	for k, v := range op.Params {
		kwargs[k] = v
	}
	kwargs[document.KeyIndex] = op.Index
	kwargs[document.KeyBody] = op.Body
	if op.ID != "" {
		kwargs[document.KeyID] = op.ID
	}
	req, err := indexRequest(newArgs(kwargs))
	if err != nil {
		return nil, err
	}
	return c.do(ctx, req, false)
}

// Method returns the API method registered under name.
func (c *Client) Method(name string) (Method, bool) {
	m, ok := methods[name]
	if !ok {
		return nil, false
	}
	return func(ctx context.Context, kwargs map[string]any) (any, error) {
		return m(ctx, c, newArgs(kwargs))
	}, true
}

// do performs req. With boolResult a 2xx answer means true and 404 means false,
// the way HEAD style endpoints report existence.
func (c *Client) do(ctx context.Context, req esapi.Request, boolResult bool) (any, error) {
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return nil, connectionError(err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, connectionError(err)
	}
	if boolResult {
		switch {
		case res.StatusCode == http.StatusNotFound:
			return false, nil
		case !res.IsError():
			return true, nil
		}
	}
	if res.IsError() {
		return nil, transportError(res.StatusCode, raw)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, genericError("SerializationError", fmt.Errorf("decode response: %w", err))
	}
	return out, nil
}

// bodyReader sends text bodies unchanged and JSON-encodes everything else.
func bodyReader(v any) (io.Reader, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case string:
		return bytes.NewReader([]byte(b)), nil
	case []byte:
		return bytes.NewReader(b), nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, genericError("SerializationError", fmt.Errorf("encode body: %w", err))
	}
	return bytes.NewReader(raw), nil
}
