// Package client calls the bridge's request service over the bus: it sends a
// request to a method topic and waits for the reply correlated by message id.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"esbridge/internal/bus"
	"esbridge/internal/logging"
)

// RequestSender publishes requests onto the bus.
type RequestSender interface {
	SendRequest(ctx context.Context, req *bus.Request) error
}

type Options struct {
	ServiceTopic    string
	ServiceUniqueID string
	ReplyTopic      string
}

type Client struct {
	sender RequestSender
	opts   Options

	mu      sync.Mutex
	waiting map[string]chan *bus.Response
}

func New(sender RequestSender, opts Options) *Client {
	if opts.ServiceTopic == "" {
		opts.ServiceTopic = bus.DefaultServiceTopic
	}
	if opts.ReplyTopic == "" {
		opts.ReplyTopic = opts.ServiceTopic + ".replies"
	}
	return &Client{sender: sender, opts: opts, waiting: make(map[string]chan *bus.Response)}
}

// Call invokes method with kwargs and decodes the reply.
func (c *Client) Call(ctx context.Context, method string, kwargs map[string]any) (any, error) {
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	payload, err := json.Marshal(kwargs)
	if err != nil {
		return nil, fmt.Errorf("client: encode %s arguments: %w", method, err)
	}
	resp, err := c.Send(ctx, method, payload)
	if err != nil {
		return nil, err
	}
	return DecodeResponse(resp)
}

// Send publishes a raw request payload and waits for its response.
func (c *Client) Send(ctx context.Context, method string, payload []byte) (*bus.Response, error) {
	req := &bus.Request{
		Topic:     bus.RequestTopic(c.opts.ServiceTopic, c.opts.ServiceUniqueID, method),
		MessageID: uuid.NewString(),
		ReplyTo:   c.opts.ReplyTopic,
		Payload:   payload,
	}
	ch := make(chan *bus.Response, 1)
	c.mu.Lock()
	c.waiting[req.MessageID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiting, req.MessageID)
		c.mu.Unlock()
	}()

	logging.L().Debug("sending request", "topic", req.Topic, "message_id", req.MessageID)
	if err := c.sender.SendRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("client: send %s: %w", method, err)
	}
	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("client: waiting for %s response: %w", method, ctx.Err())
	}
}

// Deliver hands a message from the reply topic to the waiting caller.
// Unknown or late replies are ignored.
func (c *Client) Deliver(_ context.Context, msg bus.Message) error {
	resp, ok := bus.ParseResponse(msg)
	if !ok {
		return nil
	}
	c.mu.Lock()
	ch, ok := c.waiting[resp.RequestID]
	c.mu.Unlock()
	if !ok {
		logging.L().Debug("ignoring uncorrelated response", "request_id", resp.RequestID)
		return nil
	}
	select {
	case ch <- resp:
	default:
	}
	return nil
}

// RemoteError is a failure reported by the bridge in an error response.
type RemoteError struct {
	Message   string
	Class     string
	Module    string
	ErrorCode int

	// Set for backend transport failures.
	StatusCode any
	Code       string
	Info       any
}

func (e *RemoteError) Error() string {
	if e.Class == "" {
		return e.Message
	}
	return fmt.Sprintf("%s.%s: %s", e.Module, e.Class, e.Message)
}

// HasData reports whether the failure carries transport detail.
func (e *RemoteError) HasData() bool { return e.StatusCode != nil }

// DecodeResponse returns the decoded payload of a success response, or a
// *RemoteError for an error response. Numbers decode as json.Number.
func DecodeResponse(resp *bus.Response) (any, error) {
	if resp == nil {
		return nil, errors.New("client: nil response")
	}
	if !resp.IsError {
		if len(bytes.TrimSpace(resp.Payload)) == 0 {
			return nil, nil
		}
		var out any
		if err := decode(resp.Payload, &out); err != nil {
			return nil, fmt.Errorf("client: decode response: %w", err)
		}
		return out, nil
	}

	re := &RemoteError{Message: resp.ErrorMessage, ErrorCode: resp.ErrorCode}
	var p bus.ErrorPayload
	if len(resp.Payload) > 0 && decode(resp.Payload, &p) == nil {
		if p.Message != "" {
			re.Message = p.Message
		}
		re.Class, re.Module = p.Class, p.Module
		if p.Data != nil {
			re.StatusCode, re.Code, re.Info = p.Data.StatusCode, p.Data.Error, p.Data.Info
		}
	}
	return nil, re
}

func decode(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
