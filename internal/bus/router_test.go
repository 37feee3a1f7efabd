package bus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureResponder struct {
	mu   sync.Mutex
	sent []*Response
	err  error
}

func (c *captureResponder) SendResponse(_ context.Context, r *Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, r)
	return c.err
}

func TestRouter_EventFanOut(t *testing.T) {
	r := NewRouter()
	var got []string
	r.AddEventCallback("t", EventHandlerFunc(func(_ context.Context, ev *Event) error {
		got = append(got, "a:"+string(ev.Payload))
		return nil
	}))
	r.AddEventCallback("t", EventHandlerFunc(func(_ context.Context, ev *Event) error {
		got = append(got, "b:"+string(ev.Payload))
		return errors.New("b failed")
	}))

	err := r.Deliver(context.Background(), Message{Topic: "t", Payload: []byte("x")})
	assert.EqualError(t, err, "b failed")
	assert.Equal(t, []string{"a:x", "b:x"}, got)

	assert.NoError(t, r.Deliver(context.Background(), Message{Topic: "unknown"}))
}

func TestRouter_RequestResponse(t *testing.T) {
	r := NewRouter()
	resp := &captureResponder{}
	r.SetResponder(resp)
	require.NoError(t, r.AddRequestCallback("svc.get", RequestHandlerFunc(func(_ context.Context, req *Request) *Response {
		return NewResponse(req, []byte(`{"ok":true}`))
	})))

	err := r.Deliver(context.Background(), Message{
		Topic:   "svc.get",
		Payload: []byte(`{}`),
		Headers: map[string]string{HeaderMessageType: TypeRequest, HeaderMessageID: "m1", HeaderReplyTo: "replies"},
	})
	require.NoError(t, err)
	require.Len(t, resp.sent, 1)
	assert.Equal(t, "m1", resp.sent[0].RequestID)
	assert.Equal(t, "replies", resp.sent[0].Topic)
	assert.False(t, resp.sent[0].IsError)
}

func TestRouter_RequestWithoutReplyTo(t *testing.T) {
	r := NewRouter()
	resp := &captureResponder{}
	r.SetResponder(resp)
	calls := 0
	require.NoError(t, r.AddRequestCallback("svc.get", RequestHandlerFunc(func(_ context.Context, req *Request) *Response {
		calls++
		return NewResponse(req, nil)
	})))

	require.NoError(t, r.Deliver(context.Background(), Message{Topic: "svc.get"}))
	assert.Equal(t, 1, calls)
	assert.Empty(t, resp.sent)
}

func TestRouter_IgnoresResponsesOnRequestTopic(t *testing.T) {
	r := NewRouter()
	calls := 0
	require.NoError(t, r.AddRequestCallback("svc.get", RequestHandlerFunc(func(_ context.Context, req *Request) *Response {
		calls++
		return NewResponse(req, nil)
	})))
	require.NoError(t, r.Deliver(context.Background(), Message{
		Topic: "svc.get", Headers: map[string]string{HeaderMessageType: TypeResponse},
	}))
	assert.Zero(t, calls)
}

func TestRouter_DuplicateRequestTopic(t *testing.T) {
	r := NewRouter()
	h := RequestHandlerFunc(func(_ context.Context, req *Request) *Response { return NewResponse(req, nil) })
	require.NoError(t, r.AddRequestCallback("svc.get", h))
	assert.Error(t, r.AddRequestCallback("svc.get", h))
}

func TestRouter_Topics(t *testing.T) {
	r := NewRouter()
	r.AddEventCallback("b", EventHandlerFunc(func(context.Context, *Event) error { return nil }))
	r.AddEventCallback("a", EventHandlerFunc(func(context.Context, *Event) error { return nil }))
	require.NoError(t, r.AddRequestCallback("c", RequestHandlerFunc(func(_ context.Context, req *Request) *Response { return nil })))
	assert.Equal(t, []string{"a", "b", "c"}, r.Topics())
}

func TestRouter_SendFailureSurfaces(t *testing.T) {
	r := NewRouter()
	r.SetResponder(&captureResponder{err: errors.New("broker down")})
	require.NoError(t, r.AddRequestCallback("svc", RequestHandlerFunc(func(_ context.Context, req *Request) *Response { return nil })))
	err := r.Deliver(context.Background(), Message{Topic: "svc", Headers: map[string]string{HeaderReplyTo: "r"}})
	assert.ErrorContains(t, err, "broker down")
}
