package bus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"esbridge/internal/logging"
)

// Router dispatches deliveries to the callbacks registered for their topic.
// Request topics take precedence; everything else is treated as an event.
type Router struct {
	mu        sync.RWMutex
	events    map[string][]EventHandler
	requests  map[string]RequestHandler
	responder Responder
}

func NewRouter() *Router {
	return &Router{
		events:   make(map[string][]EventHandler),
		requests: make(map[string]RequestHandler),
	}
}

// SetResponder binds the publisher responses are sent through.
func (r *Router) SetResponder(resp Responder) {
	r.mu.Lock()
	r.responder = resp
	r.mu.Unlock()
}

func (r *Router) AddEventCallback(topic string, h EventHandler) {
	r.mu.Lock()
	r.events[topic] = append(r.events[topic], h)
	r.mu.Unlock()
}

func (r *Router) AddRequestCallback(topic string, h RequestHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.requests[topic]; dup {
		return fmt.Errorf("bus: request callback already registered for %q", topic)
	}
	r.requests[topic] = h
	return nil
}

// Topics lists every topic with at least one callback.
func (r *Router) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{}, len(r.events)+len(r.requests))
	for t := range r.events {
		seen[t] = struct{}{}
	}
	for t := range r.requests {
		seen[t] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Deliver routes one message. Event handler failures are joined and returned;
// request failures are always turned into a response by the handler.
func (r *Router) Deliver(ctx context.Context, msg Message) error {
	r.mu.RLock()
	reqH, isReq := r.requests[msg.Topic]
	evHs := r.events[msg.Topic]
	responder := r.responder
	r.mu.RUnlock()

	if isReq {
		if t := msg.Headers[HeaderMessageType]; t != "" && t != TypeRequest {
			logging.L().Debug("ignoring non-request message on request topic", "topic", msg.Topic, "type", t)
			return nil
		}
		return r.deliverRequest(ctx, reqH, responder, msg)
	}
	if len(evHs) == 0 {
		logging.L().Debug("no callback for topic", "topic", msg.Topic)
		return nil
	}

	ev := &Event{Topic: msg.Topic, Payload: msg.Payload, Headers: msg.Headers}
	var errs []error
	for _, h := range evHs {
		if err := h.OnEvent(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Router) deliverRequest(ctx context.Context, h RequestHandler, responder Responder, msg Message) error {
	req := &Request{
		Topic:     msg.Topic,
		MessageID: msg.Headers[HeaderMessageID],
		ReplyTo:   msg.Headers[HeaderReplyTo],
		Payload:   msg.Payload,
		Headers:   msg.Headers,
	}
	resp := h.OnRequest(ctx, req)
	if resp == nil {
		resp = NewErrorResponse(req, "no response produced", 0, nil)
	}
	if req.ReplyTo == "" {
		logging.L().Warn("request has no reply-to topic; dropping response", "topic", msg.Topic, "message_id", req.MessageID)
		return nil
	}
	if responder == nil {
		return errors.New("bus: no responder bound")
	}
	if err := responder.SendResponse(ctx, resp); err != nil {
		return fmt.Errorf("bus: send response for %s: %w", msg.Topic, err)
	}
	return nil
}
