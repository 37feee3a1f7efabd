// Package callback holds the two bus callbacks: the event indexing callback,
// which turns event payloads into index operations, and the request dispatch
// callback, which serves backend API calls over the bus.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"esbridge/internal/bus"
	"esbridge/internal/document"
	"esbridge/internal/logging"
	"esbridge/internal/telemetry"
	"esbridge/internal/transform"
)

var (
	// ErrPayloadDecode marks a payload that is not valid JSON (or, for
	// requests, not a JSON object).
	ErrPayloadDecode = errors.New("payload decode failed")
	// ErrMissingField marks an event whose configured id field is absent or empty.
	ErrMissingField = errors.New("id field missing from payload")
	errNoBody       = errors.New("no body to index")
)

// Indexer submits one index operation.
type Indexer interface {
	Index(ctx context.Context, op document.Operation) (any, error)
}

// EventGroup is what an EventCallback needs to know about its group.
type EventGroup struct {
	Name      string
	Index     string
	DocType   string
	IDField   string
	Transform transform.EventTransform // nil for none
}

// EventCallback indexes the events of one event group.
type EventCallback struct {
	group   EventGroup
	indexer Indexer
}

func NewEventCallback(g EventGroup, idx Indexer) *EventCallback {
	return &EventCallback{group: g, indexer: idx}
}

// OnEvent handles one event. Undecodable payloads and unresolvable ids are
// logged and dropped (nil error). Transform failures and the first failed
// submission are returned; operations already submitted stay submitted.
func (c *EventCallback) OnEvent(ctx context.Context, ev *bus.Event) error {
	log := logging.L().With("group", c.group.Name, "topic", ev.Topic)
	log.Debug("event received", "payload", string(ev.Payload))
	telemetry.EventsReceived.WithLabelValues(c.group.Name).Inc()

	def, err := c.defaultOperation(ev.Payload)
	switch {
	case errors.Is(err, ErrPayloadDecode):
		log.Error("dropping event", "err", err)
		c.dropped("decode")
		return nil
	case errors.Is(err, ErrMissingField):
		log.Error("dropping event", "err", err, "id_field", c.group.IDField)
		c.dropped("missing_id")
		return nil
	case errors.Is(err, errNoBody):
		log.Debug("dropping event with empty body")
		c.dropped("empty")
		return nil
	}

	tev := transform.Event{Topic: ev.Topic, Payload: ev.Payload, Headers: ev.Headers}
	ops, err := transform.Dispatch(c.group.Transform, tev, def)
	if err != nil {
		log.Error("transform failed", "err", err)
		c.dropped("transform")
		return fmt.Errorf("event group %s: %w", c.group.Name, err)
	}
	if len(ops) == 0 {
		log.Debug("transform produced no operations")
		c.dropped("transform_empty")
		return nil
	}

	for _, op := range ops {
		opLog := log.With("index", op.Index, "doc_type", op.DocType, "id", op.ID)
		if !op.HasBody() {
			opLog.Error("skipping operation without body")
			telemetry.OperationsSubmitted.WithLabelValues(c.group.Name, "skipped").Inc()
			continue
		}
		opLog.Debug("indexing document")
		if _, err := c.indexer.Index(ctx, op); err != nil {
			opLog.Error("index failed", "err", err)
			telemetry.OperationsSubmitted.WithLabelValues(c.group.Name, "error").Inc()
			return fmt.Errorf("event group %s: index %s/%s: %w", c.group.Name, op.Index, op.ID, err)
		}
		telemetry.OperationsSubmitted.WithLabelValues(c.group.Name, "ok").Inc()
	}
	return nil
}

func (c *EventCallback) dropped(reason string) {
	telemetry.EventsDropped.WithLabelValues(c.group.Name, reason).Inc()
}

// defaultOperation builds the operation submitted when no transform rewrites
// it. With a transform configured an undecodable payload is kept as raw text
// and no id is extracted.
func (c *EventCallback) defaultOperation(payload []byte) (document.Operation, error) {
	op := document.Operation{Index: c.group.Index, DocType: c.group.DocType}

	body, err := decodeJSON(payload)
	if err != nil {
		if c.group.Transform == nil {
			return op, err
		}
		op.Body = string(payload)
	} else {
		op.Body = body
		if c.group.IDField != "" {
			id, err := extractID(body, c.group.IDField)
			if err != nil {
				return op, err
			}
			op.ID = id
		}
	}

	if document.EmptyBody(op.Body) {
		return op, errNoBody
	}
	return op, nil
}

func extractID(body any, field string) (string, error) {
	obj, ok := body.(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: payload is not an object", ErrMissingField)
	}
	raw, ok := obj[field]
	if !ok || raw == nil {
		return "", fmt.Errorf("%w: %q", ErrMissingField, field)
	}
	id, ok := document.FormatID(raw)
	if !ok {
		return "", fmt.Errorf("%w: %q has unsupported type %T", ErrMissingField, field, raw)
	}
	return id, nil
}

// decodeJSON decodes exactly one JSON value, keeping numbers as json.Number.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadDecode, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrPayloadDecode)
	}
	return v, nil
}
