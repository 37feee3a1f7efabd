package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"esbridge/internal/backend"
	"esbridge/internal/bus"
	"esbridge/internal/logging"
	"esbridge/internal/telemetry"
)

// Module names errors raised by the bridge itself rather than the backend.
const Module = "esbridge"

// RequestCallback serves one backend API method over the bus.
type RequestCallback struct {
	method string
	call   backend.Method
}

func NewRequestCallback(method string, call backend.Method) *RequestCallback {
	return &RequestCallback{method: method, call: call}
}

// OnRequest always returns exactly one response: the JSON-encoded result of
// the backend call, or an error response describing why it failed.
func (c *RequestCallback) OnRequest(ctx context.Context, req *bus.Request) (resp *bus.Response) {
	log := logging.L().With("method", c.method, "topic", req.Topic, "message_id", req.MessageID)
	log.Debug("request received", "payload", string(req.Payload))

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			resp = c.errorResponse(log, req, fmt.Errorf("panic in %s: %v", c.method, r))
		}
		result := "ok"
		if resp.IsError {
			result = "error"
		}
		telemetry.Requests.WithLabelValues(c.method, result).Inc()
		telemetry.RequestDuration.WithLabelValues(c.method).Observe(time.Since(start).Seconds())
	}()

	kwargs, err := decodeKwargs(req.Payload)
	if err != nil {
		return c.errorResponse(log, req, err)
	}
	out, err := c.call(ctx, kwargs)
	if err != nil {
		return c.errorResponse(log, req, err)
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return c.errorResponse(log, req, fmt.Errorf("encode %s result: %w", c.method, err))
	}
	return bus.NewResponse(req, payload)
}

func (c *RequestCallback) errorResponse(log *slog.Logger, req *bus.Request, err error) *bus.Response {
	p := ErrorPayload(err)
	if p.Data != nil {
		log.Error("transport error", "class", p.Class, "status_code", p.Data.StatusCode, "err", err)
	} else {
		log.Error("request failed", "class", p.Class, "err", err)
	}
	payload, mErr := json.Marshal(p)
	if mErr != nil && p.Data != nil {
		// Info that cannot be encoded is dropped rather than losing the response.
		p.Data.Info = nil
		payload, _ = json.Marshal(p)
	}
	return bus.NewErrorResponse(req, p.Message, 0, payload)
}

// ErrorPayload describes err in the shape carried by error responses. Only
// backend transport failures get a data section.
func ErrorPayload(err error) bus.ErrorPayload {
	p := bus.ErrorPayload{Message: err.Error(), Class: "Error", Module: Module}

	var be *backend.Error
	switch {
	case errors.As(err, &be):
		p.Class, p.Module = be.Class, be.Module
		if be.Kind == backend.KindTransport {
			p.Data = &bus.ErrorData{
				StatusCode: be.StatusCode,
				Error:      be.Code,
				Info:       infoObject(be.Info),
			}
		}
	case errors.Is(err, ErrPayloadDecode):
		p.Class = "PayloadDecodeError"
	}
	if p.Message == "" {
		p.Message = p.Class
	}
	return p
}

// infoObject keeps structured info as is and reduces anything else to its
// type and text.
func infoObject(info any) any {
	switch v := info.(type) {
	case nil:
		return nil
	case map[string]any:
		return v
	case error:
		return map[string]any{"class": fmt.Sprintf("%T", v), "error": v.Error()}
	default:
		return map[string]any{"class": fmt.Sprintf("%T", v), "error": fmt.Sprint(v)}
	}
}

// decodeKwargs reads a request payload as keyword arguments. An empty payload
// means no arguments.
func decodeKwargs(payload []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return map[string]any{}, nil
	}
	v, err := decodeJSON(payload)
	if err != nil {
		return nil, err
	}
	kwargs, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: want a JSON object, got %T", ErrPayloadDecode, v)
	}
	return kwargs, nil
}
