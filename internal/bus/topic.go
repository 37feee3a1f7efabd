package bus

import (
	"strconv"
	"strings"
)

// DefaultServiceTopic is the topic prefix of the request/response service.
const DefaultServiceTopic = "esbridge.elasticsearch-api"

// RequestTopic names the topic serving method:
// <serviceTopic>[.<uniqueID>].<method>.
func RequestTopic(serviceTopic, uniqueID, method string) string {
	parts := []string{serviceTopic}
	if uniqueID != "" {
		parts = append(parts, uniqueID)
	}
	return strings.Join(append(parts, method), ".")
}

// ParseResponse reads a response delivered on a reply topic. It reports false
// for messages that are not responses.
func ParseResponse(msg Message) (*Response, bool) {
	switch msg.Headers[HeaderMessageType] {
	case TypeResponse, TypeError:
	default:
		return nil, false
	}
	resp := &Response{
		RequestID: msg.Headers[HeaderRequestID],
		Topic:     msg.Topic,
		Payload:   msg.Payload,
		IsError:   msg.Headers[HeaderMessageType] == TypeError,
	}
	if resp.IsError {
		resp.ErrorMessage = msg.Headers[HeaderErrorMessage]
		resp.ErrorCode, _ = strconv.Atoi(msg.Headers[HeaderErrorCode])
	}
	return resp, true
}

// Headers renders the wire headers of a response.
func (r *Response) Headers() map[string]string {
	h := map[string]string{
		HeaderMessageType: TypeResponse,
		HeaderRequestID:   r.RequestID,
	}
	if r.IsError {
		h[HeaderMessageType] = TypeError
		h[HeaderErrorMessage] = r.ErrorMessage
		h[HeaderErrorCode] = strconv.Itoa(r.ErrorCode)
	}
	return h
}

// WireHeaders renders the wire headers of a request, keeping any extra headers
// already set on it.
func (r *Request) WireHeaders() map[string]string {
	h := make(map[string]string, len(r.Headers)+3)
	for k, v := range r.Headers {
		h[k] = v
	}
	h[HeaderMessageType] = TypeRequest
	h[HeaderMessageID] = r.MessageID
	if r.ReplyTo != "" {
		h[HeaderReplyTo] = r.ReplyTo
	}
	return h
}
