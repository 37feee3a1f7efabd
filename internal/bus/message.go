// Package bus holds the transport-neutral message model shared by the bus
// drivers and the callbacks: events, requests, responses and the topic router
// that connects them.
package bus

import "context"

// Header names carried on the wire.
const (
	HeaderMessageType  = "esbridge-message-type"
	HeaderMessageID    = "esbridge-message-id"
	HeaderReplyTo      = "esbridge-reply-to"
	HeaderRequestID    = "esbridge-request-id"
	HeaderErrorMessage = "esbridge-error-message"
	HeaderErrorCode    = "esbridge-error-code"
)

// Message types.
const (
	TypeEvent    = "event"
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeError    = "error"
)

// Message is a raw delivery from a bus driver.
type Message struct {
	Topic   string
	Payload []byte
	Headers map[string]string
}

type Event struct {
	Topic   string
	Payload []byte
	Headers map[string]string
}

type Request struct {
	Topic     string
	MessageID string
	ReplyTo   string
	Payload   []byte
	Headers   map[string]string
}

// Response answers exactly one Request.
type Response struct {
	RequestID    string
	Topic        string // reply destination
	Payload      []byte
	IsError      bool
	ErrorMessage string
	ErrorCode    int
}

func NewResponse(req *Request, payload []byte) *Response {
	return &Response{RequestID: req.MessageID, Topic: req.ReplyTo, Payload: payload}
}

func NewErrorResponse(req *Request, msg string, code int, payload []byte) *Response {
	return &Response{
		RequestID:    req.MessageID,
		Topic:        req.ReplyTo,
		Payload:      payload,
		IsError:      true,
		ErrorMessage: msg,
		ErrorCode:    code,
	}
}

// EventHandler processes one event. A returned error is the handler's
// unrecovered failure; the driver decides what to do with it.
type EventHandler interface {
	OnEvent(ctx context.Context, ev *Event) error
}

// RequestHandler must return exactly one response.
type RequestHandler interface {
	OnRequest(ctx context.Context, req *Request) *Response
}

type EventHandlerFunc func(ctx context.Context, ev *Event) error

func (f EventHandlerFunc) OnEvent(ctx context.Context, ev *Event) error { return f(ctx, ev) }

type RequestHandlerFunc func(ctx context.Context, req *Request) *Response

func (f RequestHandlerFunc) OnRequest(ctx context.Context, req *Request) *Response { return f(ctx, req) }

// Responder publishes responses back onto the bus.
type Responder interface {
	SendResponse(ctx context.Context, resp *Response) error
}

// ErrorPayload is the JSON body of an error response.
type ErrorPayload struct {
	Message string     `json:"message"`
	Class   string     `json:"class"`
	Module  string     `json:"module"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData carries backend transport detail.
type ErrorData struct {
	StatusCode any    `json:"status_code"`
	Error      string `json:"error"`
	Info       any    `json:"info"`
}
