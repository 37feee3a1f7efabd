package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Module identifies the backend in error payloads.
const Module = "elasticsearch"

// Kind tags the two shapes a backend failure can take.
type Kind int

const (
	// KindGeneric failures carry only a class and a message.
	KindGeneric Kind = iota
	// KindTransport failures also carry HTTP status, backend error code and
	// the backend's info object.
	KindTransport
)

// StatusNA is the status reported for transport failures that never got an
// HTTP response.
const StatusNA = "N/A"

// Error is the tagged failure variant produced by this adapter.
type Error struct {
	Kind    Kind
	Module  string
	Class   string
	Message string

	// Transport only.
	StatusCode any // int, or StatusNA
	Code       string
	Info       any // decoded response body, raw text, or the underlying error

	Err error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// IsTransport reports whether err carries transport detail.
func IsTransport(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) && be.Kind == KindTransport {
		return be, true
	}
	return nil, false
}

func genericError(class string, err error) *Error {
	return &Error{Kind: KindGeneric, Module: Module, Class: class, Message: err.Error(), Err: err}
}

// ArgumentError is returned when request keyword arguments do not fit the method.
func argumentError(format string, a ...any) *Error {
	err := fmt.Errorf(format, a...)
	return &Error{Kind: KindGeneric, Module: "esbridge", Class: "ArgumentError", Message: err.Error(), Err: err}
}

func statusClass(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "RequestError"
	case http.StatusUnauthorized:
		return "AuthenticationException"
	case http.StatusForbidden:
		return "AuthorizationException"
	case http.StatusNotFound:
		return "NotFoundError"
	case http.StatusConflict:
		return "ConflictError"
	default:
		return "TransportError"
	}
}

// transportError builds the structured failure for a non-2xx response.
func transportError(status int, raw []byte) *Error {
	code := string(bytes.TrimSpace(raw))
	reason := ""
	var info any = code

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err == nil {
		info = body
		if obj, ok := body.(map[string]any); ok {
			switch e := obj["error"].(type) {
			case string:
				code = e
			case map[string]any:
				if t, ok := e["type"].(string); ok {
					code = t
				}
				reason, _ = e["reason"].(string)
			}
		}
	}
	if code == "" {
		code = http.StatusText(status)
	}

	class := statusClass(status)
	msg := fmt.Sprintf("%s(%d, '%s')", class, status, code)
	if reason != "" {
		msg = fmt.Sprintf("%s(%d, '%s', '%s')", class, status, code, reason)
	}
	return &Error{
		Kind:       KindTransport,
		Module:     Module,
		Class:      class,
		Message:    msg,
		StatusCode: status,
		Code:       code,
		Info:       info,
	}
}

// connectionError covers failures where no HTTP response was received.
func connectionError(err error) *Error {
	class := "ConnectionError"
	if errors.Is(err, context.DeadlineExceeded) {
		class = "ConnectionTimeout"
	}
	return &Error{
		Kind:       KindTransport,
		Module:     Module,
		Class:      class,
		Message:    fmt.Sprintf("%s(%s, '%s')", class, StatusNA, err.Error()),
		StatusCode: StatusNA,
		Code:       err.Error(),
		Info:       err,
		Err:        err,
	}
}
