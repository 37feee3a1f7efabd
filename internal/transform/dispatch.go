package transform

import (
	"fmt"
	"sync"

	"esbridge/internal/document"
)

// EventTransform converts one event and its default operation into the
// operations to submit. An empty result means nothing is indexed.
type EventTransform interface {
	Transform(ev Event, def document.Operation) ([]document.Operation, error)
}

// New returns the transform for an event group script. An empty path means no
// transform. With reload set the script is loaded again for every event;
// otherwise it is loaded once here.
func New(path, group string, reload bool) (EventTransform, error) {
	if path == "" {
		return nil, nil
	}
	if reload {
		return NewReloading(path, group), nil
	}
	return NewCached(path, group)
}

// Dispatch runs t, or passes def through when no transform is configured.
func Dispatch(t EventTransform, ev Event, def document.Operation) ([]document.Operation, error) {
	if t == nil {
		return []document.Operation{def}, nil
	}
	return t.Transform(ev, def)
}

// Cached invokes a script loaded once at construction.
type Cached struct {
	namespace string
	fn        Function
}

func NewCached(path, group string) (*Cached, error) {
	ns := Namespace(group)
	fn, err := Load(path, ns)
	if err != nil {
		return nil, err
	}
	return &Cached{namespace: ns, fn: fn}, nil
}

func (c *Cached) Transform(ev Event, def document.Operation) ([]document.Operation, error) {
	return invoke(c.namespace, c.fn, ev, def)
}

// Reloading loads the script again for every event. Load and invoke run under
// one lock per group, so calls for the same group never interleave.
type Reloading struct {
	path      string
	namespace string
	mu        sync.Mutex
}

func NewReloading(path, group string) *Reloading {
	return &Reloading{path: path, namespace: Namespace(group)}
}

func (r *Reloading) Transform(ev Event, def document.Operation) ([]document.Operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn, err := Load(r.path, r.namespace)
	if err != nil {
		return nil, err
	}
	return invoke(r.namespace, fn, ev, def)
}

func invoke(ns string, fn Function, ev Event, def document.Operation) ([]document.Operation, error) {
	out, err := fn.Invoke(ev, def.Map())
	if err != nil {
		return nil, &InvokeError{Namespace: ns, Err: err}
	}
	return normalize(ns, out)
}

func normalize(ns string, v interface{}) ([]document.Operation, error) {
	switch r := v.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		if r == nil {
			return nil, nil
		}
		op, err := document.FromMap(r)
		if err != nil {
			return nil, &ResultError{Namespace: ns, Reason: "an invalid operation", Err: err}
		}
		return []document.Operation{op}, nil
	case []map[string]interface{}:
		ops := make([]document.Operation, 0, len(r))
		for i, m := range r {
			op, err := document.FromMap(m)
			if err != nil {
				return nil, &ResultError{Namespace: ns, Reason: fmt.Sprintf("an invalid operation at %d", i), Err: err}
			}
			ops = append(ops, op)
		}
		return ops, nil
	case []interface{}:
		ops := make([]document.Operation, 0, len(r))
		for i, el := range r {
			m, ok := el.(map[string]interface{})
			if !ok {
				return nil, &ResultError{Namespace: ns, Reason: fmt.Sprintf("%T at %d", el, i)}
			}
			op, err := document.FromMap(m)
			if err != nil {
				return nil, &ResultError{Namespace: ns, Reason: fmt.Sprintf("an invalid operation at %d", i), Err: err}
			}
			ops = append(ops, op)
		}
		return ops, nil
	default:
		return nil, &ResultError{Namespace: ns, Reason: fmt.Sprintf("%T", v)}
	}
}
