// Package sink holds the response publishers a running bridge can answer
// requests through, selected by name from configuration.
package sink

import (
	"fmt"

	"esbridge/internal/bus"
)

// Adapter is the common behaviour every response sink exposes.
type Adapter interface {
	Configure(any) error // driver-specific settings
	bus.Responder
	Close() error // idempotent
}

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}
