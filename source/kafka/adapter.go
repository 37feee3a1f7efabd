// Package kafka consumes bus topics from Kafka and hands every message to the
// bus router, committing offsets only once the messages before them are done.
package kafka

import (
	"context"

	"esbridge/internal/bus"
)

// DeliverFunc handles one message. Its error is logged and counted; the
// message is still considered done.
type DeliverFunc func(context.Context, bus.Message) error

type Adapter interface {
	Configure(Config) error
	Run(ctx context.Context, topics []string, deliver DeliverFunc) error
	Close() error
}
