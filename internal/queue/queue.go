// Package queue is a work queue used to hand notifications from the API
// to the notifier process
package queue

import (
	"context"
	"time"
)

type Instance interface {
	Push(ctx context.Context, opts PushOpts) (*PushOutput, error)

	// Subscribe blocks and delivers messages to the handler until the
	// context is cancelled; a handler error redelivers the message
	Subscribe(opts SubscribeOpts) error
	Close() error
}

type Message struct {
	Data    []byte `json:"data"`
	Subject string `json:"subject"`
}

type MessageHandler func(context.Context, Message) error

type PushOpts struct {
	Data   []byte
	Queue  QueueOpts
	Stream *StreamOpts
}

type PushOutput struct {
	MessageSizeBytes int
	Queue            QueueOpts
}

type QueueOpts struct {
	Stream  string
	Subject string
}

type SubscribeOpts struct {
	ConsumerId string
	Context    context.Context
	Handler    MessageHandler
	Queue      QueueOpts
	Stream     *StreamOpts
	NakBackoff time.Duration
}

type StreamOpts struct {
	MaxMessagesCount int64
	MaxSizeBytes     int64
	ReplicaCount     int
}
