package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var _ Instance = (*Memory)(nil)

// Memory is an in-process queue with at-least-once delivery to a single
// subscriber per subject
type Memory struct {
	mu       sync.Mutex
	channels map[string]chan Message
	closed   bool
}

func NewMemory() *Memory {
	return &Memory{channels: map[string]chan Message{}}
}

func (m *Memory) channel(opts QueueOpts) (chan Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("queue is closed")
	}
	stream, subject := getNatsQueueInfo(opts)
	key := stream + "/" + subject
	ch, ok := m.channels[key]
	if !ok {
		ch = make(chan Message, DefaultNatsMaxMessageCount)
		m.channels[key] = ch
	}
	return ch, nil
}

func (m *Memory) Push(ctx context.Context, opts PushOpts) (*PushOutput, error) {
	ch, err := m.channel(opts.Queue)
	if err != nil {
		return nil, err
	}
	_, subject := getNatsQueueInfo(opts.Queue)
	select {
	case ch <- Message{Data: append([]byte{}, opts.Data...), Subject: subject}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &PushOutput{MessageSizeBytes: len(opts.Data), Queue: opts.Queue}, nil
}

func (m *Memory) Subscribe(opts SubscribeOpts) error {
	ch, err := m.channel(opts.Queue)
	if err != nil {
		return err
	}
	nakBackoff := opts.NakBackoff
	if nakBackoff == 0 {
		nakBackoff = 10 * time.Millisecond
	}
	for {
		select {
		case <-opts.Context.Done():
			return opts.Context.Err()
		case msg := <-ch:
			if err := opts.Handler(opts.Context, msg); err != nil {
				go func() {
					time.Sleep(nakBackoff)
					ch <- msg
				}()
			}
		}
	}
}

// Pending returns the number of undelivered messages on a queue
func (m *Memory) Pending(opts QueueOpts) int {
	ch, err := m.channel(opts)
	if err != nil {
		return 0
	}
	return len(ch)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
