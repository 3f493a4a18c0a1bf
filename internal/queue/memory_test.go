package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetNatsQueueInfo(t *testing.T) {
	stream, subject := getNatsQueueInfo(QueueOpts{Stream: "Notifications", Subject: "Email"})
	require.Equal(t, "notifications", stream)
	require.Equal(t, "notifications.email", subject)
}

func TestMemory_PushAndSubscribe(t *testing.T) {
	q := NewMemory()
	queueOpts := QueueOpts{Stream: "notifications", Subject: "email"}
	_, err := q.Push(context.Background(), PushOpts{Data: []byte("hello"), Queue: queueOpts})
	require.NoError(t, err)
	require.Equal(t, 1, q.Pending(queueOpts))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	received := make(chan Message, 1)
	go func() {
		_ = q.Subscribe(SubscribeOpts{
			Context: ctx,
			Queue:   queueOpts,
			Handler: func(_ context.Context, msg Message) error {
				received <- msg
				return nil
			},
		})
	}()
	select {
	case msg := <-received:
		require.Equal(t, "hello", string(msg.Data))
		require.Equal(t, "notifications.email", msg.Subject)
	case <-ctx.Done():
		t.Fatal("message was not delivered")
	}
}

func TestMemory_RedeliversOnHandlerError(t *testing.T) {
	q := NewMemory()
	queueOpts := QueueOpts{Stream: "notifications", Subject: "alert"}
	_, err := q.Push(context.Background(), PushOpts{Data: []byte("alert"), Queue: queueOpts})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var attempts int32
	done := make(chan struct{})
	go func() {
		_ = q.Subscribe(SubscribeOpts{
			Context:    ctx,
			Queue:      queueOpts,
			NakBackoff: time.Millisecond,
			Handler: func(context.Context, Message) error {
				if atomic.AddInt32(&attempts, 1) < 3 {
					return errors.New("try again")
				}
				close(done)
				return nil
			},
		})
	}()
	select {
	case <-done:
		require.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	case <-ctx.Done():
		t.Fatal("message was not redelivered")
	}
}

func TestMemory_PushAfterClose(t *testing.T) {
	q := NewMemory()
	require.NoError(t, q.Close())
	_, err := q.Push(context.Background(), PushOpts{Data: []byte("x"), Queue: QueueOpts{Stream: "s", Subject: "t"}})
	require.Error(t, err)
}
