package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"madrasah/internal/email"
	"madrasah/internal/queue"
)

var (
	QueueEmail = queue.QueueOpts{Stream: "notifications", Subject: "email"}
	QueueAlert = queue.QueueOpts{Stream: "notifications", Subject: "alert"}
)

// QueueNotifier enqueues notifications for the notifier process
type QueueNotifier struct {
	Queue queue.Instance
}

func (q *QueueNotifier) Email(ctx context.Context, message email.Message) error {
	if err := message.Validate(); err != nil {
		return err
	}
	return q.push(ctx, QueueEmail, message)
}

func (q *QueueNotifier) Alert(ctx context.Context, alert Alert) error {
	return q.push(ctx, QueueAlert, alert)
}

func (q *QueueNotifier) push(ctx context.Context, queueOpts queue.QueueOpts, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if _, err := q.Queue.Push(ctx, queue.PushOpts{Data: data, Queue: queueOpts}); err != nil {
		return fmt.Errorf("failed to queue notification: %w", err)
	}
	notificationsCounter.WithLabelValues(queueOpts.Subject, "queued").Inc()
	return nil
}
