package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"madrasah/internal/common"
	"madrasah/internal/email"
	"madrasah/internal/queue"
)

const workerConsumerPrefix = "notifier"

// Worker drains queued notifications and delivers them
type Worker struct {
	Queue       queue.Instance
	Mailer      email.Sender
	Slack       *SlackNotifier
	ServiceLogs chan<- common.ServiceLog
}

// Start blocks until the context is cancelled or a subscription fails
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	subscribe := func(queueOpts queue.QueueOpts, handler queue.MessageHandler) {
		defer wg.Done()
		err := w.Queue.Subscribe(queue.SubscribeOpts{
			ConsumerId: workerConsumerPrefix + "-" + queueOpts.Subject,
			Context:    ctx,
			Queue:      queueOpts,
			Handler:    handler,
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			errs <- fmt.Errorf("subscription to %s failed: %w", queueOpts.Subject, err)
			cancel()
		}
	}
	wg.Add(2)
	go subscribe(QueueEmail, w.handleEmail)
	go subscribe(QueueAlert, w.handleAlert)
	wg.Wait()
	close(errs)
	return <-errs
}

func (w *Worker) handleEmail(ctx context.Context, msg queue.Message) error {
	var message email.Message
	if err := json.Unmarshal(msg.Data, &message); err != nil {
		w.ServiceLogs <- common.ServiceLogf(common.LogLevelError, "dropping malformed email notification: %s", err)
		return nil
	}
	if w.Mailer == nil {
		w.ServiceLogs <- common.ServiceLogf(common.LogLevelWarn, "no mailer configured, dropping email[%s]", message.Subject)
		return nil
	}
	if err := w.Mailer.Send(ctx, message); err != nil {
		notificationsCounter.WithLabelValues("email", "failed").Inc()
		return err
	}
	notificationsCounter.WithLabelValues("email", "sent").Inc()
	w.ServiceLogs <- common.ServiceLogf(common.LogLevelDebug, "sent email[%s] to %v receivers", message.Subject, len(message.To))
	return nil
}

func (w *Worker) handleAlert(ctx context.Context, msg queue.Message) error {
	var alert Alert
	if err := json.Unmarshal(msg.Data, &alert); err != nil {
		w.ServiceLogs <- common.ServiceLogf(common.LogLevelError, "dropping malformed alert notification: %s", err)
		return nil
	}
	if w.Slack == nil {
		w.ServiceLogs <- common.ServiceLogf(common.LogLevelInfo, "alert[%s]: %s", alert.Title, alert.Text)
		return nil
	}
	return w.Slack.Alert(ctx, alert)
}
