// Package notify routes emails to organisation members and alerts to
// platform owners
package notify

import (
	"context"
	"errors"

	"madrasah/internal/email"
)

// Alert is a platform-level message for owners
type Alert struct {
	Title  string            `json:"title"`
	Text   string            `json:"text"`
	Fields map[string]string `json:"fields,omitempty"`
}

type Notifier interface {
	Email(ctx context.Context, message email.Message) error
	Alert(ctx context.Context, alert Alert) error
}

// Multi fans out to every notifier and joins their errors
type Multi []Notifier

func (m Multi) Email(ctx context.Context, message email.Message) error {
	errs := []error{}
	for _, n := range m {
		if err := n.Email(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Alert(ctx context.Context, alert Alert) error {
	errs := []error{}
	for _, n := range m {
		if err := n.Alert(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Direct delivers synchronously without a queue; either side may be nil
type Direct struct {
	Mailer email.Sender
	Slack  *SlackNotifier
}

func (d *Direct) Email(ctx context.Context, message email.Message) error {
	if d.Mailer == nil {
		return nil
	}
	return d.Mailer.Send(ctx, message)
}

func (d *Direct) Alert(ctx context.Context, alert Alert) error {
	if d.Slack == nil {
		return nil
	}
	return d.Slack.Alert(ctx, alert)
}
