package notify

import (
	"context"
	"fmt"
	"sort"

	"madrasah/internal/email"

	"github.com/slack-go/slack"
)

// SlackNotifier posts platform alerts to an incoming webhook
type SlackNotifier struct {
	WebhookUrl string
}

func (s *SlackNotifier) Email(context.Context, email.Message) error {
	return nil
}

func (s *SlackNotifier) Alert(ctx context.Context, alert Alert) error {
	if s.WebhookUrl == "" {
		return nil
	}
	keys := make([]string, 0, len(alert.Fields))
	for key := range alert.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	fields := make([]slack.AttachmentField, 0, len(keys))
	for _, key := range keys {
		fields = append(fields, slack.AttachmentField{Title: key, Value: alert.Fields[key], Short: true})
	}
	message := &slack.WebhookMessage{
		Text: fmt.Sprintf("*%s*", alert.Title),
		Attachments: []slack.Attachment{
			{
				Text:   alert.Text,
				Fields: fields,
			},
		},
	}
	if err := slack.PostWebhookContext(ctx, s.WebhookUrl, message); err != nil {
		notificationsCounter.WithLabelValues("alert", "failed").Inc()
		return fmt.Errorf("failed to post slack alert: %w", err)
	}
	notificationsCounter.WithLabelValues("alert", "sent").Inc()
	return nil
}
