package email

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridSender delivers through the SendGrid v3 mail API
type SendgridSender struct {
	ApiKey string
	From   User

	// Host overrides the API host, used by tests
	Host string
}

func (s *SendgridSender) Send(ctx context.Context, message Message) error {
	if err := message.Validate(); err != nil {
		return err
	}
	host := s.Host
	if host == "" {
		host = sendgridHost
	}
	req := sendgrid.GetRequest(s.ApiKey, sendgridEndpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(message))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("failed to send email: status[%d] body[%s]", res.StatusCode, res.Body)
	}
	return nil
}

func (s *SendgridSender) prepare(message Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = message.Subject
	for _, to := range message.To {
		p.AddTos(sgmail.NewEmail(to.Name, to.Address))
	}
	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail(s.From.Name, s.From.Address))
	m.AddPersonalizations(p)
	if message.Text != "" {
		m.AddContent(sgmail.NewContent("text/plain", message.Text))
	}
	if message.Html != "" {
		m.AddContent(sgmail.NewContent("text/html", message.Html))
	}
	return m
}
