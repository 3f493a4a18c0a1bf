package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"mime/quotedprintable"
	"net/smtp"
	"net/textproto"
	"strings"

	"madrasah/internal/common"
)

type SmtpConfig struct {
	Hostname string
	Port     int
	Username string
	Password string
}

func (c SmtpConfig) Validate() error {
	errs := []error{}
	if c.Hostname == "" {
		errs = append(errs, fmt.Errorf("missing smtp hostname"))
	}
	if c.Port == 0 {
		errs = append(errs, fmt.Errorf("missing smtp port"))
	}
	if c.Username == "" {
		errs = append(errs, fmt.Errorf("missing smtp username"))
	}
	if c.Password == "" {
		errs = append(errs, fmt.Errorf("missing smtp password"))
	}
	return errors.Join(errs...)
}

// SmtpSender sends multipart/alternative messages through an SMTP relay
type SmtpSender struct {
	Smtp        SmtpConfig
	From        User
	ServiceLogs chan<- common.ServiceLog
}

func (s *SmtpSender) Send(ctx context.Context, message Message) error {
	if err := message.Validate(); err != nil {
		return err
	}
	if err := s.Smtp.Validate(); err != nil {
		return fmt.Errorf("smtp configuration is invalid: %w", err)
	}
	serviceLogs := s.ServiceLogs
	if serviceLogs == nil {
		serviceLogs = common.GetNoopServiceLog()
	}
	body, err := composeMime(s.From, message)
	if err != nil {
		return fmt.Errorf("failed to compose message: %w", err)
	}
	serviceLogs <- common.ServiceLogf(common.LogLevelDebug, "composed message of size[%v bytes]", len(body))

	receivers := make([]string, 0, len(message.To))
	for _, receiver := range message.To {
		receivers = append(receivers, receiver.Address)
	}
	smtpAddr := fmt.Sprintf("%s:%v", s.Smtp.Hostname, s.Smtp.Port)
	auth := smtp.PlainAuth("", s.Smtp.Username, s.Smtp.Password, s.Smtp.Hostname)
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(smtpAddr, auth, s.From.Address, receivers, body)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
	}
	serviceLogs <- common.ServiceLogf(common.LogLevelDebug, "email sent successfully to people['%s'] from address[%s]", strings.Join(receivers, "', '"), s.From.Address)
	return nil
}

func composeMime(from User, message Message) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	to := make([]string, 0, len(message.To))
	for _, receiver := range message.To {
		to = append(to, receiver.String())
	}
	headers := [][2]string{
		{"From", from.String()},
		{"To", strings.Join(to, ",")},
		{"Subject", message.Subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "multipart/alternative; boundary=" + writer.Boundary()},
	}
	for _, header := range headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", header[0], header[1])
	}
	fmt.Fprint(&buf, "\r\n")

	parts := [][2]string{}
	if message.Text != "" {
		parts = append(parts, [2]string{"text/plain; charset=UTF-8", message.Text})
	}
	if message.Html != "" {
		parts = append(parts, [2]string{"text/html; charset=UTF-8", message.Html})
	}
	for _, part := range parts {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", part[0])
		header.Set("Content-Transfer-Encoding", "quoted-printable")
		partWriter, err := writer.CreatePart(header)
		if err != nil {
			return nil, err
		}
		qp := quotedprintable.NewWriter(partWriter)
		if _, err := qp.Write([]byte(part[1])); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
