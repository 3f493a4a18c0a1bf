// Package email composes and delivers outbound email over SMTP or
// SendGrid
package email

import (
	"context"
	"errors"
	"fmt"
)

type User struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

func (u User) String() string {
	if u.Name == "" {
		return u.Address
	}
	return fmt.Sprintf("%s <%s>", u.Name, u.Address)
}

type Message struct {
	To      []User `json:"to"`
	Subject string `json:"subject"`
	Html    string `json:"html"`
	Text    string `json:"text,omitempty"`
}

func (m Message) Validate() error {
	errs := []error{}
	if len(m.To) == 0 {
		errs = append(errs, fmt.Errorf("missing receivers"))
	}
	for receiverIndex, receiver := range m.To {
		if receiver.Address == "" {
			errs = append(errs, fmt.Errorf("missing receiver address for receiver[%v]", receiverIndex))
		}
	}
	if m.Subject == "" {
		errs = append(errs, fmt.Errorf("missing message subject"))
	}
	if m.Html == "" && m.Text == "" {
		errs = append(errs, fmt.Errorf("missing message body"))
	}
	if len(errs) > 0 {
		errs = append([]error{fmt.Errorf("message validation failed")}, errs...)
		return errors.Join(errs...)
	}
	return nil
}

// Sender delivers a composed message
type Sender interface {
	Send(ctx context.Context, message Message) error
}
