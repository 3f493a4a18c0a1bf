package notify

import (
	"context"
	"sync"

	"madrasah/internal/email"
)

// Recorder keeps every notification in memory
type Recorder struct {
	mu     sync.Mutex
	emails []email.Message
	alerts []Alert
}

func (r *Recorder) Email(_ context.Context, message email.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, message)
	return nil
}

func (r *Recorder) Alert(_ context.Context, alert Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return nil
}

func (r *Recorder) Emails() []email.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]email.Message{}, r.emails...)
}

func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Alert{}, r.alerts...)
}
