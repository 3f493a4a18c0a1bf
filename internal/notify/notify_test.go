package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"madrasah/internal/common"
	"madrasah/internal/email"
	"madrasah/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingNotifier struct{}

func (failingNotifier) Email(context.Context, email.Message) error { return errors.New("down") }
func (failingNotifier) Alert(context.Context, Alert) error         { return errors.New("down") }

type capturingSender struct {
	mu       sync.Mutex
	messages []email.Message
}

func (c *capturingSender) Send(_ context.Context, message email.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
	return nil
}

func (c *capturingSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func testMessage() email.Message {
	return email.Message{
		To:      []email.User{{Address: "admin@example.com"}},
		Subject: "Organisation paused",
		Text:    "paused",
	}
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	recorder := &Recorder{}
	multi := Multi{recorder, failingNotifier{}}
	err := multi.Email(context.Background(), testMessage())
	require.Error(t, err)
	require.Len(t, recorder.Emails(), 1)

	err = multi.Alert(context.Background(), Alert{Title: "x"})
	require.Error(t, err)
	require.Len(t, recorder.Alerts(), 1)
}

func TestSlackNotifier_Alert(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(data, &payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := &SlackNotifier{WebhookUrl: server.URL}
	err := notifier.Alert(context.Background(), Alert{
		Title:  "Organisation suspended",
		Text:   "Al Noor has been suspended",
		Fields: map[string]string{"orgId": "org-1"},
	})
	require.NoError(t, err)
	require.Equal(t, "*Organisation suspended*", payload["text"])
}

func TestSlackNotifier_UnconfiguredIsNoop(t *testing.T) {
	require.NoError(t, (&SlackNotifier{}).Alert(context.Background(), Alert{Title: "x"}))
}

func TestQueueNotifier_WorkerDelivers(t *testing.T) {
	q := queue.NewMemory()
	notifier := &QueueNotifier{Queue: q}
	require.NoError(t, notifier.Email(context.Background(), testMessage()))
	require.Error(t, notifier.Email(context.Background(), email.Message{}))
	require.Equal(t, 1, q.Pending(QueueEmail))

	sender := &capturingSender{}
	worker := &Worker{Queue: q, Mailer: sender, ServiceLogs: common.GetNoopServiceLog()}
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- worker.Start(ctx) }()

	require.Eventually(t, func() bool { return sender.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
