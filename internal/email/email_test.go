package email

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_Validate(t *testing.T) {
	require.Error(t, Message{}.Validate())
	require.Error(t, Message{To: []User{{}}, Subject: "hi", Text: "body"}.Validate())
	require.NoError(t, Message{To: []User{{Address: "a@example.com"}}, Subject: "hi", Text: "body"}.Validate())
}

func TestComposeMime(t *testing.T) {
	body, err := composeMime(
		User{Address: "noreply@example.com", Name: "Madrasah"},
		Message{
			To:      []User{{Address: "admin@example.com", Name: "Admin"}},
			Subject: "Organisation paused",
			Html:    "<p>paused</p>",
			Text:    "paused",
		},
	)
	require.NoError(t, err)
	composed := string(body)
	require.Contains(t, composed, "From: Madrasah <noreply@example.com>")
	require.Contains(t, composed, "To: Admin <admin@example.com>")
	require.Contains(t, composed, "Subject: Organisation paused")
	require.Contains(t, composed, "text/plain; charset=UTF-8")
	require.Contains(t, composed, "text/html; charset=UTF-8")
}

func TestSendgridSender_Send(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, sendgridEndpoint, r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(data, &received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := &SendgridSender{ApiKey: "key", From: User{Address: "noreply@example.com"}, Host: server.URL}
	err := sender.Send(context.Background(), Message{
		To:      []User{{Address: "parent@example.com"}},
		Subject: "Claim approved",
		Html:    "<p>approved</p>",
	})
	require.NoError(t, err)
	require.NotNil(t, received)
	require.Contains(t, received, "personalizations")
}

func TestSendgridSender_SendFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()
	sender := &SendgridSender{ApiKey: "bad", From: User{Address: "noreply@example.com"}, Host: server.URL}
	err := sender.Send(context.Background(), Message{
		To:      []User{{Address: "parent@example.com"}},
		Subject: "x",
		Text:    "y",
	})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "401"))
}

func TestRenderTemplates(t *testing.T) {
	html, err := RenderOrgStatus(OrgStatusData{OrgName: "Al Noor", Headline: "Account paused", Body: "Payments failed", Reason: "card_declined", FailureCount: 3})
	require.NoError(t, err)
	require.Contains(t, html, "Al Noor: Account paused")
	require.Contains(t, html, "card_declined")

	html, err = RenderClaimDecision(ClaimDecisionData{OrgName: "Al Noor", StudentName: "Aisha Khan", Approved: true})
	require.NoError(t, err)
	require.Contains(t, html, "has been approved")

	html, err = RenderAnnouncement(AnnouncementData{OrgName: "Al Noor", Body: "<script>"})
	require.NoError(t, err)
	require.NotContains(t, html, "<script>")
}

func TestRenderMemberInvite(t *testing.T) {
	html, err := RenderMemberInvite(MemberInviteData{OrgName: "Al Noor", Role: "STAFF", LoginUrl: "https://app.example.com/login", TemporaryPassword: "Xy7pQ2rT9kLm"})
	require.NoError(t, err)
	require.Contains(t, html, "as STAFF")
	require.Contains(t, html, "Xy7pQ2rT9kLm")

	html, err = RenderMemberInvite(MemberInviteData{OrgName: "Al Noor", Role: "ADMIN", LoginUrl: "https://app.example.com/login"})
	require.NoError(t, err)
	require.Contains(t, html, "existing account")
}
