package lifecycle

import (
	"context"
	"fmt"

	"madrasah/internal/common"
	"madrasah/internal/email"
	"madrasah/internal/models"
	"madrasah/internal/notify"
)

var statusHeadlines = map[models.OrgStatus]struct {
	headline string
	body     string
}{
	models.OrgStatusActive: {
		headline: "Account active",
		body:     "Your subscription payment went through and your account is fully active again.",
	},
	models.OrgStatusPaused: {
		headline: "Account paused",
		body:     "We could not collect your subscription payment. Please update your payment details to avoid suspension.",
	},
	models.OrgStatusSuspended: {
		headline: "Account suspended",
		body:     "Repeated subscription payments have failed and your account has been suspended. Staff and parents cannot use it until payment succeeds.",
	},
	models.OrgStatusDeactivated: {
		headline: "Account deactivated",
		body:     "Your account has been deactivated by the platform team.",
	},
}

// notify emails the org admins and alerts the platform owners; a
// non-transition failure only alerts the owners. Delivery errors are
// logged and never fail the caller.
func (m *Manager) notify(ctx context.Context, result *Result, reason string) {
	if m.Notifier == nil {
		return
	}
	org := result.Org
	title := fmt.Sprintf("Org %s: %s -> %s", org.Slug, result.Previous, org.Status)
	if !result.Transition {
		title = fmt.Sprintf("Org %s: payment failure #%d", org.Slug, org.PaymentFailureCount)
	}
	alert := notify.Alert{
		Title: title,
		Text:  org.Name,
		Fields: map[string]string{
			"orgId":        org.Id,
			"status":       string(org.Status),
			"failureCount": fmt.Sprintf("%d", org.PaymentFailureCount),
		},
	}
	if reason != "" {
		alert.Fields["reason"] = reason
	}
	if err := m.Notifier.Alert(ctx, alert); err != nil {
		m.log(common.LogLevelWarn, "failed to alert owners about org[%s]: %s", org.Id, err)
	}
	if !result.Transition {
		return
	}

	adminRole := models.RoleAdmin
	admins, err := m.Store.ListOrgMembers(ctx, org.Id, &adminRole)
	if err != nil {
		m.log(common.LogLevelWarn, "failed to list admins of org[%s]: %s", org.Id, err)
		return
	}
	if len(admins) == 0 {
		return
	}
	content := statusHeadlines[org.Status]
	html, err := email.RenderOrgStatus(email.OrgStatusData{
		OrgName:      org.Name,
		Headline:     content.headline,
		Body:         content.body,
		Reason:       reason,
		FailureCount: org.PaymentFailureCount,
	})
	if err != nil {
		m.log(common.LogLevelError, "failed to render status email for org[%s]: %s", org.Id, err)
		return
	}
	receivers := make([]email.User, 0, len(admins))
	for _, admin := range admins {
		receivers = append(receivers, email.User{Address: admin.Email, Name: admin.Name})
	}
	if err := m.Notifier.Email(ctx, email.Message{
		To:      receivers,
		Subject: fmt.Sprintf("%s: %s", org.Name, content.headline),
		Html:    html,
		Text:    content.body,
	}); err != nil {
		m.log(common.LogLevelWarn, "failed to email admins of org[%s]: %s", org.Id, err)
	}
}
