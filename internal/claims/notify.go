package claims

import (
	"context"
	"fmt"

	"madrasah/internal/common"
	"madrasah/internal/email"
	"madrasah/internal/models"
)

// notifyParent tells the claiming parent about the decision; failures
// are logged only
func (s *Service) notifyParent(ctx context.Context, orgId, parentId string, student models.Student, approved bool) {
	if s.Notifier == nil {
		return
	}
	parent, err := s.Store.GetUser(ctx, parentId)
	if err != nil {
		s.log(common.LogLevelWarn, "failed to load parent[%s] for claim email: %s", parentId, err)
		return
	}
	org, err := s.Store.GetOrg(ctx, orgId)
	if err != nil {
		s.log(common.LogLevelWarn, "failed to load org[%s] for claim email: %s", orgId, err)
		return
	}
	html, err := email.RenderClaimDecision(email.ClaimDecisionData{
		OrgName:     org.Name,
		StudentName: student.FullName(),
		Approved:    approved,
	})
	if err != nil {
		s.log(common.LogLevelError, "failed to render claim email: %s", err)
		return
	}
	subject := fmt.Sprintf("%s: your claim for %s was approved", org.Name, student.FirstName)
	text := fmt.Sprintf("You are now linked to %s at %s.", student.FullName(), org.Name)
	if !approved {
		subject = fmt.Sprintf("%s: your claim for %s was not approved", org.Name, student.FirstName)
		text = fmt.Sprintf("Your claim for %s was not approved. Please contact %s.", student.FullName(), org.Name)
	}
	if err := s.Notifier.Email(ctx, email.Message{
		To:      []email.User{{Address: parent.Email, Name: parent.Name}},
		Subject: subject,
		Html:    html,
		Text:    text,
	}); err != nil {
		s.log(common.LogLevelWarn, "failed to email parent[%s] about claim: %s", parentId, err)
	}
}
