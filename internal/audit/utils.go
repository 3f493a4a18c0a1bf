package audit

import (
	"fmt"

	"madrasah/internal/models"
)

// NewEntry builds an entry for an organisation-scoped action
func NewEntry(orgId, actorId *string, action, targetType, targetId string, data map[string]any) models.AuditLog {
	return models.AuditLog{
		OrgId:      orgId,
		ActorId:    actorId,
		Action:     action,
		TargetType: targetType,
		TargetId:   targetId,
		Data:       data,
	}
}

// Interpret returns a human readable summary of an entry
func Interpret(entry models.AuditLog) string {
	reason, _ := entry.Data["reason"].(string)
	switch entry.Action {
	case ActionOrgPaused:
		return fmt.Sprintf("Organisation paused after repeated payment failures (%s)", reason)
	case ActionOrgSuspended:
		return fmt.Sprintf("Organisation suspended after repeated payment failures (%s)", reason)
	case ActionOrgPaymentFailed:
		return "Platform payment failed"
	case ActionOrgPaymentSucceeded:
		return "Platform payment succeeded"
	case ActionOrgReactivated:
		return "Organisation reactivated"
	case ActionOrgDeactivated:
		return fmt.Sprintf("Organisation deactivated (%s)", reason)
	case ActionClaimApproved:
		return fmt.Sprintf("Approved parent claim for student (ID: %s)", entry.TargetId)
	case ActionClaimRejected:
		return fmt.Sprintf("Rejected parent claim for student (ID: %s)", entry.TargetId)
	case ActionRecordPaid:
		return fmt.Sprintf("Marked monthly payment record (ID: %s) as paid", entry.TargetId)
	case ActionInvoicePaid:
		return fmt.Sprintf("Marked invoice (ID: %s) as paid", entry.TargetId)
	case ActionUsageReported:
		return "Reported usage"
	}
	actor := "system"
	if entry.ActorId != nil {
		actor = *entry.ActorId
	}
	return fmt.Sprintf("Actor[%s] performed action[%s] on %s[%s]", actor, entry.Action, entry.TargetType, entry.TargetId)
}
