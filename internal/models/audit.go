package models

import "time"

// AuditLog is an append-only record of a significant action
type AuditLog struct {
	Id         string         `json:"id" bson:"id"`
	OrgId      *string        `json:"orgId,omitempty" bson:"orgId,omitempty"`
	ActorId    *string        `json:"actorId,omitempty" bson:"actorId,omitempty"`
	Action     string         `json:"action" bson:"action"`
	TargetType string         `json:"targetType" bson:"targetType"`
	TargetId   string         `json:"targetId" bson:"targetId"`
	SrcIp      *string        `json:"srcIp,omitempty" bson:"srcIp,omitempty"`
	Data       map[string]any `json:"data,omitempty" bson:"data,omitempty"`
	CreatedAt  time.Time      `json:"createdAt" bson:"createdAt"`
}

func (a AuditLog) Clone() AuditLog {
	output := a
	output.OrgId = cloneString(a.OrgId)
	output.ActorId = cloneString(a.ActorId)
	output.SrcIp = cloneString(a.SrcIp)
	if a.Data != nil {
		output.Data = make(map[string]any, len(a.Data))
		for k, v := range a.Data {
			output.Data[k] = v
		}
	}
	return output
}
