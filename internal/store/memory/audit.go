package memory

import (
	"context"

	"madrasah/internal/models"
	"madrasah/internal/store"
)

const defaultAuditLimit = 50

func (s *Store) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.Id = newId(entry.Id)
	entry.CreatedAt = s.stamp(entry.CreatedAt)
	s.auditLogs = append(s.auditLogs, entry.Clone())
	return nil
}

// ListAuditLogs returns entries newest first
func (s *Store) ListAuditLogs(ctx context.Context, filter store.AuditFilter) ([]models.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	output := []models.AuditLog{}
	for i := len(s.auditLogs) - 1; i >= 0 && len(output) < limit; i-- {
		entry := s.auditLogs[i]
		if filter.OrgId != nil && (entry.OrgId == nil || *entry.OrgId != *filter.OrgId) {
			continue
		}
		if filter.Before != nil && !entry.CreatedAt.Before(*filter.Before) {
			continue
		}
		output = append(output, entry.Clone())
	}
	return output, nil
}
