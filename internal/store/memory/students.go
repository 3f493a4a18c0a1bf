package memory

import (
	"context"
	"sort"

	"madrasah/internal/models"
	"madrasah/internal/store"
)

func (s *Store) CreateStudent(ctx context.Context, student *models.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if student.ClaimCode != nil {
		for _, existing := range s.students {
			if existing.ClaimCode != nil && *existing.ClaimCode == *student.ClaimCode {
				return store.ErrDuplicate
			}
		}
	}
	student.Id = newId(student.Id)
	student.CreatedAt = s.stamp(student.CreatedAt)
	if student.ClaimStatus == "" {
		student.ClaimStatus = models.ClaimStatusNotClaimed
	}
	instance := student.Clone()
	s.students[student.Id] = &instance
	return nil
}

func (s *Store) GetStudent(ctx context.Context, orgId, studentId string) (*models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	student, ok := s.students[studentId]
	if !ok || student.OrgId != orgId {
		return nil, store.ErrNotFound
	}
	output := student.Clone()
	return &output, nil
}

func (s *Store) GetStudentByClaimCode(ctx context.Context, code string) (*models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, student := range s.students {
		if student.ClaimCode != nil && *student.ClaimCode == code {
			output := student.Clone()
			return &output, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListStudents(ctx context.Context, orgId string, filter store.StudentFilter) ([]models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	output := []models.Student{}
	for _, student := range s.students {
		if student.OrgId != orgId {
			continue
		}
		if student.IsArchived && !filter.IncludeArchived {
			continue
		}
		if filter.ParentId != nil && (student.PrimaryParentId == nil || *student.PrimaryParentId != *filter.ParentId) {
			continue
		}
		output = append(output, student.Clone())
	}
	sort.Slice(output, func(i, j int) bool {
		if output[i].LastName == output[j].LastName {
			return output[i].FirstName < output[j].FirstName
		}
		return output[i].LastName < output[j].LastName
	})
	return output, nil
}

func (s *Store) UpdateStudentClaim(ctx context.Context, student models.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.students[student.Id]
	if !ok || existing.OrgId != student.OrgId {
		return store.ErrNotFound
	}
	if student.ClaimCode != nil {
		for id, other := range s.students {
			if id != student.Id && other.ClaimCode != nil && *other.ClaimCode == *student.ClaimCode {
				return store.ErrDuplicate
			}
		}
	}
	updated := student.Clone()
	existing.ClaimCode = updated.ClaimCode
	existing.ClaimCodeExpiresAt = updated.ClaimCodeExpiresAt
	existing.ClaimStatus = updated.ClaimStatus
	existing.PendingParentId = updated.PendingParentId
	existing.PrimaryParentId = updated.PrimaryParentId
	existing.ClaimedAt = updated.ClaimedAt
	return nil
}

func (s *Store) CountActiveStudents(ctx context.Context, orgId string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, student := range s.students {
		if student.OrgId == orgId && !student.IsArchived {
			count++
		}
	}
	return count, nil
}
