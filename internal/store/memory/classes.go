package memory

import (
	"context"
	"sort"

	"madrasah/internal/models"
	"madrasah/internal/store"
)

func enrollmentKey(classId, studentId string) string {
	return classId + ":" + studentId
}

func attendanceKey(classId, studentId, date string) string {
	return classId + ":" + studentId + ":" + date
}

func (s *Store) CreateClass(ctx context.Context, class *models.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	class.Id = newId(class.Id)
	class.CreatedAt = s.stamp(class.CreatedAt)
	instance := class.Clone()
	s.classes[class.Id] = &instance
	return nil
}

func (s *Store) GetClass(ctx context.Context, orgId, classId string) (*models.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	class, ok := s.classes[classId]
	if !ok || class.OrgId != orgId {
		return nil, store.ErrNotFound
	}
	output := class.Clone()
	return &output, nil
}

func (s *Store) ListClasses(ctx context.Context, orgId string) ([]models.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	output := []models.Class{}
	for _, class := range s.classes {
		if class.OrgId == orgId && !class.IsArchived {
			output = append(output, class.Clone())
		}
	}
	sort.Slice(output, func(i, j int) bool {
		return output[i].Name < output[j].Name
	})
	return output, nil
}

func (s *Store) UpdateClass(ctx context.Context, class models.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.classes[class.Id]
	if !ok || existing.OrgId != class.OrgId {
		return store.ErrNotFound
	}
	updated := class.Clone()
	updated.CreatedAt = existing.CreatedAt
	s.classes[class.Id] = &updated
	return nil
}

func (s *Store) CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := enrollmentKey(enrollment.ClassId, enrollment.StudentId)
	if _, exists := s.enrollments[key]; exists {
		return store.ErrDuplicate
	}
	class, ok := s.classes[enrollment.ClassId]
	if !ok || class.OrgId != enrollment.OrgId {
		return store.ErrNotFound
	}
	student, ok := s.students[enrollment.StudentId]
	if !ok || student.OrgId != enrollment.OrgId {
		return store.ErrNotFound
	}
	enrollment.EnrolledAt = s.stamp(enrollment.EnrolledAt)
	instance := *enrollment
	s.enrollments[key] = &instance
	return nil
}

func (s *Store) ListEnrollments(ctx context.Context, orgId string, filter store.EnrollmentFilter) ([]models.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	output := []models.Enrollment{}
	for _, enrollment := range s.enrollments {
		if enrollment.OrgId != orgId {
			continue
		}
		if filter.ClassId != nil && enrollment.ClassId != *filter.ClassId {
			continue
		}
		if filter.StudentId != nil && enrollment.StudentId != *filter.StudentId {
			continue
		}
		output = append(output, *enrollment)
	}
	sort.Slice(output, func(i, j int) bool {
		return output[i].EnrolledAt.Before(output[j].EnrolledAt)
	})
	return output, nil
}

func (s *Store) UpsertAttendance(ctx context.Context, records []models.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range records {
		class, ok := s.classes[record.ClassId]
		if !ok || class.OrgId != record.OrgId {
			return store.ErrNotFound
		}
	}
	for _, record := range records {
		key := attendanceKey(record.ClassId, record.StudentId, record.Date)
		instance := record
		if existing, ok := s.attendance[key]; ok {
			instance.Id = existing.Id
		} else {
			instance.Id = newId(instance.Id)
		}
		instance.RecordedAt = s.stamp(instance.RecordedAt)
		if record.Notes != nil {
			notes := *record.Notes
			instance.Notes = &notes
		}
		s.attendance[key] = &instance
	}
	return nil
}

func (s *Store) ListAttendance(ctx context.Context, orgId, classId, date string) ([]models.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	output := []models.AttendanceRecord{}
	for _, record := range s.attendance {
		if record.OrgId == orgId && record.ClassId == classId && record.Date == date {
			output = append(output, *record)
		}
	}
	sort.Slice(output, func(i, j int) bool {
		return output[i].StudentId < output[j].StudentId
	})
	return output, nil
}
