// Package memory is an in-memory implementation of store.Store for
// development and tests
package memory

import (
	"sync"
	"time"

	"madrasah/internal/models"
	"madrasah/internal/store"

	"github.com/google/uuid"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	orgs        map[string]*models.Org
	users       map[string]*models.User
	memberships map[string]*models.Membership
	students    map[string]*models.Student
	classes     map[string]*models.Class
	enrollments map[string]*models.Enrollment
	attendance  map[string]*models.AttendanceRecord
	records     map[string]*models.MonthlyPaymentRecord
	invoices    map[string]*models.Invoice
	payments    map[string]*models.Payment
	auditLogs   []models.AuditLog

	now func() time.Time
}

func New() *Store {
	return &Store{
		orgs:        map[string]*models.Org{},
		users:       map[string]*models.User{},
		memberships: map[string]*models.Membership{},
		students:    map[string]*models.Student{},
		classes:     map[string]*models.Class{},
		enrollments: map[string]*models.Enrollment{},
		attendance:  map[string]*models.AttendanceRecord{},
		records:     map[string]*models.MonthlyPaymentRecord{},
		invoices:    map[string]*models.Invoice{},
		payments:    map[string]*models.Payment{},
		now:         time.Now,
	}
}

func newId(current string) string {
	if current != "" {
		return current
	}
	return uuid.NewString()
}

func (s *Store) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
