package memory

import (
	"context"
	"sort"
	"time"

	"madrasah/internal/models"
	"madrasah/internal/store"
)

func (s *Store) CreateOrg(ctx context.Context, org *models.Org) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.orgs {
		if existing.Slug == org.Slug {
			return store.ErrDuplicate
		}
	}
	org.Id = newId(org.Id)
	org.CreatedAt = s.stamp(org.CreatedAt)
	if org.Status == "" {
		org.Status = models.OrgStatusActive
	}
	instance := org.Clone()
	s.orgs[org.Id] = &instance
	return nil
}

func (s *Store) GetOrg(ctx context.Context, orgId string) (*models.Org, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[orgId]
	if !ok {
		return nil, store.ErrNotFound
	}
	output := org.Clone()
	return &output, nil
}

func (s *Store) GetOrgBySlug(ctx context.Context, slug string) (*models.Org, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, org := range s.orgs {
		if org.Slug == slug {
			output := org.Clone()
			return &output, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetOrgByStripeCustomer(ctx context.Context, customerId string) (*models.Org, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, org := range s.orgs {
		if org.StripeCustomerId != nil && *org.StripeCustomerId == customerId {
			output := org.Clone()
			return &output, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListOrgs(ctx context.Context) ([]models.Org, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	output := make([]models.Org, 0, len(s.orgs))
	for _, org := range s.orgs {
		output = append(output, org.Clone())
	}
	sort.Slice(output, func(i, j int) bool {
		return output[i].CreatedAt.Before(output[j].CreatedAt)
	})
	return output, nil
}

func (s *Store) UpdateOrgSettings(ctx context.Context, orgId string, settings models.OrgSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[orgId]
	if !ok {
		return store.ErrNotFound
	}
	updated := models.Org{Settings: settings}.Clone()
	org.Settings = updated.Settings
	now := s.now()
	org.UpdatedAt = &now
	return nil
}

func (s *Store) IncrementPaymentFailures(ctx context.Context, orgId string, at time.Time) (*models.Org, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[orgId]
	if !ok {
		return nil, store.ErrNotFound
	}
	org.PaymentFailureCount++
	org.LastPaymentFailureAt = &at
	output := org.Clone()
	return &output, nil
}

func (s *Store) ResetPaymentFailures(ctx context.Context, orgId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[orgId]
	if !ok {
		return store.ErrNotFound
	}
	org.PaymentFailureCount = 0
	return nil
}

func (s *Store) UpdateOrgLifecycle(ctx context.Context, org models.Org, expectedStatus models.OrgStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.orgs[org.Id]
	if !ok {
		return store.ErrNotFound
	}
	if existing.Status != expectedStatus {
		return store.ErrConflict
	}
	updated := org.Clone()
	existing.Status = updated.Status
	existing.PausedAt = updated.PausedAt
	existing.SuspendedAt = updated.SuspendedAt
	existing.DeactivatedAt = updated.DeactivatedAt
	existing.StatusReason = updated.StatusReason
	now := s.now()
	existing.UpdatedAt = &now
	return nil
}

// SetStripeCustomer links an organisation to a card processor customer
func (s *Store) SetStripeCustomer(orgId, customerId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if org, ok := s.orgs[orgId]; ok {
		org.StripeCustomerId = &customerId
	}
}
