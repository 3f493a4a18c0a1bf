package memory

import (
	"context"
	"sort"
	"strings"

	"madrasah/internal/models"
	"madrasah/internal/store"
)

func membershipKey(userId, orgId string) string {
	return userId + ":" + orgId
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return store.ErrDuplicate
		}
	}
	user.Id = newId(user.Id)
	user.CreatedAt = s.stamp(user.CreatedAt)
	instance := user.Clone()
	s.users[user.Id] = &instance
	return nil
}

func (s *Store) GetUser(ctx context.Context, userId string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userId]
	if !ok {
		return nil, store.ErrNotFound
	}
	output := user.Clone()
	return &output, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			output := user.Clone()
			return &output, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateUserGiftAid(ctx context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[user.Id]
	if !ok {
		return store.ErrNotFound
	}
	updated := user.Clone()
	existing.GiftAidDeclared = updated.GiftAidDeclared
	existing.AddressLine = updated.AddressLine
	existing.Postcode = updated.Postcode
	return nil
}

func (s *Store) ListUsers(ctx context.Context, userIds []string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	output := []models.User{}
	for _, userId := range userIds {
		if user, ok := s.users[userId]; ok {
			output = append(output, user.Clone())
		}
	}
	return output, nil
}

func (s *Store) CreateMembership(ctx context.Context, membership *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := membershipKey(membership.UserId, membership.OrgId)
	if _, exists := s.memberships[key]; exists {
		return store.ErrDuplicate
	}
	if _, ok := s.users[membership.UserId]; !ok {
		return store.ErrNotFound
	}
	if _, ok := s.orgs[membership.OrgId]; !ok {
		return store.ErrNotFound
	}
	membership.JoinedAt = s.stamp(membership.JoinedAt)
	instance := membership.Clone()
	s.memberships[key] = &instance
	return nil
}

func (s *Store) GetMembership(ctx context.Context, userId, orgId string) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	membership, ok := s.memberships[membershipKey(userId, orgId)]
	if !ok {
		return nil, store.ErrNotFound
	}
	output := membership.Clone()
	return &output, nil
}

func (s *Store) ListUserOrgs(ctx context.Context, userId string) ([]models.UserOrg, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	output := []models.UserOrg{}
	for _, membership := range s.memberships {
		if membership.UserId != userId {
			continue
		}
		org, ok := s.orgs[membership.OrgId]
		if !ok {
			continue
		}
		output = append(output, models.UserOrg{
			Membership: membership.Clone(),
			OrgName:    org.Name,
			OrgSlug:    org.Slug,
			OrgStatus:  org.Status,
		})
	}
	sort.Slice(output, func(i, j int) bool {
		return output[i].JoinedAt.Before(output[j].JoinedAt)
	})
	return output, nil
}

func (s *Store) ListOrgMembers(ctx context.Context, orgId string, role *models.Role) ([]models.OrgMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	output := []models.OrgMember{}
	for _, membership := range s.memberships {
		if membership.OrgId != orgId {
			continue
		}
		if role != nil && membership.Role != *role {
			continue
		}
		user, ok := s.users[membership.UserId]
		if !ok {
			continue
		}
		output = append(output, models.OrgMember{
			Membership: membership.Clone(),
			Email:      user.Email,
			Name:       user.Name,
		})
	}
	sort.Slice(output, func(i, j int) bool {
		return output[i].JoinedAt.Before(output[j].JoinedAt)
	})
	return output, nil
}
