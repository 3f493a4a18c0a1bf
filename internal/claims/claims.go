// Package claims implements the claim-code flow that lets a parent
// link themselves to a student created by the school
package claims

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"madrasah/internal/audit"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/notify"
	"madrasah/internal/store"
)

const (
	// CodeAlphabet leaves out characters that are easily confused when
	// read off paper: 0/O, 1/I/L
	CodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	CodeLength   = 8

	DefaultTtl = 30 * 24 * time.Hour

	maxGenerateAttempts = 5
)

var (
	ErrInvalidCode    = errors.New("invalid_claim_code")
	ErrAlreadyClaimed = errors.New("already_claimed")
	ErrClaimPending   = errors.New("claim_pending_verification")
	ErrCodeExpired    = errors.New("claim_code_expired")
	ErrNoPendingClaim = errors.New("no_pending_claim")
)

type Store interface {
	store.StudentStore
	store.ClassStore
	store.UserStore
	store.MembershipStore
	store.OrgStore
}

type Service struct {
	Store       Store
	Audit       audit.Logger
	Notifier    notify.Notifier
	Ttl         time.Duration
	ServiceLogs chan<- common.ServiceLog
}

// Validation is what a parent sees before submitting a claim
type Validation struct {
	Student models.Student `json:"student"`
	Classes []models.Class `json:"classes"`
}

func (s *Service) ttl() time.Duration {
	if s.Ttl > 0 {
		return s.Ttl
	}
	return DefaultTtl
}

// NormaliseCode upper-cases a code and strips the separators people
// type when copying it
func NormaliseCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.NewReplacer(" ", "", "-", "").Replace(code)
}

// Generate issues a fresh code for the student, replacing any previous
// one. Claimed students and students awaiting verification keep their
// state.
func (s *Service) Generate(ctx context.Context, actorId, orgId, studentId string, now time.Time) (*models.Student, error) {
	student, err := s.Store.GetStudent(ctx, orgId, studentId)
	if err != nil {
		return nil, err
	}
	switch student.ClaimStatus {
	case models.ClaimStatusClaimed:
		return nil, ErrAlreadyClaimed
	case models.ClaimStatusPendingVerification:
		return nil, ErrClaimPending
	}
	expiresAt := now.Add(s.ttl())
	student.ClaimCodeExpiresAt = &expiresAt
	student.ClaimStatus = models.ClaimStatusNotClaimed

	for attempt := 1; ; attempt++ {
		code, err := common.GenerateRandomStringFrom(CodeAlphabet, CodeLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate claim code: %w", err)
		}
		student.ClaimCode = &code
		err = s.Store.UpdateStudentClaim(ctx, *student)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicate) || attempt == maxGenerateAttempts {
			return nil, fmt.Errorf("failed to save claim code of student[%s]: %w", studentId, err)
		}
	}
	s.audit(ctx, audit.NewEntry(&orgId, &actorId, audit.ActionClaimCodeGenerated, audit.TargetStudent, studentId, map[string]any{
		"expiresAt": expiresAt,
	}))
	return student, nil
}

// Validate checks a code for the organisation without changing
// anything. Codes of other organisations are reported as invalid.
func (s *Service) Validate(ctx context.Context, orgId, code string, now time.Time) (*Validation, error) {
	student, err := s.lookup(ctx, orgId, code, now)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.Store.ListEnrollments(ctx, orgId, store.EnrollmentFilter{StudentId: &student.Id})
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments of student[%s]: %w", student.Id, err)
	}
	classes := make([]models.Class, 0, len(enrollments))
	for _, enrollment := range enrollments {
		class, err := s.Store.GetClass(ctx, orgId, enrollment.ClassId)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to get class[%s]: %w", enrollment.ClassId, err)
		}
		classes = append(classes, *class)
	}
	return &Validation{Student: *student, Classes: classes}, nil
}

// Claim records a parent's request to link to the student named by
// code; an admin has to approve it
func (s *Service) Claim(ctx context.Context, orgId, code, parentId string, now time.Time) (*models.Student, error) {
	student, err := s.lookup(ctx, orgId, code, now)
	if err != nil {
		return nil, err
	}
	student.ClaimStatus = models.ClaimStatusPendingVerification
	student.PendingParentId = &parentId
	if err := s.Store.UpdateStudentClaim(ctx, *student); err != nil {
		return nil, fmt.Errorf("failed to save claim of student[%s]: %w", student.Id, err)
	}
	s.audit(ctx, audit.NewEntry(&orgId, &parentId, audit.ActionClaimSubmitted, audit.TargetStudent, student.Id, nil))
	return student, nil
}

// Approve links the pending parent to the student and makes sure they
// are a PARENT member of the organisation
func (s *Service) Approve(ctx context.Context, actorId, orgId, studentId string, now time.Time) (*models.Student, error) {
	student, err := s.pending(ctx, orgId, studentId)
	if err != nil {
		return nil, err
	}
	parentId := *student.PendingParentId
	if _, err := s.Store.GetMembership(ctx, parentId, orgId); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to get membership of user[%s]: %w", parentId, err)
		}
		membership := &models.Membership{UserId: parentId, OrgId: orgId, Role: models.RoleParent, JoinedAt: now}
		if err := s.Store.CreateMembership(ctx, membership); err != nil && !errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("failed to add parent[%s] to org[%s]: %w", parentId, orgId, err)
		}
	}
	student.ClaimStatus = models.ClaimStatusClaimed
	student.PrimaryParentId = &parentId
	student.PendingParentId = nil
	student.ClaimedAt = &now
	if err := s.Store.UpdateStudentClaim(ctx, *student); err != nil {
		return nil, fmt.Errorf("failed to approve claim of student[%s]: %w", studentId, err)
	}
	s.audit(ctx, audit.NewEntry(&orgId, &actorId, audit.ActionClaimApproved, audit.TargetStudent, studentId, map[string]any{
		"parentId": parentId,
	}))
	s.notifyParent(ctx, orgId, parentId, *student, true)
	return student, nil
}

// Reject returns the student to NOT_CLAIMED; the code stays usable
// until it expires
func (s *Service) Reject(ctx context.Context, actorId, orgId, studentId string) (*models.Student, error) {
	student, err := s.pending(ctx, orgId, studentId)
	if err != nil {
		return nil, err
	}
	parentId := *student.PendingParentId
	student.ClaimStatus = models.ClaimStatusNotClaimed
	student.PendingParentId = nil
	if err := s.Store.UpdateStudentClaim(ctx, *student); err != nil {
		return nil, fmt.Errorf("failed to reject claim of student[%s]: %w", studentId, err)
	}
	s.audit(ctx, audit.NewEntry(&orgId, &actorId, audit.ActionClaimRejected, audit.TargetStudent, studentId, map[string]any{
		"parentId": parentId,
	}))
	s.notifyParent(ctx, orgId, parentId, *student, false)
	return student, nil
}

func (s *Service) lookup(ctx context.Context, orgId, code string, now time.Time) (*models.Student, error) {
	code = NormaliseCode(code)
	if len(code) != CodeLength {
		return nil, ErrInvalidCode
	}
	student, err := s.Store.GetStudentByClaimCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("failed to look up claim code: %w", err)
	}
	if student.OrgId != orgId || student.IsArchived {
		return nil, ErrInvalidCode
	}
	switch student.ClaimStatus {
	case models.ClaimStatusClaimed:
		return nil, ErrAlreadyClaimed
	case models.ClaimStatusPendingVerification:
		return nil, ErrClaimPending
	}
	if student.ClaimCodeExpiresAt == nil || !now.Before(*student.ClaimCodeExpiresAt) {
		return nil, ErrCodeExpired
	}
	return student, nil
}

func (s *Service) pending(ctx context.Context, orgId, studentId string) (*models.Student, error) {
	student, err := s.Store.GetStudent(ctx, orgId, studentId)
	if err != nil {
		return nil, err
	}
	if student.ClaimStatus != models.ClaimStatusPendingVerification || student.PendingParentId == nil {
		return nil, ErrNoPendingClaim
	}
	return student, nil
}

func (s *Service) audit(ctx context.Context, entry models.AuditLog) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Log(ctx, entry); err != nil {
		s.log(common.LogLevelError, "failed to write audit entry[%s] for %s[%s]: %s", entry.Action, entry.TargetType, entry.TargetId, err)
	}
}

func (s *Service) log(level, format string, args ...any) {
	if s.ServiceLogs != nil {
		s.ServiceLogs <- common.ServiceLogf(level, format, args...)
	}
}
