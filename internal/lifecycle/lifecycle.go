// Package lifecycle moves organisations between ACTIVE, PAUSED,
// SUSPENDED and DEACTIVATED in response to platform payment events and
// owner actions
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"madrasah/internal/access"
	"madrasah/internal/audit"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/notify"
	"madrasah/internal/store"
)

const (
	DefaultPauseThreshold   = 3
	DefaultSuspendThreshold = 6

	// maxTransitionAttempts bounds retries of a conditional status write
	// that lost a race with another writer
	maxTransitionAttempts = 3
)

var (
	ErrAlreadyDeactivated = errors.New("org_already_deactivated")
	ErrInvalidThresholds  = errors.New("invalid_thresholds")
)

type Config struct {
	// PauseThreshold is the failure count at which an ACTIVE org is
	// PAUSED
	PauseThreshold int `validate:"min=1"`

	// SuspendThreshold is the failure count at which an org is
	// SUSPENDED
	SuspendThreshold int `validate:"gtfield=PauseThreshold"`
}

func (c Config) Validate() error {
	if c.PauseThreshold < 1 || c.SuspendThreshold <= c.PauseThreshold {
		return fmt.Errorf("pause[%d] must be at least 1 and below suspend[%d]: %w", c.PauseThreshold, c.SuspendThreshold, ErrInvalidThresholds)
	}
	return nil
}

type Store interface {
	store.OrgStore
	store.MembershipStore
}

type Manager struct {
	Store       Store
	Audit       audit.Logger
	Notifier    notify.Notifier
	Config      Config
	ServiceLogs chan<- common.ServiceLog
}

// Result reports the outcome of a lifecycle call
type Result struct {
	Org        models.Org       `json:"org"`
	Previous   models.OrgStatus `json:"previousStatus"`
	Transition bool             `json:"transition"`
}

func (m *Manager) thresholds() Config {
	config := m.Config
	if config.PauseThreshold == 0 {
		config.PauseThreshold = DefaultPauseThreshold
	}
	if config.SuspendThreshold == 0 {
		config.SuspendThreshold = DefaultSuspendThreshold
	}
	return config
}

// targetStatus is the status an org with the given failure count should
// hold; DEACTIVATED is never left and SUSPENDED never drops to PAUSED
// through failures
func (m *Manager) targetStatus(current models.OrgStatus, failures int) models.OrgStatus {
	config := m.thresholds()
	switch {
	case current == models.OrgStatusDeactivated:
		return current
	case failures >= config.SuspendThreshold:
		return models.OrgStatusSuspended
	case failures >= config.PauseThreshold && current == models.OrgStatusActive:
		return models.OrgStatusPaused
	default:
		return current
	}
}

// HandlePaymentFailure records a failed platform payment. The counter is
// incremented atomically; crossing a threshold transitions the org and
// notifies its admins and the platform owners. Exactly one audit entry
// is written per call.
func (m *Manager) HandlePaymentFailure(ctx context.Context, orgId, reason string, amountP int64, at time.Time) (*Result, error) {
	org, err := m.Store.IncrementPaymentFailures(ctx, orgId, at)
	if err != nil {
		return nil, fmt.Errorf("failed to record payment failure of org[%s]: %w", orgId, err)
	}
	result := &Result{Org: *org, Previous: org.Status}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		target := m.targetStatus(org.Status, org.PaymentFailureCount)
		if target == org.Status {
			break
		}
		next := org.Clone()
		next.Status = target
		next.StatusReason = &reason
		switch target {
		case models.OrgStatusPaused:
			next.PausedAt = &at
		case models.OrgStatusSuspended:
			next.SuspendedAt = &at
		}
		err := m.Store.UpdateOrgLifecycle(ctx, next, org.Status)
		if err == nil {
			result.Org = next
			result.Previous = org.Status
			result.Transition = true
			break
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("failed to transition org[%s] to %s: %w", orgId, target, err)
		}
		if org, err = m.Store.GetOrg(ctx, orgId); err != nil {
			return nil, fmt.Errorf("failed to reload org[%s]: %w", orgId, err)
		}
		result.Org = *org
		result.Previous = org.Status
	}

	action := audit.ActionOrgPaymentFailed
	if result.Transition {
		lifecycleTransitionsCounter.WithLabelValues(string(result.Previous), string(result.Org.Status)).Inc()
		switch result.Org.Status {
		case models.OrgStatusPaused:
			action = audit.ActionOrgPaused
		case models.OrgStatusSuspended:
			action = audit.ActionOrgSuspended
		}
	}
	m.audit(ctx, audit.NewEntry(&orgId, nil, action, audit.TargetOrg, orgId, map[string]any{
		"reason":       reason,
		"amountP":      amountP,
		"failureCount": result.Org.PaymentFailureCount,
		"from":         string(result.Previous),
		"to":           string(result.Org.Status),
	}))
	m.log(common.LogLevelInfo, "org[%s] payment failure #%d (%s): %s -> %s", orgId, result.Org.PaymentFailureCount, reason, result.Previous, result.Org.Status)
	m.notify(ctx, result, reason)
	return result, nil
}

// HandlePaymentSuccess resets the failure counter and brings PAUSED and
// SUSPENDED orgs back to ACTIVE with their timestamps and reason cleared
func (m *Manager) HandlePaymentSuccess(ctx context.Context, orgId string, amountP int64) (*Result, error) {
	result, err := m.restore(ctx, orgId, false)
	if err != nil {
		return nil, err
	}
	action := audit.ActionOrgPaymentSucceeded
	if result.Transition {
		action = audit.ActionOrgReactivated
	}
	m.audit(ctx, audit.NewEntry(&orgId, nil, action, audit.TargetOrg, orgId, map[string]any{
		"amountP": amountP,
		"from":    string(result.Previous),
		"to":      string(result.Org.Status),
	}))
	if result.Transition {
		m.notify(ctx, result, "")
	}
	return result, nil
}

// Reactivate is the owner-only manual path back to ACTIVE; unlike
// payment events it also lifts a deactivation
func (m *Manager) Reactivate(ctx context.Context, actor *access.Principal, orgId string) (*Result, error) {
	if err := access.Authorize(actor, access.Requirement{SuperAdmin: true}); err != nil {
		return nil, err
	}
	result, err := m.restore(ctx, orgId, true)
	if err != nil {
		return nil, err
	}
	m.audit(ctx, audit.NewEntry(&orgId, &actor.UserId, audit.ActionOrgReactivated, audit.TargetOrg, orgId, map[string]any{
		"from":   string(result.Previous),
		"to":     string(result.Org.Status),
		"manual": true,
	}))
	if result.Transition {
		m.notify(ctx, result, "")
	}
	return result, nil
}

// Deactivate is the only path to DEACTIVATED
func (m *Manager) Deactivate(ctx context.Context, actor *access.Principal, orgId, reason string) (*Result, error) {
	if err := access.Authorize(actor, access.Requirement{SuperAdmin: true}); err != nil {
		return nil, err
	}
	if err := m.Store.ResetPaymentFailures(ctx, orgId); err != nil {
		return nil, fmt.Errorf("failed to reset failures of org[%s]: %w", orgId, err)
	}
	var result *Result
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		org, err := m.Store.GetOrg(ctx, orgId)
		if err != nil {
			return nil, fmt.Errorf("failed to get org[%s]: %w", orgId, err)
		}
		if org.Status == models.OrgStatusDeactivated {
			return nil, ErrAlreadyDeactivated
		}
		now := time.Now().UTC()
		next := org.Clone()
		next.Status = models.OrgStatusDeactivated
		next.PaymentFailureCount = 0
		next.PausedAt = nil
		next.SuspendedAt = nil
		next.DeactivatedAt = &now
		next.StatusReason = &reason
		err = m.Store.UpdateOrgLifecycle(ctx, next, org.Status)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to deactivate org[%s]: %w", orgId, err)
		}
		result = &Result{Org: next, Previous: org.Status, Transition: true}
		break
	}
	if result == nil {
		return nil, fmt.Errorf("failed to deactivate org[%s]: %w", orgId, store.ErrConflict)
	}
	lifecycleTransitionsCounter.WithLabelValues(string(result.Previous), string(result.Org.Status)).Inc()
	m.audit(ctx, audit.NewEntry(&orgId, &actor.UserId, audit.ActionOrgDeactivated, audit.TargetOrg, orgId, map[string]any{
		"reason": reason,
		"from":   string(result.Previous),
	}))
	m.notify(ctx, result, reason)
	return result, nil
}

// restore resets the counter and returns the org to ACTIVE when it is
// PAUSED or SUSPENDED, or also when DEACTIVATED if includeDeactivated
func (m *Manager) restore(ctx context.Context, orgId string, includeDeactivated bool) (*Result, error) {
	if err := m.Store.ResetPaymentFailures(ctx, orgId); err != nil {
		return nil, fmt.Errorf("failed to reset failures of org[%s]: %w", orgId, err)
	}
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		org, err := m.Store.GetOrg(ctx, orgId)
		if err != nil {
			return nil, fmt.Errorf("failed to get org[%s]: %w", orgId, err)
		}
		result := &Result{Org: *org, Previous: org.Status}
		restorable := org.Status == models.OrgStatusPaused || org.Status == models.OrgStatusSuspended ||
			(includeDeactivated && org.Status == models.OrgStatusDeactivated)
		if !restorable {
			return result, nil
		}
		next := org.Clone()
		next.Status = models.OrgStatusActive
		next.PaymentFailureCount = 0
		next.PausedAt = nil
		next.SuspendedAt = nil
		next.DeactivatedAt = nil
		next.StatusReason = nil
		err = m.Store.UpdateOrgLifecycle(ctx, next, org.Status)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to reactivate org[%s]: %w", orgId, err)
		}
		result.Org = next
		result.Transition = true
		lifecycleTransitionsCounter.WithLabelValues(string(result.Previous), string(next.Status)).Inc()
		return result, nil
	}
	return nil, fmt.Errorf("failed to reactivate org[%s]: %w", orgId, store.ErrConflict)
}

func (m *Manager) audit(ctx context.Context, entry models.AuditLog) {
	if m.Audit == nil {
		return
	}
	if err := m.Audit.Log(ctx, entry); err != nil {
		m.log(common.LogLevelError, "failed to write audit entry[%s] for org[%s]: %s", entry.Action, entry.TargetId, err)
	}
}

func (m *Manager) log(level, format string, args ...any) {
	if m.ServiceLogs != nil {
		m.ServiceLogs <- common.ServiceLogf(level, format, args...)
	}
}
