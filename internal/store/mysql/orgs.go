package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"madrasah/internal/models"
	"madrasah/internal/store"
)

const orgColumns = `
		id,
		name,
		slug,
		status,
		settings,
		stripe_customer_id,
		payment_failure_count,
		last_payment_failure_at,
		paused_at,
		suspended_at,
		deactivated_at,
		status_reason,
		created_at,
		updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrg(row rowScanner) (*models.Org, error) {
	var org models.Org
	var settings []byte
	if err := row.Scan(
		&org.Id,
		&org.Name,
		&org.Slug,
		&org.Status,
		&settings,
		&org.StripeCustomerId,
		&org.PaymentFailureCount,
		&org.LastPaymentFailureAt,
		&org.PausedAt,
		&org.SuspendedAt,
		&org.DeactivatedAt,
		&org.StatusReason,
		&org.CreatedAt,
		&org.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &org.Settings); err != nil {
			return nil, fmt.Errorf("failed to parse settings of org[%s]: %w", org.Id, err)
		}
	}
	return &org, nil
}

func (s *Store) CreateOrg(ctx context.Context, org *models.Org) error {
	org.Id = newId(org.Id)
	org.CreatedAt = stamp(org.CreatedAt)
	if org.Status == "" {
		org.Status = models.OrgStatusActive
	}
	settings, err := json.Marshal(org.Settings)
	if err != nil {
		return fmt.Errorf("mysql.CreateOrg: failed to marshal settings: %w", err)
	}
	return executeMysqlInsert(ctx, mysqlQueryInput{
		Db: s.Db,
		Stmt: `INSERT INTO orgs (
			id,
			name,
			slug,
			status,
			settings,
			stripe_customer_id,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		Args:         []any{org.Id, org.Name, org.Slug, org.Status, settings, org.StripeCustomerId, org.CreatedAt},
		FnSource:     "mysql.CreateOrg",
		RowsAffected: oneRowAffected,
	})
}

func (s *Store) getOrgBy(ctx context.Context, db preparer, field, value, fnSource string, lock bool) (*models.Org, error) {
	stmt := fmt.Sprintf("SELECT %s FROM orgs WHERE %s = ?", orgColumns, field)
	if lock {
		stmt += " FOR UPDATE"
	}
	var output *models.Org
	err := executeMysqlSelect(ctx, mysqlQueryInput{
		Db:       db,
		Stmt:     stmt,
		Args:     []any{value},
		FnSource: fnSource,
		ProcessRow: func(r *sql.Row) (err error) {
			output, err = scanOrg(r)
			return err
		},
	})
	return output, err
}

func (s *Store) GetOrg(ctx context.Context, orgId string) (*models.Org, error) {
	return s.getOrgBy(ctx, s.Db, "id", orgId, "mysql.GetOrg", false)
}

func (s *Store) GetOrgBySlug(ctx context.Context, slug string) (*models.Org, error) {
	return s.getOrgBy(ctx, s.Db, "slug", slug, "mysql.GetOrgBySlug", false)
}

func (s *Store) GetOrgByStripeCustomer(ctx context.Context, customerId string) (*models.Org, error) {
	return s.getOrgBy(ctx, s.Db, "stripe_customer_id", customerId, "mysql.GetOrgByStripeCustomer", false)
}

func (s *Store) ListOrgs(ctx context.Context) ([]models.Org, error) {
	output := []models.Org{}
	err := executeMysqlSelects(ctx, mysqlQueryInput{
		Db:       s.Db,
		Stmt:     fmt.Sprintf("SELECT %s FROM orgs ORDER BY created_at ASC", orgColumns),
		FnSource: "mysql.ListOrgs",
		ProcessRows: func(r *sql.Rows) error {
			org, err := scanOrg(r)
			if err != nil {
				return err
			}
			output = append(output, *org)
			return nil
		},
	})
	return output, err
}

func (s *Store) UpdateOrgSettings(ctx context.Context, orgId string, settings models.OrgSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("mysql.UpdateOrgSettings: failed to marshal settings: %w", err)
	}
	err = executeMysqlUpdate(ctx, mysqlQueryInput{
		Db:           s.Db,
		Stmt:         "UPDATE orgs SET settings = ?, updated_at = ? WHERE id = ?",
		Args:         []any{data, time.Now().UTC(), orgId},
		FnSource:     "mysql.UpdateOrgSettings",
		RowsAffected: oneRowAffected,
	})
	return notFoundIfNoRows(err)
}

func (s *Store) IncrementPaymentFailures(ctx context.Context, orgId string, at time.Time) (*models.Org, error) {
	var output *models.Org
	err := s.withTx(ctx, "mysql.IncrementPaymentFailures", func(tx *sql.Tx) error {
		if err := executeMysqlUpdate(ctx, mysqlQueryInput{
			Db: tx,
			Stmt: `UPDATE orgs SET
				payment_failure_count = payment_failure_count + 1,
				last_payment_failure_at = ?
				WHERE id = ?`,
			Args:         []any{at, orgId},
			FnSource:     "mysql.IncrementPaymentFailures",
			RowsAffected: oneRowAffected,
		}); err != nil {
			return notFoundIfNoRows(err)
		}
		org, err := s.getOrgBy(ctx, tx, "id", orgId, "mysql.IncrementPaymentFailures", true)
		if err != nil {
			return err
		}
		output = org
		return nil
	})
	return output, err
}

func (s *Store) ResetPaymentFailures(ctx context.Context, orgId string) error {
	err := executeMysqlUpdate(ctx, mysqlQueryInput{
		Db:           s.Db,
		Stmt:         "UPDATE orgs SET payment_failure_count = 0 WHERE id = ?",
		Args:         []any{orgId},
		FnSource:     "mysql.ResetPaymentFailures",
		RowsAffected: oneRowAffected,
	})
	return notFoundIfNoRows(err)
}

func (s *Store) UpdateOrgLifecycle(ctx context.Context, org models.Org, expectedStatus models.OrgStatus) error {
	err := executeMysqlUpdate(ctx, mysqlQueryInput{
		Db: s.Db,
		Stmt: `UPDATE orgs SET
			status = ?,
			paused_at = ?,
			suspended_at = ?,
			deactivated_at = ?,
			status_reason = ?,
			updated_at = ?
			WHERE id = ? AND status = ?`,
		Args: []any{
			org.Status,
			org.PausedAt,
			org.SuspendedAt,
			org.DeactivatedAt,
			org.StatusReason,
			time.Now().UTC(),
			org.Id,
			expectedStatus,
		},
		FnSource:     "mysql.UpdateOrgLifecycle",
		RowsAffected: oneRowAffected,
	})
	if err == nil || !errors.Is(err, ErrorRowsAffectedCheckFailed) {
		return err
	}
	if _, getErr := s.GetOrg(ctx, org.Id); getErr != nil {
		return getErr
	}
	return fmt.Errorf("mysql.UpdateOrgLifecycle: org[%s] is no longer %s: %w", org.Id, expectedStatus, store.ErrConflict)
}
