package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"madrasah/internal/models"
	"madrasah/internal/store"
)

const recordColumns = `
		id,
		org_id,
		student_id,
		class_id,
		month,
		amount_p,
		status,
		paid_at,
		method,
		reference,
		created_at,
		updated_at`

func scanRecord(row rowScanner) (*models.MonthlyPaymentRecord, error) {
	var record models.MonthlyPaymentRecord
	if err := row.Scan(
		&record.Id,
		&record.OrgId,
		&record.StudentId,
		&record.ClassId,
		&record.Month,
		&record.AmountP,
		&record.Status,
		&record.PaidAt,
		&record.Method,
		&record.Reference,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) CreateMonthlyRecord(ctx context.Context, record *models.MonthlyPaymentRecord) error {
	record.Id = newId(record.Id)
	record.CreatedAt = stamp(record.CreatedAt)
	return executeMysqlInsert(ctx, mysqlQueryInput{
		Db: s.Db,
		Stmt: `INSERT INTO monthly_payment_records (
			id,
			org_id,
			student_id,
			class_id,
			month,
			amount_p,
			status,
			paid_at,
			method,
			reference,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		Args: []any{
			record.Id,
			record.OrgId,
			record.StudentId,
			record.ClassId,
			record.Month,
			record.AmountP,
			record.Status,
			record.PaidAt,
			record.Method,
			record.Reference,
			record.CreatedAt,
		},
		FnSource:     "mysql.CreateMonthlyRecord",
		RowsAffected: oneRowAffected,
	})
}

func (s *Store) GetMonthlyRecord(ctx context.Context, orgId, recordId string) (*models.MonthlyPaymentRecord, error) {
	var output *models.MonthlyPaymentRecord
	err := executeMysqlSelect(ctx, mysqlQueryInput{
		Db:       s.Db,
		Stmt:     fmt.Sprintf("SELECT %s FROM monthly_payment_records WHERE id = ? AND org_id = ?", recordColumns),
		Args:     []any{recordId, orgId},
		FnSource: "mysql.GetMonthlyRecord",
		ProcessRow: func(r *sql.Row) (err error) {
			output, err = scanRecord(r)
			return err
		},
	})
	return output, err
}

func (s *Store) ListMonthlyRecords(ctx context.Context, orgId string, filter store.RecordFilter) ([]models.MonthlyPaymentRecord, error) {
	output := []models.MonthlyPaymentRecord{}
	if filter.StudentIds != nil && len(filter.StudentIds) == 0 {
		return output, nil
	}
	stmt := fmt.Sprintf("SELECT %s FROM monthly_payment_records WHERE org_id = ?", recordColumns)
	args := []any{orgId}
	if filter.Month != nil {
		stmt += " AND month = ?"
		args = append(args, *filter.Month)
	}
	if len(filter.StudentIds) > 0 {
		stmt += fmt.Sprintf(" AND student_id IN (%s)", inPlaceholders(len(filter.StudentIds)))
		args = append(args, stringsToArgs(filter.StudentIds)...)
	}
	if filter.UnpaidOnly {
		stmt += " AND status <> ?"
		args = append(args, models.PaymentStatusPaid)
	}
	stmt += " ORDER BY month ASC, created_at ASC"
	err := executeMysqlSelects(ctx, mysqlQueryInput{
		Db:       s.Db,
		Stmt:     stmt,
		Args:     args,
		FnSource: "mysql.ListMonthlyRecords",
		ProcessRows: func(r *sql.Rows) error {
			record, err := scanRecord(r)
			if err != nil {
				return err
			}
			output = append(output, *record)
			return nil
		},
	})
	return output, err
}

func (s *Store) UpdateMonthlyRecordStatus(ctx context.Context, orgId, recordId string, expected, status models.PaymentStatus) error {
	err := executeMysqlUpdate(ctx, mysqlQueryInput{
		Db: s.Db,
		Stmt: `UPDATE monthly_payment_records SET
			status = ?,
			updated_at = UTC_TIMESTAMP(6)
			WHERE id = ? AND org_id = ? AND status = ? AND paid_at IS NULL`,
		Args:         []any{status, recordId, orgId, expected},
		FnSource:     "mysql.UpdateMonthlyRecordStatus",
		RowsAffected: oneRowAffected,
	})
	if err == nil || !errors.Is(err, ErrorRowsAffectedCheckFailed) {
		return err
	}
	if _, getErr := s.GetMonthlyRecord(ctx, orgId, recordId); getErr != nil {
		return getErr
	}
	return fmt.Errorf("mysql.UpdateMonthlyRecordStatus: record[%s] is no longer %s: %w", recordId, expected, store.ErrConflict)
}

func (s *Store) SettleMonthlyRecord(ctx context.Context, record models.MonthlyPaymentRecord, payment *models.Payment) error {
	unmatched := false
	err := s.withTx(ctx, "mysql.SettleMonthlyRecord", func(tx *sql.Tx) error {
		if err := executeMysqlUpdate(ctx, mysqlQueryInput{
			Db: tx,
			Stmt: `UPDATE monthly_payment_records SET
				status = ?,
				paid_at = ?,
				method = ?,
				reference = ?,
				updated_at = UTC_TIMESTAMP(6)
				WHERE id = ? AND org_id = ? AND status <> ?`,
			Args: []any{
				models.PaymentStatusPaid,
				record.PaidAt,
				record.Method,
				record.Reference,
				record.Id,
				record.OrgId,
				models.PaymentStatusPaid,
			},
			FnSource:     "mysql.SettleMonthlyRecord",
			RowsAffected: oneRowAffected,
		}); err != nil {
			unmatched = errors.Is(err, ErrorRowsAffectedCheckFailed)
			return err
		}
		return insertPayment(ctx, tx, payment, "mysql.SettleMonthlyRecord")
	})
	if err == nil || !unmatched {
		return err
	}
	if _, getErr := s.GetMonthlyRecord(ctx, record.OrgId, record.Id); getErr != nil {
		return getErr
	}
	return fmt.Errorf("mysql.SettleMonthlyRecord: record[%s] is already paid: %w", record.Id, store.ErrConflict)
}

const invoiceColumns = `
		id,
		org_id,
		student_id,
		amount_p,
		description,
		due_date,
		status,
		paid_at,
		created_at`

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := row.Scan(
		&invoice.Id,
		&invoice.OrgId,
		&invoice.StudentId,
		&invoice.AmountP,
		&invoice.Description,
		&invoice.DueDate,
		&invoice.Status,
		&invoice.PaidAt,
		&invoice.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (s *Store) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	invoice.Id = newId(invoice.Id)
	invoice.CreatedAt = stamp(invoice.CreatedAt)
	// the select only yields a row when the student belongs to the org
	err := executeMysqlInsert(ctx, mysqlQueryInput{
		Db: s.Db,
		Stmt: `INSERT INTO invoices (
			id,
			org_id,
			student_id,
			amount_p,
			description,
			due_date,
			status,
			paid_at,
			created_at
		) SELECT ?, st.org_id, st.id, ?, ?, ?, ?, ?, ?
			FROM students st
			WHERE st.id = ? AND st.org_id = ?`,
		Args: []any{
			invoice.Id,
			invoice.AmountP,
			invoice.Description,
			invoice.DueDate,
			invoice.Status,
			invoice.PaidAt,
			invoice.CreatedAt,
			invoice.StudentId,
			invoice.OrgId,
		},
		FnSource:     "mysql.CreateInvoice",
		RowsAffected: oneRowAffected,
	})
	return notFoundIfNoRows(err)
}

func (s *Store) GetInvoice(ctx context.Context, orgId, invoiceId string) (*models.Invoice, error) {
	var output *models.Invoice
	err := executeMysqlSelect(ctx, mysqlQueryInput{
		Db:       s.Db,
		Stmt:     fmt.Sprintf("SELECT %s FROM invoices WHERE id = ? AND org_id = ?", invoiceColumns),
		Args:     []any{invoiceId, orgId},
		FnSource: "mysql.GetInvoice",
		ProcessRow: func(r *sql.Row) (err error) {
			output, err = scanInvoice(r)
			return err
		},
	})
	return output, err
}

func (s *Store) ListInvoices(ctx context.Context, orgId string, filter store.InvoiceFilter) ([]models.Invoice, error) {
	output := []models.Invoice{}
	if filter.StudentIds != nil && len(filter.StudentIds) == 0 {
		return output, nil
	}
	stmt := fmt.Sprintf("SELECT %s FROM invoices WHERE org_id = ?", invoiceColumns)
	args := []any{orgId}
	if len(filter.StudentIds) > 0 {
		stmt += fmt.Sprintf(" AND student_id IN (%s)", inPlaceholders(len(filter.StudentIds)))
		args = append(args, stringsToArgs(filter.StudentIds)...)
	}
	if filter.UnpaidOnly {
		stmt += " AND status NOT IN (?, ?)"
		args = append(args, models.InvoiceStatusPaid, models.InvoiceStatusCancelled)
	}
	stmt += " ORDER BY due_date ASC"
	err := executeMysqlSelects(ctx, mysqlQueryInput{
		Db:       s.Db,
		Stmt:     stmt,
		Args:     args,
		FnSource: "mysql.ListInvoices",
		ProcessRows: func(r *sql.Rows) error {
			invoice, err := scanInvoice(r)
			if err != nil {
				return err
			}
			output = append(output, *invoice)
			return nil
		},
	})
	return output, err
}

func (s *Store) UpdateInvoiceStatus(ctx context.Context, orgId, invoiceId string, expected, status models.InvoiceStatus) error {
	err := executeMysqlUpdate(ctx, mysqlQueryInput{
		Db:           s.Db,
		Stmt:         "UPDATE invoices SET status = ? WHERE id = ? AND org_id = ? AND status = ? AND paid_at IS NULL",
		Args:         []any{status, invoiceId, orgId, expected},
		FnSource:     "mysql.UpdateInvoiceStatus",
		RowsAffected: oneRowAffected,
	})
	if err == nil || !errors.Is(err, ErrorRowsAffectedCheckFailed) {
		return err
	}
	if _, getErr := s.GetInvoice(ctx, orgId, invoiceId); getErr != nil {
		return getErr
	}
	return fmt.Errorf("mysql.UpdateInvoiceStatus: invoice[%s] is no longer %s: %w", invoiceId, expected, store.ErrConflict)
}

func (s *Store) SettleInvoice(ctx context.Context, invoice models.Invoice, payment *models.Payment) error {
	unmatched := false
	err := s.withTx(ctx, "mysql.SettleInvoice", func(tx *sql.Tx) error {
		if err := executeMysqlUpdate(ctx, mysqlQueryInput{
			Db: tx,
			Stmt: `UPDATE invoices SET
				status = ?,
				paid_at = ?
				WHERE id = ? AND org_id = ? AND status NOT IN (?, ?)`,
			Args: []any{
				models.InvoiceStatusPaid,
				invoice.PaidAt,
				invoice.Id,
				invoice.OrgId,
				models.InvoiceStatusPaid,
				models.InvoiceStatusCancelled,
			},
			FnSource:     "mysql.SettleInvoice",
			RowsAffected: oneRowAffected,
		}); err != nil {
			unmatched = errors.Is(err, ErrorRowsAffectedCheckFailed)
			return err
		}
		return insertPayment(ctx, tx, payment, "mysql.SettleInvoice")
	})
	if err == nil || !unmatched {
		return err
	}
	if _, getErr := s.GetInvoice(ctx, invoice.OrgId, invoice.Id); getErr != nil {
		return getErr
	}
	return fmt.Errorf("mysql.SettleInvoice: invoice[%s] is no longer open: %w", invoice.Id, store.ErrConflict)
}

func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return insertPayment(ctx, s.Db, payment, "mysql.CreatePayment")
}

func insertPayment(ctx context.Context, db preparer, payment *models.Payment, fnSource string) error {
	payment.Id = newId(payment.Id)
	payment.CreatedAt = stamp(payment.CreatedAt)
	return executeMysqlInsert(ctx, mysqlQueryInput{
		Db: db,
		Stmt: `INSERT INTO payments (
			id,
			org_id,
			student_id,
			payer_id,
			invoice_id,
			record_id,
			amount_p,
			method,
			outcome,
			provider_reference,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		Args: []any{
			payment.Id,
			payment.OrgId,
			payment.StudentId,
			payment.PayerId,
			payment.InvoiceId,
			payment.RecordId,
			payment.AmountP,
			payment.Method,
			payment.Outcome,
			payment.ProviderReference,
			payment.CreatedAt,
		},
		FnSource:     fnSource,
		RowsAffected: oneRowAffected,
	})
}

func (s *Store) ListPayments(ctx context.Context, orgId string, filter store.PaymentFilter) ([]models.Payment, error) {
	output := []models.Payment{}
	if filter.StudentIds != nil && len(filter.StudentIds) == 0 {
		return output, nil
	}
	stmt := `SELECT
		id,
		org_id,
		student_id,
		payer_id,
		invoice_id,
		record_id,
		amount_p,
		method,
		outcome,
		provider_reference,
		created_at
		FROM payments
		WHERE org_id = ?`
	args := []any{orgId}
	if filter.From != nil {
		stmt += " AND created_at >= ?"
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		stmt += " AND created_at <= ?"
		args = append(args, *filter.To)
	}
	if len(filter.StudentIds) > 0 {
		stmt += fmt.Sprintf(" AND student_id IN (%s)", inPlaceholders(len(filter.StudentIds)))
		args = append(args, stringsToArgs(filter.StudentIds)...)
	}
	if filter.Outcome != nil {
		stmt += " AND outcome = ?"
		args = append(args, *filter.Outcome)
	}
	stmt += " ORDER BY created_at ASC"
	err := executeMysqlSelects(ctx, mysqlQueryInput{
		Db:       s.Db,
		Stmt:     stmt,
		Args:     args,
		FnSource: "mysql.ListPayments",
		ProcessRows: func(r *sql.Rows) error {
			var payment models.Payment
			if err := r.Scan(
				&payment.Id,
				&payment.OrgId,
				&payment.StudentId,
				&payment.PayerId,
				&payment.InvoiceId,
				&payment.RecordId,
				&payment.AmountP,
				&payment.Method,
				&payment.Outcome,
				&payment.ProviderReference,
				&payment.CreatedAt,
			); err != nil {
				return err
			}
			output = append(output, payment)
			return nil
		},
	})
	return output, err
}
