package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"madrasah/internal/models"
	"madrasah/internal/store"

	"github.com/google/uuid"
)

const classColumns = `
		id,
		org_id,
		name,
		teacher_id,
		monthly_fee_p,
		fee_due_day,
		schedule,
		is_archived,
		created_at`

func scanClass(row rowScanner) (*models.Class, error) {
	var class models.Class
	var schedule []byte
	if err := row.Scan(
		&class.Id,
		&class.OrgId,
		&class.Name,
		&class.TeacherId,
		&class.MonthlyFeeP,
		&class.FeeDueDay,
		&schedule,
		&class.IsArchived,
		&class.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(schedule) > 0 {
		if err := json.Unmarshal(schedule, &class.Schedule); err != nil {
			return nil, fmt.Errorf("failed to parse schedule of class[%s]: %w", class.Id, err)
		}
	}
	return &class, nil
}

func (s *Store) CreateClass(ctx context.Context, class *models.Class) error {
	class.Id = newId(class.Id)
	class.CreatedAt = stamp(class.CreatedAt)
	schedule, err := json.Marshal(class.Schedule)
	if err != nil {
		return fmt.Errorf("mysql.CreateClass: failed to marshal schedule: %w", err)
	}
	return executeMysqlInsert(ctx, mysqlQueryInput{
		Db: s.Db,
		Stmt: `INSERT INTO classes (
			id,
			org_id,
			name,
			teacher_id,
			monthly_fee_p,
			fee_due_day,
			schedule,
			is_archived,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		Args: []any{
			class.Id,
			class.OrgId,
			class.Name,
			class.TeacherId,
			class.MonthlyFeeP,
			class.FeeDueDay,
			schedule,
			class.IsArchived,
			class.CreatedAt,
		},
		FnSource:     "mysql.CreateClass",
		RowsAffected: oneRowAffected,
	})
}

func (s *Store) GetClass(ctx context.Context, orgId, classId string) (*models.Class, error) {
	var output *models.Class
	err := executeMysqlSelect(ctx, mysqlQueryInput{
		Db:       s.Db,
		Stmt:     fmt.Sprintf("SELECT %s FROM classes WHERE id = ? AND org_id = ?", classColumns),
		Args:     []any{classId, orgId},
		FnSource: "mysql.GetClass",
		ProcessRow: func(r *sql.Row) (err error) {
			output, err = scanClass(r)
			return err
		},
	})
	return output, err
}

func (s *Store) ListClasses(ctx context.Context, orgId string) ([]models.Class, error) {
	output := []models.Class{}
	err := executeMysqlSelects(ctx, mysqlQueryInput{
		Db:       s.Db,
		Stmt:     fmt.Sprintf("SELECT %s FROM classes WHERE org_id = ? AND is_archived = false ORDER BY name ASC", classColumns),
		Args:     []any{orgId},
		FnSource: "mysql.ListClasses",
		ProcessRows: func(r *sql.Rows) error {
			class, err := scanClass(r)
			if err != nil {
				return err
			}
			output = append(output, *class)
			return nil
		},
	})
	return output, err
}

func (s *Store) UpdateClass(ctx context.Context, class models.Class) error {
	schedule, err := json.Marshal(class.Schedule)
	if err != nil {
		return fmt.Errorf("mysql.UpdateClass: failed to marshal schedule: %w", err)
	}
	err = executeMysqlUpdate(ctx, mysqlQueryInput{
		Db: s.Db,
		Stmt: `UPDATE classes SET
			name = ?,
			teacher_id = ?,
			monthly_fee_p = ?,
			fee_due_day = ?,
			schedule = ?,
			is_archived = ?
			WHERE id = ? AND org_id = ?`,
		Args: []any{
			class.Name,
			class.TeacherId,
			class.MonthlyFeeP,
			class.FeeDueDay,
			schedule,
			class.IsArchived,
			class.Id,
			class.OrgId,
		},
		FnSource:     "mysql.UpdateClass",
		RowsAffected: oneRowAffected,
	})
	return notFoundIfNoRows(err)
}

func (s *Store) CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.EnrolledAt = stamp(enrollment.EnrolledAt)
	// the select only yields a row when both sides belong to the org
	err := executeMysqlInsert(ctx, mysqlQueryInput{
		Db: s.Db,
		Stmt: `INSERT INTO enrollments (org_id, class_id, student_id, enrolled_at)
			SELECT c.org_id, c.id, st.id, ?
				FROM classes c
					JOIN students st ON st.org_id = c.org_id
				WHERE c.id = ? AND st.id = ? AND c.org_id = ?`,
		Args: []any{
			enrollment.EnrolledAt,
			enrollment.ClassId,
			enrollment.StudentId,
			enrollment.OrgId,
		},
		FnSource:     "mysql.CreateEnrollment",
		RowsAffected: oneRowAffected,
	})
	return notFoundIfNoRows(err)
}

func (s *Store) ListEnrollments(ctx context.Context, orgId string, filter store.EnrollmentFilter) ([]models.Enrollment, error) {
	stmt := "SELECT org_id, class_id, student_id, enrolled_at FROM enrollments WHERE org_id = ?"
	args := []any{orgId}
	if filter.ClassId != nil {
		stmt += " AND class_id = ?"
		args = append(args, *filter.ClassId)
	}
	if filter.StudentId != nil {
		stmt += " AND student_id = ?"
		args = append(args, *filter.StudentId)
	}
	stmt += " ORDER BY enrolled_at ASC"
	output := []models.Enrollment{}
	err := executeMysqlSelects(ctx, mysqlQueryInput{
		Db:       s.Db,
		Stmt:     stmt,
		Args:     args,
		FnSource: "mysql.ListEnrollments",
		ProcessRows: func(r *sql.Rows) error {
			var enrollment models.Enrollment
			if err := r.Scan(
				&enrollment.OrgId,
				&enrollment.ClassId,
				&enrollment.StudentId,
				&enrollment.EnrolledAt,
			); err != nil {
				return err
			}
			output = append(output, enrollment)
			return nil
		},
	})
	return output, err
}

func (s *Store) UpsertAttendance(ctx context.Context, records []models.AttendanceRecord) error {
	return s.withTx(ctx, "mysql.UpsertAttendance", func(tx *sql.Tx) error {
		for _, record := range records {
			if err := s.classInOrg(ctx, tx, record.OrgId, record.ClassId); err != nil {
				return err
			}
			if err := executeMysqlInsert(ctx, mysqlQueryInput{
				Db: tx,
				Stmt: `INSERT INTO attendance_records (
					id,
					org_id,
					class_id,
					student_id,
					date,
					status,
					notes,
					recorded_by,
					recorded_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON DUPLICATE KEY UPDATE
					status = VALUES(status),
					notes = VALUES(notes),
					recorded_by = VALUES(recorded_by),
					recorded_at = VALUES(recorded_at)`,
				Args: []any{
					uuid.NewString(),
					record.OrgId,
					record.ClassId,
					record.StudentId,
					record.Date,
					record.Status,
					record.Notes,
					record.RecordedBy,
					stamp(record.RecordedAt),
				},
				FnSource: "mysql.UpsertAttendance",
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) classInOrg(ctx context.Context, db preparer, orgId, classId string) error {
	var id string
	return executeMysqlSelect(ctx, mysqlQueryInput{
		Db:       db,
		Stmt:     "SELECT id FROM classes WHERE id = ? AND org_id = ?",
		Args:     []any{classId, orgId},
		FnSource: "mysql.classInOrg",
		ProcessRow: func(r *sql.Row) error {
			return r.Scan(&id)
		},
	})
}

func (s *Store) ListAttendance(ctx context.Context, orgId, classId, date string) ([]models.AttendanceRecord, error) {
	output := []models.AttendanceRecord{}
	err := executeMysqlSelects(ctx, mysqlQueryInput{
		Db: s.Db,
		Stmt: `SELECT
			id,
			org_id,
			class_id,
			student_id,
			date,
			status,
			notes,
			recorded_by,
			recorded_at
			FROM attendance_records
			WHERE org_id = ? AND class_id = ? AND date = ?
			ORDER BY student_id ASC`,
		Args:     []any{orgId, classId, date},
		FnSource: "mysql.ListAttendance",
		ProcessRows: func(r *sql.Rows) error {
			var record models.AttendanceRecord
			if err := r.Scan(
				&record.Id,
				&record.OrgId,
				&record.ClassId,
				&record.StudentId,
				&record.Date,
				&record.Status,
				&record.Notes,
				&record.RecordedBy,
				&record.RecordedAt,
			); err != nil {
				return err
			}
			output = append(output, record)
			return nil
		},
	})
	return output, err
}
