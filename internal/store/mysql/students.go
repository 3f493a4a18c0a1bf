package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"madrasah/internal/models"
	"madrasah/internal/store"
)

const studentColumns = `
		id,
		org_id,
		first_name,
		last_name,
		date_of_birth,
		primary_parent_id,
		claim_code,
		claim_code_expires_at,
		claim_status,
		pending_parent_id,
		claimed_at,
		is_archived,
		created_at`

func scanStudent(row rowScanner) (*models.Student, error) {
	var student models.Student
	if err := row.Scan(
		&student.Id,
		&student.OrgId,
		&student.FirstName,
		&student.LastName,
		&student.DateOfBirth,
		&student.PrimaryParentId,
		&student.ClaimCode,
		&student.ClaimCodeExpiresAt,
		&student.ClaimStatus,
		&student.PendingParentId,
		&student.ClaimedAt,
		&student.IsArchived,
		&student.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &student, nil
}

func (s *Store) CreateStudent(ctx context.Context, student *models.Student) error {
	student.Id = newId(student.Id)
	student.CreatedAt = stamp(student.CreatedAt)
	if student.ClaimStatus == "" {
		student.ClaimStatus = models.ClaimStatusNotClaimed
	}
	return executeMysqlInsert(ctx, mysqlQueryInput{
		Db: s.Db,
		Stmt: `INSERT INTO students (
			id,
			org_id,
			first_name,
			last_name,
			date_of_birth,
			primary_parent_id,
			claim_code,
			claim_code_expires_at,
			claim_status,
			is_archived,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		Args: []any{
			student.Id,
			student.OrgId,
			student.FirstName,
			student.LastName,
			student.DateOfBirth,
			student.PrimaryParentId,
			student.ClaimCode,
			student.ClaimCodeExpiresAt,
			student.ClaimStatus,
			student.IsArchived,
			student.CreatedAt,
		},
		FnSource:     "mysql.CreateStudent",
		RowsAffected: oneRowAffected,
	})
}

func (s *Store) GetStudent(ctx context.Context, orgId, studentId string) (*models.Student, error) {
	var output *models.Student
	err := executeMysqlSelect(ctx, mysqlQueryInput{
		Db:       s.Db,
		Stmt:     fmt.Sprintf("SELECT %s FROM students WHERE id = ? AND org_id = ?", studentColumns),
		Args:     []any{studentId, orgId},
		FnSource: "mysql.GetStudent",
		ProcessRow: func(r *sql.Row) (err error) {
			output, err = scanStudent(r)
			return err
		},
	})
	return output, err
}

func (s *Store) GetStudentByClaimCode(ctx context.Context, code string) (*models.Student, error) {
	var output *models.Student
	err := executeMysqlSelect(ctx, mysqlQueryInput{
		Db:       s.Db,
		Stmt:     fmt.Sprintf("SELECT %s FROM students WHERE claim_code = ?", studentColumns),
		Args:     []any{code},
		FnSource: "mysql.GetStudentByClaimCode",
		ProcessRow: func(r *sql.Row) (err error) {
			output, err = scanStudent(r)
			return err
		},
	})
	return output, err
}

func (s *Store) ListStudents(ctx context.Context, orgId string, filter store.StudentFilter) ([]models.Student, error) {
	stmt := fmt.Sprintf("SELECT %s FROM students WHERE org_id = ?", studentColumns)
	args := []any{orgId}
	if !filter.IncludeArchived {
		stmt += " AND is_archived = false"
	}
	if filter.ParentId != nil {
		stmt += " AND primary_parent_id = ?"
		args = append(args, *filter.ParentId)
	}
	stmt += " ORDER BY last_name ASC, first_name ASC"
	output := []models.Student{}
	err := executeMysqlSelects(ctx, mysqlQueryInput{
		Db:       s.Db,
		Stmt:     stmt,
		Args:     args,
		FnSource: "mysql.ListStudents",
		ProcessRows: func(r *sql.Rows) error {
			student, err := scanStudent(r)
			if err != nil {
				return err
			}
			output = append(output, *student)
			return nil
		},
	})
	return output, err
}

func (s *Store) UpdateStudentClaim(ctx context.Context, student models.Student) error {
	err := executeMysqlUpdate(ctx, mysqlQueryInput{
		Db: s.Db,
		Stmt: `UPDATE students SET
			claim_code = ?,
			claim_code_expires_at = ?,
			claim_status = ?,
			pending_parent_id = ?,
			primary_parent_id = ?,
			claimed_at = ?
			WHERE id = ? AND org_id = ?`,
		Args: []any{
			student.ClaimCode,
			student.ClaimCodeExpiresAt,
			student.ClaimStatus,
			student.PendingParentId,
			student.PrimaryParentId,
			student.ClaimedAt,
			student.Id,
			student.OrgId,
		},
		FnSource:     "mysql.UpdateStudentClaim",
		RowsAffected: oneRowAffected,
	})
	return notFoundIfNoRows(err)
}

func (s *Store) CountActiveStudents(ctx context.Context, orgId string) (int, error) {
	count := 0
	err := executeMysqlSelect(ctx, mysqlQueryInput{
		Db:       s.Db,
		Stmt:     "SELECT COUNT(*) FROM students WHERE org_id = ? AND is_archived = false",
		Args:     []any{orgId},
		FnSource: "mysql.CountActiveStudents",
		ProcessRow: func(r *sql.Row) error {
			return r.Scan(&count)
		},
	})
	return count, err
}
