package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"madrasah/internal/models"
)

const userColumns = `
		id,
		email,
		name,
		password_hash,
		is_super_admin,
		phone,
		gift_aid_declared,
		address_line,
		postcode,
		created_at`

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.Id,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.IsSuperAdmin,
		&user.Phone,
		&user.GiftAidDeclared,
		&user.AddressLine,
		&user.Postcode,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	user.Id = newId(user.Id)
	user.CreatedAt = stamp(user.CreatedAt)
	user.Email = strings.ToLower(user.Email)
	return executeMysqlInsert(ctx, mysqlQueryInput{
		Db: s.Db,
		Stmt: `INSERT INTO users (
			id,
			email,
			name,
			password_hash,
			is_super_admin,
			phone,
			gift_aid_declared,
			address_line,
			postcode,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		Args: []any{
			user.Id,
			user.Email,
			user.Name,
			user.PasswordHash,
			user.IsSuperAdmin,
			user.Phone,
			user.GiftAidDeclared,
			user.AddressLine,
			user.Postcode,
			user.CreatedAt,
		},
		FnSource:     "mysql.CreateUser",
		RowsAffected: oneRowAffected,
	})
}

func (s *Store) getUserBy(ctx context.Context, field, value, fnSource string) (*models.User, error) {
	var output *models.User
	err := executeMysqlSelect(ctx, mysqlQueryInput{
		Db:       s.Db,
		Stmt:     fmt.Sprintf("SELECT %s FROM users WHERE %s = ?", userColumns, field),
		Args:     []any{value},
		FnSource: fnSource,
		ProcessRow: func(r *sql.Row) (err error) {
			output, err = scanUser(r)
			return err
		},
	})
	return output, err
}

func (s *Store) GetUser(ctx context.Context, userId string) (*models.User, error) {
	return s.getUserBy(ctx, "id", userId, "mysql.GetUser")
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUserBy(ctx, "email", strings.ToLower(email), "mysql.GetUserByEmail")
}

func (s *Store) UpdateUserGiftAid(ctx context.Context, user models.User) error {
	err := executeMysqlUpdate(ctx, mysqlQueryInput{
		Db: s.Db,
		Stmt: `UPDATE users SET
			gift_aid_declared = ?,
			address_line = ?,
			postcode = ?
			WHERE id = ?`,
		Args:         []any{user.GiftAidDeclared, user.AddressLine, user.Postcode, user.Id},
		FnSource:     "mysql.UpdateUserGiftAid",
		RowsAffected: oneRowAffected,
	})
	return notFoundIfNoRows(err)
}

func (s *Store) ListUsers(ctx context.Context, userIds []string) ([]models.User, error) {
	output := []models.User{}
	if len(userIds) == 0 {
		return output, nil
	}
	err := executeMysqlSelects(ctx, mysqlQueryInput{
		Db:       s.Db,
		Stmt:     fmt.Sprintf("SELECT %s FROM users WHERE id IN (%s)", userColumns, inPlaceholders(len(userIds))),
		Args:     stringsToArgs(userIds),
		FnSource: "mysql.ListUsers",
		ProcessRows: func(r *sql.Rows) error {
			user, err := scanUser(r)
			if err != nil {
				return err
			}
			output = append(output, *user)
			return nil
		},
	})
	return output, err
}

func (s *Store) CreateMembership(ctx context.Context, membership *models.Membership) error {
	membership.JoinedAt = stamp(membership.JoinedAt)
	return executeMysqlInsert(ctx, mysqlQueryInput{
		Db: s.Db,
		Stmt: `INSERT INTO memberships (
			user_id,
			org_id,
			role,
			staff_subrole,
			joined_at
		) VALUES (?, ?, ?, ?, ?)`,
		Args: []any{
			membership.UserId,
			membership.OrgId,
			membership.Role,
			membership.StaffSubrole,
			membership.JoinedAt,
		},
		FnSource:     "mysql.CreateMembership",
		RowsAffected: oneRowAffected,
	})
}

func (s *Store) GetMembership(ctx context.Context, userId, orgId string) (*models.Membership, error) {
	var output models.Membership
	err := executeMysqlSelect(ctx, mysqlQueryInput{
		Db: s.Db,
		Stmt: `SELECT
			user_id,
			org_id,
			role,
			staff_subrole,
			joined_at
			FROM memberships
			WHERE user_id = ? AND org_id = ?`,
		Args:     []any{userId, orgId},
		FnSource: "mysql.GetMembership",
		ProcessRow: func(r *sql.Row) error {
			return r.Scan(
				&output.UserId,
				&output.OrgId,
				&output.Role,
				&output.StaffSubrole,
				&output.JoinedAt,
			)
		},
	})
	if err != nil {
		return nil, err
	}
	return &output, nil
}

func (s *Store) ListUserOrgs(ctx context.Context, userId string) ([]models.UserOrg, error) {
	output := []models.UserOrg{}
	err := executeMysqlSelects(ctx, mysqlQueryInput{
		Db: s.Db,
		Stmt: `SELECT
			m.user_id,
			m.org_id,
			m.role,
			m.staff_subrole,
			m.joined_at,
			o.name,
			o.slug,
			o.status
			FROM memberships m
				JOIN orgs o ON o.id = m.org_id
			WHERE m.user_id = ?
			ORDER BY m.joined_at ASC`,
		Args:     []any{userId},
		FnSource: "mysql.ListUserOrgs",
		ProcessRows: func(r *sql.Rows) error {
			var userOrg models.UserOrg
			if err := r.Scan(
				&userOrg.UserId,
				&userOrg.OrgId,
				&userOrg.Role,
				&userOrg.StaffSubrole,
				&userOrg.JoinedAt,
				&userOrg.OrgName,
				&userOrg.OrgSlug,
				&userOrg.OrgStatus,
			); err != nil {
				return err
			}
			output = append(output, userOrg)
			return nil
		},
	})
	return output, err
}

func (s *Store) ListOrgMembers(ctx context.Context, orgId string, role *models.Role) ([]models.OrgMember, error) {
	stmt := `SELECT
			m.user_id,
			m.org_id,
			m.role,
			m.staff_subrole,
			m.joined_at,
			u.email,
			u.name
			FROM memberships m
				JOIN users u ON u.id = m.user_id
			WHERE m.org_id = ?`
	args := []any{orgId}
	if role != nil {
		stmt += " AND m.role = ?"
		args = append(args, *role)
	}
	stmt += " ORDER BY m.joined_at ASC"
	output := []models.OrgMember{}
	err := executeMysqlSelects(ctx, mysqlQueryInput{
		Db:       s.Db,
		Stmt:     stmt,
		Args:     args,
		FnSource: "mysql.ListOrgMembers",
		ProcessRows: func(r *sql.Rows) error {
			var member models.OrgMember
			if err := r.Scan(
				&member.UserId,
				&member.OrgId,
				&member.Role,
				&member.StaffSubrole,
				&member.JoinedAt,
				&member.Email,
				&member.Name,
			); err != nil {
				return err
			}
			output = append(output, member)
			return nil
		},
	})
	return output, err
}
