package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"madrasah/internal/models"
	"madrasah/internal/store"
)

const defaultAuditLimit = 50

func (s *Store) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	entry.Id = newId(entry.Id)
	entry.CreatedAt = stamp(entry.CreatedAt)
	var data []byte
	if entry.Data != nil {
		var err error
		if data, err = json.Marshal(entry.Data); err != nil {
			return fmt.Errorf("mysql.CreateAuditLog: failed to marshal data: %w", err)
		}
	}
	return executeMysqlInsert(ctx, mysqlQueryInput{
		Db: s.Db,
		Stmt: `INSERT INTO audit_logs (
			id,
			org_id,
			actor_id,
			action,
			target_type,
			target_id,
			src_ip,
			data,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		Args: []any{
			entry.Id,
			entry.OrgId,
			entry.ActorId,
			entry.Action,
			entry.TargetType,
			entry.TargetId,
			entry.SrcIp,
			data,
			entry.CreatedAt,
		},
		FnSource:     "mysql.CreateAuditLog",
		RowsAffected: oneRowAffected,
	})
}

func (s *Store) ListAuditLogs(ctx context.Context, filter store.AuditFilter) ([]models.AuditLog, error) {
	stmt := `SELECT
		id,
		org_id,
		actor_id,
		action,
		target_type,
		target_id,
		src_ip,
		data,
		created_at
		FROM audit_logs
		WHERE 1 = 1`
	args := []any{}
	if filter.OrgId != nil {
		stmt += " AND org_id = ?"
		args = append(args, *filter.OrgId)
	}
	if filter.Before != nil {
		stmt += " AND created_at < ?"
		args = append(args, *filter.Before)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	stmt += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)
	output := []models.AuditLog{}
	err := executeMysqlSelects(ctx, mysqlQueryInput{
		Db:       s.Db,
		Stmt:     stmt,
		Args:     args,
		FnSource: "mysql.ListAuditLogs",
		ProcessRows: func(r *sql.Rows) error {
			var entry models.AuditLog
			var data []byte
			if err := r.Scan(
				&entry.Id,
				&entry.OrgId,
				&entry.ActorId,
				&entry.Action,
				&entry.TargetType,
				&entry.TargetId,
				&entry.SrcIp,
				&data,
				&entry.CreatedAt,
			); err != nil {
				return err
			}
			if len(data) > 0 {
				if err := json.Unmarshal(data, &entry.Data); err != nil {
					return fmt.Errorf("failed to parse data of audit log[%s]: %w", entry.Id, err)
				}
			}
			output = append(output, entry)
			return nil
		},
	})
	return output, err
}
