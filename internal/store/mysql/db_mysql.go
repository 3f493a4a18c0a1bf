package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"

	"madrasah/internal/store"
)

var (
	ErrorDatabaseUndefined       = errors.New("database_undefined")
	ErrorInvalidInput            = errors.New("invalid_input")
	ErrorStmtPreparationFailed   = errors.New("stmt_preparation_failed")
	ErrorInsertFailed            = errors.New("insert_failed")
	ErrorSelectFailed            = errors.New("select_failed")
	ErrorUpdateFailed            = errors.New("update_failed")
	ErrorRowsAffectedCheckFailed = errors.New("rows_affected_check_failed")

	mysqlErrorDuplicateEntryCode uint16 = 1062
)

func oneRowAffected(observed int64) bool {
	return observed == 1
}

// preparer is satisfied by both *sql.DB and *sql.Tx
type preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

type mysqlQueryInput struct {
	Db           preparer
	Stmt         string
	Args         []any
	RowsAffected func(int64) bool
	FnSource     string
	ProcessRows  func(*sql.Rows) error
	ProcessRow   func(*sql.Row) error
}

func (o mysqlQueryInput) prepare(ctx context.Context, verb string) (*sql.Stmt, error) {
	if o.Db == nil {
		return nil, fmt.Errorf("%s: missing db input: %w", o.FnSource, ErrorDatabaseUndefined)
	}
	inputStmt := strings.TrimSpace(o.Stmt)
	inputOp := strings.SplitN(strings.ReplaceAll(inputStmt, "\n", " "), " ", 2)
	if !strings.EqualFold(inputOp[0], verb) {
		return nil, fmt.Errorf("%s: only '%s' statements are allowed: %w", o.FnSource, verb, ErrorInvalidInput)
	}
	stmt, err := o.Db.PrepareContext(ctx, inputStmt)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to prepare %s statement: %w (%w)", o.FnSource, verb, ErrorStmtPreparationFailed, err)
	}
	return stmt, nil
}

func (o mysqlQueryInput) checkRowsAffected(results sql.Result) error {
	if o.RowsAffected == nil {
		return nil
	}
	rowsAffected, err := results.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get n(rows) affected: %w (%w)", o.FnSource, ErrorRowsAffectedCheckFailed, err)
	}
	if !o.RowsAffected(rowsAffected) {
		return fmt.Errorf("%s: n(rows) affected was wrong (got %v): %w", o.FnSource, rowsAffected, ErrorRowsAffectedCheckFailed)
	}
	return nil
}

func executeMysqlInsert(ctx context.Context, opts mysqlQueryInput) error {
	stmt, err := opts.prepare(ctx, "insert")
	if err != nil {
		return err
	}
	defer stmt.Close()
	results, err := stmt.ExecContext(ctx, opts.Args...)
	if err != nil {
		if isMysqlDuplicateError(err) {
			return fmt.Errorf("%s: duplicate detected: %w: %w", opts.FnSource, store.ErrDuplicate, err)
		}
		return fmt.Errorf("%s: failed to execute insert statement: %w (%w)", opts.FnSource, ErrorInsertFailed, err)
	}
	return opts.checkRowsAffected(results)
}

func executeMysqlSelect(ctx context.Context, opts mysqlQueryInput) error {
	if opts.ProcessRow == nil {
		return fmt.Errorf("%s: ProcessRow is undefined: %w", opts.FnSource, ErrorInvalidInput)
	}
	stmt, err := opts.prepare(ctx, "select")
	if err != nil {
		return err
	}
	defer stmt.Close()
	row := stmt.QueryRowContext(ctx, opts.Args...)
	if row.Err() != nil {
		return fmt.Errorf("%s: failed to execute select statement: %w (%w)", opts.FnSource, ErrorSelectFailed, row.Err())
	}
	if err := opts.ProcessRow(row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: no rows: %w", opts.FnSource, store.ErrNotFound)
		}
		return fmt.Errorf("%s: failed to process result: %w", opts.FnSource, err)
	}
	return nil
}

func executeMysqlSelects(ctx context.Context, opts mysqlQueryInput) error {
	if opts.ProcessRows == nil {
		return fmt.Errorf("%s: ProcessRows is undefined: %w", opts.FnSource, ErrorInvalidInput)
	}
	stmt, err := opts.prepare(ctx, "select")
	if err != nil {
		return err
	}
	defer stmt.Close()
	rows, err := stmt.QueryContext(ctx, opts.Args...)
	if err != nil {
		return fmt.Errorf("%s: failed to execute select statement: %w (%w)", opts.FnSource, ErrorSelectFailed, err)
	}
	defer rows.Close()
	counter := 0
	for rows.Next() {
		if err := opts.ProcessRows(rows); err != nil {
			return fmt.Errorf("%s: failed to process row[%v]: %w", opts.FnSource, counter, err)
		}
		counter++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%s: failed to iterate rows: %w (%w)", opts.FnSource, ErrorSelectFailed, err)
	}
	return nil
}

func executeMysqlUpdate(ctx context.Context, opts mysqlQueryInput) error {
	stmt, err := opts.prepare(ctx, "update")
	if err != nil {
		return err
	}
	defer stmt.Close()
	results, err := stmt.ExecContext(ctx, opts.Args...)
	if err != nil {
		if isMysqlDuplicateError(err) {
			return fmt.Errorf("%s: duplicate detected: %w: %w", opts.FnSource, store.ErrDuplicate, err)
		}
		return fmt.Errorf("%s: failed to execute update statement: %w (%w)", opts.FnSource, ErrorUpdateFailed, err)
	}
	return opts.checkRowsAffected(results)
}

func isMysqlDuplicateError(err error) bool {
	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrorDuplicateEntryCode
	}
	return false
}

// inPlaceholders returns "?, ?, ?" for n values
func inPlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringsToArgs(values []string) []any {
	output := make([]any, 0, len(values))
	for _, value := range values {
		output = append(output, value)
	}
	return output
}

// notFoundIfNoRows converts a failed single-row check into
// store.ErrNotFound; the connection is opened with client found rows so
// unchanged rows still count as matched
func notFoundIfNoRows(err error) error {
	if errors.Is(err, ErrorRowsAffectedCheckFailed) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}
	return err
}
