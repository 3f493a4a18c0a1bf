// Package roster imports students in bulk from a CSV upload
package roster

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"madrasah/internal/audit"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/store"
	"madrasah/internal/validate"
)

const (
	ContentType      = "text/csv; charset=utf-8"
	TemplateFileName = "students_template.csv"

	MaxRows = 1000
)

const (
	ColumnFirstName   = "first_name"
	ColumnLastName    = "last_name"
	ColumnDateOfBirth = "date_of_birth"
	ColumnClass       = "class"
)

var Columns = []string{ColumnFirstName, ColumnLastName, ColumnDateOfBirth, ColumnClass}

var (
	ErrMissingHeader = errors.New("missing_header")
	ErrMissingColumn = errors.New("missing_column")
	ErrTooManyRows   = errors.New("too_many_rows")
	ErrUnknownClass  = errors.New("unknown_class")
)

type Store interface {
	store.StudentStore
	store.ClassStore
}

// Row is one parsed line of the upload
type Row struct {
	FirstName   string `json:"first_name" validate:"required,max=100"`
	LastName    string `json:"last_name" validate:"required,max=100"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,isodate"`
	Class       string `json:"class" validate:"max=100"`
}

// RowError describes why a line was not imported; Line counts the
// header as line 1
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

type Result struct {
	Created  int              `json:"created"`
	Failed   int              `json:"failed"`
	Students []models.Student `json:"students"`
	Errors   []RowError       `json:"errors"`
}

type Importer struct {
	Store       Store
	Audit       audit.Logger
	ServiceLogs chan<- common.ServiceLog
}

// Template returns the header and one example line
func Template() []byte {
	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)
	writer.Write(Columns)
	writer.Write([]string{"Aisha", "Khan", "2015-09-01", "Quran 1"})
	writer.Flush()
	return buffer.Bytes()
}

// Parse reads the upload into rows keyed by line number. Column order
// is free; headers are matched case-insensitively.
func Parse(r io.Reader) (map[int]Row, []int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrMissingHeader
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	index := map[string]int{}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		index[name] = i
	}
	for _, required := range []string{ColumnFirstName, ColumnLastName} {
		if _, ok := index[required]; !ok {
			return nil, nil, fmt.Errorf("column[%s]: %w", required, ErrMissingColumn)
		}
	}
	get := func(record []string, column string) string {
		i, ok := index[column]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	rows := map[int]Row{}
	lines := []int{}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}
		if isBlank(record) {
			continue
		}
		if len(lines) >= MaxRows {
			return nil, nil, fmt.Errorf("more than %d rows: %w", MaxRows, ErrTooManyRows)
		}
		rows[line] = Row{
			FirstName:   get(record, ColumnFirstName),
			LastName:    get(record, ColumnLastName),
			DateOfBirth: get(record, ColumnDateOfBirth),
			Class:       get(record, ColumnClass),
		}
		lines = append(lines, line)
	}
	return rows, lines, nil
}

// Import creates a student for every valid line and enrolls it in the
// named class when one is given. Invalid lines are reported and skipped.
func (i *Importer) Import(ctx context.Context, actorId, orgId string, r io.Reader) (*Result, error) {
	rows, lines, err := Parse(r)
	if err != nil {
		return nil, err
	}
	classes, err := i.Store.ListClasses(ctx, orgId)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes of org[%s]: %w", orgId, err)
	}
	classByName := make(map[string]models.Class, len(classes))
	for _, class := range classes {
		if !class.IsArchived {
			classByName[strings.ToLower(class.Name)] = class
		}
	}

	result := &Result{Students: []models.Student{}, Errors: []RowError{}}
	fail := func(line int, err error) {
		result.Failed++
		result.Errors = append(result.Errors, RowError{Line: line, Message: err.Error()})
	}
	for _, line := range lines {
		row := rows[line]
		if err := validate.Struct(row); err != nil {
			fail(line, err)
			continue
		}
		var class *models.Class
		if row.Class != "" {
			match, ok := classByName[strings.ToLower(row.Class)]
			if !ok {
				fail(line, fmt.Errorf("class[%s]: %w", row.Class, ErrUnknownClass))
				continue
			}
			class = &match
		}
		student := &models.Student{
			OrgId:       orgId,
			FirstName:   row.FirstName,
			LastName:    row.LastName,
			ClaimStatus: models.ClaimStatusNotClaimed,
		}
		if row.DateOfBirth != "" {
			dateOfBirth, err := time.Parse(time.DateOnly, row.DateOfBirth)
			if err != nil {
				fail(line, fmt.Errorf("%w: field[date_of_birth] failed on 'isodate'", validate.ErrorInvalidField))
				continue
			}
			student.DateOfBirth = &dateOfBirth
		}
		if err := i.Store.CreateStudent(ctx, student); err != nil {
			return result, fmt.Errorf("failed to create student on line %d: %w", line, err)
		}
		if class != nil {
			if err := i.Store.CreateEnrollment(ctx, &models.Enrollment{OrgId: orgId, StudentId: student.Id, ClassId: class.Id}); err != nil && !errors.Is(err, store.ErrDuplicate) {
				return result, fmt.Errorf("failed to enroll student[%s] in class[%s]: %w", student.Id, class.Id, err)
			}
		}
		result.Created++
		result.Students = append(result.Students, *student)
	}

	if result.Created > 0 && i.Audit != nil {
		if err := i.Audit.Log(ctx, audit.NewEntry(&orgId, &actorId, audit.ActionStudentsImported, audit.TargetOrg, orgId, map[string]any{
			"created": result.Created,
			"failed":  result.Failed,
		})); err != nil {
			i.log(common.LogLevelWarn, "failed to write audit entry[%s] for org[%s]: %s", audit.ActionStudentsImported, orgId, err)
		}
	}
	i.log(common.LogLevelInfo, "imported %d students into org[%s], %d lines failed", result.Created, orgId, result.Failed)
	return result, nil
}

func isBlank(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}

func (i *Importer) log(level, format string, args ...any) {
	if i.ServiceLogs != nil {
		i.ServiceLogs <- common.ServiceLogf(level, format, args...)
	}
}
