package roster

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"madrasah/internal/audit"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/store"
	"madrasah/internal/store/memory"

	"github.com/stretchr/testify/require"
)

func TestTemplateRoundTrips(t *testing.T) {
	rows, lines, err := Parse(bytes.NewReader(Template()))
	require.NoError(t, err)
	require.Equal(t, []int{2}, lines)
	require.Equal(t, Row{FirstName: "Aisha", LastName: "Khan", DateOfBirth: "2015-09-01", Class: "Quran 1"}, rows[2])
}

func TestParse_Errors(t *testing.T) {
	_, _, err := Parse(strings.NewReader(""))
	require.ErrorIs(t, err, ErrMissingHeader)

	_, _, err = Parse(strings.NewReader("first_name,class\nAisha,Quran 1\n"))
	require.ErrorIs(t, err, ErrMissingColumn)

	var builder strings.Builder
	builder.WriteString("first_name,last_name\n")
	for i := 0; i <= MaxRows; i++ {
		builder.WriteString("A,B\n")
	}
	_, _, err = Parse(strings.NewReader(builder.String()))
	require.ErrorIs(t, err, ErrTooManyRows)
}

func TestImporter_Import(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	orgId := "org-1"
	class := &models.Class{OrgId: orgId, Name: "Quran 1", MonthlyFeeP: 3000}
	require.NoError(t, st.CreateClass(ctx, class))

	upload := strings.Join([]string{
		"\ufeffLast_Name, First_Name ,class,date_of_birth",
		"Khan,Aisha,quran 1,2015-09-01",
		"Ali,Yusuf,,",
		",Maryam,,",
		"Begum,Zainab,Hifz,",
		"Patel,Ibrahim,,01/02/2016",
		",,,",
	}, "\n")

	importer := &Importer{Store: st, Audit: &audit.StoreLogger{Store: st}, ServiceLogs: common.GetNoopServiceLog()}
	result, err := importer.Import(ctx, "admin-1", orgId, strings.NewReader(upload))
	require.NoError(t, err)
	require.Equal(t, 2, result.Created)
	require.Equal(t, 3, result.Failed)
	require.Equal(t, []int{4, 5, 6}, []int{result.Errors[0].Line, result.Errors[1].Line, result.Errors[2].Line})
	require.Contains(t, result.Errors[0].Message, "last_name")
	require.Contains(t, result.Errors[1].Message, ErrUnknownClass.Error())
	require.Contains(t, result.Errors[2].Message, "date_of_birth")

	students, err := st.ListStudents(ctx, orgId, store.StudentFilter{})
	require.NoError(t, err)
	require.Len(t, students, 2)
	for _, student := range students {
		require.Equal(t, models.ClaimStatusNotClaimed, student.ClaimStatus)
	}

	enrollments, err := st.ListEnrollments(ctx, orgId, store.EnrollmentFilter{ClassId: &class.Id})
	require.NoError(t, err)
	require.Len(t, enrollments, 1)

	entries, err := st.ListAuditLogs(ctx, store.AuditFilter{OrgId: &orgId})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, audit.ActionStudentsImported, entries[0].Action)
}
