package claims

import (
	"bytes"
	"context"
	"testing"
	"time"

	"madrasah/internal/audit"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/notify"
	"madrasah/internal/store"
	"madrasah/internal/store/memory"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	st       *memory.Store
	recorder *notify.Recorder
	service  *Service
	org      *models.Org
	student  *models.Student
	class    *models.Class
	parent   *models.User
	now      time.Time
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	org := &models.Org{Name: "Al Noor", Slug: "al-noor"}
	require.NoError(t, st.CreateOrg(ctx, org))
	student := &models.Student{OrgId: org.Id, FirstName: "Aisha", LastName: "Khan"}
	require.NoError(t, st.CreateStudent(ctx, student))
	class := &models.Class{OrgId: org.Id, Name: "Quran 1", MonthlyFeeP: 3000}
	require.NoError(t, st.CreateClass(ctx, class))
	require.NoError(t, st.CreateEnrollment(ctx, &models.Enrollment{OrgId: org.Id, ClassId: class.Id, StudentId: student.Id}))
	parent := &models.User{Email: "parent@example.com", Name: "Parent"}
	require.NoError(t, st.CreateUser(ctx, parent))

	recorder := &notify.Recorder{}
	return fixture{
		st:       st,
		recorder: recorder,
		org:      org,
		student:  student,
		class:    class,
		parent:   parent,
		now:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		service: &Service{
			Store:       st,
			Audit:       &audit.StoreLogger{Store: st},
			Notifier:    recorder,
			ServiceLogs: common.GetNoopServiceLog(),
		},
	}
}

func (f fixture) generate(t *testing.T) string {
	t.Helper()
	student, err := f.service.Generate(context.Background(), "admin-1", f.org.Id, f.student.Id, f.now)
	require.NoError(t, err)
	require.NotNil(t, student.ClaimCode)
	return *student.ClaimCode
}

func TestGenerate(t *testing.T) {
	f := newFixture(t)
	code := f.generate(t)
	require.Len(t, code, CodeLength)
	for _, r := range code {
		require.Contains(t, CodeAlphabet, string(r))
	}
	stored, err := f.st.GetStudent(context.Background(), f.org.Id, f.student.Id)
	require.NoError(t, err)
	require.Equal(t, f.now.Add(DefaultTtl), *stored.ClaimCodeExpiresAt)

	second := f.generate(t)
	_, err = f.service.Validate(context.Background(), f.org.Id, code, f.now)
	if code != second {
		require.ErrorIs(t, err, ErrInvalidCode)
	}
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid code returns student and classes without mutating", func(t *testing.T) {
		f := newFixture(t)
		code := f.generate(t)
		result, err := f.service.Validate(ctx, f.org.Id, code, f.now.Add(time.Hour))
		require.NoError(t, err)
		require.Equal(t, f.student.Id, result.Student.Id)
		require.Len(t, result.Classes, 1)
		require.Equal(t, f.class.Id, result.Classes[0].Id)

		stored, err := f.st.GetStudent(ctx, f.org.Id, f.student.Id)
		require.NoError(t, err)
		require.Equal(t, models.ClaimStatusNotClaimed, stored.ClaimStatus)
	})

	t.Run("code is case and separator insensitive", func(t *testing.T) {
		f := newFixture(t)
		code := f.generate(t)
		formatted := " " + code[:4] + "-" + code[4:] + " "
		_, err := f.service.Validate(ctx, f.org.Id, formatted, f.now)
		require.NoError(t, err)
	})

	t.Run("expired code is rejected and state is untouched", func(t *testing.T) {
		f := newFixture(t)
		code := f.generate(t)
		_, err := f.service.Validate(ctx, f.org.Id, code, f.now.Add(DefaultTtl))
		require.ErrorIs(t, err, ErrCodeExpired)
		stored, err := f.st.GetStudent(ctx, f.org.Id, f.student.Id)
		require.NoError(t, err)
		require.Equal(t, models.ClaimStatusNotClaimed, stored.ClaimStatus)
		require.Equal(t, code, *stored.ClaimCode)
	})

	t.Run("code of another org is invalid", func(t *testing.T) {
		f := newFixture(t)
		code := f.generate(t)
		_, err := f.service.Validate(ctx, "other-org", code, f.now)
		require.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("unknown code is invalid", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Validate(ctx, f.org.Id, "ABCDEFGH", f.now)
		require.ErrorIs(t, err, ErrInvalidCode)
	})
}

func TestClaimFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("approve links the parent and adds membership", func(t *testing.T) {
		f := newFixture(t)
		code := f.generate(t)

		student, err := f.service.Claim(ctx, f.org.Id, code, f.parent.Id, f.now)
		require.NoError(t, err)
		require.Equal(t, models.ClaimStatusPendingVerification, student.ClaimStatus)

		_, err = f.service.Validate(ctx, f.org.Id, code, f.now)
		require.ErrorIs(t, err, ErrClaimPending)
		_, err = f.service.Generate(ctx, "admin-1", f.org.Id, f.student.Id, f.now)
		require.ErrorIs(t, err, ErrClaimPending)

		student, err = f.service.Approve(ctx, "admin-1", f.org.Id, f.student.Id, f.now)
		require.NoError(t, err)
		require.Equal(t, models.ClaimStatusClaimed, student.ClaimStatus)
		require.Equal(t, f.parent.Id, *student.PrimaryParentId)
		require.Nil(t, student.PendingParentId)

		membership, err := f.st.GetMembership(ctx, f.parent.Id, f.org.Id)
		require.NoError(t, err)
		require.Equal(t, models.RoleParent, membership.Role)

		_, err = f.service.Validate(ctx, f.org.Id, code, f.now)
		require.ErrorIs(t, err, ErrAlreadyClaimed)
		_, err = f.service.Generate(ctx, "admin-1", f.org.Id, f.student.Id, f.now)
		require.ErrorIs(t, err, ErrAlreadyClaimed)

		emails := f.recorder.Emails()
		require.Len(t, emails, 1)
		require.Equal(t, f.parent.Email, emails[0].To[0].Address)
		require.Contains(t, emails[0].Subject, "approved")

		entries, err := f.st.ListAuditLogs(ctx, store.AuditFilter{OrgId: &f.org.Id})
		require.NoError(t, err)
		require.Equal(t, audit.ActionClaimApproved, entries[0].Action)
	})

	t.Run("reject returns the student to not claimed", func(t *testing.T) {
		f := newFixture(t)
		code := f.generate(t)
		_, err := f.service.Claim(ctx, f.org.Id, code, f.parent.Id, f.now)
		require.NoError(t, err)

		student, err := f.service.Reject(ctx, "admin-1", f.org.Id, f.student.Id)
		require.NoError(t, err)
		require.Equal(t, models.ClaimStatusNotClaimed, student.ClaimStatus)
		require.Nil(t, student.PendingParentId)
		require.Nil(t, student.PrimaryParentId)

		_, err = f.service.Validate(ctx, f.org.Id, code, f.now)
		require.NoError(t, err)
		require.Contains(t, f.recorder.Emails()[0].Subject, "not approved")
	})

	t.Run("approve without a pending claim", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Approve(ctx, "admin-1", f.org.Id, f.student.Id, f.now)
		require.ErrorIs(t, err, ErrNoPendingClaim)
	})
}

func TestQRCode(t *testing.T) {
	url := ClaimUrl("https://app.example.com", "al-noor", "ABCD2345")
	require.Equal(t, "https://app.example.com/claim?code=ABCD2345&org=al-noor", url)
	png, err := QRCode(url, 0)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
