package validate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrgSlug(t *testing.T) {
	cases := []struct {
		slug string
		err  error
	}{
		{"al-noor", nil},
		{"masjid-2", nil},
		{"ab", ErrorStringTooShort},
		{"-al-noor", ErrorPrefixedWithNonAlnum},
		{"al-noor-", ErrorPostfixedWithNonAlnum},
		{"al--noor", ErrorConsecutiveReservedCharacters},
		{"Al-Noor", ErrorNotLowercaseAlnum},
		{"al_noor", ErrorNotLowercaseAlnum},
	}
	for _, tc := range cases {
		t.Run(tc.slug, func(t *testing.T) {
			err := OrgSlug(tc.slug)
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestOrgName(t *testing.T) {
	require.NoError(t, OrgName("Al-Noor Madrasah (Leeds)"))
	require.NoError(t, OrgName("Madrasah Dar al-'Ilm"))
	require.ErrorIs(t, OrgName("Al"), ErrorStringTooShort)
	require.ErrorIs(t, OrgName("Al Noor <script>"), ErrorInvalidCharacter)
}

func TestPassword(t *testing.T) {
	require.NoError(t, Password("Bismillah2025"))
	err := Password("short")
	require.ErrorIs(t, err, ErrorStringTooShort)
	require.ErrorIs(t, err, ErrorNoUppercase)
	require.ErrorIs(t, err, ErrorNoDigit)
}

func TestStruct(t *testing.T) {
	type input struct {
		Email    string `json:"email" validate:"required,email"`
		Slug     string `json:"slug" validate:"required,slug"`
		Month    string `json:"month" validate:"omitempty,month"`
		Date     string `json:"date" validate:"omitempty,isodate"`
		Password string `json:"password" validate:"required,password"`
	}

	require.NoError(t, Struct(input{
		Email:    "admin@alnoor.org.uk",
		Slug:     "al-noor",
		Month:    "2025-02",
		Date:     "2025-02-28",
		Password: "Bismillah2025",
	}))

	err := Struct(input{Email: "nope", Slug: "Al Noor", Month: "2025-13", Date: "2025-2-1", Password: "x"})
	require.ErrorIs(t, err, ErrorInvalidField)
	for _, field := range []string{"field[email]", "field[slug]", "field[month]", "field[date]", "field[password]"} {
		require.Contains(t, err.Error(), field)
	}
}

func TestUuid(t *testing.T) {
	require.NoError(t, Uuid("5f0c3c6e-7d7e-4f0e-9a44-0d3b1b9b7f10"))
	require.ErrorIs(t, Uuid("student-1"), ErrorInvalidUuid)
}
