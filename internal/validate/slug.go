package validate

const (
	OrgSlugMinLength = 3
	OrgSlugMaxLength = 48
)

// OrgSlug checks the url-safe identifier of an organisation
func OrgSlug(slug string) error {
	return do(
		slug,
		andS(
			hasMinLength(OrgSlugMinLength),
			hasMaxLength(OrgSlugMaxLength),
			isBoundedByAlnum(),
		),
		orR(
			isLowercaseAlnum(),
			isCharacterInAllowlist('-'),
		),
		hasNoConsecutive('-'),
	)
}
