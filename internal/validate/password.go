package validate

const (
	minimumPasswordLength = 10
	maximumPasswordLength = 128
)

func Password(password string) error {
	return do(
		password,
		andS(
			hasMinLength(minimumPasswordLength),
			hasMaxLength(maximumPasswordLength),
			hasUppercase(),
			hasLowercase(),
			hasDigit(),
		),
	)
}
