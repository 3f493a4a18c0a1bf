package validate

import (
	"errors"
	"unicode"
)

var (
	ErrorConsecutiveReservedCharacters = errors.New("consecutive_reserved_characters")
	ErrorInvalidField                  = errors.New("invalid_field")
	ErrorNoDigit                       = errors.New("no_digit")
	ErrorNoLowercase                   = errors.New("no_lowercase")
	ErrorNoUppercase                   = errors.New("no_uppercase")
	ErrorNotInAllowlistedCharacters    = errors.New("not_in_allowlisted_characters")
	ErrorNotLowercaseAlnum             = errors.New("not_lowercase_alphanumeric")
	ErrorPostfixedWithNonAlnum         = errors.New("cannot_end_with_non_alphanumeric")
	ErrorPrefixedWithNonAlnum          = errors.New("cannot_start_with_non_alphanumeric")
	ErrorStringTooShort                = errors.New("string_too_short")
	ErrorStringTooLong                 = errors.New("string_too_long")

	ErrorInvalidUuid = errors.New("invalid_uuid")
)

func hasDigit() StringRule {
	return func(s string) error {
		for _, r := range s {
			if unicode.IsDigit(r) {
				return nil
			}
		}
		return ErrorNoDigit
	}
}

func hasMaxLength(l int) StringRule {
	return func(s string) error {
		if len([]rune(s)) > l {
			return ErrorStringTooLong
		}
		return nil
	}
}

func hasMinLength(l int) StringRule {
	return func(s string) error {
		if len([]rune(s)) < l {
			return ErrorStringTooShort
		}
		return nil
	}
}

func hasLowercase() StringRule {
	return func(s string) error {
		for _, r := range s {
			if unicode.IsLower(r) {
				return nil
			}
		}
		return ErrorNoLowercase
	}
}

func hasUppercase() StringRule {
	return func(s string) error {
		for _, r := range s {
			if unicode.IsUpper(r) {
				return nil
			}
		}
		return ErrorNoUppercase
	}
}

func hasNoConsecutive(symbol rune) RuneRule {
	return func(curr rune, prev rune) error {
		if curr == symbol && prev == symbol {
			return ErrorConsecutiveReservedCharacters
		}
		return nil
	}
}

func isCharacterInAllowlist(runes ...rune) RuneRule {
	runeMap := map[rune]struct{}{}
	for _, runeInstance := range runes {
		runeMap[runeInstance] = struct{}{}
	}
	return func(curr rune, prev rune) error {
		if _, ok := runeMap[curr]; ok {
			return nil
		}
		return ErrorNotInAllowlistedCharacters
	}
}

func isLowercaseAlnum() RuneRule {
	return func(curr rune, prev rune) error {
		if (curr >= 'a' && curr <= 'z') || (curr >= '0' && curr <= '9') {
			return nil
		}
		return ErrorNotLowercaseAlnum
	}
}

func isBoundedByAlnum() StringRule {
	return func(input string) error {
		if input == "" {
			return nil
		}
		runes := []rune(input)
		alnum := func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }
		if !alnum(runes[0]) {
			return ErrorPrefixedWithNonAlnum
		}
		if !alnum(runes[len(runes)-1]) {
			return ErrorPostfixedWithNonAlnum
		}
		return nil
	}
}
