package validate

import (
	"errors"
	"fmt"
	"unicode"
)

var (
	ErrorInvalidCharacter = errors.New("invalid_character")

	allowedSymbolsInOrgName = map[rune]bool{
		'.':  true,
		',':  true,
		'-':  true,
		' ':  true,
		'&':  true,
		'\'': true,
		'(':  true,
		')':  true,
	}
)

const (
	OrgNameMinLength = 3
	OrgNameMaxLength = 255
)

func OrgName(orgName string) error {
	errs := []error{}
	if err := andS(hasMinLength(OrgNameMinLength), hasMaxLength(OrgNameMaxLength), isBoundedByAlnum())(orgName); err != nil {
		errs = append(errs, err)
	}
	invalidCharacters := map[rune]struct{}{}
	for _, r := range orgName {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || allowedSymbolsInOrgName[r] {
			continue
		}
		if _, ok := invalidCharacters[r]; ok {
			continue
		}
		invalidCharacters[r] = struct{}{}
		errs = append(errs, fmt.Errorf("%w: character[%q] is not allowed", ErrorInvalidCharacter, r))
	}
	return errors.Join(errs...)
}
