package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

type StringRule func(string) error
type RuneRule func(rune, rune) error

var (
	structValidator     *validator.Validate
	structValidatorOnce sync.Once

	monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
	datePattern  = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)
)

func getStructValidator() *validator.Validate {
	structValidatorOnce.Do(func() {
		structValidator = validator.New(validator.WithRequiredStructEnabled())
		structValidator.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
		structValidator.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return OrgSlug(fl.Field().String()) == nil
		})
		structValidator.RegisterValidation("month", func(fl validator.FieldLevel) bool {
			return monthPattern.MatchString(fl.Field().String())
		})
		structValidator.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
			return datePattern.MatchString(fl.Field().String())
		})
		structValidator.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return Password(fl.Field().String()) == nil
		})
	})
	return structValidator
}

// Struct validates the `validate` tags of input and returns one
// error per failing field, named after its json key
func Struct(input any) error {
	err := getStructValidator().Struct(input)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	errs := make([]error, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		errs = append(errs, fmt.Errorf("%w: field[%s] failed on '%s'", ErrorInvalidField, fieldError.Field(), fieldError.Tag()))
	}
	return errors.Join(errs...)
}

func andS(input ...StringRule) StringRule {
	return func(s string) error {
		errs := []error{}
		for _, runValidator := range input {
			if err := runValidator(s); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			return errors.Join(errs...)
		}
		return nil
	}
}

func orR(input ...RuneRule) RuneRule {
	return func(r rune, p rune) error {
		errs := []error{}
		for _, runValidator := range input {
			if err := runValidator(r, p); err != nil {
				errs = append(errs, err)
			} else {
				return nil
			}
		}
		return errors.Join(errs...)
	}
}

// do applies string rules to the whole input and rune rules to every
// rune, each distinct error is reported once
func do(input string, validators ...any) error {
	seen := map[string]struct{}{}
	outputErrors := []error{}
	record := func(err error) {
		if _, ok := seen[err.Error()]; ok {
			return
		}
		seen[err.Error()] = struct{}{}
		outputErrors = append(outputErrors, err)
	}

	var p rune
	for _, v := range validators {
		switch rule := v.(type) {
		case StringRule:
			if err := rule(input); err != nil {
				record(err)
			}
		case RuneRule:
			p = 0
			for _, i := range input {
				if err := rule(i, p); err != nil {
					record(err)
				}
				p = i
			}
		}
	}
	return errors.Join(outputErrors...)
}
