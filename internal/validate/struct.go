package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"bookshop/internal/domain"
)

var structs = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	must(v.RegisterValidation("notblank", validators.NotBlank))
	must(v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return Password(fl.Field().String())
	}))
	must(v.RegisterValidation("isbn_code", matches(reISBN, false)))
	must(v.RegisterValidation("phone", matches(rePhone, false)))
	// a blank publication date clears the column
	must(v.RegisterValidation("pubdate", matches(reDate, true)))
	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func matches(re *regexp.Regexp, blankOK bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		if s == "" {
			return blankOK
		}
		return re.MatchString(s)
	}
}

// Struct checks the validate tags of a request struct and reports the first
// failing field as a domain validation error.
func Struct(s any) error {
	err := structs.Struct(s)
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	fe := ves[0]
	return domain.Invalid(fe.Field(), message(fe))
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "this field may not be blank"
	case "email":
		return "enter a valid email address"
	case "password":
		return "password must be 8-64 characters with upper, lower, digit and symbol"
	case "eqfield":
		return "passwords must match"
	case "phone":
		return "enter a valid phone number"
	case "isbn_code":
		return "must be 1-20 letters, digits or hyphens"
	case "pubdate":
		return "use YYYY or YYYY-MM-DD"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min", "gte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("ensure this field has at least %s characters", fe.Param())
		}
		return "ensure this value is greater than or equal to " + fe.Param()
	case "max", "lte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("ensure this field has no more than %s characters", fe.Param())
		}
		return "ensure this value is less than or equal to " + fe.Param()
	}
	return "invalid value"
}
