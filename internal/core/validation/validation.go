package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/fajarnugraha/identity-service/internal"
)

var (
	codenameRegex = regexp.MustCompile(`^[a-z0-9_]+\.[a-z0-9_]+$`)
	slugRegex     = regexp.MustCompile(`^[a-z0-9_]+$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

var (
	validate *validator.Validate
	once     sync.Once
)

// Validator returns the shared validator instance with custom tags registered.
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterValidation("codename", func(fl validator.FieldLevel) bool {
			return codenameRegex.MatchString(fl.Field().String())
		})
		validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return slugRegex.MatchString(fl.Field().String())
		})
		validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernameRegex.MatchString(fl.Field().String())
		})

		// report json field names instead of Go struct names
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Struct validates a DTO and converts validator failures into an AppError
// carrying per-field ValidationErrors.
func Struct(s interface{}) *apperrors.AppError {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.NewValidationError("Validation failed", apperrors.ErrCodeValidationFailed).WithCause(err)
	}

	fieldErrors := make([]apperrors.ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		fieldErrors = append(fieldErrors, apperrors.ValidationError{
			Field:   fe.Field(),
			Message: messageFor(fe),
			Code:    string(codeFor(fe)),
		})
	}

	return apperrors.NewValidationError("Validation failed", apperrors.ErrCodeValidationFailed).
		WithDetails(apperrors.ValidationErrors{Errors: fieldErrors})
}

func messageFor(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must not exceed %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must not exceed %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must not exceed %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s must match %s", field, strings.ToLower(fe.Param()))
	case "codename":
		return fmt.Sprintf("%s must look like resource.action with lowercase letters, digits and underscores", field)
	case "slug":
		return fmt.Sprintf("%s must contain only lowercase letters, digits and underscores", field)
	case "username":
		return fmt.Sprintf("%s may contain only letters, digits, dots, hyphens and underscores", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func codeFor(fe validator.FieldError) apperrors.ErrorCode {
	switch fe.Tag() {
	case "eqfield":
		return apperrors.ErrCodePasswordsDoNotMatch
	case "codename", "slug":
		return apperrors.ErrCodeInvalidCodename
	case "username":
		return apperrors.ErrCodeInvalidUsername
	case "gte", "lte":
		if fe.Field() == "priority" {
			return apperrors.ErrCodeInvalidPriority
		}
		return apperrors.ErrCodeValidationFailed
	case "min":
		if strings.Contains(fe.Field(), "password") {
			return apperrors.ErrCodePasswordTooShort
		}
		return apperrors.ErrCodeValidationFailed
	default:
		return apperrors.ErrCodeValidationFailed
	}
}
