package middleware

import (
	"errors"
	"reflect"
	"strings"

	"catalog-service/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names so replies match the payload
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	// Amounts keep their exact decimal value; a float conversion would hide
	// digits the price column cannot store.
	if err := validate.RegisterValidation("money", validateMoney); err != nil {
		panic(err)
	}
}

func validateMoney(fl validator.FieldLevel) bool {
	d, ok := fl.Field().Interface().(decimal.Decimal)
	return ok && domain.ValidAmount(d)
}

// ValidateRequest validates a decoded payload against its validation tags
func ValidateRequest(v interface{}) error {
	return validate.Struct(v)
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field     string `json:"field"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// FormatValidationErrors converts validator errors to a readable format
func FormatValidationErrors(err error) []ValidationError {
	var errs []ValidationError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			errs = append(errs, ValidationError{
				Field:     fieldPath(e),
				ErrorCode: e.Tag(),
				Message:   getErrorMessage(e),
			})
		}
	}

	return errs
}

// fieldPath drops the struct name from the namespace: "Cmd.prices[0].amount"
// becomes "prices[0].amount".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "uuid":
		return "Invalid UUID format"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "len":
		return "Value must be exactly " + e.Param() + " characters long"
	case "unique":
		return "Values must be unique"
	case "gte":
		return "Value must be greater than or equal to " + e.Param()
	case "lte":
		return "Value must be less than or equal to " + e.Param()
	case "gt":
		return "Value must be greater than " + e.Param()
	case "lt":
		return "Value must be less than " + e.Param()
	case "money":
		return "Amount must be positive with at most 4 decimal places and 15 integer digits"
	default:
		return "Invalid value"
	}
}
