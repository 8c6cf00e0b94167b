package loans

import (
	"errors"
	"reflect"
	"strings"

	"equipment_loaner/apperr"
	"equipment_loaner/models"

	"github.com/go-playground/validator/v10"
)

// RegisterValidations adds the domain tags (item_status, item_condition,
// return_condition, role, user_type) to v and reports fields by their JSON name.
func RegisterValidations(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	rules := map[string]func(string) bool{
		"item_status":      func(s string) bool { return models.ItemStatus(s).Valid() },
		"item_condition":   func(s string) bool { return models.Condition(s).ValidItemCondition() },
		"return_condition": func(s string) bool { return models.Condition(s).ValidReturnCondition() },
		"role":             func(s string) bool { return models.Role(s).Valid() },
		"user_type":        validUserType,
	}
	for tag, ok := range rules {
		ok := ok
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return ok(fl.Field().String())
		}); err != nil {
			return err
		}
	}
	return nil
}

func validUserType(s string) bool {
	switch s {
	case "student", "team", "faculty", "staff", "admin":
		return true
	}
	return false
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterValidations(v); err != nil {
		panic(err)
	}
	return v
}

// ValidationError turns validator output into an apperr Validation with
// field -> failed tag details.
func ValidationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperr.Validation("invalid input", nil)
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	return apperr.Validation("invalid input", fields)
}
