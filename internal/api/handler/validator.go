package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/bizdesk/backoffice/internal/core/domain"
)

// ruleMessages phrase a failed rule; %[1]s is the field path, %[2]s the rule parameter.
var ruleMessages = map[string]string{
	"required": "%[1]s is required",
	"email":    "%[1]s must be a valid email",
	"gt":       "%[1]s must be greater than %[2]s",
	"gte":      "%[1]s must be at least %[2]s",
	"min":      "%[1]s must have at least %[2]s",
	"max":      "%[1]s must have at most %[2]s",
	"oneof":    "%[1]s must be one of: %[2]s",
}

type requestValidator struct {
	v *validator.Validate
}

// NewValidator is installed as echo.Echo.Validator. Rule failures come back
// as domain.ErrValidation and name fields by their JSON keys, e.g.
// "items[0].quantity must be greater than 0".
func NewValidator() echo.Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	return &requestValidator{v: v}
}

func (rv *requestValidator) Validate(i any) error {
	err := rv.v.Struct(i)
	var failures validator.ValidationErrors
	if !errors.As(err, &failures) {
		return err
	}
	msgs := make([]string, len(failures))
	for n, fe := range failures {
		msgs[n] = describe(fe)
	}
	return domain.Validationf("%s", strings.Join(msgs, "; "))
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func describe(fe validator.FieldError) string {
	// Drop the root struct name from "createOrderRequest.items[0].quantity".
	_, path, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		path = fe.Field()
	}
	if format, ok := ruleMessages[fe.Tag()]; ok {
		return fmt.Sprintf(format, path, fe.Param())
	}
	return fmt.Sprintf("%s failed validation (%s)", path, fe.Tag())
}
